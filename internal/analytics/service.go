package analytics

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/hurley87/irl-protocol/internal/models"
	"github.com/hurley87/irl-protocol/internal/utils"
)

// Service answers attendance and reward-flow questions straight from
// the database. It reads the same tables the registry and ledger write
// through to, so numbers always match what the services served.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// EventAttendance aggregates one event's check-in activity.
type EventAttendance struct {
	EventID        uint64                `json:"event_id"`
	TotalCheckedIn uint64                `json:"total_checked_in"`
	MaxCapacity    uint64                `json:"max_capacity"`
	UtilizationPct float64               `json:"utilization_pct"`
	PointsIssued   uint64                `json:"points_issued"`
	DailyCheckIns  []DailyCheckInMetrics `json:"daily_check_ins"`
}

// DailyCheckInMetrics contains check-in metrics for a single day.
type DailyCheckInMetrics struct {
	Date         string `json:"date"`
	CheckIns     int    `json:"check_ins"`
	PointsIssued uint64 `json:"points_issued"`
}

// PlatformSummary is the whole platform at a glance.
type PlatformSummary struct {
	TotalEvents       int                 `json:"total_events"`
	TotalCheckIns     int                 `json:"total_check_ins"`
	TotalPointsIssued uint64              `json:"total_points_issued"`
	BusiestEvents     []EventCheckInCount `json:"busiest_events"`
}

// EventCheckInCount ranks one event by recorded check-ins.
type EventCheckInCount struct {
	EventID  uint64 `json:"event_id"`
	CheckIns int    `json:"check_ins"`
}

// AttendeeHistory is one wallet's attendance record across all events.
type AttendeeHistory struct {
	Attendee          string           `json:"attendee"`
	TotalCheckIns     int              `json:"total_check_ins"`
	TotalPointsEarned uint64           `json:"total_points_earned"`
	CheckIns          []models.CheckIn `json:"check_ins"`
}

// TokenTransferVolume sums custody movement per token. Amounts stay
// decimal strings end to end; they do not fit in any machine integer.
type TokenTransferVolume struct {
	Token     string `json:"token"`
	Funded    string `json:"funded"`
	Claimed   string `json:"claimed"`
	Withdrawn string `json:"withdrawn"`
}

// GetEventAttendance returns attendance analytics for a single event.
func (s *Service) GetEventAttendance(ctx context.Context, eventID uint64) (*EventAttendance, error) {
	var ev models.Event
	err := s.db.NewSelect().
		Model(&ev).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	var pointsIssued int64
	err = s.db.NewRaw(
		"SELECT COALESCE(SUM(points), 0) FROM check_ins WHERE event_id = ?",
		eventID,
	).Scan(ctx, &pointsIssued)
	if err != nil {
		return nil, err
	}

	type dailyRaw struct {
		Day      time.Time `bun:"day"`
		CheckIns int       `bun:"check_ins"`
		Points   int64     `bun:"points_issued"`
	}

	var daily []dailyRaw
	err = s.db.NewRaw(`
		SELECT
			DATE(checked_in_at) AS day,
			COUNT(*) AS check_ins,
			COALESCE(SUM(points), 0) AS points_issued
		FROM
			check_ins
		WHERE
			event_id = ?
		GROUP BY
			DATE(checked_in_at)
		ORDER BY
			day
	`, eventID).Scan(ctx, &daily)
	if err != nil {
		return nil, err
	}

	result := &EventAttendance{
		EventID:        ev.ID,
		TotalCheckedIn: ev.TotalCheckedIn,
		MaxCapacity:    ev.MaxCapacity,
		PointsIssued:   uint64(pointsIssued),
		DailyCheckIns:  make([]DailyCheckInMetrics, 0, len(daily)),
	}
	if ev.MaxCapacity > 0 {
		result.UtilizationPct = float64(ev.TotalCheckedIn) / float64(ev.MaxCapacity) * 100
	}

	for _, d := range daily {
		result.DailyCheckIns = append(result.DailyCheckIns, DailyCheckInMetrics{
			Date:         utils.DayKey(d.Day),
			CheckIns:     d.CheckIns,
			PointsIssued: uint64(d.Points),
		})
	}

	return result, nil
}

// GetPlatformSummary returns totals across every event.
func (s *Service) GetPlatformSummary(ctx context.Context) (*PlatformSummary, error) {
	totalEvents, err := s.db.NewSelect().
		Model((*models.Event)(nil)).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	totalCheckIns, err := s.db.NewSelect().
		Model((*models.CheckIn)(nil)).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	var pointsIssued int64
	err = s.db.NewRaw("SELECT COALESCE(SUM(points), 0) FROM check_ins").
		Scan(ctx, &pointsIssued)
	if err != nil {
		return nil, err
	}

	type busiestRaw struct {
		EventID  uint64 `bun:"event_id"`
		CheckIns int    `bun:"check_ins"`
	}

	var busiest []busiestRaw
	err = s.db.NewRaw(`
		SELECT
			event_id,
			COUNT(*) AS check_ins
		FROM
			check_ins
		GROUP BY
			event_id
		ORDER BY
			check_ins DESC, event_id
		LIMIT 5
	`).Scan(ctx, &busiest)
	if err != nil {
		return nil, err
	}

	result := &PlatformSummary{
		TotalEvents:       totalEvents,
		TotalCheckIns:     totalCheckIns,
		TotalPointsIssued: uint64(pointsIssued),
		BusiestEvents:     make([]EventCheckInCount, 0, len(busiest)),
	}
	for _, b := range busiest {
		result.BusiestEvents = append(result.BusiestEvents, EventCheckInCount(b))
	}

	return result, nil
}

// GetAttendeeHistory returns one wallet's check-ins, newest first.
func (s *Service) GetAttendeeHistory(ctx context.Context, attendee string) (*AttendeeHistory, error) {
	var checkIns []models.CheckIn
	err := s.db.NewSelect().
		Model(&checkIns).
		Where("attendee = ?", attendee).
		Order("checked_in_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := &AttendeeHistory{
		Attendee:      attendee,
		TotalCheckIns: len(checkIns),
		CheckIns:      checkIns,
	}
	for _, rec := range checkIns {
		result.TotalPointsEarned += rec.Points
	}

	return result, nil
}

// GetTransferVolumes sums the custody journal per token. The cast
// chain keeps 18-decimal amounts exact: TEXT -> NUMERIC for the sum,
// back to TEXT for the wire.
func (s *Service) GetTransferVolumes(ctx context.Context) ([]TokenTransferVolume, error) {
	type volumeRaw struct {
		Token     string `bun:"token"`
		Funded    string `bun:"funded"`
		Claimed   string `bun:"claimed"`
		Withdrawn string `bun:"withdrawn"`
	}

	var volumes []volumeRaw
	err := s.db.NewRaw(`
		SELECT
			token,
			CAST(COALESCE(SUM(CASE WHEN kind = 'fund' THEN CAST(amount AS NUMERIC) END), 0) AS TEXT) AS funded,
			CAST(COALESCE(SUM(CASE WHEN kind = 'claim' THEN CAST(amount AS NUMERIC) END), 0) AS TEXT) AS claimed,
			CAST(COALESCE(SUM(CASE WHEN kind = 'withdraw' THEN CAST(amount AS NUMERIC) END), 0) AS TEXT) AS withdrawn
		FROM
			transfers
		GROUP BY
			token
		ORDER BY
			token
	`).Scan(ctx, &volumes)
	if err != nil {
		return nil, err
	}

	result := make([]TokenTransferVolume, 0, len(volumes))
	for _, v := range volumes {
		result = append(result, TokenTransferVolume(v))
	}
	return result, nil
}
