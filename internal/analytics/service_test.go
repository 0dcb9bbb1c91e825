package analytics_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/hurley87/irl-protocol/internal/analytics"
	"github.com/hurley87/irl-protocol/internal/models"
)

const (
	attendeeA = "0x00000000000000000000000000000000000000b2"
	attendeeB = "0x00000000000000000000000000000000000000c3"
	attendeeC = "0x00000000000000000000000000000000000000d4"
	tokenX    = "0x0000000000000000000000000000000000000E01"
	tokenY    = "0x0000000000000000000000000000000000000E02"
)

// setupSeededDB builds an in-memory database carrying two events, four
// check-ins across three days and a small custody journal.
func setupSeededDB(t *testing.T) *analytics.Service {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.CheckIn)(nil),
		(*models.Transfer)(nil),
	} {
		if err := bunDB.ResetModel(ctx, model); err != nil {
			t.Fatalf("Failed to reset model: %v", err)
		}
	}

	created := time.Date(2027, 2, 20, 12, 0, 0, 0, time.UTC)
	events := []models.Event{
		{
			ID: 1, StubID: 1, Points: 100,
			StartTime: 1_800_000_000, EndTime: 1_800_086_400,
			MaxCapacity: 100, TotalCheckedIn: 3,
			CreatedAt: created, UpdatedAt: created,
		},
		{
			ID: 2, StubID: 2, Points: 50,
			StartTime: 1_800_100_000, EndTime: 1_800_186_400,
			MaxCapacity: 10, TotalCheckedIn: 1,
			CreatedAt: created.Add(time.Hour), UpdatedAt: created.Add(time.Hour),
		},
	}
	if _, err := bunDB.NewInsert().Model(&events).Exec(ctx); err != nil {
		t.Fatalf("Failed to seed events: %v", err)
	}

	day1Morning := time.Date(2027, 3, 1, 9, 0, 0, 0, time.UTC)
	day1Evening := time.Date(2027, 3, 1, 18, 30, 0, 0, time.UTC)
	day2 := time.Date(2027, 3, 2, 11, 0, 0, 0, time.UTC)
	day5 := time.Date(2027, 3, 5, 20, 0, 0, 0, time.UTC)
	checkIns := []models.CheckIn{
		{EventID: 1, Attendee: attendeeA, Points: 100, StubID: 1, ReceiptID: "r-1", CheckedInAt: day1Morning},
		{EventID: 1, Attendee: attendeeB, Points: 100, StubID: 1, ReceiptID: "r-2", CheckedInAt: day1Evening},
		{EventID: 1, Attendee: attendeeC, Points: 100, StubID: 1, ReceiptID: "r-3", CheckedInAt: day2},
		{EventID: 2, Attendee: attendeeA, Points: 50, StubID: 2, ReceiptID: "r-4", CheckedInAt: day5},
	}
	if _, err := bunDB.NewInsert().Model(&checkIns).Exec(ctx); err != nil {
		t.Fatalf("Failed to seed check-ins: %v", err)
	}

	transfers := []models.Transfer{
		{ID: "t-1", Kind: models.TransferKindFund, Token: tokenX, Wallet: attendeeB, Amount: "500", CreatedAt: day1Morning},
		{ID: "t-2", Kind: models.TransferKindClaim, Token: tokenX, Wallet: attendeeA, Recipient: attendeeA, Amount: "200", CreatedAt: day2},
		{ID: "t-3", Kind: models.TransferKindFund, Token: tokenY, Wallet: attendeeB, Amount: "40", CreatedAt: day2},
	}
	if _, err := bunDB.NewInsert().Model(&transfers).Exec(ctx); err != nil {
		t.Fatalf("Failed to seed transfers: %v", err)
	}

	return analytics.NewService(bunDB)
}

func TestGetEventAttendance(t *testing.T) {
	svc := setupSeededDB(t)

	att, err := svc.GetEventAttendance(context.Background(), 1)
	if err != nil {
		t.Fatalf("Failed to get attendance: %v", err)
	}

	if att.TotalCheckedIn != 3 {
		t.Errorf("Expected 3 checked in, got %d", att.TotalCheckedIn)
	}
	if att.MaxCapacity != 100 {
		t.Errorf("Expected capacity 100, got %d", att.MaxCapacity)
	}
	if att.UtilizationPct != 3.0 {
		t.Errorf("Expected 3%% utilization, got %v", att.UtilizationPct)
	}
	if att.PointsIssued != 300 {
		t.Errorf("Expected 300 points issued, got %d", att.PointsIssued)
	}

	if len(att.DailyCheckIns) != 2 {
		t.Fatalf("Expected 2 daily buckets, got %d", len(att.DailyCheckIns))
	}
	first := att.DailyCheckIns[0]
	if first.Date != "2027-03-01" || first.CheckIns != 2 || first.PointsIssued != 200 {
		t.Errorf("Unexpected first bucket: %+v", first)
	}
	second := att.DailyCheckIns[1]
	if second.Date != "2027-03-02" || second.CheckIns != 1 || second.PointsIssued != 100 {
		t.Errorf("Unexpected second bucket: %+v", second)
	}
}

func TestGetEventAttendanceUnknownEvent(t *testing.T) {
	svc := setupSeededDB(t)

	_, err := svc.GetEventAttendance(context.Background(), 99)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestGetPlatformSummary(t *testing.T) {
	svc := setupSeededDB(t)

	summary, err := svc.GetPlatformSummary(context.Background())
	if err != nil {
		t.Fatalf("Failed to get summary: %v", err)
	}

	if summary.TotalEvents != 2 {
		t.Errorf("Expected 2 events, got %d", summary.TotalEvents)
	}
	if summary.TotalCheckIns != 4 {
		t.Errorf("Expected 4 check-ins, got %d", summary.TotalCheckIns)
	}
	if summary.TotalPointsIssued != 350 {
		t.Errorf("Expected 350 points, got %d", summary.TotalPointsIssued)
	}

	if len(summary.BusiestEvents) != 2 {
		t.Fatalf("Expected 2 ranked events, got %d", len(summary.BusiestEvents))
	}
	if summary.BusiestEvents[0].EventID != 1 || summary.BusiestEvents[0].CheckIns != 3 {
		t.Errorf("Unexpected busiest event: %+v", summary.BusiestEvents[0])
	}
	if summary.BusiestEvents[1].EventID != 2 || summary.BusiestEvents[1].CheckIns != 1 {
		t.Errorf("Unexpected runner-up: %+v", summary.BusiestEvents[1])
	}
}

func TestGetAttendeeHistory(t *testing.T) {
	svc := setupSeededDB(t)

	history, err := svc.GetAttendeeHistory(context.Background(), attendeeA)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}

	if history.TotalCheckIns != 2 {
		t.Fatalf("Expected 2 check-ins, got %d", history.TotalCheckIns)
	}
	if history.TotalPointsEarned != 150 {
		t.Errorf("Expected 150 points, got %d", history.TotalPointsEarned)
	}
	// Newest first
	if history.CheckIns[0].EventID != 2 || history.CheckIns[1].EventID != 1 {
		t.Errorf("Expected events [2 1], got [%d %d]", history.CheckIns[0].EventID, history.CheckIns[1].EventID)
	}

	// A wallet that never attended reads back empty, not an error
	history, err = svc.GetAttendeeHistory(context.Background(), "0x00000000000000000000000000000000000000ee")
	if err != nil {
		t.Fatalf("Failed to get empty history: %v", err)
	}
	if history.TotalCheckIns != 0 || history.TotalPointsEarned != 0 {
		t.Errorf("Expected empty history, got %+v", history)
	}
}

func TestGetTransferVolumes(t *testing.T) {
	svc := setupSeededDB(t)

	volumes, err := svc.GetTransferVolumes(context.Background())
	if err != nil {
		t.Fatalf("Failed to get volumes: %v", err)
	}

	if len(volumes) != 2 {
		t.Fatalf("Expected 2 tokens, got %d", len(volumes))
	}
	x := volumes[0]
	if x.Token != tokenX || x.Funded != "500" || x.Claimed != "200" || x.Withdrawn != "0" {
		t.Errorf("Unexpected volumes for %s: %+v", tokenX, x)
	}
	y := volumes[1]
	if y.Token != tokenY || y.Funded != "40" || y.Claimed != "0" || y.Withdrawn != "0" {
		t.Errorf("Unexpected volumes for %s: %+v", tokenY, y)
	}
}
