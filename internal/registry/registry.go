package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/hurley87/irl-protocol/internal/chain"
	"github.com/hurley87/irl-protocol/internal/logger"
	"github.com/hurley87/irl-protocol/internal/models"
)

type Store interface {
	SaveEvent(ctx context.Context, ev models.Event) error
	DeleteEvent(ctx context.Context, id uint64) error
	SaveCheckIn(ctx context.Context, rec models.CheckIn, ev models.Event) error
	RemoveCheckIn(ctx context.Context, eventID uint64, attendee string, ev models.Event) error
	SaveAllowlist(ctx context.Context, eventID uint64, addrs []string, allowed bool, ev models.Event) error
	SaveState(ctx context.Context, st models.RegistryState) error
	Load(ctx context.Context) (*models.RegistrySnapshot, error)
}

type TokenMinter interface {
	MintStub(ctx context.Context, account common.Address, stubID, qty uint64) error
	BurnStub(ctx context.Context, account common.Address, stubID, qty uint64) error
	MintPoints(ctx context.Context, account common.Address, amount uint64) error
	BurnPoints(ctx context.Context, account common.Address, amount uint64) error
	SetContracts(stubs, points common.Address)
}

type FactPublisher interface {
	PublishEventCreated(ev models.Event) error
	PublishEventUpdated(ev models.Event) error
	PublishEventDeleted(ev models.Event) error
	PublishCheckedIn(fact models.CheckInFact) error
	PublishCheckInUndone(fact models.CheckInFact) error
}

// CheckInFeed pushes live check-in facts to connected dashboards.
type CheckInFeed interface {
	EmitCheckIn(fact models.CheckInFact)
}

// EventParams is the caller-supplied portion of a new event.
type EventParams struct {
	ID          uint64 `json:"id"`
	StubID      uint64 `json:"stub_id"`
	Points      uint64 `json:"points"`
	StartTime   int64  `json:"start_time"`
	EndTime     int64  `json:"end_time"`
	MaxCapacity uint64 `json:"max_capacity"`
}

// Registry is the event check-in state machine. All state lives in
// memory under one lock; every operation validates completely before
// touching anything, so a failed call leaves no trace. The store is
// written through on each mutation and replayed on startup.
type Registry struct {
	mu       sync.Mutex
	owner    common.Address
	paused   bool
	events   map[uint64]*models.Event
	order    []uint64
	checkins map[uint64]map[common.Address]models.CheckIn
	gate     *allowlist

	store  Store
	minter TokenMinter
	facts  FactPublisher
	feed   CheckInFeed
	log    *logger.Logger
	clock  func() time.Time
}

// NewRegistry wires the registry. feed may be nil when no live feed is
// attached; everything else is required.
func NewRegistry(owner common.Address, store Store, minter TokenMinter, facts FactPublisher, feed CheckInFeed, log *logger.Logger) *Registry {
	return &Registry{
		owner:    owner,
		events:   make(map[uint64]*models.Event),
		checkins: make(map[uint64]map[common.Address]models.CheckIn),
		gate:     newAllowlist(),
		store:    store,
		minter:   minter,
		facts:    facts,
		feed:     feed,
		log:      log,
		clock:    time.Now,
	}
}

// SetClock replaces the time source. Tests pin it to fixed instants;
// each operation reads the clock exactly once.
func (r *Registry) SetClock(clock func() time.Time) {
	r.clock = clock
}

// Load replays the stored snapshot into memory. Called once before the
// registry starts serving.
func (r *Registry) Load(ctx context.Context) error {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load registry snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.paused = snap.State.Paused
	for _, ev := range snap.Events {
		evCopy := ev
		r.events[ev.ID] = &evCopy
		r.order = append(r.order, ev.ID)
	}
	for _, rec := range snap.CheckIns {
		if r.checkins[rec.EventID] == nil {
			r.checkins[rec.EventID] = make(map[common.Address]models.CheckIn)
		}
		r.checkins[rec.EventID][common.HexToAddress(rec.Attendee)] = rec
	}
	for _, entry := range snap.Allowlist {
		r.gate.set(entry.EventID, []common.Address{common.HexToAddress(entry.Address)}, true)
	}

	r.log.Info("REGISTRY", fmt.Sprintf("Loaded %d events, %d allowlist entries", len(snap.Events), len(snap.Allowlist)))
	return nil
}

// ---------------- EVENT LIFECYCLE ----------------

func (r *Registry) CreateEvent(ctx context.Context, caller common.Address, params EventParams) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	if caller != r.owner {
		return nil, ErrUnauthorized
	}
	if r.paused {
		return nil, ErrRegistryPaused
	}
	if _, exists := r.events[params.ID]; exists {
		return nil, fmt.Errorf("event %d: %w", params.ID, ErrEventExists)
	}
	if params.StartTime >= params.EndTime {
		return nil, ErrInvalidTimeRange
	}

	ev := models.Event{
		ID:          params.ID,
		StubID:      params.StubID,
		Points:      params.Points,
		StartTime:   params.StartTime,
		EndTime:     params.EndTime,
		MaxCapacity: params.MaxCapacity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.SaveEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to persist event %d: %w", params.ID, err)
	}

	r.events[ev.ID] = &ev
	r.order = append(r.order, ev.ID)
	r.checkins[ev.ID] = make(map[common.Address]models.CheckIn)

	r.log.Info("REGISTRY", fmt.Sprintf("Created event %d (capacity %d)", ev.ID, ev.MaxCapacity))
	if err := r.facts.PublishEventCreated(ev); err != nil {
		r.log.Error("KAFKA", fmt.Sprintf("event created publish failed: %v", err))
	}
	result := ev
	return &result, nil
}

func (r *Registry) UpdateEventTimes(ctx context.Context, caller common.Address, eventID uint64, start, end int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if r.paused {
		return ErrRegistryPaused
	}
	ev, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	if now.Unix() >= ev.StartTime {
		return ErrEventStarted
	}
	if start >= end {
		return ErrInvalidTimeRange
	}

	updated := *ev
	updated.StartTime = start
	updated.EndTime = end
	updated.UpdatedAt = now
	return r.applyEventUpdate(ctx, ev, updated)
}

func (r *Registry) UpdateEventCapacity(ctx context.Context, caller common.Address, eventID, capacity uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if r.paused {
		return ErrRegistryPaused
	}
	ev, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	if capacity < ev.TotalCheckedIn {
		return fmt.Errorf("capacity %d below %d check-ins: %w", capacity, ev.TotalCheckedIn, ErrCapacityBelowCheckins)
	}

	updated := *ev
	updated.MaxCapacity = capacity
	updated.UpdatedAt = now
	return r.applyEventUpdate(ctx, ev, updated)
}

func (r *Registry) UpdateEventPoints(ctx context.Context, caller common.Address, eventID, points uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if r.paused {
		return ErrRegistryPaused
	}
	ev, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}

	updated := *ev
	updated.Points = points
	updated.UpdatedAt = now
	return r.applyEventUpdate(ctx, ev, updated)
}

func (r *Registry) UpdateEventStub(ctx context.Context, caller common.Address, eventID, stubID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if r.paused {
		return ErrRegistryPaused
	}
	ev, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}

	updated := *ev
	updated.StubID = stubID
	updated.UpdatedAt = now
	return r.applyEventUpdate(ctx, ev, updated)
}

func (r *Registry) PauseEvent(ctx context.Context, caller common.Address, eventID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if r.paused {
		return ErrRegistryPaused
	}
	ev, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	if ev.Paused {
		return ErrEventPaused
	}

	updated := *ev
	updated.Paused = true
	updated.UpdatedAt = now
	return r.applyEventUpdate(ctx, ev, updated)
}

func (r *Registry) UnpauseEvent(ctx context.Context, caller common.Address, eventID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if r.paused {
		return ErrRegistryPaused
	}
	ev, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	if !ev.Paused {
		return ErrEventNotPaused
	}

	updated := *ev
	updated.Paused = false
	updated.UpdatedAt = now
	return r.applyEventUpdate(ctx, ev, updated)
}

// AutoEndEvent closes an event ahead of schedule. The scheduled window
// stays on record; only the ended flag flips.
func (r *Registry) AutoEndEvent(ctx context.Context, caller common.Address, eventID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if r.paused {
		return ErrRegistryPaused
	}
	ev, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	if ev.AutoEnded || now.Unix() > ev.EndTime {
		return ErrEventEnded
	}

	updated := *ev
	updated.AutoEnded = true
	updated.UpdatedAt = now
	if err := r.applyEventUpdate(ctx, ev, updated); err != nil {
		return err
	}
	r.log.Info("REGISTRY", fmt.Sprintf("Event %d ended early", eventID))
	return nil
}

// DeleteEvent removes the event and its allowlist entirely. Only
// events with zero check-ins can go; issued receipts are never orphaned.
func (r *Registry) DeleteEvent(ctx context.Context, caller common.Address, eventID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if r.paused {
		return ErrRegistryPaused
	}
	ev, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	if ev.TotalCheckedIn > 0 {
		return fmt.Errorf("event %d: %w", eventID, ErrHasCheckins)
	}

	if err := r.store.DeleteEvent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to delete event %d: %w", eventID, err)
	}

	deleted := *ev
	delete(r.events, eventID)
	delete(r.checkins, eventID)
	r.gate.drop(eventID)
	for i, id := range r.order {
		if id == eventID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.log.Info("REGISTRY", fmt.Sprintf("Deleted event %d", eventID))
	if err := r.facts.PublishEventDeleted(deleted); err != nil {
		r.log.Error("KAFKA", fmt.Sprintf("event deleted publish failed: %v", err))
	}
	return nil
}

// ---------------- ALLOWLIST ----------------

// SetAllowlist flips allowlist bits in bulk. The first call, grant or
// revoke, latches the event into allowlist-required mode permanently.
func (r *Registry) SetAllowlist(ctx context.Context, caller common.Address, eventID uint64, addrs []common.Address, allowed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if r.paused {
		return ErrRegistryPaused
	}
	ev, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	for _, addr := range addrs {
		if chain.IsZero(addr) {
			return ErrZeroAddress
		}
	}

	updated := *ev
	updated.AllowlistRequired = true
	updated.UpdatedAt = now

	hexAddrs := make([]string, len(addrs))
	for i, addr := range addrs {
		hexAddrs[i] = chain.Hex(addr)
	}
	if err := r.store.SaveAllowlist(ctx, eventID, hexAddrs, allowed, updated); err != nil {
		return fmt.Errorf("failed to persist allowlist for event %d: %w", eventID, err)
	}

	r.gate.set(eventID, addrs, allowed)
	*ev = updated

	r.log.Info("REGISTRY", fmt.Sprintf("Allowlist for event %d: %d addresses set to %t", eventID, len(addrs), allowed))
	if err := r.facts.PublishEventUpdated(updated); err != nil {
		r.log.Error("KAFKA", fmt.Sprintf("event updated publish failed: %v", err))
	}
	return nil
}

// ---------------- CHECK-IN ----------------

// CheckIn runs the full eligibility chain and, if it passes, mints the
// attendee's stub and points, records the attendance and hands back a
// receipt. Guards run in a fixed order so clients always see the same
// failure for the same state. Nothing is committed until the mint and
// the durable write both succeed; a failed write burns the minted
// tokens back.
func (r *Registry) CheckIn(ctx context.Context, attendee common.Address, eventID uint64) (*models.CheckInReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	if r.paused {
		return nil, ErrRegistryPaused
	}
	ev, ok := r.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	if ev.Paused {
		return nil, ErrEventPaused
	}
	if now.Unix() < ev.StartTime {
		return nil, ErrEventNotStarted
	}
	if ev.AutoEnded || now.Unix() > ev.EndTime {
		return nil, ErrEventEnded
	}
	if ev.TotalCheckedIn >= ev.MaxCapacity {
		return nil, ErrEventAtCapacity
	}
	if ev.AllowlistRequired && !r.gate.allowed(eventID, attendee) {
		return nil, ErrNotAllowlisted
	}
	if _, dup := r.checkins[eventID][attendee]; dup {
		return nil, ErrAlreadyCheckedIn
	}

	if err := r.minter.MintStub(ctx, attendee, ev.StubID, 1); err != nil {
		return nil, fmt.Errorf("stub mint failed: %w", err)
	}
	if ev.Points > 0 {
		if err := r.minter.MintPoints(ctx, attendee, ev.Points); err != nil {
			if berr := r.minter.BurnStub(ctx, attendee, ev.StubID, 1); berr != nil {
				r.log.Error("MINT", fmt.Sprintf("stub burn after failed points mint: %v", berr))
			}
			return nil, fmt.Errorf("points mint failed: %w", err)
		}
	}

	rec := models.CheckIn{
		EventID:     eventID,
		Attendee:    chain.Hex(attendee),
		Points:      ev.Points,
		StubID:      ev.StubID,
		ReceiptID:   uuid.NewString(),
		CheckedInAt: now,
	}
	updated := *ev
	updated.TotalCheckedIn++
	updated.UpdatedAt = now

	if err := r.store.SaveCheckIn(ctx, rec, updated); err != nil {
		r.compensateMint(ctx, attendee, ev.StubID, ev.Points)
		return nil, fmt.Errorf("failed to persist check-in: %w", err)
	}

	if r.checkins[eventID] == nil {
		r.checkins[eventID] = make(map[common.Address]models.CheckIn)
	}
	r.checkins[eventID][attendee] = rec
	*ev = updated

	r.log.LogCheckIn("CHECKIN", eventID, fmt.Sprintf("%s checked in (%d/%d)", rec.Attendee, updated.TotalCheckedIn, updated.MaxCapacity))

	fact := models.CheckInFact{
		EventID:        eventID,
		Attendee:       rec.Attendee,
		Points:         rec.Points,
		StubID:         rec.StubID,
		ReceiptID:      rec.ReceiptID,
		TotalCheckedIn: updated.TotalCheckedIn,
		OccurredAt:     now,
	}
	if err := r.facts.PublishCheckedIn(fact); err != nil {
		r.log.Error("KAFKA", fmt.Sprintf("check-in publish failed: %v", err))
	}
	if r.feed != nil {
		r.feed.EmitCheckIn(fact)
	}

	return &models.CheckInReceipt{
		ReceiptID:   rec.ReceiptID,
		EventID:     rec.EventID,
		Attendee:    rec.Attendee,
		Points:      rec.Points,
		StubID:      rec.StubID,
		CheckedInAt: rec.CheckedInAt,
	}, nil
}

// UndoCheckIn reverses a recorded check-in: the minted stub and points
// are burned and the slot is freed. The attendee may check in again,
// passing the full guard chain anew. Owner-only and allowed even after
// the event ended, so mistaken scans can always be corrected.
func (r *Registry) UndoCheckIn(ctx context.Context, caller, attendee common.Address, eventID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if r.paused {
		return ErrRegistryPaused
	}
	ev, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	rec, ok := r.checkins[eventID][attendee]
	if !ok {
		return fmt.Errorf("event %d: %w", eventID, ErrNotCheckedIn)
	}

	if err := r.minter.BurnStub(ctx, attendee, rec.StubID, 1); err != nil {
		return fmt.Errorf("stub burn failed: %w", err)
	}
	if rec.Points > 0 {
		if err := r.minter.BurnPoints(ctx, attendee, rec.Points); err != nil {
			if merr := r.minter.MintStub(ctx, attendee, rec.StubID, 1); merr != nil {
				r.log.Error("MINT", fmt.Sprintf("stub remint after failed points burn: %v", merr))
			}
			return fmt.Errorf("points burn failed: %w", err)
		}
	}

	updated := *ev
	updated.TotalCheckedIn--
	updated.UpdatedAt = now

	if err := r.store.RemoveCheckIn(ctx, eventID, rec.Attendee, updated); err != nil {
		if merr := r.minter.MintStub(ctx, attendee, rec.StubID, 1); merr != nil {
			r.log.Error("MINT", fmt.Sprintf("stub remint after failed undo write: %v", merr))
		}
		if rec.Points > 0 {
			if merr := r.minter.MintPoints(ctx, attendee, rec.Points); merr != nil {
				r.log.Error("MINT", fmt.Sprintf("points remint after failed undo write: %v", merr))
			}
		}
		return fmt.Errorf("failed to persist undo: %w", err)
	}

	delete(r.checkins[eventID], attendee)
	*ev = updated

	r.log.LogCheckIn("UNDO", eventID, fmt.Sprintf("%s check-in reversed (%d/%d)", rec.Attendee, updated.TotalCheckedIn, updated.MaxCapacity))

	fact := models.CheckInFact{
		EventID:        eventID,
		Attendee:       rec.Attendee,
		Points:         rec.Points,
		StubID:         rec.StubID,
		ReceiptID:      rec.ReceiptID,
		TotalCheckedIn: updated.TotalCheckedIn,
		Undone:         true,
		OccurredAt:     now,
	}
	if err := r.facts.PublishCheckInUndone(fact); err != nil {
		r.log.Error("KAFKA", fmt.Sprintf("check-in undone publish failed: %v", err))
	}
	return nil
}

// ---------------- GLOBAL CONTROLS ----------------

func (r *Registry) Pause(ctx context.Context, caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if r.paused {
		return ErrRegistryPaused
	}
	if err := r.store.SaveState(ctx, models.RegistryState{ID: 1, Paused: true}); err != nil {
		return fmt.Errorf("failed to persist pause: %w", err)
	}
	r.paused = true
	r.log.Warn("REGISTRY", "Registry paused")
	return nil
}

func (r *Registry) Unpause(ctx context.Context, caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if !r.paused {
		return ErrRegistryNotPaused
	}
	if err := r.store.SaveState(ctx, models.RegistryState{ID: 1, Paused: false}); err != nil {
		return fmt.Errorf("failed to persist unpause: %w", err)
	}
	r.paused = false
	r.log.Info("REGISTRY", "Registry unpaused")
	return nil
}

// UpdateRewardContracts retargets the minter at new Stubs and Points
// contracts. Balances already minted on the old contracts stay where
// they are.
func (r *Registry) UpdateRewardContracts(ctx context.Context, caller common.Address, stubs, points common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return ErrUnauthorized
	}
	if r.paused {
		return ErrRegistryPaused
	}
	if chain.IsZero(stubs) || chain.IsZero(points) {
		return ErrZeroAddress
	}
	r.minter.SetContracts(stubs, points)
	r.log.Info("REGISTRY", fmt.Sprintf("Reward contracts updated: stubs=%s points=%s", chain.Hex(stubs), chain.Hex(points)))
	return nil
}

// ---------------- QUERIES ----------------

// GetEvent returns a copy of the event record.
func (r *Registry) GetEvent(eventID uint64) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	result := *ev
	return &result, nil
}

// ListEvents returns all events in creation order.
func (r *Registry) ListEvents() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]models.Event, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.events[id])
	}
	return result
}

// IsEventActive reports whether a check-in could succeed right now for
// an attendee that passes the allowlist.
func (r *Registry) IsEventActive(eventID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	ev, ok := r.events[eventID]
	if !ok {
		return false
	}
	if r.paused || ev.Paused || ev.AutoEnded {
		return false
	}
	if now.Unix() < ev.StartTime || now.Unix() > ev.EndTime {
		return false
	}
	return ev.TotalCheckedIn < ev.MaxCapacity
}

// GetEventStatus computes each status dimension independently.
func (r *Registry) GetEventStatus(eventID uint64) models.EventStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	ev, ok := r.events[eventID]
	if !ok {
		return models.EventStatus{}
	}
	return models.EventStatus{
		Exists:     true,
		Paused:     ev.Paused,
		HasStarted: now.Unix() >= ev.StartTime,
		HasEnded:   ev.AutoEnded || now.Unix() > ev.EndTime,
		AtCapacity: ev.TotalCheckedIn >= ev.MaxCapacity,
	}
}

// IsAllowlisted reports the gate bit for one attendee.
func (r *Registry) IsAllowlisted(eventID uint64, addr common.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gate.allowed(eventID, addr)
}

// HasCheckedIn reports whether the attendee already holds a check-in.
func (r *Registry) HasCheckedIn(eventID uint64, addr common.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.checkins[eventID][addr]
	return ok
}

// GetCheckIn returns one attendee's check-in record.
func (r *Registry) GetCheckIn(eventID uint64, addr common.Address) (*models.CheckIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[eventID]; !ok {
		return nil, fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	rec, ok := r.checkins[eventID][addr]
	if !ok {
		return nil, fmt.Errorf("event %d: %w", eventID, ErrNotCheckedIn)
	}
	result := rec
	return &result, nil
}

// GetCheckIns lists an event's check-ins, newest first.
func (r *Registry) GetCheckIns(eventID uint64) ([]models.CheckIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[eventID]; !ok {
		return nil, fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	result := make([]models.CheckIn, 0, len(r.checkins[eventID]))
	for _, rec := range r.checkins[eventID] {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CheckedInAt.Equal(result[j].CheckedInAt) {
			return result[i].CheckedInAt.After(result[j].CheckedInAt)
		}
		return result[i].Attendee < result[j].Attendee
	})
	return result, nil
}

// Paused reports the registry-wide pause flag.
func (r *Registry) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// applyEventUpdate persists and commits an event mutation. Callers
// hold the lock and pass the current pointer plus the updated copy.
func (r *Registry) applyEventUpdate(ctx context.Context, ev *models.Event, updated models.Event) error {
	if err := r.store.SaveEvent(ctx, updated); err != nil {
		return fmt.Errorf("failed to persist event %d: %w", updated.ID, err)
	}
	*ev = updated
	if err := r.facts.PublishEventUpdated(updated); err != nil {
		r.log.Error("KAFKA", fmt.Sprintf("event updated publish failed: %v", err))
	}
	return nil
}

// compensateMint burns whatever CheckIn minted before its durable
// write failed.
func (r *Registry) compensateMint(ctx context.Context, attendee common.Address, stubID, points uint64) {
	if err := r.minter.BurnStub(ctx, attendee, stubID, 1); err != nil {
		r.log.Error("MINT", fmt.Sprintf("stub burn after failed check-in write: %v", err))
	}
	if points > 0 {
		if err := r.minter.BurnPoints(ctx, attendee, points); err != nil {
			r.log.Error("MINT", fmt.Sprintf("points burn after failed check-in write: %v", err))
		}
	}
}
