package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/hurley87/irl-protocol/internal/models"
	"github.com/hurley87/irl-protocol/internal/registry/db"
)

func setupTestDB() (*db.DB, error) {
	// Create a new SQLite in-memory database
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		return nil, err
	}

	// Create a new bun.DB instance
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	// Create tables
	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.CheckIn)(nil),
		(*models.AllowlistEntry)(nil),
		(*models.RegistryState)(nil),
	} {
		if err := bunDB.ResetModel(ctx, model); err != nil {
			return nil, err
		}
	}

	return &db.DB{Bun: bunDB}, nil
}

func sampleEvent(id uint64, createdAt time.Time) models.Event {
	return models.Event{
		ID:          id,
		StubID:      1,
		Points:      100,
		StartTime:   1_800_000_000,
		EndTime:     1_800_086_400,
		MaxCapacity: 250,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestSaveEventUpserts(t *testing.T) {
	store, err := setupTestDB()
	if err != nil {
		t.Fatalf("Failed to set up test database: %v", err)
	}
	ctx := context.Background()

	event := sampleEvent(1, time.Now().Round(time.Second))
	if err := store.SaveEvent(ctx, event); err != nil {
		t.Fatalf("Failed to save event: %v", err)
	}

	// Saving the same id again rewrites the row instead of failing
	event.MaxCapacity = 500
	event.Paused = true
	if err := store.SaveEvent(ctx, event); err != nil {
		t.Fatalf("Failed to update event: %v", err)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if len(snap.Events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(snap.Events))
	}
	if snap.Events[0].MaxCapacity != 500 {
		t.Errorf("Expected capacity 500, got %d", snap.Events[0].MaxCapacity)
	}
	if !snap.Events[0].Paused {
		t.Error("Expected event to be paused")
	}
}

func TestLoadReturnsEventsInCreationOrder(t *testing.T) {
	store, err := setupTestDB()
	if err != nil {
		t.Fatalf("Failed to set up test database: %v", err)
	}
	ctx := context.Background()

	base := time.Now().Round(time.Second)

	// Insert with ids out of order; creation time decides the order
	if err := store.SaveEvent(ctx, sampleEvent(9, base)); err != nil {
		t.Fatalf("Failed to save event: %v", err)
	}
	if err := store.SaveEvent(ctx, sampleEvent(2, base.Add(time.Second))); err != nil {
		t.Fatalf("Failed to save event: %v", err)
	}
	if err := store.SaveEvent(ctx, sampleEvent(5, base.Add(2*time.Second))); err != nil {
		t.Fatalf("Failed to save event: %v", err)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if len(snap.Events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(snap.Events))
	}
	for i, want := range []uint64{9, 2, 5} {
		if snap.Events[i].ID != want {
			t.Errorf("Expected event %d at position %d, got %d", want, i, snap.Events[i].ID)
		}
	}
}

func TestSaveCheckInWritesRecordAndCounter(t *testing.T) {
	store, err := setupTestDB()
	if err != nil {
		t.Fatalf("Failed to set up test database: %v", err)
	}
	ctx := context.Background()

	event := sampleEvent(1, time.Now().Round(time.Second))
	if err := store.SaveEvent(ctx, event); err != nil {
		t.Fatalf("Failed to save event: %v", err)
	}

	rec := models.CheckIn{
		EventID:     1,
		Attendee:    "0x00000000000000000000000000000000000000b2",
		Points:      100,
		StubID:      1,
		ReceiptID:   "receipt-1",
		CheckedInAt: time.Now().Round(time.Second),
	}
	event.TotalCheckedIn = 1
	if err := store.SaveCheckIn(ctx, rec, event); err != nil {
		t.Fatalf("Failed to save check-in: %v", err)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if len(snap.CheckIns) != 1 {
		t.Fatalf("Expected 1 check-in, got %d", len(snap.CheckIns))
	}
	if snap.CheckIns[0].ReceiptID != "receipt-1" {
		t.Errorf("Expected receipt-1, got %s", snap.CheckIns[0].ReceiptID)
	}
	if snap.Events[0].TotalCheckedIn != 1 {
		t.Errorf("Expected counter 1, got %d", snap.Events[0].TotalCheckedIn)
	}

	// Removing the check-in restores the counter in the same write
	event.TotalCheckedIn = 0
	if err := store.RemoveCheckIn(ctx, 1, rec.Attendee, event); err != nil {
		t.Fatalf("Failed to remove check-in: %v", err)
	}

	snap, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if len(snap.CheckIns) != 0 {
		t.Errorf("Expected no check-ins, got %d", len(snap.CheckIns))
	}
	if snap.Events[0].TotalCheckedIn != 0 {
		t.Errorf("Expected counter 0, got %d", snap.Events[0].TotalCheckedIn)
	}
}

func TestSaveAllowlistGrantAndRevoke(t *testing.T) {
	store, err := setupTestDB()
	if err != nil {
		t.Fatalf("Failed to set up test database: %v", err)
	}
	ctx := context.Background()

	event := sampleEvent(1, time.Now().Round(time.Second))
	if err := store.SaveEvent(ctx, event); err != nil {
		t.Fatalf("Failed to save event: %v", err)
	}

	addrA := "0x00000000000000000000000000000000000000b2"
	addrB := "0x00000000000000000000000000000000000000c3"

	event.AllowlistRequired = true
	if err := store.SaveAllowlist(ctx, 1, []string{addrA, addrB}, true, event); err != nil {
		t.Fatalf("Failed to save allowlist: %v", err)
	}

	// Granting an address twice must not fail or duplicate
	if err := store.SaveAllowlist(ctx, 1, []string{addrA}, true, event); err != nil {
		t.Fatalf("Failed to re-grant address: %v", err)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if len(snap.Allowlist) != 2 {
		t.Fatalf("Expected 2 allowlist entries, got %d", len(snap.Allowlist))
	}
	if !snap.Events[0].AllowlistRequired {
		t.Error("Expected allowlist_required to be set")
	}

	if err := store.SaveAllowlist(ctx, 1, []string{addrA}, false, event); err != nil {
		t.Fatalf("Failed to revoke address: %v", err)
	}

	snap, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if len(snap.Allowlist) != 1 {
		t.Fatalf("Expected 1 allowlist entry after revoke, got %d", len(snap.Allowlist))
	}
	if snap.Allowlist[0].Address != addrB {
		t.Errorf("Expected %s to remain, got %s", addrB, snap.Allowlist[0].Address)
	}
}

func TestDeleteEventRemovesAllowlist(t *testing.T) {
	store, err := setupTestDB()
	if err != nil {
		t.Fatalf("Failed to set up test database: %v", err)
	}
	ctx := context.Background()

	event := sampleEvent(1, time.Now().Round(time.Second))
	if err := store.SaveEvent(ctx, event); err != nil {
		t.Fatalf("Failed to save event: %v", err)
	}
	if err := store.SaveAllowlist(ctx, 1, []string{"0x00000000000000000000000000000000000000b2"}, true, event); err != nil {
		t.Fatalf("Failed to save allowlist: %v", err)
	}

	if err := store.DeleteEvent(ctx, 1); err != nil {
		t.Fatalf("Failed to delete event: %v", err)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if len(snap.Events) != 0 {
		t.Errorf("Expected no events, got %d", len(snap.Events))
	}
	if len(snap.Allowlist) != 0 {
		t.Errorf("Expected no allowlist entries, got %d", len(snap.Allowlist))
	}
}

func TestSaveStateRoundTrip(t *testing.T) {
	store, err := setupTestDB()
	if err != nil {
		t.Fatalf("Failed to set up test database: %v", err)
	}
	ctx := context.Background()

	// An empty table reads back as the unpaused default
	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if snap.State.Paused {
		t.Error("Expected default state to be unpaused")
	}

	if err := store.SaveState(ctx, models.RegistryState{ID: 1, Paused: true}); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}

	snap, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if !snap.State.Paused {
		t.Error("Expected state to be paused")
	}

	// The single row is rewritten, never duplicated
	if err := store.SaveState(ctx, models.RegistryState{ID: 1, Paused: false}); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}

	snap, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if snap.State.Paused {
		t.Error("Expected state to be unpaused again")
	}
}
