package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/hurley87/irl-protocol/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- EVENTS ----------------

// SaveEvent → insert or rewrite one event row
func (d *DB) SaveEvent(ctx context.Context, ev models.Event) error {
	return upsertEvent(ctx, d.Bun, ev)
}

// DeleteEvent removes the event together with its allowlist. Check-in
// rows cannot exist at this point; the registry refuses to delete an
// event that has any.
func (d *DB) DeleteEvent(ctx context.Context, id uint64) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.AllowlistEntry)(nil)).
			Where("event_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.Event)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

// ---------------- CHECK-INS ----------------

// SaveCheckIn records the check-in and the event's bumped counter in
// one transaction; a crash can never leave them apart.
func (d *DB) SaveCheckIn(ctx context.Context, rec models.CheckIn, ev models.Event) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&rec).Exec(ctx); err != nil {
			return err
		}
		return upsertEvent(ctx, tx, ev)
	})
}

func (d *DB) RemoveCheckIn(ctx context.Context, eventID uint64, attendee string, ev models.Event) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.CheckIn)(nil)).
			Where("event_id = ?", eventID).
			Where("attendee = ?", attendee).
			Exec(ctx); err != nil {
			return err
		}
		return upsertEvent(ctx, tx, ev)
	})
}

// ---------------- ALLOWLIST ----------------

// SaveAllowlist applies one bulk grant or revoke plus the event row it
// may have latched.
func (d *DB) SaveAllowlist(ctx context.Context, eventID uint64, addrs []string, allowed bool, ev models.Event) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if allowed {
			entries := make([]models.AllowlistEntry, len(addrs))
			for i, addr := range addrs {
				entries[i] = models.AllowlistEntry{EventID: eventID, Address: addr}
			}
			if len(entries) > 0 {
				if _, err := tx.NewInsert().
					Model(&entries).
					On("CONFLICT DO NOTHING").
					Exec(ctx); err != nil {
					return err
				}
			}
		} else if len(addrs) > 0 {
			if _, err := tx.NewDelete().
				Model((*models.AllowlistEntry)(nil)).
				Where("event_id = ?", eventID).
				Where("address IN (?)", bun.In(addrs)).
				Exec(ctx); err != nil {
				return err
			}
		}
		return upsertEvent(ctx, tx, ev)
	})
}

// ---------------- STATE ----------------

// SaveState → rewrite the single registry flags row
func (d *DB) SaveState(ctx context.Context, st models.RegistryState) error {
	_, err := d.Bun.NewInsert().
		Model(&st).
		On("CONFLICT (id) DO UPDATE").
		Set("paused = EXCLUDED.paused").
		Exec(ctx)
	return err
}

// ---------------- STARTUP ----------------

// Load reads the full registry snapshot. Events come back in creation
// order so the in-memory listing order survives restarts.
func (d *DB) Load(ctx context.Context) (*models.RegistrySnapshot, error) {
	snap := &models.RegistrySnapshot{State: models.RegistryState{ID: 1}}

	err := d.Bun.NewSelect().
		Model(&snap.State).
		Where("id = ?", 1).
		Limit(1).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if err := d.Bun.NewSelect().
		Model(&snap.Events).
		Order("created_at", "id").
		Scan(ctx); err != nil {
		return nil, err
	}
	if err := d.Bun.NewSelect().
		Model(&snap.CheckIns).
		Scan(ctx); err != nil {
		return nil, err
	}
	if err := d.Bun.NewSelect().
		Model(&snap.Allowlist).
		Scan(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}

// upsertEvent writes every mutable column; the registry always hands
// over the complete row.
func upsertEvent(ctx context.Context, idb bun.IDB, ev models.Event) error {
	_, err := idb.NewInsert().
		Model(&ev).
		On("CONFLICT (id) DO UPDATE").
		Set("stub_id = EXCLUDED.stub_id").
		Set("points = EXCLUDED.points").
		Set("start_time = EXCLUDED.start_time").
		Set("end_time = EXCLUDED.end_time").
		Set("max_capacity = EXCLUDED.max_capacity").
		Set("total_checked_in = EXCLUDED.total_checked_in").
		Set("paused = EXCLUDED.paused").
		Set("allowlist_required = EXCLUDED.allowlist_required").
		Set("auto_ended = EXCLUDED.auto_ended").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
