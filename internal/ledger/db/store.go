package db

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/hurley87/irl-protocol/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ADMINS ----------------

// SaveAdmin → insert one admin row
func (d *DB) SaveAdmin(ctx context.Context, admin models.Admin) error {
	_, err := d.Bun.NewInsert().Model(&admin).Exec(ctx)
	return err
}

func (d *DB) DeleteAdmin(ctx context.Context, address string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Admin)(nil)).
		Where("address = ?", address).
		Exec(ctx)
	return err
}

// ---------------- BALANCES ----------------

// ApplyBalance writes one balance row and its token total together.
// An amount of "0" removes the row; fully-claimed entries never
// linger in the table.
func (d *DB) ApplyBalance(ctx context.Context, bal models.Balance, total models.TokenTotal) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := writeBalance(ctx, tx, bal); err != nil {
			return err
		}
		return writeTotal(ctx, tx, total)
	})
}

// ApplyClaim clears the balance row, rewrites the total and journals
// the payout in one transaction.
func (d *DB) ApplyClaim(ctx context.Context, wallet, token string, total models.TokenTotal, xfer models.Transfer) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Balance)(nil)).
			Where("wallet = ?", wallet).
			Where("token = ?", token).
			Exec(ctx); err != nil {
			return err
		}
		if err := writeTotal(ctx, tx, total); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&xfer).Exec(ctx)
		return err
	})
}

// RevertClaim puts back what ApplyClaim removed after the payout
// failed. The restored rows keep their original seq so ordering is
// unchanged.
func (d *DB) RevertClaim(ctx context.Context, bal models.Balance, total models.TokenTotal, xferID string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := writeBalance(ctx, tx, bal); err != nil {
			return err
		}
		if err := writeTotal(ctx, tx, total); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.Transfer)(nil)).
			Where("id = ?", xferID).
			Exec(ctx)
		return err
	})
}

// ---------------- TRANSFERS ----------------

func (d *DB) SaveTransfer(ctx context.Context, xfer models.Transfer) error {
	_, err := d.Bun.NewInsert().Model(&xfer).Exec(ctx)
	return err
}

func (d *DB) DeleteTransfer(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Transfer)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ---------------- STARTUP ----------------

// Load reads the full ledger snapshot ordered by seq so first-seen
// insertion order survives restarts.
func (d *DB) Load(ctx context.Context) (*models.LedgerSnapshot, error) {
	snap := &models.LedgerSnapshot{}

	if err := d.Bun.NewSelect().
		Model(&snap.Admins).
		Order("seq").
		Scan(ctx); err != nil {
		return nil, err
	}
	if err := d.Bun.NewSelect().
		Model(&snap.Balances).
		Order("seq").
		Scan(ctx); err != nil {
		return nil, err
	}
	if err := d.Bun.NewSelect().
		Model(&snap.Totals).
		Order("seq").
		Scan(ctx); err != nil {
		return nil, err
	}
	if err := d.Bun.NewSelect().
		Model(&snap.Transfers).
		Order("created_at", "id").
		Scan(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}

func writeBalance(ctx context.Context, tx bun.Tx, bal models.Balance) error {
	if bal.Amount == "0" {
		_, err := tx.NewDelete().
			Model((*models.Balance)(nil)).
			Where("wallet = ?", bal.Wallet).
			Where("token = ?", bal.Token).
			Exec(ctx)
		return err
	}
	_, err := tx.NewInsert().
		Model(&bal).
		On("CONFLICT (wallet, token) DO UPDATE").
		Set("amount = EXCLUDED.amount").
		Exec(ctx)
	return err
}

func writeTotal(ctx context.Context, tx bun.Tx, total models.TokenTotal) error {
	if total.Amount == "0" {
		_, err := tx.NewDelete().
			Model((*models.TokenTotal)(nil)).
			Where("token = ?", total.Token).
			Exec(ctx)
		return err
	}
	_, err := tx.NewInsert().
		Model(&total).
		On("CONFLICT (token) DO UPDATE").
		Set("amount = EXCLUDED.amount").
		Exec(ctx)
	return err
}
