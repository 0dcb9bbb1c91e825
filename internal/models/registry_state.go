package models

import "github.com/uptrace/bun"

// RegistryState is the single-row table holding registry-wide flags.
type RegistryState struct {
	bun.BaseModel `bun:"table:registry_states"`

	ID     int64 `bun:"id,pk" json:"-"`
	Paused bool  `bun:"paused,notnull,default:false" json:"paused"`
}

// RegistrySnapshot is everything the registry loads on startup.
type RegistrySnapshot struct {
	State     RegistryState
	Events    []Event
	CheckIns  []CheckIn
	Allowlist []AllowlistEntry
}

// LedgerSnapshot is everything the balance ledger loads on startup.
// Every slice comes back ordered by its seq column so the in-memory
// insertion order survives restarts.
type LedgerSnapshot struct {
	Admins    []Admin
	Balances  []Balance
	Totals    []TokenTotal
	Transfers []Transfer
}
