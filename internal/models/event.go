package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID                uint64    `bun:"id,pk" json:"id"`
	StubID            uint64    `bun:"stub_id,notnull" json:"stub_id"`
	Points            uint64    `bun:"points,notnull" json:"points"`
	StartTime         int64     `bun:"start_time,notnull" json:"start_time"`
	EndTime           int64     `bun:"end_time,notnull" json:"end_time"`
	MaxCapacity       uint64    `bun:"max_capacity,notnull" json:"max_capacity"`
	TotalCheckedIn    uint64    `bun:"total_checked_in,notnull,default:0" json:"total_checked_in"`
	Paused            bool      `bun:"paused,notnull,default:false" json:"paused"`
	AllowlistRequired bool      `bun:"allowlist_required,notnull,default:false" json:"allowlist_required"`
	AutoEnded         bool      `bun:"auto_ended,notnull,default:false" json:"auto_ended"`
	CreatedAt         time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt         time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// EventStatus is the point-in-time status snapshot returned to clients.
// Each field is computed independently so callers can tell apart, say,
// an event that ended from one that never existed.
type EventStatus struct {
	Exists     bool `json:"exists"`
	Paused     bool `json:"paused"`
	HasStarted bool `json:"has_started"`
	HasEnded   bool `json:"has_ended"`
	AtCapacity bool `json:"at_capacity"`
}
