package models

import (
	"time"

	"github.com/uptrace/bun"
)

type CheckIn struct {
	bun.BaseModel `bun:"table:check_ins"`

	EventID     uint64    `bun:"event_id,pk" json:"event_id"`
	Attendee    string    `bun:"attendee,pk" json:"attendee"`
	Points      uint64    `bun:"points,notnull" json:"points"`
	StubID      uint64    `bun:"stub_id,notnull" json:"stub_id"`
	ReceiptID   string    `bun:"receipt_id,notnull" json:"receipt_id"`
	CheckedInAt time.Time `bun:"checked_in_at,notnull" json:"checked_in_at"`
}

// CheckInReceipt is handed back to the attendee after a successful
// check-in. The QR payload encrypts exactly this structure.
type CheckInReceipt struct {
	ReceiptID   string    `json:"receipt_id"`
	EventID     uint64    `json:"event_id"`
	Attendee    string    `json:"attendee"`
	Points      uint64    `json:"points"`
	StubID      uint64    `json:"stub_id"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

// Receipt converts a stored check-in row into its receipt form.
func (c CheckIn) Receipt() CheckInReceipt {
	return CheckInReceipt{
		ReceiptID:   c.ReceiptID,
		EventID:     c.EventID,
		Attendee:    c.Attendee,
		Points:      c.Points,
		StubID:      c.StubID,
		CheckedInAt: c.CheckedInAt,
	}
}

// CheckInFact is the streamed form of a check-in, published to Kafka
// and pushed to live SSE subscribers.
type CheckInFact struct {
	EventID        uint64    `json:"event_id"`
	Attendee       string    `json:"attendee"`
	Points         uint64    `json:"points"`
	StubID         uint64    `json:"stub_id"`
	ReceiptID      string    `json:"receipt_id"`
	TotalCheckedIn uint64    `json:"total_checked_in"`
	Undone         bool      `json:"undone,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
