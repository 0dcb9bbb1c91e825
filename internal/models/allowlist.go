package models

import "github.com/uptrace/bun"

type AllowlistEntry struct {
	bun.BaseModel `bun:"table:allowlist_entries"`

	EventID uint64 `bun:"event_id,pk" json:"event_id"`
	Address string `bun:"address,pk" json:"address"`
}
