package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Admin struct {
	bun.BaseModel `bun:"table:admins"`

	Address string    `bun:"address,pk" json:"address"`
	Seq     int64     `bun:"seq,notnull" json:"-"`
	AddedAt time.Time `bun:"added_at,notnull" json:"added_at"`
}

// Balance is one (wallet, token) earmark. Amount is the base-unit
// integer rendered as a decimal string; Postgres BIGINT cannot hold
// 18-decimal token amounts. Seq preserves first-seen ordering so
// queries can replay the insertion order after a restart.
type Balance struct {
	bun.BaseModel `bun:"table:balances"`

	Wallet string `bun:"wallet,pk" json:"wallet"`
	Token  string `bun:"token,pk" json:"token"`
	Amount string `bun:"amount,notnull" json:"amount"`
	Seq    int64  `bun:"seq,notnull" json:"-"`
}

// TokenTotal is the persisted running total per token. Kept as its own
// row so the order tokens first carried value in survives restarts;
// the total always equals the sum of the token's Balance rows.
type TokenTotal struct {
	bun.BaseModel `bun:"table:token_totals"`

	Token  string `bun:"token,pk" json:"token"`
	Amount string `bun:"amount,notnull" json:"amount"`
	Seq    int64  `bun:"seq,notnull" json:"-"`
}

// TokenBalance is the wire form of one token amount.
type TokenBalance struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// WalletBalance pairs a wallet with its amount of a single token.
type WalletBalance struct {
	Wallet string `json:"wallet"`
	Amount string `json:"amount"`
}

// Transfer journals every movement of real tokens through the ledger:
// funding deposits, reward claims and excess withdrawals.
type Transfer struct {
	bun.BaseModel `bun:"table:transfers"`

	ID        string    `bun:"id,pk" json:"id"`
	Kind      string    `bun:"kind,notnull" json:"kind"`
	Token     string    `bun:"token,notnull" json:"token"`
	Wallet    string    `bun:"wallet,notnull" json:"wallet"`
	Recipient string    `bun:"recipient" json:"recipient,omitempty"`
	Amount    string    `bun:"amount,notnull" json:"amount"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

const (
	TransferKindFund     = "fund"
	TransferKindClaim    = "claim"
	TransferKindWithdraw = "withdraw"
)

// BalanceFact is published to Kafka whenever an earmarked balance
// changes, carrying both the delta's origin and the new amount.
type BalanceFact struct {
	Wallet     string    `json:"wallet"`
	Token      string    `json:"token"`
	Amount     string    `json:"amount"`
	Operation  string    `json:"operation"`
	OccurredAt time.Time `json:"occurred_at"`
}
