package models

import (
	"time"
)

// Entry directions. Amounts are always positive; the direction carries the sign.
const (
	DirectionDebit  = "DEBIT"
	DirectionCredit = "CREDIT"
)

// Chart of account codes used by the posting paths. The full chart lives with
// the accounting collaborator; these are the codes this service writes to.
const (
	AccountBank            = "1000" // operating bank account
	AccountGatewayClearing = "1010" // funds held at the payment gateway
	AccountLodgingRevenue  = "4000"
	AccountRefunds         = "4100" // contra-revenue
	AccountProcessingFees  = "6100"
	AccountPlatformFees    = "6110"
	AccountChargebacks     = "6200"
)

// LedgerLine is one leg of a posting group before it is persisted.
type LedgerLine struct {
	AccountCode string `json:"account_code"`
	Direction   string `json:"direction"`
	AmountCents int64  `json:"amount_cents"`
}

// LedgerEntry is an immutable persisted ledger row. Entries are only ever
// created in balanced groups identified by (tenant_id, dedupe_key); corrections
// are new offsetting groups, never updates.
type LedgerEntry struct {
	ID            int64      `json:"id" db:"id"`
	TenantID      string     `json:"tenant_id" db:"tenant_id"`
	AccountCode   string     `json:"account_code" db:"account_code"`
	Direction     string     `json:"direction" db:"direction"`
	AmountCents   int64      `json:"amount_cents" db:"amount_cents"`
	DedupeKey     string     `json:"dedupe_key" db:"dedupe_key"`
	LineNo        int        `json:"line_no" db:"line_no"`
	ReservationID string     `json:"reservation_id,omitempty" db:"reservation_id"`
	ReferenceID   string     `json:"reference_id,omitempty" db:"reference_id"`
	PeriodID      string     `json:"period_id,omitempty" db:"period_id"`
	OccurredAt    time.Time  `json:"occurred_at" db:"occurred_at"`
	PostedAt      time.Time  `json:"posted_at" db:"posted_at"`
}

// PostingResult reports what a Post call committed (or found already committed).
type PostingResult struct {
	TenantID       string        `json:"tenant_id"`
	DedupeKey      string        `json:"dedupe_key"`
	Entries        []LedgerEntry `json:"entries"`
	AlreadyPosted  bool          `json:"already_posted"`
	RepairedLines  int           `json:"repaired_lines,omitempty"`
}
