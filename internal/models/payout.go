package models

import (
	"time"
)

// SettlementLine is one balance transaction from the gateway's payout feed.
type SettlementLine struct {
	ID          string `json:"id"`
	Type        string `json:"type"` // charge, refund, adjustment, stripe_fee, ...
	Source      string `json:"source"`
	AmountCents int64  `json:"amount"`
	FeeCents    int64  `json:"fee"`
	NetCents    int64  `json:"net"`
	Currency    string `json:"currency"`
}

// PayoutLine is the persisted comparison of one settlement line against the
// internal records. Upserted on (tenant_id, balance_transaction_id) so that
// re-running reconciliation never duplicates rows.
type PayoutLine struct {
	ID                   int64     `json:"id" db:"id"`
	TenantID             string    `json:"tenant_id" db:"tenant_id"`
	PayoutID             string    `json:"payout_id" db:"payout_id"`
	BalanceTransactionID string    `json:"balance_transaction_id" db:"balance_transaction_id"`
	LineType             string    `json:"line_type" db:"line_type"`
	SourceReference      string    `json:"source_reference" db:"source_reference"`
	GrossCents           int64     `json:"gross_cents" db:"gross_cents"`
	FeeCents             int64     `json:"fee_cents" db:"fee_cents"`
	NetCents             int64     `json:"net_cents" db:"net_cents"`
	Matched              bool      `json:"matched" db:"matched"`
	DriftCents           int64     `json:"drift_cents" db:"drift_cents"`
	ReconciledAt         time.Time `json:"reconciled_at" db:"reconciled_at"`
}

// Drift alert severities.
const (
	DriftSeverityWarning  = "WARNING"
	DriftSeverityCritical = "CRITICAL"
)

type DriftAlert struct {
	PayoutID   string `json:"payout_id"`
	TenantID   string `json:"tenant_id"`
	DriftCents int64  `json:"drift_cents"`
	Severity   string `json:"severity"`
}

// ReconciliationReport summarizes one reconcilePayout run.
type ReconciliationReport struct {
	TenantID        string      `json:"tenant_id"`
	PayoutID        string      `json:"payout_id"`
	TotalLines      int         `json:"total_lines"`
	MatchedLines    int         `json:"matched_lines"`
	UnmatchedLines  int         `json:"unmatched_lines"`
	GrossCents      int64       `json:"gross_cents"`
	FeeCents        int64       `json:"fee_cents"`
	NetCents        int64       `json:"net_cents"`
	DriftCents      int64       `json:"drift_cents"`
	PostingDedupeKey string     `json:"posting_dedupe_key,omitempty"`
	Alert           *DriftAlert `json:"alert,omitempty"`
	ReconciledAt    time.Time   `json:"reconciled_at"`
}
