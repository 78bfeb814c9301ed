package services

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced to HTTP and webhook callers.
var (
	// ErrInsufficientRefund rejects a refund larger than the recorded paid
	// amount before any rows are written.
	ErrInsufficientRefund = errors.New("refund amount exceeds recorded paid amount")

	// ErrUnresolvedTenant marks an event or settlement line whose gateway
	// account has no tenant mapping. Callers queue it for manual resolution
	// instead of posting.
	ErrUnresolvedTenant = errors.New("gateway account not mapped to a tenant")

	// ErrReservationNotFound is returned when a balance operation targets an
	// unknown reservation for the tenant.
	ErrReservationNotFound = errors.New("reservation not found")
)

// UnbalancedPostingError signals a posting group whose debits and credits do
// not sum equal. It is a programming or configuration defect upstream and is
// never retried.
type UnbalancedPostingError struct {
	DedupeKey   string
	DebitCents  int64
	CreditCents int64
}

func (e *UnbalancedPostingError) Error() string {
	return fmt.Sprintf("unbalanced posting %q: debits %d != credits %d",
		e.DedupeKey, e.DebitCents, e.CreditCents)
}

// PeriodClosedError signals a posting dated inside a closed or locked GL
// period. It is a business error requiring a manual override workflow.
type PeriodClosedError struct {
	TenantID string
	Date     time.Time
	Status   string
}

func (e *PeriodClosedError) Error() string {
	return fmt.Sprintf("gl period %s for tenant %s on %s rejects postings",
		e.Status, e.TenantID, e.Date.Format("2006-01-02"))
}

// RetryableError wraps a transient failure so the webhook caller can signal
// the gateway to redeliver. Safe because all event processing is idempotent.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return "retryable: " + e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err should be surfaced as a 5xx so the delivery
// mechanism retries.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
