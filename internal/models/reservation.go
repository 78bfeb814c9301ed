package models

// Reservation payment statuses.
const (
	ReservationUnpaid  = "UNPAID"
	ReservationPartial = "PARTIAL"
	ReservationPaid    = "PAID"
)

// ReservationSnapshot is the materialized balance projection for one
// reservation, recomputed transactionally with every payment or refund.
type ReservationSnapshot struct {
	ReservationID    string `json:"reservation_id" db:"id"`
	TenantID         string `json:"tenant_id" db:"tenant_id"`
	TotalAmountCents int64  `json:"total_amount_cents" db:"total_amount_cents"`
	PaidAmountCents  int64  `json:"paid_amount_cents" db:"paid_amount_cents"`
	BalanceAmountCents int64 `json:"balance_amount_cents" db:"balance_amount_cents"`
	PaymentStatus    string `json:"payment_status" db:"payment_status"`
}
