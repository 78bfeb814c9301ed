package models

import (
	"time"
)

// Payment directions.
const (
	PaymentDirectionCharge = "CHARGE"
	PaymentDirectionRefund = "REFUND"
)

// Payment statuses.
const (
	PaymentStatusAuthorized = "AUTHORIZED"
	PaymentStatusSucceeded  = "SUCCEEDED"
	PaymentStatusRefunded   = "REFUNDED"
	PaymentStatusDisputed   = "DISPUTED"
	PaymentStatusFailed     = "FAILED"
)

// Payment is one money movement against a reservation. Refunds are separate
// rows linked to the original charge through ChargeReferenceID, never edits.
type Payment struct {
	ID                 string    `json:"id" db:"id"`
	TenantID           string    `json:"tenant_id" db:"tenant_id"`
	ReservationID      string    `json:"reservation_id" db:"reservation_id"`
	Direction          string    `json:"direction" db:"direction"`
	AmountCents        int64     `json:"amount_cents" db:"amount_cents"`
	Method             string    `json:"method" db:"method"`
	GatewayReferenceID string    `json:"gateway_reference_id" db:"gateway_reference_id"`
	ChargeReferenceID  string    `json:"charge_reference_id,omitempty" db:"charge_reference_id"`
	Status             string    `json:"status" db:"status"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// PaymentResult is the response to recordPayment.
type PaymentResult struct {
	Payment     Payment             `json:"payment"`
	Reservation ReservationSnapshot `json:"reservation"`
	Duplicate   bool                `json:"duplicate,omitempty"`
}

// RefundResult is the response to recordRefund.
type RefundResult struct {
	Refund      Payment             `json:"refund"`
	Reservation ReservationSnapshot `json:"reservation"`
}
