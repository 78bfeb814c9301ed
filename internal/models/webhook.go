package models

import (
	"encoding/json"
	"time"
)

// Gateway webhook event types this service acts on. Names follow the gateway's
// payment-intent/charge lifecycle.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventRequiresCapture  = "payment_intent.amount_capturable_updated"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded   = "charge.refunded"
	EventDisputeCreated   = "charge.dispute.created"
	EventDisputeUpdated   = "charge.dispute.updated"
	EventDisputeClosed    = "charge.dispute.closed"
	EventPayoutPaid       = "payout.paid"
)

// GatewayEvent is the parsed webhook envelope. EventID is the at-least-once
// delivery dedupe key; the per-fact keys (refund id, dispute id) live inside
// the object payload.
type GatewayEvent struct {
	EventID          string          `json:"id"`
	Type             string          `json:"type"`
	GatewayAccountID string          `json:"account"`
	CreatedAt        time.Time       `json:"-"`
	Object           json.RawMessage `json:"-"`
}

// EventPaymentIntent is the object payload for payment_intent.* events.
type EventPaymentIntent struct {
	ID             string            `json:"id"`
	AmountCents    int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Status         string            `json:"status"`
	LatestCharge   string            `json:"latest_charge"`
	Metadata       map[string]string `json:"metadata"`
}

// EventRefund is one refund inside a charge.refunded payload.
type EventRefund struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount"`
	Status      string `json:"status"`
}

// EventCharge is the object payload for charge.refunded.
type EventCharge struct {
	ID                  string            `json:"id"`
	PaymentIntent       string            `json:"payment_intent"`
	AmountCents         int64             `json:"amount"`
	AmountRefundedCents int64             `json:"amount_refunded"` // cumulative
	Refunds             []EventRefund     `json:"refunds"`
	Metadata            map[string]string `json:"metadata"`
}

// EventDispute is the object payload for charge.dispute.* events.
type EventDispute struct {
	ID          string            `json:"id"`
	Charge      string            `json:"charge"`
	AmountCents int64             `json:"amount"`
	Status      string            `json:"status"` // needs_response, won, lost
	Reason      string            `json:"reason"`
	Metadata    map[string]string `json:"metadata"`
}
