package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const receiptQueue = "receipt_notifications"

// Receipt notification kinds.
const (
	NoticePaymentReceipt = "PAYMENT_RECEIPT"
	NoticeRefundIssued   = "REFUND_ISSUED"
)

// ReceiptNotice is the request handed to the external messaging service.
type ReceiptNotice struct {
	TenantID      string    `json:"tenant_id"`
	ReservationID string    `json:"reservation_id"`
	Kind          string    `json:"kind"`
	AmountCents   int64     `json:"amount_cents"`
	QueuedAt      time.Time `json:"queued_at"`
}

// NotifyService hands receipt and refund notices to the messaging collaborator
// through a Redis queue. Strictly fire-and-forget: a failure here is logged
// and never rolls back the financial transaction that triggered it.
type NotifyService struct {
	redis *redis.Client
}

func NewNotifyService(redisClient *redis.Client) *NotifyService {
	return &NotifyService{redis: redisClient}
}

func (ns *NotifyService) QueueReceipt(tenantID, reservationID, kind string, amountCents int64) {
	if ns.redis == nil {
		log.Printf("[NOTIFY] Redis unavailable, dropping %s notice for reservation %s", kind, reservationID)
		return
	}

	notice := ReceiptNotice{
		TenantID:      tenantID,
		ReservationID: reservationID,
		Kind:          kind,
		AmountCents:   amountCents,
		QueuedAt:      time.Now().UTC(),
	}
	data, err := json.Marshal(notice)
	if err != nil {
		log.Printf("[NOTIFY] Failed to marshal %s notice: %v", kind, err)
		return
	}

	if err := ns.redis.RPush(context.Background(), receiptQueue, string(data)).Err(); err != nil {
		log.Printf("[NOTIFY] Failed to queue %s notice for reservation %s: %v", kind, reservationID, err)
	}
}
