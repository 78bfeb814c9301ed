package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/campreserv/ledger/internal/services"
)

// WebhookHandler is the gateway webhook ingestion entry point. Deliveries are
// at-least-once; the event service makes replays a safe no-op, so any failure
// here simply answers 5xx and lets the gateway redeliver.
type WebhookHandler struct {
	gateway *services.GatewayClient
	events  *services.PaymentEventService
}

func NewWebhookHandler(gateway *services.GatewayClient, events *services.PaymentEventService) *WebhookHandler {
	return &WebhookHandler{gateway: gateway, events: events}
}

// HandleGatewayEvent ingests one gateway webhook delivery
// @Summary Ingest a gateway webhook event
// @Description Verify, deduplicate, and apply a payment lifecycle event
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} object{received=bool}
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /webhooks/gateway [post]
func (wh *WebhookHandler) HandleGatewayEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1_048_576))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Gateway-Signature")
	if signature == "" {
		http.Error(w, "Missing gateway signature", http.StatusBadRequest)
		return
	}
	if err := wh.gateway.VerifyWebhookSignature(payload, signature); err != nil {
		log.Printf("[WEBHOOK] Signature verification failed: %v", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	event, err := services.ParseWebhookEvent(payload)
	if err != nil {
		log.Printf("[WEBHOOK] Malformed event payload: %v", err)
		http.Error(w, "Malformed event", http.StatusBadRequest)
		return
	}

	log.Printf("[WEBHOOK] Received event %s (%s) for account %s", event.EventID, event.Type, event.GatewayAccountID)

	if err := wh.events.Process(r.Context(), event); err != nil {
		log.Printf("[WEBHOOK] Processing event %s failed: %v", event.EventID, err)
		if services.IsRetryable(err) {
			http.Error(w, "Event processing failed, retry later", http.StatusInternalServerError)
		} else {
			// Business rejections do not improve on redelivery.
			http.Error(w, "Event rejected", http.StatusUnprocessableEntity)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}
