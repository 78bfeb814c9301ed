package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/campreserv/ledger/internal/models"
)

func signPayload(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestGatewayClient_ListPayoutTransactions(t *testing.T) {
	t.Run("walks the cursor across pages", func(t *testing.T) {
		var requests []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
			assert.Equal(t, "po_1", r.URL.Query().Get("payout"))
			requests = append(requests, r.URL.Query().Get("starting_after"))

			page := balanceTransactionPage{HasMore: true}
			switch len(requests) {
			case 1:
				page.Data = []models.SettlementLine{
					{ID: "txn_1", Type: "charge", AmountCents: 10000, NetCents: 9680},
					{ID: "txn_2", Type: "charge", AmountCents: 5000, NetCents: 4825},
				}
			case 2:
				assert.Equal(t, "txn_2", r.URL.Query().Get("starting_after"))
				page.Data = []models.SettlementLine{
					{ID: "txn_3", Type: "refund", AmountCents: -3000, NetCents: -3000},
				}
				page.HasMore = false
			}
			json.NewEncoder(w).Encode(page)
		}))
		defer server.Close()

		client := NewGatewayClient(server.URL, "sk_test", "whsec")
		lines, err := client.ListPayoutTransactions(context.Background(), "po_1")
		assert.NoError(t, err)
		assert.Len(t, lines, 3)
		assert.Equal(t, "txn_3", lines[2].ID)
		assert.Len(t, requests, 2)
	})

	t.Run("empty payout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(balanceTransactionPage{})
		}))
		defer server.Close()

		client := NewGatewayClient(server.URL, "sk_test", "whsec")
		lines, err := client.ListPayoutTransactions(context.Background(), "po_empty")
		assert.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("server error is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewGatewayClient(server.URL, "sk_test", "whsec")
		_, err := client.ListPayoutTransactions(context.Background(), "po_1")
		assert.Error(t, err)
		assert.True(t, IsRetryable(err))
	})

	t.Run("client error is terminal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewGatewayClient(server.URL, "sk_test", "whsec")
		_, err := client.ListPayoutTransactions(context.Background(), "po_404")
		assert.Error(t, err)
		assert.False(t, IsRetryable(err))
	})
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Unix(1765000000, 0)

	t.Run("valid signature", func(t *testing.T) {
		header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), signPayload(secret, now.Unix(), payload))
		assert.NoError(t, verifyWebhookSignature(payload, header, secret, now))
	})

	t.Run("valid among multiple v1 signatures", func(t *testing.T) {
		header := fmt.Sprintf("t=%d,v1=%s,v1=%s", now.Unix(), "deadbeef", signPayload(secret, now.Unix(), payload))
		assert.NoError(t, verifyWebhookSignature(payload, header, secret, now))
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), signPayload("whsec_other", now.Unix(), payload))
		assert.Error(t, verifyWebhookSignature(payload, header, secret, now))
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), signPayload(secret, now.Unix(), payload))
		tampered := []byte(`{"id":"evt_1","type":"charge.refunded"}`)
		assert.Error(t, verifyWebhookSignature(tampered, header, secret, now))
	})

	t.Run("stale timestamp rejected", func(t *testing.T) {
		old := now.Add(-10 * time.Minute).Unix()
		header := fmt.Sprintf("t=%d,v1=%s", old, signPayload(secret, old, payload))
		assert.Error(t, verifyWebhookSignature(payload, header, secret, now))
	})

	t.Run("future timestamp rejected", func(t *testing.T) {
		future := now.Add(10 * time.Minute).Unix()
		header := fmt.Sprintf("t=%d,v1=%s", future, signPayload(secret, future, payload))
		assert.Error(t, verifyWebhookSignature(payload, header, secret, now))
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		assert.Error(t, verifyWebhookSignature(payload, "", secret, now))
		assert.Error(t, verifyWebhookSignature(payload, "v1=abc", secret, now))
		assert.Error(t, verifyWebhookSignature(payload, "t=123", secret, now))
		assert.Error(t, verifyWebhookSignature(payload, "t=notanumber,v1=abc", secret, now))
	})
}

func TestParseWebhookEvent(t *testing.T) {
	t.Run("envelope decodes with raw inner object", func(t *testing.T) {
		payload := []byte(`{
			"id": "evt_1",
			"type": "payment_intent.succeeded",
			"account": "acct_77",
			"created": 1765000000,
			"data": {"object": {"id": "pi_100", "amount": 10000, "metadata": {"reservation_id": "res_1"}}}
		}`)

		event, err := ParseWebhookEvent(payload)
		assert.NoError(t, err)
		assert.Equal(t, "evt_1", event.EventID)
		assert.Equal(t, models.EventPaymentSucceeded, event.Type)
		assert.Equal(t, "acct_77", event.GatewayAccountID)
		assert.Equal(t, int64(1765000000), event.CreatedAt.Unix())

		var intent models.EventPaymentIntent
		assert.NoError(t, json.Unmarshal(event.Object, &intent))
		assert.Equal(t, "pi_100", intent.ID)
		assert.Equal(t, int64(10000), intent.AmountCents)
	})

	t.Run("missing id rejected", func(t *testing.T) {
		_, err := ParseWebhookEvent([]byte(`{"type":"charge.refunded"}`))
		assert.Error(t, err)
	})

	t.Run("invalid json rejected", func(t *testing.T) {
		_, err := ParseWebhookEvent([]byte(`{`))
		assert.Error(t, err)
	})
}
