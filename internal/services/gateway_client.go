package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/campreserv/ledger/internal/models"
)

const (
	gatewayPageLimit        = 100
	webhookTimestampMaxSkew = 5 * time.Minute
)

// GatewayClient talks to the payment gateway's REST API for settlement data
// and verifies its webhook signatures.
type GatewayClient struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	httpClient    *http.Client
}

func NewGatewayClient(baseURL, apiKey, webhookSecret string) *GatewayClient {
	return &GatewayClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

type balanceTransactionPage struct {
	Data    []models.SettlementLine `json:"data"`
	HasMore bool                    `json:"has_more"`
}

// ListPayoutTransactions fetches every balance transaction itemizing a payout,
// walking the cursor until the gateway reports no further pages. Reading only
// the first page systematically under-reconciles large payouts.
func (gc *GatewayClient) ListPayoutTransactions(ctx context.Context, payoutID string) ([]models.SettlementLine, error) {
	var lines []models.SettlementLine
	startingAfter := ""

	for {
		page, err := gc.fetchPage(ctx, payoutID, startingAfter)
		if err != nil {
			return nil, err
		}
		lines = append(lines, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			break
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}

	return lines, nil
}

func (gc *GatewayClient) fetchPage(ctx context.Context, payoutID, startingAfter string) (*balanceTransactionPage, error) {
	params := url.Values{}
	params.Set("payout", payoutID)
	params.Set("limit", strconv.Itoa(gatewayPageLimit))
	if startingAfter != "" {
		params.Set("starting_after", startingAfter)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		gc.baseURL+"/v1/balance_transactions?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+gc.apiKey)

	resp, err := gc.httpClient.Do(req)
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("gateway request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &RetryableError{Err: fmt.Errorf("gateway returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d for payout %s", resp.StatusCode, payoutID)
	}

	var page balanceTransactionPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode gateway page: %w", err)
	}
	return &page, nil
}

// VerifyWebhookSignature checks the gateway's `t=<unix>,v1=<hex hmac>` header
// against the raw payload. The timestamp bounds replay of captured payloads.
func (gc *GatewayClient) VerifyWebhookSignature(payload []byte, sigHeader string) error {
	return verifyWebhookSignature(payload, sigHeader, gc.webhookSecret, time.Now())
}

func verifyWebhookSignature(payload []byte, sigHeader, secret string, now time.Time) error {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return errors.New("malformed webhook signature header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errors.New("malformed webhook signature timestamp")
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew < -webhookTimestampMaxSkew || skew > webhookTimestampMaxSkew {
		return errors.New("webhook signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return errors.New("webhook signature mismatch")
}

// ParseWebhookEvent decodes the webhook envelope into a GatewayEvent with the
// inner object kept raw for type-specific decoding.
func ParseWebhookEvent(payload []byte) (*models.GatewayEvent, error) {
	var envelope struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Account string `json:"account"`
		Created int64  `json:"created"`
		Data    struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode webhook envelope: %w", err)
	}
	if envelope.ID == "" || envelope.Type == "" {
		return nil, errors.New("webhook envelope missing id or type")
	}

	return &models.GatewayEvent{
		EventID:          envelope.ID,
		Type:             envelope.Type,
		GatewayAccountID: envelope.Account,
		CreatedAt:        time.Unix(envelope.Created, 0).UTC(),
		Object:           envelope.Data.Object,
	}, nil
}
