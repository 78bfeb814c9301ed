package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const unmappedQueue = "unmapped_gateway_events"

// TenantService maps external gateway account ids onto platform tenants.
type TenantService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewTenantService(db *sql.DB, redisClient *redis.Client) *TenantService {
	return &TenantService{db: db, redis: redisClient}
}

// Resolve returns the tenant id connected to a gateway account. A miss is
// ErrUnresolvedTenant; callers must exclude the event from posting.
func (ts *TenantService) Resolve(ctx context.Context, gatewayAccountID string) (string, error) {
	if gatewayAccountID == "" {
		return "", ErrUnresolvedTenant
	}

	var tenantID string
	err := ts.db.QueryRowContext(ctx, `
		SELECT id FROM tenants WHERE gateway_account_id = $1`, gatewayAccountID).Scan(&tenantID)
	if err == sql.ErrNoRows {
		return "", ErrUnresolvedTenant
	}
	if err != nil {
		return "", fmt.Errorf("tenant lookup for account %s: %w", gatewayAccountID, err)
	}
	return tenantID, nil
}

// QueueUnmapped records an event that could not be attributed to a tenant so
// staff can resolve it manually. Never fails the pipeline.
func (ts *TenantService) QueueUnmapped(gatewayAccountID, eventID, eventType string) {
	log.Printf("[TENANT] Unresolved gateway account %s for event %s (%s), queueing for manual resolution",
		gatewayAccountID, eventID, eventType)
	if ts.redis == nil {
		return
	}

	data, err := json.Marshal(map[string]string{
		"gateway_account_id": gatewayAccountID,
		"event_id":           eventID,
		"event_type":         eventType,
		"received_at":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := ts.redis.RPush(context.Background(), unmappedQueue, string(data)).Err(); err != nil {
		log.Printf("[TENANT] Failed to queue unmapped event %s: %v", eventID, err)
	}
}
