package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/campreserv/ledger/internal/models"
)

// PaymentEventService is the idempotent ingestion point for gateway payment
// lifecycle events. Every branch that moves money writes the Payment row, the
// balance projection, and the ledger posting inside one transaction; the
// event-row insert shares that transaction, so a failed run leaves no trace
// and a redelivery retries cleanly.
type PaymentEventService struct {
	db       *sql.DB
	posting  *PostingService
	balances *BalanceService
	tenants  *TenantService
	notify   *NotifyService
}

func NewPaymentEventService(db *sql.DB, posting *PostingService, balances *BalanceService, tenants *TenantService, notify *NotifyService) *PaymentEventService {
	return &PaymentEventService{
		db:       db,
		posting:  posting,
		balances: balances,
		tenants:  tenants,
		notify:   notify,
	}
}

// pendingNotice defers receipt emission until after commit so a notification
// can never be sent for money state that rolled back.
type pendingNotice struct {
	reservationID string
	kind          string
	amountCents   int64
}

// Process applies one gateway event exactly once. Already-processed events are
// a successful no-op. Errors are retryable: the caller surfaces a 5xx and the
// gateway redelivers.
func (es *PaymentEventService) Process(ctx context.Context, event *models.GatewayEvent) error {
	tenantID, err := es.tenants.Resolve(ctx, event.GatewayAccountID)
	if err == ErrUnresolvedTenant {
		es.tenants.QueueUnmapped(event.GatewayAccountID, event.EventID, event.Type)
		return nil
	}
	if err != nil {
		return &RetryableError{Err: err}
	}

	tx, err := es.db.BeginTx(ctx, nil)
	if err != nil {
		return &RetryableError{Err: fmt.Errorf("begin event tx: %w", err)}
	}
	defer tx.Rollback()

	inserted, err := es.recordEvent(tx, tenantID, event)
	if err != nil {
		return &RetryableError{Err: err}
	}
	if !inserted {
		log.Printf("[EVENT] Duplicate gateway event %s (%s) for tenant %s, skipping", event.EventID, event.Type, tenantID)
		return nil
	}

	var notices []pendingNotice
	switch event.Type {
	case models.EventPaymentSucceeded:
		notices, err = es.applySucceeded(ctx, tx, tenantID, event)
	case models.EventRequiresCapture:
		err = es.applyAuthorized(tx, tenantID, event)
	case models.EventPaymentFailed:
		err = es.applyFailed(tx, tenantID, event)
	case models.EventChargeRefunded:
		notices, err = es.applyRefunds(ctx, tx, tenantID, event)
	case models.EventDisputeCreated:
		notices, err = es.applyDisputeCreated(ctx, tx, tenantID, event)
	case models.EventDisputeUpdated:
		notices, err = es.applyDisputeUpdated(ctx, tx, tenantID, event)
	case models.EventDisputeClosed:
		notices, err = es.applyDisputeClosed(ctx, tx, tenantID, event)
	default:
		log.Printf("[EVENT] Unhandled gateway event type %s (%s)", event.Type, event.EventID)
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &RetryableError{Err: fmt.Errorf("commit event tx: %w", err)}
	}

	for _, n := range notices {
		es.notify.QueueReceipt(tenantID, n.reservationID, n.kind, n.amountCents)
	}
	return nil
}

// recordEvent is the event-level dedupe: one row per (tenant, gateway event id).
func (es *PaymentEventService) recordEvent(tx *sql.Tx, tenantID string, event *models.GatewayEvent) (bool, error) {
	result, err := tx.Exec(`
		INSERT INTO gateway_events (tenant_id, event_id, event_type, received_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, event_id) DO NOTHING`,
		tenantID, event.EventID, event.Type)
	if err != nil {
		return false, fmt.Errorf("record gateway event: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (es *PaymentEventService) applySucceeded(ctx context.Context, tx *sql.Tx, tenantID string, event *models.GatewayEvent) ([]pendingNotice, error) {
	var intent models.EventPaymentIntent
	if err := json.Unmarshal(event.Object, &intent); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}

	reservationID := intent.Metadata["reservation_id"]
	if reservationID == "" {
		log.Printf("[EVENT] payment %s carries no reservation metadata, recording event only", intent.ID)
		return nil, nil
	}

	// The intent may have been seen before as an authorization, or the same
	// financial fact may arrive again under a fresh event id after a capture.
	var existingID, existingStatus string
	err := tx.QueryRow(`
		SELECT id, status FROM payments
		WHERE tenant_id = $1 AND gateway_reference_id = $2
		FOR UPDATE`, tenantID, intent.ID).Scan(&existingID, &existingStatus)
	if err != nil && err != sql.ErrNoRows {
		return nil, &RetryableError{Err: fmt.Errorf("lookup payment %s: %w", intent.ID, err)}
	}
	if err == nil && existingStatus != models.PaymentStatusAuthorized {
		return nil, nil
	}

	if err == sql.ErrNoRows {
		payment := models.Payment{
			ID:                 uuid.New().String(),
			TenantID:           tenantID,
			ReservationID:      reservationID,
			Direction:          models.PaymentDirectionCharge,
			AmountCents:        intent.AmountCents,
			Method:             "card",
			GatewayReferenceID: intent.ID,
			Status:             models.PaymentStatusSucceeded,
		}
		inserted, err := insertPaymentTx(tx, &payment)
		if err != nil {
			return nil, &RetryableError{Err: err}
		}
		if !inserted {
			// The row appeared between the FOR UPDATE lookup and the insert: a
			// concurrent delivery under another event id won the race and owns
			// the balance and ledger writes for this intent.
			return nil, nil
		}
	} else {
		if _, err := tx.Exec(`
			UPDATE payments SET status = $1 WHERE tenant_id = $2 AND id = $3`,
			models.PaymentStatusSucceeded, tenantID, existingID); err != nil {
			return nil, &RetryableError{Err: fmt.Errorf("capture payment %s: %w", intent.ID, err)}
		}
	}

	baseCents := intent.AmountCents
	if v, ok := parseCents(intent.Metadata["base_amount_cents"]); ok && v > 0 && v <= intent.AmountCents {
		baseCents = v
	}
	lines := []models.LedgerLine{
		{AccountCode: models.AccountGatewayClearing, Direction: models.DirectionDebit, AmountCents: intent.AmountCents},
		{AccountCode: models.AccountLodgingRevenue, Direction: models.DirectionCredit, AmountCents: baseCents},
	}
	if passed := intent.AmountCents - baseCents; passed > 0 {
		lines = append(lines, models.LedgerLine{
			AccountCode: models.AccountPlatformFees, Direction: models.DirectionCredit, AmountCents: passed,
		})
	}

	if _, err := es.balances.ApplyPaymentTx(tx, tenantID, reservationID, baseCents, models.PaymentDirectionCharge); err != nil {
		return nil, wrapMoneyErr(err)
	}
	if _, err := es.posting.PostTx(ctx, tx, PostingGroup{
		TenantID:      tenantID,
		DedupeKey:     "charge:" + intent.ID,
		OccurredAt:    event.CreatedAt,
		ReservationID: reservationID,
		ReferenceID:   intent.ID,
		Lines:         lines,
	}); err != nil {
		return nil, wrapMoneyErr(err)
	}

	return []pendingNotice{{reservationID: reservationID, kind: NoticePaymentReceipt, amountCents: baseCents}}, nil
}

// applyAuthorized records a requires_capture authorization as a fact only:
// no paid amount, no balance, no ledger movement.
func (es *PaymentEventService) applyAuthorized(tx *sql.Tx, tenantID string, event *models.GatewayEvent) error {
	var intent models.EventPaymentIntent
	if err := json.Unmarshal(event.Object, &intent); err != nil {
		return fmt.Errorf("decode payment intent: %w", err)
	}
	reservationID := intent.Metadata["reservation_id"]
	if reservationID == "" {
		return nil
	}

	payment := models.Payment{
		ID:                 uuid.New().String(),
		TenantID:           tenantID,
		ReservationID:      reservationID,
		Direction:          models.PaymentDirectionCharge,
		AmountCents:        intent.AmountCents,
		Method:             "card",
		GatewayReferenceID: intent.ID,
		Status:             models.PaymentStatusAuthorized,
	}
	if _, err := insertPaymentTx(tx, &payment); err != nil {
		return &RetryableError{Err: err}
	}
	return nil
}

func (es *PaymentEventService) applyFailed(tx *sql.Tx, tenantID string, event *models.GatewayEvent) error {
	var intent models.EventPaymentIntent
	if err := json.Unmarshal(event.Object, &intent); err != nil {
		return fmt.Errorf("decode payment intent: %w", err)
	}
	// Only an authorization can fail; settled money moves back via refunds.
	if _, err := tx.Exec(`
		UPDATE payments SET status = $1
		WHERE tenant_id = $2 AND gateway_reference_id = $3 AND status = $4`,
		models.PaymentStatusFailed, tenantID, intent.ID, models.PaymentStatusAuthorized); err != nil {
		return &RetryableError{Err: fmt.Errorf("fail payment %s: %w", intent.ID, err)}
	}
	return nil
}

// applyRefunds records each refund in the payload exactly once, keyed by its
// refund id, so partial refunds delivered out of order are never collapsed or
// double-applied. When the gateway sends only a cumulative amount_refunded,
// the delta since the recorded refund total is applied instead.
func (es *PaymentEventService) applyRefunds(ctx context.Context, tx *sql.Tx, tenantID string, event *models.GatewayEvent) ([]pendingNotice, error) {
	var charge models.EventCharge
	if err := json.Unmarshal(event.Object, &charge); err != nil {
		return nil, fmt.Errorf("decode charge: %w", err)
	}

	original, err := es.lockChargePayment(tx, tenantID, charge.PaymentIntent, charge.ID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		log.Printf("[EVENT] refund event %s references unknown charge %s, recording event only", event.EventID, charge.ID)
		return nil, nil
	}

	var notices []pendingNotice

	applyOne := func(refundID string, amountCents int64) error {
		if amountCents <= 0 {
			return nil
		}
		refund := models.Payment{
			ID:                 uuid.New().String(),
			TenantID:           tenantID,
			ReservationID:      original.ReservationID,
			Direction:          models.PaymentDirectionRefund,
			AmountCents:        amountCents,
			Method:             original.Method,
			GatewayReferenceID: refundID,
			ChargeReferenceID:  original.GatewayReferenceID,
			Status:             models.PaymentStatusRefunded,
		}
		inserted, err := insertPaymentTx(tx, &refund)
		if err != nil {
			return &RetryableError{Err: err}
		}
		if !inserted {
			return nil // this refund fact is already recorded
		}
		if _, err := es.balances.ApplyPaymentTx(tx, tenantID, original.ReservationID, amountCents, models.PaymentDirectionRefund); err != nil {
			return wrapMoneyErr(err)
		}
		if _, err := es.posting.PostTx(ctx, tx, PostingGroup{
			TenantID:      tenantID,
			DedupeKey:     "refund:" + refundID,
			OccurredAt:    event.CreatedAt,
			ReservationID: original.ReservationID,
			ReferenceID:   refundID,
			Lines: []models.LedgerLine{
				{AccountCode: models.AccountRefunds, Direction: models.DirectionDebit, AmountCents: amountCents},
				{AccountCode: models.AccountGatewayClearing, Direction: models.DirectionCredit, AmountCents: amountCents},
			},
		}); err != nil {
			return wrapMoneyErr(err)
		}
		notices = append(notices, pendingNotice{reservationID: original.ReservationID, kind: NoticeRefundIssued, amountCents: amountCents})
		return nil
	}

	if len(charge.Refunds) > 0 {
		for _, r := range charge.Refunds {
			if err := applyOne(r.ID, r.AmountCents); err != nil {
				return nil, err
			}
		}
	} else {
		recorded, err := es.recordedRefundTotal(tx, tenantID, original.GatewayReferenceID)
		if err != nil {
			return nil, &RetryableError{Err: err}
		}
		if delta := charge.AmountRefundedCents - recorded; delta > 0 {
			if err := applyOne("refund-delta:"+event.EventID, delta); err != nil {
				return nil, err
			}
		}
	}

	if charge.AmountRefundedCents >= original.AmountCents && original.AmountCents > 0 {
		if _, err := tx.Exec(`
			UPDATE payments SET status = $1 WHERE tenant_id = $2 AND id = $3`,
			models.PaymentStatusRefunded, tenantID, original.ID); err != nil {
			return nil, &RetryableError{Err: err}
		}
	}

	return notices, nil
}

func (es *PaymentEventService) applyDisputeCreated(ctx context.Context, tx *sql.Tx, tenantID string, event *models.GatewayEvent) ([]pendingNotice, error) {
	var dispute models.EventDispute
	if err := json.Unmarshal(event.Object, &dispute); err != nil {
		return nil, fmt.Errorf("decode dispute: %w", err)
	}

	original, err := es.lockChargePayment(tx, tenantID, dispute.Charge, dispute.Charge)
	if err != nil {
		return nil, err
	}
	if original == nil {
		log.Printf("[EVENT] dispute %s references unknown charge %s, recording event only", dispute.ID, dispute.Charge)
		return nil, nil
	}

	adjustment := models.Payment{
		ID:                 uuid.New().String(),
		TenantID:           tenantID,
		ReservationID:      original.ReservationID,
		Direction:          models.PaymentDirectionRefund,
		AmountCents:        dispute.AmountCents,
		Method:             "dispute",
		GatewayReferenceID: dispute.ID,
		ChargeReferenceID:  original.GatewayReferenceID,
		Status:             models.PaymentStatusDisputed,
	}
	inserted, err := insertPaymentTx(tx, &adjustment)
	if err != nil {
		return nil, &RetryableError{Err: err}
	}
	if !inserted {
		return nil, nil
	}

	if _, err := es.balances.ApplyPaymentTx(tx, tenantID, original.ReservationID, dispute.AmountCents, models.PaymentDirectionRefund); err != nil {
		return nil, wrapMoneyErr(err)
	}
	if _, err := es.posting.PostTx(ctx, tx, PostingGroup{
		TenantID:      tenantID,
		DedupeKey:     "dispute:" + dispute.ID,
		OccurredAt:    event.CreatedAt,
		ReservationID: original.ReservationID,
		ReferenceID:   dispute.ID,
		Lines: []models.LedgerLine{
			{AccountCode: models.AccountChargebacks, Direction: models.DirectionDebit, AmountCents: dispute.AmountCents},
			{AccountCode: models.AccountGatewayClearing, Direction: models.DirectionCredit, AmountCents: dispute.AmountCents},
		},
	}); err != nil {
		return nil, wrapMoneyErr(err)
	}

	if _, err := tx.Exec(`
		UPDATE payments SET status = $1 WHERE tenant_id = $2 AND id = $3`,
		models.PaymentStatusDisputed, tenantID, original.ID); err != nil {
		return nil, &RetryableError{Err: err}
	}
	return nil, nil
}

// applyDisputeUpdated handles a dispute whose amount shrank before closure:
// the released portion gets the converse of the chargeback adjustment. The
// fact is keyed by dispute id plus the new amount, so a redelivered update is
// a no-op while a further shrink applies its own delta.
func (es *PaymentEventService) applyDisputeUpdated(ctx context.Context, tx *sql.Tx, tenantID string, event *models.GatewayEvent) ([]pendingNotice, error) {
	var dispute models.EventDispute
	if err := json.Unmarshal(event.Object, &dispute); err != nil {
		return nil, fmt.Errorf("decode dispute: %w", err)
	}

	var adjustmentID, reservationID, chargeRef string
	var adjustmentCents int64
	err := tx.QueryRow(`
		SELECT id, reservation_id, COALESCE(charge_reference_id, ''), amount_cents
		FROM payments
		WHERE tenant_id = $1 AND gateway_reference_id = $2
		FOR UPDATE`, tenantID, dispute.ID).
		Scan(&adjustmentID, &reservationID, &chargeRef, &adjustmentCents)
	if err == sql.ErrNoRows {
		log.Printf("[EVENT] update for unknown dispute %s, recording event only", dispute.ID)
		return nil, nil
	}
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("lookup dispute %s: %w", dispute.ID, err)}
	}

	delta := adjustmentCents - dispute.AmountCents
	if delta <= 0 {
		return nil, nil
	}

	releaseRef := fmt.Sprintf("%s:updated:%d", dispute.ID, dispute.AmountCents)
	release := models.Payment{
		ID:                 uuid.New().String(),
		TenantID:           tenantID,
		ReservationID:      reservationID,
		Direction:          models.PaymentDirectionCharge,
		AmountCents:        delta,
		Method:             "dispute",
		GatewayReferenceID: releaseRef,
		ChargeReferenceID:  chargeRef,
		Status:             models.PaymentStatusSucceeded,
	}
	inserted, err := insertPaymentTx(tx, &release)
	if err != nil {
		return nil, &RetryableError{Err: err}
	}
	if !inserted {
		return nil, nil
	}

	if _, err := es.balances.ApplyPaymentTx(tx, tenantID, reservationID, delta, models.PaymentDirectionCharge); err != nil {
		return nil, wrapMoneyErr(err)
	}
	if _, err := es.posting.PostTx(ctx, tx, PostingGroup{
		TenantID:      tenantID,
		DedupeKey:     "dispute:" + releaseRef,
		OccurredAt:    event.CreatedAt,
		ReservationID: reservationID,
		ReferenceID:   dispute.ID,
		Lines: []models.LedgerLine{
			{AccountCode: models.AccountGatewayClearing, Direction: models.DirectionDebit, AmountCents: delta},
			{AccountCode: models.AccountChargebacks, Direction: models.DirectionCredit, AmountCents: delta},
		},
	}); err != nil {
		return nil, wrapMoneyErr(err)
	}

	// The adjustment row now carries the amount still in dispute, so the next
	// update or closure computes against the current exposure.
	if _, err := tx.Exec(`
		UPDATE payments SET amount_cents = $1 WHERE tenant_id = $2 AND id = $3`,
		dispute.AmountCents, tenantID, adjustmentID); err != nil {
		return nil, &RetryableError{Err: err}
	}
	return nil, nil
}

// applyDisputeClosed reverses the dispute adjustment when the dispute is won.
// A lost dispute stands as the chargeback already recorded at creation.
func (es *PaymentEventService) applyDisputeClosed(ctx context.Context, tx *sql.Tx, tenantID string, event *models.GatewayEvent) ([]pendingNotice, error) {
	var dispute models.EventDispute
	if err := json.Unmarshal(event.Object, &dispute); err != nil {
		return nil, fmt.Errorf("decode dispute: %w", err)
	}

	var adjustmentID, reservationID, chargeRef string
	var adjustmentCents int64
	err := tx.QueryRow(`
		SELECT id, reservation_id, COALESCE(charge_reference_id, ''), amount_cents
		FROM payments
		WHERE tenant_id = $1 AND gateway_reference_id = $2
		FOR UPDATE`, tenantID, dispute.ID).
		Scan(&adjustmentID, &reservationID, &chargeRef, &adjustmentCents)
	if err == sql.ErrNoRows {
		log.Printf("[EVENT] closure for unknown dispute %s, recording event only", dispute.ID)
		return nil, nil
	}
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("lookup dispute %s: %w", dispute.ID, err)}
	}

	if dispute.Status != "won" {
		if _, err := tx.Exec(`
			UPDATE payments SET status = $1
			WHERE tenant_id = $2 AND gateway_reference_id = $3 AND direction = $4`,
			models.PaymentStatusRefunded, tenantID, chargeRef, models.PaymentDirectionCharge); err != nil {
			return nil, &RetryableError{Err: err}
		}
		return nil, nil
	}

	// A partially won dispute closes with the won amount; only that much of
	// the adjustment comes back.
	reinstateCents := adjustmentCents
	if dispute.AmountCents > 0 && dispute.AmountCents < adjustmentCents {
		reinstateCents = dispute.AmountCents
	}

	reinstateRef := dispute.ID + ":reinstated"
	reinstate := models.Payment{
		ID:                 uuid.New().String(),
		TenantID:           tenantID,
		ReservationID:      reservationID,
		Direction:          models.PaymentDirectionCharge,
		AmountCents:        reinstateCents,
		Method:             "dispute",
		GatewayReferenceID: reinstateRef,
		ChargeReferenceID:  chargeRef,
		Status:             models.PaymentStatusSucceeded,
	}
	inserted, err := insertPaymentTx(tx, &reinstate)
	if err != nil {
		return nil, &RetryableError{Err: err}
	}
	if !inserted {
		return nil, nil
	}

	if _, err := es.balances.ApplyPaymentTx(tx, tenantID, reservationID, reinstateCents, models.PaymentDirectionCharge); err != nil {
		return nil, wrapMoneyErr(err)
	}
	if _, err := es.posting.PostTx(ctx, tx, PostingGroup{
		TenantID:      tenantID,
		DedupeKey:     "dispute:" + reinstateRef,
		OccurredAt:    event.CreatedAt,
		ReservationID: reservationID,
		ReferenceID:   dispute.ID,
		Lines: []models.LedgerLine{
			{AccountCode: models.AccountGatewayClearing, Direction: models.DirectionDebit, AmountCents: reinstateCents},
			{AccountCode: models.AccountChargebacks, Direction: models.DirectionCredit, AmountCents: reinstateCents},
		},
	}); err != nil {
		return nil, wrapMoneyErr(err)
	}

	if chargeRef != "" {
		if _, err := tx.Exec(`
			UPDATE payments SET status = $1
			WHERE tenant_id = $2 AND gateway_reference_id = $3 AND direction = $4`,
			models.PaymentStatusSucceeded, tenantID, chargeRef, models.PaymentDirectionCharge); err != nil {
			return nil, &RetryableError{Err: err}
		}
	}
	return nil, nil
}

// lockChargePayment finds the original charge for a charge or intent reference
// and locks it for the duration of the event transaction.
func (es *PaymentEventService) lockChargePayment(tx *sql.Tx, tenantID, intentRef, chargeRef string) (*models.Payment, error) {
	var p models.Payment
	err := tx.QueryRow(`
		SELECT id, tenant_id, reservation_id, direction, amount_cents, method,
		       gateway_reference_id, COALESCE(charge_reference_id, ''), status
		FROM payments
		WHERE tenant_id = $1 AND direction = $2 AND gateway_reference_id IN ($3, $4)
		LIMIT 1
		FOR UPDATE`, tenantID, models.PaymentDirectionCharge, intentRef, chargeRef).
		Scan(&p.ID, &p.TenantID, &p.ReservationID, &p.Direction, &p.AmountCents,
			&p.Method, &p.GatewayReferenceID, &p.ChargeReferenceID, &p.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("lookup charge payment: %w", err)}
	}
	return &p, nil
}

func (es *PaymentEventService) recordedRefundTotal(tx *sql.Tx, tenantID, chargeReferenceID string) (int64, error) {
	var total int64
	err := tx.QueryRow(`
		SELECT COALESCE(SUM(amount_cents), 0) FROM payments
		WHERE tenant_id = $1 AND charge_reference_id = $2 AND direction = $3`,
		tenantID, chargeReferenceID, models.PaymentDirectionRefund).Scan(&total)
	return total, err
}

// insertPaymentTx writes a payment fact; (tenant_id, gateway_reference_id)
// uniqueness makes a replay of the same fact a no-op instead of a double apply.
func insertPaymentTx(tx *sql.Tx, p *models.Payment) (bool, error) {
	result, err := tx.Exec(`
		INSERT INTO payments
		(id, tenant_id, reservation_id, direction, amount_cents, method,
		 gateway_reference_id, charge_reference_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, NOW())
		ON CONFLICT (tenant_id, gateway_reference_id) DO NOTHING`,
		p.ID, p.TenantID, p.ReservationID, p.Direction, p.AmountCents,
		p.Method, p.GatewayReferenceID, p.ChargeReferenceID, p.Status)
	if err != nil {
		return false, fmt.Errorf("insert payment %s: %w", p.GatewayReferenceID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// wrapMoneyErr keeps typed business failures intact and marks everything else
// retryable for the delivery mechanism.
func wrapMoneyErr(err error) error {
	switch err.(type) {
	case *UnbalancedPostingError, *PeriodClosedError, *RetryableError:
		return err
	}
	if err == ErrReservationNotFound || err == ErrInsufficientRefund {
		return err
	}
	return &RetryableError{Err: err}
}

func parseCents(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	var v int64
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, false
	}
	return v, true
}
