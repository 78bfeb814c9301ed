package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campreserv/ledger/internal/config"
	"github.com/campreserv/ledger/internal/middleware"
	"github.com/campreserv/ledger/internal/models"
)

const maxRequestBytes = 1_048_576 // 1 MB

// PaymentService carries the staff/guest-initiated money operations.
type PaymentService struct {
	db        *sql.DB
	posting   *PostingService
	balances  *BalanceService
	notify    *NotifyService
	validator *ValidationHelper
	fees      *config.FeeConfig
}

func NewPaymentService(db *sql.DB, posting *PostingService, balances *BalanceService, notify *NotifyService, fees *config.FeeConfig) *PaymentService {
	return &PaymentService{
		db:        db,
		posting:   posting,
		balances:  balances,
		notify:    notify,
		validator: NewValidationHelper(),
		fees:      fees,
	}
}

type recordPaymentRequest struct {
	ReservationID  string `json:"reservationId" validate:"required"`
	AmountCents    int64  `json:"amountCents" validate:"required,gt=0"`
	Method         string `json:"method" validate:"required,oneof=card cash check wallet"`
	IdempotencyKey string `json:"idempotencyKey" validate:"required,max=128"`
}

// RecordPayment applies a staff or guest initiated charge
// @Summary Record a payment
// @Description Apply a charge to a reservation, updating its balance and the ledger atomically
// @Tags payments
// @Accept json
// @Produce json
// @Param payment body recordPaymentRequest true "Payment data"
// @Success 201 {object} models.PaymentResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /payments [post]
func (ps *PaymentService) RecordPayment(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	var req recordPaymentRequest
	if !ps.decode(w, r, &req) {
		return
	}
	if err := ps.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	referenceID := "pay_" + req.IdempotencyKey

	// Idempotency: a replayed key returns the recorded payment unchanged.
	if existing, err := ps.fetchPaymentByReference(tenantID, referenceID); err == nil {
		snap, err := ps.balances.Snapshot(tenantID, existing.ReservationID)
		if err != nil {
			SendErrorResponse(w, "Failed to fetch reservation", http.StatusInternalServerError, nil)
			return
		}
		writeJSON(w, http.StatusOK, models.PaymentResult{Payment: *existing, Reservation: *snap, Duplicate: true})
		return
	} else if err != sql.ErrNoRows {
		log.Printf("[PAYMENT] Dedupe lookup failed for %s: %v", referenceID, err)
		SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		return
	}

	calc := CalculateFees(req.AmountCents, ps.fees)

	tx, err := ps.db.Begin()
	if err != nil {
		log.Printf("[PAYMENT] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	payment := models.Payment{
		ID:                 uuid.New().String(),
		TenantID:           tenantID,
		ReservationID:      req.ReservationID,
		Direction:          models.PaymentDirectionCharge,
		AmountCents:        req.AmountCents,
		Method:             req.Method,
		GatewayReferenceID: referenceID,
		Status:             models.PaymentStatusSucceeded,
		CreatedAt:          time.Now().UTC(),
	}
	inserted, err := insertPaymentTx(tx, &payment)
	if err != nil {
		SendErrorResponse(w, "Failed to store payment", http.StatusInternalServerError, nil)
		return
	}
	if !inserted {
		// Raced with a concurrent replay of the same key; it owns the write.
		SendErrorResponse(w, "Payment already being processed", http.StatusConflict, nil)
		return
	}

	snap, err := ps.balances.ApplyPaymentTx(tx, tenantID, req.ReservationID, req.AmountCents, models.PaymentDirectionCharge)
	if err != nil {
		ps.sendMoneyError(w, err)
		return
	}

	lines := []models.LedgerLine{
		{AccountCode: models.AccountGatewayClearing, Direction: models.DirectionDebit, AmountCents: calc.ChargeAmountCents},
		{AccountCode: models.AccountLodgingRevenue, Direction: models.DirectionCredit, AmountCents: calc.BaseAmountCents},
	}
	if calc.PassedPlatformCents > 0 {
		lines = append(lines, models.LedgerLine{AccountCode: models.AccountPlatformFees, Direction: models.DirectionCredit, AmountCents: calc.PassedPlatformCents})
	}
	if calc.PassedGatewayCents > 0 {
		lines = append(lines, models.LedgerLine{AccountCode: models.AccountProcessingFees, Direction: models.DirectionCredit, AmountCents: calc.PassedGatewayCents})
	}
	if _, err := ps.posting.PostTx(r.Context(), tx, PostingGroup{
		TenantID:      tenantID,
		DedupeKey:     "charge:" + referenceID,
		OccurredAt:    time.Now().UTC(),
		ReservationID: req.ReservationID,
		ReferenceID:   referenceID,
		Lines:         lines,
	}); err != nil {
		ps.sendMoneyError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[PAYMENT] Failed to commit payment %s: %v", referenceID, err)
		SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		return
	}

	ps.notify.QueueReceipt(tenantID, req.ReservationID, NoticePaymentReceipt, req.AmountCents)
	writeJSON(w, http.StatusCreated, models.PaymentResult{Payment: payment, Reservation: *snap})
}

type recordRefundRequest struct {
	ReservationID string `json:"reservationId" validate:"required"`
	AmountCents   int64  `json:"amountCents" validate:"required,gt=0"`
	Destination   string `json:"destination" validate:"required,oneof=card wallet cash"`
}

// RecordRefund applies a staff-initiated refund
// @Summary Record a refund
// @Description Refund part or all of a reservation's recorded payments
// @Tags payments
// @Accept json
// @Produce json
// @Param refund body recordRefundRequest true "Refund data"
// @Success 201 {object} models.RefundResult
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /refunds [post]
func (ps *PaymentService) RecordRefund(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	var req recordRefundRequest
	if !ps.decode(w, r, &req) {
		return
	}
	if err := ps.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tx, err := ps.db.Begin()
	if err != nil {
		log.Printf("[REFUND] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to process refund", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	// The row lock taken here serializes concurrent refunds so the
	// paid-amount check cannot race another operation on the reservation.
	snap, err := ps.balances.LockSnapshot(tx, tenantID, req.ReservationID)
	if err != nil {
		ps.sendMoneyError(w, err)
		return
	}
	if req.AmountCents > snap.PaidAmountCents {
		SendErrorResponse(w, "Refund amount exceeds paid amount", http.StatusUnprocessableEntity, nil)
		return
	}

	referenceID := "ref_" + uuid.New().String()
	refund := models.Payment{
		ID:                 uuid.New().String(),
		TenantID:           tenantID,
		ReservationID:      req.ReservationID,
		Direction:          models.PaymentDirectionRefund,
		AmountCents:        req.AmountCents,
		Method:             req.Destination,
		GatewayReferenceID: referenceID,
		Status:             models.PaymentStatusRefunded,
		CreatedAt:          time.Now().UTC(),
	}
	if _, err := insertPaymentTx(tx, &refund); err != nil {
		SendErrorResponse(w, "Failed to store refund", http.StatusInternalServerError, nil)
		return
	}

	snap, err = ps.balances.ApplyPaymentTx(tx, tenantID, req.ReservationID, req.AmountCents, models.PaymentDirectionRefund)
	if err != nil {
		ps.sendMoneyError(w, err)
		return
	}

	if _, err := ps.posting.PostTx(r.Context(), tx, PostingGroup{
		TenantID:      tenantID,
		DedupeKey:     "refund:" + referenceID,
		OccurredAt:    time.Now().UTC(),
		ReservationID: req.ReservationID,
		ReferenceID:   referenceID,
		Lines: []models.LedgerLine{
			{AccountCode: models.AccountRefunds, Direction: models.DirectionDebit, AmountCents: req.AmountCents},
			{AccountCode: models.AccountGatewayClearing, Direction: models.DirectionCredit, AmountCents: req.AmountCents},
		},
	}); err != nil {
		ps.sendMoneyError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[REFUND] Failed to commit refund %s: %v", referenceID, err)
		SendErrorResponse(w, "Failed to process refund", http.StatusInternalServerError, nil)
		return
	}

	ps.notify.QueueReceipt(tenantID, req.ReservationID, NoticeRefundIssued, req.AmountCents)
	writeJSON(w, http.StatusCreated, models.RefundResult{Refund: refund, Reservation: *snap})
}

// GetReservationBalance returns the balance projection for one reservation
// @Summary Get reservation balance
// @Tags reservations
// @Produce json
// @Param reservationId path string true "Reservation ID"
// @Success 200 {object} models.ReservationSnapshot
// @Failure 404 {object} ErrorResponse
// @Router /reservations/{reservationId}/balance [get]
func (ps *PaymentService) GetReservationBalance(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	reservationID := chi.URLParam(r, "reservationId")

	snap, err := ps.balances.Snapshot(tenantID, reservationID)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			SendErrorResponse(w, "Reservation not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch reservation", http.StatusInternalServerError, nil)
		}
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListLedgerEntries exports committed ledger rows
// @Summary List ledger entries
// @Description Export committed ledger rows for a date range, optionally filtered by account code
// @Tags ledger
// @Produce json
// @Param from query string true "Start date (RFC3339 or YYYY-MM-DD)"
// @Param to query string true "End date (RFC3339 or YYYY-MM-DD)"
// @Param accountCode query string false "GL account code"
// @Success 200 {object} object{entries=[]models.LedgerEntry,count=int}
// @Failure 400 {object} ErrorResponse
// @Router /ledger/entries [get]
func (ps *PaymentService) ListLedgerEntries(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	from, err := parseDateParam(r.URL.Query().Get("from"))
	if err != nil {
		SendErrorResponse(w, "Invalid from date", http.StatusBadRequest, nil)
		return
	}
	to, err := parseDateParam(r.URL.Query().Get("to"))
	if err != nil {
		SendErrorResponse(w, "Invalid to date", http.StatusBadRequest, nil)
		return
	}

	limit := 500
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 5000 {
			limit = l
		}
	}

	entries, err := ps.posting.ListEntries(r.Context(), tenantID, from, to, r.URL.Query().Get("accountCode"), limit)
	if err != nil {
		log.Printf("[LEDGER] Export failed for tenant %s: %v", tenantID, err)
		SendErrorResponse(w, "Failed to fetch ledger entries", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (ps *PaymentService) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func (ps *PaymentService) sendMoneyError(w http.ResponseWriter, err error) {
	var periodErr *PeriodClosedError
	var unbalancedErr *UnbalancedPostingError
	switch {
	case errors.As(err, &periodErr):
		SendErrorResponse(w, periodErr.Error(), http.StatusConflict, nil)
	case errors.As(err, &unbalancedErr):
		log.Printf("[PAYMENT] Unbalanced posting rejected: %v", err)
		SendErrorResponse(w, "Posting does not balance", http.StatusInternalServerError, nil)
	case errors.Is(err, ErrReservationNotFound):
		SendErrorResponse(w, "Reservation not found", http.StatusNotFound, nil)
	case errors.Is(err, ErrInsufficientRefund):
		SendErrorResponse(w, "Refund amount exceeds paid amount", http.StatusUnprocessableEntity, nil)
	default:
		log.Printf("[PAYMENT] Money operation failed: %v", err)
		SendErrorResponse(w, "Failed to process request", http.StatusInternalServerError, nil)
	}
}

func (ps *PaymentService) fetchPaymentByReference(tenantID, referenceID string) (*models.Payment, error) {
	var p models.Payment
	err := ps.db.QueryRow(`
		SELECT id, tenant_id, reservation_id, direction, amount_cents, method,
		       gateway_reference_id, COALESCE(charge_reference_id, ''), status, created_at
		FROM payments
		WHERE tenant_id = $1 AND gateway_reference_id = $2`, tenantID, referenceID).
		Scan(&p.ID, &p.TenantID, &p.ReservationID, &p.Direction, &p.AmountCents,
			&p.Method, &p.GatewayReferenceID, &p.ChargeReferenceID, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func parseDateParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
