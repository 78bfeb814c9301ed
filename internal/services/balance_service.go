package services

import (
	"database/sql"
	"fmt"

	"github.com/campreserv/ledger/internal/models"
)

// BalanceService owns the reservation paid/balance/status projection. Every
// mutation runs inside the caller's transaction, under a row lock on the
// reservation, so concurrent payments and refunds against the same reservation
// serialize on commit order.
type BalanceService struct {
	db *sql.DB
}

func NewBalanceService(db *sql.DB) *BalanceService {
	return &BalanceService{db: db}
}

// LockSnapshot reads the reservation's balance fields under FOR UPDATE. The
// lock is held until the caller's transaction commits or rolls back.
func (bs *BalanceService) LockSnapshot(tx *sql.Tx, tenantID, reservationID string) (*models.ReservationSnapshot, error) {
	var snap models.ReservationSnapshot
	err := tx.QueryRow(`
		SELECT id, tenant_id, total_amount_cents, paid_amount_cents, balance_amount_cents, payment_status
		FROM reservations
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE`, tenantID, reservationID).
		Scan(&snap.ReservationID, &snap.TenantID, &snap.TotalAmountCents,
			&snap.PaidAmountCents, &snap.BalanceAmountCents, &snap.PaymentStatus)
	if err == sql.ErrNoRows {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock reservation %s: %w", reservationID, err)
	}
	return &snap, nil
}

// ApplyPaymentTx recomputes and persists the projection for one charge or
// refund. Paid amounts floor at zero: credit balances are not representable,
// over-refunds are rejected upstream before any write.
func (bs *BalanceService) ApplyPaymentTx(tx *sql.Tx, tenantID, reservationID string, amountCents int64, direction string) (*models.ReservationSnapshot, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("payment amount must be positive, got %d", amountCents)
	}

	snap, err := bs.LockSnapshot(tx, tenantID, reservationID)
	if err != nil {
		return nil, err
	}

	switch direction {
	case models.PaymentDirectionCharge:
		snap.PaidAmountCents += amountCents
	case models.PaymentDirectionRefund:
		snap.PaidAmountCents -= amountCents
		if snap.PaidAmountCents < 0 {
			snap.PaidAmountCents = 0
		}
	default:
		return nil, fmt.Errorf("unknown payment direction %q", direction)
	}

	snap.BalanceAmountCents = snap.TotalAmountCents - snap.PaidAmountCents
	if snap.BalanceAmountCents < 0 {
		snap.BalanceAmountCents = 0
	}
	snap.PaymentStatus = paymentStatusFor(snap.PaidAmountCents, snap.TotalAmountCents)

	result, err := tx.Exec(`
		UPDATE reservations
		SET paid_amount_cents = $1, balance_amount_cents = $2, payment_status = $3, updated_at = NOW()
		WHERE tenant_id = $4 AND id = $5`,
		snap.PaidAmountCents, snap.BalanceAmountCents, snap.PaymentStatus, tenantID, reservationID)
	if err != nil {
		return nil, fmt.Errorf("update reservation balance: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrReservationNotFound
	}

	return snap, nil
}

// Snapshot reads the projection outside any transaction, for enquiries.
func (bs *BalanceService) Snapshot(tenantID, reservationID string) (*models.ReservationSnapshot, error) {
	var snap models.ReservationSnapshot
	err := bs.db.QueryRow(`
		SELECT id, tenant_id, total_amount_cents, paid_amount_cents, balance_amount_cents, payment_status
		FROM reservations
		WHERE tenant_id = $1 AND id = $2`, tenantID, reservationID).
		Scan(&snap.ReservationID, &snap.TenantID, &snap.TotalAmountCents,
			&snap.PaidAmountCents, &snap.BalanceAmountCents, &snap.PaymentStatus)
	if err == sql.ErrNoRows {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch reservation %s: %w", reservationID, err)
	}
	return &snap, nil
}

// A reservation with no amount due is settled regardless of payment history,
// so comped and zero-rate reservations never read as UNPAID.
func paymentStatusFor(paidCents, totalCents int64) string {
	switch {
	case totalCents <= 0:
		return models.ReservationPaid
	case paidCents <= 0:
		return models.ReservationUnpaid
	case paidCents < totalCents:
		return models.ReservationPartial
	default:
		return models.ReservationPaid
	}
}
