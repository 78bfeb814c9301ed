package services

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/campreserv/ledger/internal/models"
)

func expectReservationLock(mock sqlmock.Sqlmock, reservationID string, total, paid, balance int64, status string) {
	mock.ExpectQuery("SELECT (.+) FROM reservations WHERE tenant_id = \\$1 AND id = \\$2 FOR UPDATE").
		WithArgs(testTenant, reservationID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "total_amount_cents", "paid_amount_cents",
			"balance_amount_cents", "payment_status"}).
			AddRow(reservationID, testTenant, total, paid, balance, status))
}

func expectReservationUpdate(mock sqlmock.Sqlmock, reservationID string, paid, balance int64, status string) {
	mock.ExpectExec("UPDATE reservations SET paid_amount_cents = \\$1, balance_amount_cents = \\$2, payment_status = \\$3").
		WithArgs(paid, balance, status, testTenant, reservationID).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestBalanceService_ApplyPaymentTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBalanceService(db)

	begin := func(t *testing.T) *sql.Tx {
		t.Helper()
		mock.ExpectBegin()
		tx, err := db.Begin()
		assert.NoError(t, err)
		return tx
	}

	t.Run("charge moves unpaid to partial", func(t *testing.T) {
		tx := begin(t)
		expectReservationLock(mock, "res_1", 50000, 0, 50000, models.ReservationUnpaid)
		expectReservationUpdate(mock, "res_1", 20000, 30000, models.ReservationPartial)

		snap, err := service.ApplyPaymentTx(tx, testTenant, "res_1", 20000, models.PaymentDirectionCharge)
		assert.NoError(t, err)
		assert.Equal(t, int64(20000), snap.PaidAmountCents)
		assert.Equal(t, int64(30000), snap.BalanceAmountCents)
		assert.Equal(t, models.ReservationPartial, snap.PaymentStatus)
	})

	t.Run("charge covering total moves to paid", func(t *testing.T) {
		tx := begin(t)
		expectReservationLock(mock, "res_1", 50000, 20000, 30000, models.ReservationPartial)
		expectReservationUpdate(mock, "res_1", 50000, 0, models.ReservationPaid)

		snap, err := service.ApplyPaymentTx(tx, testTenant, "res_1", 30000, models.PaymentDirectionCharge)
		assert.NoError(t, err)
		assert.Equal(t, int64(50000), snap.PaidAmountCents)
		assert.Equal(t, int64(0), snap.BalanceAmountCents)
		assert.Equal(t, models.ReservationPaid, snap.PaymentStatus)
	})

	t.Run("overpayment clamps balance at zero", func(t *testing.T) {
		tx := begin(t)
		expectReservationLock(mock, "res_1", 50000, 45000, 5000, models.ReservationPartial)
		expectReservationUpdate(mock, "res_1", 55000, 0, models.ReservationPaid)

		snap, err := service.ApplyPaymentTx(tx, testTenant, "res_1", 10000, models.PaymentDirectionCharge)
		assert.NoError(t, err)
		assert.Equal(t, int64(55000), snap.PaidAmountCents)
		assert.Equal(t, int64(0), snap.BalanceAmountCents)
	})

	t.Run("refund reopens balance", func(t *testing.T) {
		tx := begin(t)
		expectReservationLock(mock, "res_1", 50000, 50000, 0, models.ReservationPaid)
		expectReservationUpdate(mock, "res_1", 35000, 15000, models.ReservationPartial)

		snap, err := service.ApplyPaymentTx(tx, testTenant, "res_1", 15000, models.PaymentDirectionRefund)
		assert.NoError(t, err)
		assert.Equal(t, int64(35000), snap.PaidAmountCents)
		assert.Equal(t, models.ReservationPartial, snap.PaymentStatus)
	})

	t.Run("refund exceeding paid clamps at zero", func(t *testing.T) {
		tx := begin(t)
		expectReservationLock(mock, "res_1", 50000, 10000, 40000, models.ReservationPartial)
		expectReservationUpdate(mock, "res_1", 0, 50000, models.ReservationUnpaid)

		snap, err := service.ApplyPaymentTx(tx, testTenant, "res_1", 99999, models.PaymentDirectionRefund)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), snap.PaidAmountCents)
		assert.Equal(t, models.ReservationUnpaid, snap.PaymentStatus)
	})

	t.Run("missing reservation", func(t *testing.T) {
		tx := begin(t)
		mock.ExpectQuery("SELECT (.+) FROM reservations WHERE tenant_id = \\$1 AND id = \\$2 FOR UPDATE").
			WithArgs(testTenant, "ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "total_amount_cents", "paid_amount_cents",
				"balance_amount_cents", "payment_status"}))

		_, err := service.ApplyPaymentTx(tx, testTenant, "ghost", 5000, models.PaymentDirectionCharge)
		assert.ErrorIs(t, err, ErrReservationNotFound)
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		tx := begin(t)
		_, err := service.ApplyPaymentTx(tx, testTenant, "res_1", 0, models.PaymentDirectionCharge)
		assert.Error(t, err)
	})
}

// A $500 booking charged in full then refunded $150 and $300 lands on $50 paid
// with the projection partial throughout.
func TestBalanceService_ChargeThenStagedRefunds(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBalanceService(db)

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	expectReservationLock(mock, "res_9", 50000, 0, 50000, models.ReservationUnpaid)
	expectReservationUpdate(mock, "res_9", 50000, 0, models.ReservationPaid)
	snap, err := service.ApplyPaymentTx(tx, testTenant, "res_9", 50000, models.PaymentDirectionCharge)
	assert.NoError(t, err)
	assert.Equal(t, models.ReservationPaid, snap.PaymentStatus)

	expectReservationLock(mock, "res_9", 50000, 50000, 0, models.ReservationPaid)
	expectReservationUpdate(mock, "res_9", 35000, 15000, models.ReservationPartial)
	snap, err = service.ApplyPaymentTx(tx, testTenant, "res_9", 15000, models.PaymentDirectionRefund)
	assert.NoError(t, err)
	assert.Equal(t, int64(35000), snap.PaidAmountCents)

	expectReservationLock(mock, "res_9", 50000, 35000, 15000, models.ReservationPartial)
	expectReservationUpdate(mock, "res_9", 5000, 45000, models.ReservationPartial)
	snap, err = service.ApplyPaymentTx(tx, testTenant, "res_9", 30000, models.PaymentDirectionRefund)
	assert.NoError(t, err)
	assert.Equal(t, int64(5000), snap.PaidAmountCents)
	assert.Equal(t, int64(45000), snap.BalanceAmountCents)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentStatusFor(t *testing.T) {
	assert.Equal(t, models.ReservationUnpaid, paymentStatusFor(0, 50000))
	assert.Equal(t, models.ReservationPartial, paymentStatusFor(1, 50000))
	assert.Equal(t, models.ReservationPartial, paymentStatusFor(49999, 50000))
	assert.Equal(t, models.ReservationPaid, paymentStatusFor(50000, 50000))
	assert.Equal(t, models.ReservationPaid, paymentStatusFor(60000, 50000))
	// Nothing due means settled, even with no payments recorded.
	assert.Equal(t, models.ReservationPaid, paymentStatusFor(0, 0))
	assert.Equal(t, models.ReservationPaid, paymentStatusFor(5000, 0))
}
