package services

import (
	"context"
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/campreserv/ledger/internal/models"
)

const (
	testTenant = "tenant_1"
)

func newPostingFixture(t *testing.T) (*PostingService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	periods := NewGLPeriodService(db, nil)
	return NewPostingService(db, periods), mock, func() { db.Close() }
}

func expectOpenPeriod(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT status FROM gl_periods").
		WillReturnError(sql.ErrNoRows)
}

func chargeGroup(amount int64) PostingGroup {
	return PostingGroup{
		TenantID:      testTenant,
		DedupeKey:     "charge:pi_100",
		OccurredAt:    time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC),
		ReservationID: "res_42",
		ReferenceID:   "pi_100",
		Lines: []models.LedgerLine{
			{AccountCode: models.AccountGatewayClearing, Direction: models.DirectionDebit, AmountCents: amount},
			{AccountCode: models.AccountLodgingRevenue, Direction: models.DirectionCredit, AmountCents: amount},
		},
	}
}

func TestPostingService_Post(t *testing.T) {
	service, mock, cleanup := newPostingFixture(t)
	defer cleanup()

	emptyGroupRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "tenant_id", "account_code", "direction", "amount_cents",
			"dedupe_key", "line_no", "reservation_id", "reference_id", "occurred_at", "posted_at"})
	}

	t.Run("balanced group commits both lines", func(t *testing.T) {
		group := chargeGroup(10000)

		expectOpenPeriod(mock)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM ledger_entries WHERE tenant_id = \\$1 AND dedupe_key = \\$2 ORDER BY line_no FOR UPDATE").
			WithArgs(testTenant, group.DedupeKey).
			WillReturnRows(emptyGroupRows())
		mock.ExpectQuery("INSERT INTO ledger_entries").
			WithArgs(testTenant, models.AccountGatewayClearing, models.DirectionDebit, int64(10000),
				group.DedupeKey, 0, "res_42", "pi_100", group.OccurredAt, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		mock.ExpectQuery("INSERT INTO ledger_entries").
			WithArgs(testTenant, models.AccountLodgingRevenue, models.DirectionCredit, int64(10000),
				group.DedupeKey, 1, "res_42", "pi_100", group.OccurredAt, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
		mock.ExpectCommit()

		result, err := service.Post(context.Background(), group)
		assert.NoError(t, err)
		assert.False(t, result.AlreadyPosted)
		assert.Len(t, result.Entries, 2)
		assert.Equal(t, 0, result.RepairedLines)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unbalanced group rejected before any write", func(t *testing.T) {
		group := chargeGroup(10000)
		group.Lines[1].AmountCents = 9999

		_, err := service.Post(context.Background(), group)
		assert.Error(t, err)

		var unbalanced *UnbalancedPostingError
		assert.ErrorAs(t, err, &unbalanced)
		assert.Equal(t, int64(10000), unbalanced.DebitCents)
		assert.Equal(t, int64(9999), unbalanced.CreditCents)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("single line rejected", func(t *testing.T) {
		group := chargeGroup(10000)
		group.Lines = group.Lines[:1]

		_, err := service.Post(context.Background(), group)
		assert.Error(t, err)
	})

	t.Run("non-positive line amount rejected", func(t *testing.T) {
		group := chargeGroup(10000)
		group.Lines[0].AmountCents = 0
		group.Lines[1].AmountCents = 0

		_, err := service.Post(context.Background(), group)
		assert.Error(t, err)
	})

	t.Run("closed period rejected", func(t *testing.T) {
		group := chargeGroup(10000)

		mock.ExpectQuery("SELECT status FROM gl_periods").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.PeriodClosed))

		_, err := service.Post(context.Background(), group)
		assert.Error(t, err)

		var closed *PeriodClosedError
		assert.ErrorAs(t, err, &closed)
		assert.Equal(t, models.PeriodClosed, closed.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fully posted group is a no-op", func(t *testing.T) {
		group := chargeGroup(10000)
		now := time.Now()

		expectOpenPeriod(mock)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM ledger_entries WHERE tenant_id = \\$1 AND dedupe_key = \\$2 ORDER BY line_no FOR UPDATE").
			WithArgs(testTenant, group.DedupeKey).
			WillReturnRows(emptyGroupRows().
				AddRow(int64(1), testTenant, models.AccountGatewayClearing, models.DirectionDebit, int64(10000),
					group.DedupeKey, 0, "res_42", "pi_100", group.OccurredAt, now).
				AddRow(int64(2), testTenant, models.AccountLodgingRevenue, models.DirectionCredit, int64(10000),
					group.DedupeKey, 1, "res_42", "pi_100", group.OccurredAt, now))
		mock.ExpectCommit()

		result, err := service.Post(context.Background(), group)
		assert.NoError(t, err)
		assert.True(t, result.AlreadyPosted)
		assert.Len(t, result.Entries, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("partial group repaired by inserting missing line only", func(t *testing.T) {
		group := chargeGroup(10000)
		now := time.Now()

		expectOpenPeriod(mock)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM ledger_entries WHERE tenant_id = \\$1 AND dedupe_key = \\$2 ORDER BY line_no FOR UPDATE").
			WithArgs(testTenant, group.DedupeKey).
			WillReturnRows(emptyGroupRows().
				AddRow(int64(1), testTenant, models.AccountGatewayClearing, models.DirectionDebit, int64(10000),
					group.DedupeKey, 0, "res_42", "pi_100", group.OccurredAt, now))
		mock.ExpectQuery("INSERT INTO ledger_entries").
			WithArgs(testTenant, models.AccountLodgingRevenue, models.DirectionCredit, int64(10000),
				group.DedupeKey, 1, "res_42", "pi_100", group.OccurredAt, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
		mock.ExpectCommit()

		result, err := service.Post(context.Background(), group)
		assert.NoError(t, err)
		assert.False(t, result.AlreadyPosted)
		assert.Equal(t, 1, result.RepairedLines)
		assert.Len(t, result.Entries, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// Randomized groups of mixed debits and credits must always either balance or
// be rejected; validate never lets a non-zero net group through.
func TestPostingService_ValidateBalanceProperty(t *testing.T) {
	service, _, cleanup := newPostingFixture(t)
	defer cleanup()

	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		lineCount := 2 + rng.Intn(6)
		group := PostingGroup{
			TenantID:   testTenant,
			DedupeKey:  "prop",
			OccurredAt: time.Now(),
		}
		var debits, credits int64
		for j := 0; j < lineCount; j++ {
			amount := int64(1 + rng.Intn(100000))
			direction := models.DirectionDebit
			if rng.Intn(2) == 0 {
				direction = models.DirectionCredit
				credits += amount
			} else {
				debits += amount
			}
			group.Lines = append(group.Lines, models.LedgerLine{
				AccountCode: models.AccountGatewayClearing,
				Direction:   direction,
				AmountCents: amount,
			})
		}

		err := service.validate(group)
		if debits == credits && debits > 0 {
			assert.NoError(t, err)
		} else {
			assert.Error(t, err)
		}
	}
}

func TestPostingService_ListEntries(t *testing.T) {
	service, mock, cleanup := newPostingFixture(t)
	defer cleanup()

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	t.Run("date range filter", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM ledger_entries WHERE tenant_id = \\$1 AND occurred_at >= \\$2 AND occurred_at < \\$3").
			WithArgs(testTenant, from, to, 100).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "account_code", "direction", "amount_cents",
				"dedupe_key", "line_no", "reservation_id", "reference_id", "occurred_at", "posted_at"}).
				AddRow(int64(1), testTenant, models.AccountBank, models.DirectionDebit, int64(5000),
					"payout:po_1", 0, "", "po_1", from, from))

		entries, err := service.ListEntries(context.Background(), testTenant, from, to, "", 100)
		assert.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Equal(t, models.AccountBank, entries[0].AccountCode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("account code filter adds predicate", func(t *testing.T) {
		mock.ExpectQuery("AND account_code = \\$4 ORDER BY posted_at, id LIMIT \\$5").
			WithArgs(testTenant, from, to, models.AccountLodgingRevenue, 100).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "account_code", "direction", "amount_cents",
				"dedupe_key", "line_no", "reservation_id", "reference_id", "occurred_at", "posted_at"}))

		entries, err := service.ListEntries(context.Background(), testTenant, from, to, models.AccountLodgingRevenue, 100)
		assert.NoError(t, err)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("out-of-range limit falls back to the default", func(t *testing.T) {
		mock.ExpectQuery("ORDER BY posted_at, id LIMIT \\$4").
			WithArgs(testTenant, from, to, 500).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "account_code", "direction", "amount_cents",
				"dedupe_key", "line_no", "reservation_id", "reference_id", "occurred_at", "posted_at"}))

		entries, err := service.ListEntries(context.Background(), testTenant, from, to, "", 0)
		assert.NoError(t, err)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
