package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/campreserv/ledger/internal/models"
)

const pqUniqueViolation = "23505"

// PostingGroup is one balanced set of debit/credit lines to be committed
// atomically under a tenant-namespaced dedupe key.
type PostingGroup struct {
	TenantID      string
	DedupeKey     string
	OccurredAt    time.Time
	ReservationID string
	ReferenceID   string
	Lines         []models.LedgerLine
}

// PostingService is the single write path to the general ledger. Every group
// it accepts balances to zero net and is gated by the GL period guard.
type PostingService struct {
	db      *sql.DB
	periods *GLPeriodService
}

func NewPostingService(db *sql.DB, periods *GLPeriodService) *PostingService {
	return &PostingService{db: db, periods: periods}
}

// Post validates and writes a posting group in its own transaction.
func (s *PostingService) Post(ctx context.Context, group PostingGroup) (*models.PostingResult, error) {
	if err := s.validate(group); err != nil {
		return nil, err
	}
	if err := s.periods.AssertOpen(ctx, group.TenantID, group.OccurredAt); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin posting tx: %w", err)
	}
	defer tx.Rollback()

	result, err := s.postLocked(tx, group)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit posting tx: %w", err)
	}
	return result, nil
}

// PostTx writes a posting group inside a caller-owned transaction so payment,
// balance, and ledger writes share one commit boundary.
func (s *PostingService) PostTx(ctx context.Context, tx *sql.Tx, group PostingGroup) (*models.PostingResult, error) {
	if err := s.validate(group); err != nil {
		return nil, err
	}
	if err := s.periods.AssertOpen(ctx, group.TenantID, group.OccurredAt); err != nil {
		return nil, err
	}
	return s.postLocked(tx, group)
}

func (s *PostingService) validate(group PostingGroup) error {
	if group.TenantID == "" || group.DedupeKey == "" {
		return errors.New("posting requires tenant id and dedupe key")
	}
	if len(group.Lines) < 2 {
		return errors.New("posting requires at least one debit and one credit line")
	}

	var debits, credits int64
	for _, line := range group.Lines {
		if line.AmountCents <= 0 {
			return fmt.Errorf("posting line amount must be positive, got %d", line.AmountCents)
		}
		switch line.Direction {
		case models.DirectionDebit:
			debits += line.AmountCents
		case models.DirectionCredit:
			credits += line.AmountCents
		default:
			return fmt.Errorf("unknown posting direction %q", line.Direction)
		}
	}
	if debits != credits {
		return &UnbalancedPostingError{DedupeKey: group.DedupeKey, DebitCents: debits, CreditCents: credits}
	}
	return nil
}

// postLocked looks up the dedupe group under a row lock, then inserts whatever
// lines are missing. A fully present group is a no-op; a half-written group
// from a prior partial failure is repaired by inserting only the absent lines.
func (s *PostingService) postLocked(tx *sql.Tx, group PostingGroup) (*models.PostingResult, error) {
	existing, err := s.lockGroup(tx, group.TenantID, group.DedupeKey)
	if err != nil {
		return nil, err
	}

	if len(existing) == len(group.Lines) {
		return &models.PostingResult{
			TenantID:      group.TenantID,
			DedupeKey:     group.DedupeKey,
			Entries:       existing,
			AlreadyPosted: true,
		}, nil
	}

	if len(existing) > 0 {
		log.Printf("[LEDGER] Partial posting group detected for tenant %s key %s: %d of %d lines, repairing",
			group.TenantID, group.DedupeKey, len(existing), len(group.Lines))
	}

	present := make(map[int]bool, len(existing))
	for _, entry := range existing {
		present[entry.LineNo] = true
	}

	postedAt := time.Now().UTC()
	entries := existing
	repaired := 0
	for i, line := range group.Lines {
		if present[i] {
			continue
		}
		entry := models.LedgerEntry{
			TenantID:      group.TenantID,
			AccountCode:   line.AccountCode,
			Direction:     line.Direction,
			AmountCents:   line.AmountCents,
			DedupeKey:     group.DedupeKey,
			LineNo:        i,
			ReservationID: group.ReservationID,
			ReferenceID:   group.ReferenceID,
			OccurredAt:    group.OccurredAt,
			PostedAt:      postedAt,
		}
		if err := s.insertEntry(tx, &entry); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
				// Lost a race with a concurrent replay of the same group; the
				// winner owns the rows, so let the caller retry into the no-op path.
				return nil, &RetryableError{Err: err}
			}
			return nil, fmt.Errorf("insert ledger entry %d: %w", i, err)
		}
		entries = append(entries, entry)
		if len(existing) > 0 {
			repaired++
		}
	}

	return &models.PostingResult{
		TenantID:      group.TenantID,
		DedupeKey:     group.DedupeKey,
		Entries:       entries,
		RepairedLines: repaired,
	}, nil
}

func (s *PostingService) lockGroup(tx *sql.Tx, tenantID, dedupeKey string) ([]models.LedgerEntry, error) {
	rows, err := tx.Query(`
		SELECT id, tenant_id, account_code, direction, amount_cents, dedupe_key, line_no,
		       COALESCE(reservation_id, ''), COALESCE(reference_id, ''), occurred_at, posted_at
		FROM ledger_entries
		WHERE tenant_id = $1 AND dedupe_key = $2
		ORDER BY line_no
		FOR UPDATE`, tenantID, dedupeKey)
	if err != nil {
		return nil, fmt.Errorf("lock posting group: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.AccountCode, &e.Direction, &e.AmountCents,
			&e.DedupeKey, &e.LineNo, &e.ReservationID, &e.ReferenceID, &e.OccurredAt, &e.PostedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostingService) insertEntry(tx *sql.Tx, entry *models.LedgerEntry) error {
	return tx.QueryRow(`
		INSERT INTO ledger_entries
		(tenant_id, account_code, direction, amount_cents, dedupe_key, line_no,
		 reservation_id, reference_id, occurred_at, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)
		RETURNING id`,
		entry.TenantID, entry.AccountCode, entry.Direction, entry.AmountCents,
		entry.DedupeKey, entry.LineNo, entry.ReservationID, entry.ReferenceID,
		entry.OccurredAt, entry.PostedAt).Scan(&entry.ID)
}

// ListEntries returns committed ledger rows for the export collaborator,
// filtered by date range and optional account code. Tenant-scoped.
func (s *PostingService) ListEntries(ctx context.Context, tenantID string, from, to time.Time, accountCode string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 5000 {
		limit = 500
	}
	query := `
		SELECT id, tenant_id, account_code, direction, amount_cents, dedupe_key, line_no,
		       COALESCE(reservation_id, ''), COALESCE(reference_id, ''), occurred_at, posted_at
		FROM ledger_entries
		WHERE tenant_id = $1 AND occurred_at >= $2 AND occurred_at < $3`
	args := []interface{}{tenantID, from, to}
	if accountCode != "" {
		query += ` AND account_code = $4`
		args = append(args, accountCode)
	}
	query += fmt.Sprintf(` ORDER BY posted_at, id LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.AccountCode, &e.Direction, &e.AmountCents,
			&e.DedupeKey, &e.LineNo, &e.ReservationID, &e.ReferenceID, &e.OccurredAt, &e.PostedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
