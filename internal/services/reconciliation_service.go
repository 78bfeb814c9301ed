package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/campreserv/ledger/internal/models"
)

// SettlementFeed is the slice of the gateway client reconciliation depends on.
type SettlementFeed interface {
	ListPayoutTransactions(ctx context.Context, payoutID string) ([]models.SettlementLine, error)
}

// ReconciliationService matches a payout's settlement lines against internal
// payment records and posts the payout's net cash movement. The external fetch
// completes before any internal write begins, and each line is applied in its
// own short transaction, so no lock spans the gateway pagination loop.
type ReconciliationService struct {
	db                 *sql.DB
	feed               SettlementFeed
	posting            *PostingService
	driftWarnCents     int64
	driftCriticalCents int64
}

func NewReconciliationService(db *sql.DB, feed SettlementFeed, posting *PostingService, driftThresholdCents int64) *ReconciliationService {
	if driftThresholdCents <= 0 {
		driftThresholdCents = 100
	}
	return &ReconciliationService{
		db:                 db,
		feed:               feed,
		posting:            posting,
		driftWarnCents:     driftThresholdCents,
		driftCriticalCents: driftThresholdCents * 10,
	}
}

// Reconcile pulls the full settlement feed for one payout, upserts a
// comparison row per line, and posts one balanced reconciling entry for the
// payout's net. Re-running is a no-op for lines already matched and for the
// posting, which dedupes on the payout id.
func (rs *ReconciliationService) Reconcile(ctx context.Context, tenantID, payoutID string) (*models.ReconciliationReport, error) {
	lines, err := rs.feed.ListPayoutTransactions(ctx, payoutID)
	if err != nil {
		return nil, fmt.Errorf("fetch settlement lines for payout %s: %w", payoutID, err)
	}

	report := &models.ReconciliationReport{
		TenantID:     tenantID,
		PayoutID:     payoutID,
		TotalLines:   len(lines),
		ReconciledAt: time.Now().UTC(),
	}

	for _, line := range lines {
		matched, drift, err := rs.applyLine(ctx, tenantID, payoutID, line)
		if err != nil {
			return nil, err
		}
		report.GrossCents += line.AmountCents
		report.FeeCents += line.FeeCents
		report.NetCents += line.NetCents
		if matched {
			report.MatchedLines++
		} else {
			report.UnmatchedLines++
			report.DriftCents += drift
		}
	}

	if report.NetCents != 0 || report.FeeCents != 0 {
		dedupeKey := "payout:" + payoutID
		result, err := rs.posting.Post(ctx, PostingGroup{
			TenantID:    tenantID,
			DedupeKey:   dedupeKey,
			OccurredAt:  report.ReconciledAt,
			ReferenceID: payoutID,
			Lines:       payoutPostingLines(report.NetCents, report.FeeCents),
		})
		if err != nil {
			return nil, fmt.Errorf("post payout %s settlement: %w", payoutID, err)
		}
		report.PostingDedupeKey = dedupeKey
		if result.AlreadyPosted {
			log.Printf("[RECONCILE] Payout %s settlement already posted, skipping", payoutID)
		}
	}

	report.Alert = rs.driftAlert(report)
	return report, nil
}

// applyLine upserts the comparison row for one settlement line in a short
// transaction. Drift is data, not an error: an unmatched line is flagged and
// surfaced in the report rather than auto-corrected.
func (rs *ReconciliationService) applyLine(ctx context.Context, tenantID, payoutID string, line models.SettlementLine) (bool, int64, error) {
	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("begin line tx: %w", err)
	}
	defer tx.Rollback()

	matched, drift, err := rs.matchLine(tx, tenantID, line)
	if err != nil {
		return false, 0, err
	}

	if _, err := tx.Exec(`
		INSERT INTO payout_lines
		(tenant_id, payout_id, balance_transaction_id, line_type, source_reference,
		 gross_cents, fee_cents, net_cents, matched, drift_cents, reconciled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (tenant_id, balance_transaction_id) DO UPDATE
		SET matched = EXCLUDED.matched, drift_cents = EXCLUDED.drift_cents,
		    reconciled_at = EXCLUDED.reconciled_at`,
		tenantID, payoutID, line.ID, line.Type, line.Source,
		line.AmountCents, line.FeeCents, line.NetCents, matched, drift); err != nil {
		return false, 0, fmt.Errorf("upsert payout line %s: %w", line.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("commit line tx: %w", err)
	}
	return matched, drift, nil
}

func (rs *ReconciliationService) matchLine(tx *sql.Tx, tenantID string, line models.SettlementLine) (bool, int64, error) {
	switch line.Type {
	case "stripe_fee", "fee", "payout":
		// Gateway-originated lines with no internal payment counterpart.
		return true, 0, nil
	}

	var amountCents int64
	err := tx.QueryRow(`
		SELECT amount_cents FROM payments
		WHERE tenant_id = $1 AND gateway_reference_id = $2`,
		tenantID, line.Source).Scan(&amountCents)
	if err == sql.ErrNoRows {
		return false, line.NetCents, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("match settlement line %s: %w", line.ID, err)
	}

	expected := amountCents
	if line.AmountCents < 0 {
		expected = -amountCents // refunds and chargebacks settle negative
	}
	if drift := line.AmountCents - expected; drift != 0 {
		return false, drift, nil
	}
	return true, 0, nil
}

// payoutPostingLines builds the balanced reconciling entry for the payout's
// net cash movement plus any gateway fees absorbed this period. A net-negative
// payout (dispute-heavy period) flows money back to the gateway, so bank and
// clearing swap sides relative to a net-positive payout.
func payoutPostingLines(netCents, feeCents int64) []models.LedgerLine {
	var lines []models.LedgerLine
	switch {
	case netCents > 0:
		lines = append(lines,
			models.LedgerLine{AccountCode: models.AccountBank, Direction: models.DirectionDebit, AmountCents: netCents},
			models.LedgerLine{AccountCode: models.AccountGatewayClearing, Direction: models.DirectionCredit, AmountCents: netCents})
	case netCents < 0:
		lines = append(lines,
			models.LedgerLine{AccountCode: models.AccountGatewayClearing, Direction: models.DirectionDebit, AmountCents: -netCents},
			models.LedgerLine{AccountCode: models.AccountBank, Direction: models.DirectionCredit, AmountCents: -netCents})
	}
	if feeCents > 0 {
		lines = append(lines,
			models.LedgerLine{AccountCode: models.AccountProcessingFees, Direction: models.DirectionDebit, AmountCents: feeCents},
			models.LedgerLine{AccountCode: models.AccountGatewayClearing, Direction: models.DirectionCredit, AmountCents: feeCents})
	}
	return lines
}

func (rs *ReconciliationService) driftAlert(report *models.ReconciliationReport) *models.DriftAlert {
	drift := report.DriftCents
	if drift < 0 {
		drift = -drift
	}
	if drift < rs.driftWarnCents {
		return nil
	}
	severity := models.DriftSeverityWarning
	if drift >= rs.driftCriticalCents {
		severity = models.DriftSeverityCritical
	}
	log.Printf("[RECONCILE] Drift of %d cents on payout %s for tenant %s (%s)",
		report.DriftCents, report.PayoutID, report.TenantID, severity)
	return &models.DriftAlert{
		PayoutID:   report.PayoutID,
		TenantID:   report.TenantID,
		DriftCents: report.DriftCents,
		Severity:   severity,
	}
}
