package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/campreserv/ledger/internal/models"
)

func TestSettlementExportService_BuildPayoutAdvice(t *testing.T) {
	service := NewSettlementExportService()

	report := &models.ReconciliationReport{
		TenantID:     "tenant_1",
		PayoutID:     "po_1",
		NetCents:     968000,
		FeeCents:     32000,
		ReconciledAt: time.Now(),
	}

	t.Run("net movement becomes a single credit transfer", func(t *testing.T) {
		doc, err := service.BuildPayoutAdvice(report, "USD", "021000021")
		assert.NoError(t, err)
		assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
		assert.Equal(t, 9680.0, doc.GrpHdr.TtlIntrBkSttlmAmt.Value)
		assert.Len(t, doc.CdtTrfTxInf, 1)

		tx := doc.CdtTrfTxInf[0]
		assert.Equal(t, "po_1", string(tx.PmtId.EndToEndId))
		assert.Equal(t, 9680.0, tx.IntrBkSttlmAmt.Value)
		assert.Equal(t, "USD", string(tx.IntrBkSttlmAmt.Ccy))
		assert.Equal(t, "021000021", string(tx.CdtrAgt.FinInstnId.ClrSysMmbId.MmbId))
	})

	t.Run("negative net advises the absolute amount", func(t *testing.T) {
		negative := *report
		negative.NetCents = -4200

		doc, err := service.BuildPayoutAdvice(&negative, "USD", "")
		assert.NoError(t, err)
		assert.Equal(t, 42.0, doc.GrpHdr.TtlIntrBkSttlmAmt.Value)
	})

	t.Run("zero net has nothing to advise", func(t *testing.T) {
		empty := *report
		empty.NetCents = 0

		_, err := service.BuildPayoutAdvice(&empty, "USD", "")
		assert.Error(t, err)
	})
}

func TestSettlementExportService_AdviceXML(t *testing.T) {
	service := NewSettlementExportService()

	report := &models.ReconciliationReport{
		TenantID: "tenant_1",
		PayoutID: "po_1",
		NetCents: 968000,
	}

	doc, err := service.BuildPayoutAdvice(report, "USD", "021000021")
	assert.NoError(t, err)

	xmlData, err := service.AdviceXML(doc)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(xmlData, "<?xml"))
	assert.Contains(t, xmlData, "po_1")
	assert.Contains(t, xmlData, "USD")
}
