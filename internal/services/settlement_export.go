package services

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"

	"github.com/campreserv/ledger/internal/models"
)

// SettlementExportService renders reconciled payouts as ISO 20022 pacs.008
// credit-transfer advices for the accounting/export collaborator.
type SettlementExportService struct{}

func NewSettlementExportService() *SettlementExportService {
	return &SettlementExportService{}
}

// BuildPayoutAdvice creates the pacs.008 document for one reconciled payout.
// The net amount is expressed in major units as the message format requires.
func (ses *SettlementExportService) BuildPayoutAdvice(report *models.ReconciliationReport, currency, bankCode string) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if report.NetCents == 0 {
		return nil, fmt.Errorf("payout %s has no net movement to advise", report.PayoutID)
	}

	amount := float64(report.NetCents) / 100
	if amount < 0 {
		amount = -amount
	}

	msgID := uuid.New().String()
	now := time.Now()

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(report.PayoutID)}[0],
					EndToEndId: common.Max35Text(report.PayoutID),
					TxId:       &[]common.Max35Text{common.Max35Text(report.PayoutID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&now),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier("CAMPRESV")}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text("Campreserv Payments")}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(bankCode),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(report.TenantID)}[0],
				},
			},
		},
	}

	return doc, nil
}

// AdviceXML serializes an advice document with the XML declaration header.
func (ses *SettlementExportService) AdviceXML(doc *pacs_v08.FIToFICustomerCreditTransferV08) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
