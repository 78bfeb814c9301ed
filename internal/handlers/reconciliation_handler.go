package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campreserv/ledger/internal/middleware"
	"github.com/campreserv/ledger/internal/services"
)

type ReconciliationHandler struct {
	recon  *services.ReconciliationService
	export *services.SettlementExportService
}

func NewReconciliationHandler(recon *services.ReconciliationService, export *services.SettlementExportService) *ReconciliationHandler {
	return &ReconciliationHandler{recon: recon, export: export}
}

// ReconcilePayout runs reconciliation for one payout
// @Summary Reconcile a payout
// @Description Fetch the payout's settlement lines, match them against internal records, and post the net movement
// @Tags reconciliation
// @Produce json
// @Param payoutId path string true "Gateway payout ID"
// @Success 200 {object} models.ReconciliationReport
// @Failure 500 {object} map[string]string
// @Router /reconciliation/payouts/{payoutId} [post]
func (rh *ReconciliationHandler) ReconcilePayout(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	payoutID := chi.URLParam(r, "payoutId")
	if payoutID == "" {
		http.Error(w, "payoutId is required", http.StatusBadRequest)
		return
	}

	report, err := rh.recon.Reconcile(r.Context(), tenantID, payoutID)
	if err != nil {
		log.Printf("[RECONCILE] Payout %s failed for tenant %s: %v", payoutID, tenantID, err)
		http.Error(w, "Reconciliation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// ExportPayoutAdvice renders a reconciled payout as an ISO 20022 advice
// @Summary Export payout settlement advice
// @Description Reconcile the payout and return a pacs.008 settlement advice document
// @Tags reconciliation
// @Produce json
// @Param payoutId path string true "Gateway payout ID"
// @Param currency query string false "ISO currency code (default USD)"
// @Param bankCode query string false "Receiving bank clearing code"
// @Success 200 {object} object{payoutId=string,messageType=string,xml=string}
// @Failure 500 {object} map[string]string
// @Router /reconciliation/payouts/{payoutId}/advice [post]
func (rh *ReconciliationHandler) ExportPayoutAdvice(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	payoutID := chi.URLParam(r, "payoutId")
	if payoutID == "" {
		http.Error(w, "payoutId is required", http.StatusBadRequest)
		return
	}

	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = "USD"
	}

	report, err := rh.recon.Reconcile(r.Context(), tenantID, payoutID)
	if err != nil {
		log.Printf("[RECONCILE] Payout %s failed for tenant %s: %v", payoutID, tenantID, err)
		http.Error(w, "Reconciliation failed", http.StatusInternalServerError)
		return
	}

	doc, err := rh.export.BuildPayoutAdvice(report, currency, r.URL.Query().Get("bankCode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	xmlData, err := rh.export.AdviceXML(doc)
	if err != nil {
		http.Error(w, "Failed to render advice", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"payoutId":    payoutID,
		"messageType": "pacs.008.001.08",
		"xml":         xmlData,
	})
}
