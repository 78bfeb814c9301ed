package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campreserv/ledger/internal/middleware"
	"github.com/campreserv/ledger/internal/services"
)

type PaylinkHandler struct {
	paylinks *services.PaylinkService
}

func NewPaylinkHandler(paylinks *services.PaylinkService) *PaylinkHandler {
	return &PaylinkHandler{paylinks: paylinks}
}

// GetPaylink returns the hosted payment link for a reservation's balance
// @Summary Get a reservation payment link
// @Tags reservations
// @Produce json
// @Param reservationId path string true "Reservation ID"
// @Success 200 {object} object{link=string,amountCents=int64}
// @Failure 404 {object} map[string]string
// @Router /reservations/{reservationId}/paylink [get]
func (ph *PaylinkHandler) GetPaylink(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	reservationID := chi.URLParam(r, "reservationId")

	link, amountCents, err := ph.paylinks.BuildLink(tenantID, reservationID)
	if err != nil {
		ph.sendError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"link":        link,
		"amountCents": amountCents,
	})
}

// GetPaylinkQR renders the payment link as a QR code PNG
// @Summary Get a reservation payment link QR code
// @Tags reservations
// @Produce png
// @Param reservationId path string true "Reservation ID"
// @Param size query int false "Image size in pixels (default 256)"
// @Success 200 {file} binary
// @Failure 404 {object} map[string]string
// @Router /reservations/{reservationId}/paylink/qr [get]
func (ph *PaylinkHandler) GetPaylinkQR(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	reservationID := chi.URLParam(r, "reservationId")

	size := 256
	if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
		if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 1024 {
			size = s
		}
	}

	png, err := ph.paylinks.QRPNG(tenantID, reservationID, size)
	if err != nil {
		ph.sendError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (ph *PaylinkHandler) sendError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrReservationNotFound) {
		http.Error(w, "Reservation not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusUnprocessableEntity)
}
