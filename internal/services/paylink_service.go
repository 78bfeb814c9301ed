package services

import (
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/viper"
)

// PaylinkService builds guest-facing "scan to pay balance" links and renders
// them as QR codes for printed folios and front-desk displays.
type PaylinkService struct {
	balances *BalanceService
}

func NewPaylinkService(balances *BalanceService) *PaylinkService {
	return &PaylinkService{balances: balances}
}

// BuildLink returns the hosted payment URL for a reservation's outstanding
// balance. Returns an error when nothing is owed.
func (pls *PaylinkService) BuildLink(tenantID, reservationID string) (string, int64, error) {
	snap, err := pls.balances.Snapshot(tenantID, reservationID)
	if err != nil {
		return "", 0, err
	}
	if snap.BalanceAmountCents <= 0 {
		return "", 0, fmt.Errorf("reservation %s has no outstanding balance", reservationID)
	}

	base := viper.GetString("paylink.base_url")
	if base == "" {
		base = "https://pay.campreserv.com"
	}

	link := fmt.Sprintf("%s/r/%s/%s?amount=%d",
		base, url.PathEscape(tenantID), url.PathEscape(reservationID), snap.BalanceAmountCents)
	return link, snap.BalanceAmountCents, nil
}

// QRPNG renders the payment link as a PNG QR code.
func (pls *PaylinkService) QRPNG(tenantID, reservationID string, size int) ([]byte, error) {
	link, _, err := pls.BuildLink(tenantID, reservationID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(link, qrcode.Medium, size)
}
