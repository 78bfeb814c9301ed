package services

import (
	"math"

	"github.com/campreserv/ledger/internal/config"
)

// FeeCalculation splits a requested base amount into the amount actually
// charged to the guest plus platform and gateway fee components.
type FeeCalculation struct {
	BaseAmountCents     int64 `json:"base_amount_cents"`
	PlatformFeeCents    int64 `json:"platform_fee_cents"`
	GatewayFeeCents     int64 `json:"gateway_fee_cents"`
	PassedPlatformCents int64 `json:"passed_platform_cents"`
	PassedGatewayCents  int64 `json:"passed_gateway_cents"`
	ChargeAmountCents   int64 `json:"charge_amount_cents"`
}

// CalculateFees computes the fee split for a base amount. Percentages round
// half away from zero to whole cents.
func CalculateFees(baseAmountCents int64, cfg *config.FeeConfig) FeeCalculation {
	platformFee := cfg.PlatformFeeCents + roundPercent(baseAmountCents, cfg.PlatformFeePercent)
	gatewayFee := cfg.GatewayFeeCents + roundPercent(baseAmountCents, cfg.GatewayFeePercent)

	calc := FeeCalculation{
		BaseAmountCents:   baseAmountCents,
		PlatformFeeCents:  platformFee,
		GatewayFeeCents:   gatewayFee,
		ChargeAmountCents: baseAmountCents,
	}
	if cfg.PlatformFeeMode == config.FeeModePass {
		calc.PassedPlatformCents = platformFee
		calc.ChargeAmountCents += platformFee
	}
	if cfg.GatewayFeeMode == config.FeeModePass {
		calc.PassedGatewayCents = gatewayFee
		calc.ChargeAmountCents += gatewayFee
	}
	return calc
}

func roundPercent(amountCents int64, percent float64) int64 {
	return int64(math.Round(float64(amountCents) * percent / 100))
}
