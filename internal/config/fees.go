package config

import (
	"os"
	"strconv"
)

// Fee modes: ABSORB charges the guest the base amount and the campground eats
// the fee at settlement; PASS adds the fee on top of the guest's charge.
const (
	FeeModeAbsorb = "ABSORB"
	FeeModePass   = "PASS"
)

type FeeConfig struct {
	PlatformFeeCents   int64
	PlatformFeePercent float64
	PlatformFeeMode    string
	GatewayFeePercent  float64
	GatewayFeeCents    int64
	GatewayFeeMode     string
}

func LoadFeeConfig() *FeeConfig {
	return &FeeConfig{
		PlatformFeeCents:   getEnvAsInt64("PLATFORM_FEE_CENTS", 200),
		PlatformFeePercent: getEnvAsFloat("PLATFORM_FEE_PERCENT", 0.0),
		PlatformFeeMode:    getEnv("PLATFORM_FEE_MODE", FeeModeAbsorb),
		GatewayFeePercent:  getEnvAsFloat("GATEWAY_FEE_PERCENT", 2.9),
		GatewayFeeCents:    getEnvAsInt64("GATEWAY_FEE_CENTS", 30),
		GatewayFeeMode:     getEnv("GATEWAY_FEE_MODE", FeeModeAbsorb),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}
