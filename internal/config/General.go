package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// Port is the HTTP listen port.
	Port int
	// BaseURL is the externally visible base URL, used in payment manifests
	// and discovery documents.
	BaseURL string
	// LogLevel is the zerolog level name.
	LogLevel string

	// PaymentAddress is the EVM address that receives x402 payments.
	PaymentAddress string
	// PaymentNetwork is the x402 settlement network identifier.
	PaymentNetwork string
	// PriceUSDC is the per-request price in USDC.
	PriceUSDC string
	// FacilitatorURLs are the x402 facilitators tried in order for payment
	// verification.
	FacilitatorURLs []string
	// FreeMode disables payment enforcement entirely when true.
	FreeMode bool

	// CoinGeckoAPI is the base URL for price lookups.
	CoinGeckoAPI string
	// CoinGeckoAPIKey is the optional demo/pro API key.
	CoinGeckoAPIKey string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Every variable has a working default except PAYMENT_ADDRESS, which is
// required unless FREE_MODE is on.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	Port, err = getEnvAsIntOr("PORT", 8080)
	if err != nil {
		return err
	}

	BaseURL = getEnvOr("BASE_URL", fmt.Sprintf("http://localhost:%d", Port))
	BaseURL = strings.TrimRight(BaseURL, "/")

	LogLevel = getEnvOr("LOG_LEVEL", "info")

	FreeMode, err = getEnvAsBoolOr("FREE_MODE", false)
	if err != nil {
		return err
	}

	PaymentAddress = getEnvOr("PAYMENT_ADDRESS", "")
	if PaymentAddress == "" && !FreeMode {
		return errors.New("environment variable PAYMENT_ADDRESS is required unless FREE_MODE=true")
	}

	PaymentNetwork = getEnvOr("PAYMENT_NETWORK", "base")
	PriceUSDC = getEnvOr("PRICE_USDC", "0.05")

	facilitators := getEnvOr("FACILITATOR_URLS", "https://facilitator.x402.rs,https://x402.org/facilitator")
	FacilitatorURLs = FacilitatorURLs[:0]
	for _, raw := range strings.Split(facilitators, ",") {
		if url := strings.TrimRight(strings.TrimSpace(raw), "/"); url != "" {
			FacilitatorURLs = append(FacilitatorURLs, url)
		}
	}
	if len(FacilitatorURLs) == 0 && !FreeMode {
		return errors.New("environment variable FACILITATOR_URLS must contain at least one URL unless FREE_MODE=true")
	}

	CoinGeckoAPI = strings.TrimRight(getEnvOr("COINGECKO_API", "https://api.coingecko.com/api/v3"), "/")
	CoinGeckoAPIKey = getEnvOr("COINGECKO_API_KEY", "")

	if err := loadChainConfig(); err != nil {
		return err
	}

	log.Debug().
		Int("Port", Port).
		Str("BaseURL", BaseURL).
		Bool("FreeMode", FreeMode).
		Strs("FacilitatorURLs", FacilitatorURLs).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnvOr retrieves a string environment variable, falling back to the
// default when unset or empty.
func getEnvOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsIntOr retrieves an environment variable as an int with a default.
// Returns error if set but invalid.
func getEnvAsIntOr(key string, fallback int) (int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsBoolOr retrieves an environment variable as a bool with a default.
// Returns error if set but invalid.
func getEnvAsBoolOr(key string, fallback bool) (bool, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}
