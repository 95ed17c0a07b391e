package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PAYMENT_ADDRESS", "0x1111111111111111111111111111111111111111")

	err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, Port)
	assert.Equal(t, "http://localhost:8080", BaseURL)
	assert.Equal(t, "info", LogLevel)
	assert.Equal(t, "base", PaymentNetwork)
	assert.Equal(t, "0.05", PriceUSDC)
	assert.False(t, FreeMode)
	assert.Equal(t, []string{"https://facilitator.x402.rs", "https://x402.org/facilitator"}, FacilitatorURLs)
	assert.Equal(t, "https://api.coingecko.com/api/v3", CoinGeckoAPI)
}

func TestLoadConfig_PaymentAddressRequired(t *testing.T) {
	t.Setenv("PAYMENT_ADDRESS", "")
	t.Setenv("FREE_MODE", "")

	err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMENT_ADDRESS")
}

func TestLoadConfig_FreeModeSkipsPaymentAddress(t *testing.T) {
	t.Setenv("PAYMENT_ADDRESS", "")
	t.Setenv("FREE_MODE", "true")

	err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, FreeMode)
	assert.Empty(t, PaymentAddress)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PAYMENT_ADDRESS", "0x2222222222222222222222222222222222222222")
	t.Setenv("PORT", "9090")
	t.Setenv("BASE_URL", "https://lp.example.com/")
	t.Setenv("FACILITATOR_URLS", " https://facilitator.one/ , https://facilitator.two ")
	t.Setenv("PAYMENT_NETWORK", "base-sepolia")
	t.Setenv("PRICE_USDC", "0.10")

	err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, Port)
	assert.Equal(t, "https://lp.example.com", BaseURL, "trailing slash should be stripped")
	assert.Equal(t, []string{"https://facilitator.one", "https://facilitator.two"}, FacilitatorURLs)
	assert.Equal(t, "base-sepolia", PaymentNetwork)
	assert.Equal(t, "0.10", PriceUSDC)
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	t.Setenv("PAYMENT_ADDRESS", "0x1111111111111111111111111111111111111111")
	t.Setenv("PORT", "not-a-port")

	err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestLoadConfig_InvalidFreeMode(t *testing.T) {
	t.Setenv("FREE_MODE", "maybe")

	err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FREE_MODE")
}

func TestChainRPCOverride(t *testing.T) {
	t.Setenv("PAYMENT_ADDRESS", "0x1111111111111111111111111111111111111111")
	t.Setenv("ETHEREUM_RPC_URL", "https://my-private-node.example.com")

	err := LoadConfig()
	require.NoError(t, err)

	url, err := RPCForChain(1)
	require.NoError(t, err)
	assert.Equal(t, "https://my-private-node.example.com", url)

	// Chains without overrides keep their defaults.
	url, err = RPCForChain(8453)
	require.NoError(t, err)
	assert.Equal(t, "https://base.llamarpc.com", url)
}

func TestRPCForChain_Unsupported(t *testing.T) {
	t.Setenv("PAYMENT_ADDRESS", "0x1111111111111111111111111111111111111111")
	require.NoError(t, LoadConfig())

	_, err := RPCForChain(999999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestPlatformForChain(t *testing.T) {
	platform, err := PlatformForChain(137)
	require.NoError(t, err)
	assert.Equal(t, "polygon-pos", platform)

	_, err = PlatformForChain(2)
	require.Error(t, err)
}
