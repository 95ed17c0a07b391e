package datafetcher

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deganai/lp-estimator/internal/config"
	"github.com/deganai/lp-estimator/internal/types"
)

const (
	testPool   = "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc"
	testWETH   = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	testUSDC   = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	testChain  = 1
	wethAmount = "1000000000000000000000" // 1000 WETH in wei
	usdcAmount = "2000000000000"          // 2,000,000 USDC at 6 decimals
)

// bigWord renders a decimal amount as a 32-byte hex word.
func bigWord(t *testing.T, decimal string) string {
	t.Helper()
	v, ok := new(big.Int).SetString(decimal, 10)
	require.True(t, ok)
	return fmt.Sprintf("%064x", v)
}

func useTestRPC(t *testing.T, url string) {
	t.Helper()
	previous := config.ChainRPCs
	config.ChainRPCs = map[int]string{testChain: url}
	t.Cleanup(func() { config.ChainRPCs = previous })
}

func tokenCalls(t *testing.T) map[string]string {
	return map[string]string{
		testPool + "|" + selectorToken0: "0x" + addressWord(testWETH),
		testPool + "|" + selectorToken1: "0x" + addressWord(testUSDC),
		testWETH + "|" + selectorSymbol: dynamicString("WETH"),
		testWETH + "|" + selectorDecimals: "0x" + uintWord(18),
		testUSDC + "|" + selectorSymbol: dynamicString("USDC"),
		testUSDC + "|" + selectorDecimals: "0x" + uintWord(6),
	}
}

func TestGetPool_V2(t *testing.T) {
	calls := tokenCalls(t)
	calls[testPool+"|"+selectorGetReserves] = "0x" +
		bigWord(t, wethAmount) + bigWord(t, usdcAmount) + uintWord(1700000000)

	server := fakeRPC(t, calls)
	defer server.Close()
	useTestRPC(t, server.URL)

	pool, err := GetPool(context.Background(), testChain, testPool)
	require.NoError(t, err)

	assert.Equal(t, types.PoolTypeUniswapV2, pool.Type)
	assert.Equal(t, "WETH", pool.Token0.Symbol)
	assert.Equal(t, 18, pool.Token0.Decimals)
	assert.Equal(t, "USDC", pool.Token1.Symbol)
	assert.Equal(t, 6, pool.Token1.Decimals)
	assert.InDelta(t, 1000.0, pool.Reserve0, 1e-6)
	assert.InDelta(t, 2_000_000.0, pool.Reserve1, 1e-3)
	assert.InDelta(t, 0.003, pool.FeeTier, 1e-12)
}

func TestGetPool_V3(t *testing.T) {
	calls := tokenCalls(t)
	calls[testPool+"|"+selectorFee] = "0x" + uintWord(500)
	calls[testPool+"|"+selectorLiquidity] = "0x" + uintWord(123456789)
	calls[testWETH+"|"+callDataWithAddress(selectorBalanceOf, testPool)] = "0x" + bigWord(t, wethAmount)
	calls[testUSDC+"|"+callDataWithAddress(selectorBalanceOf, testPool)] = "0x" + bigWord(t, usdcAmount)

	server := fakeRPC(t, calls)
	defer server.Close()
	useTestRPC(t, server.URL)

	pool, err := GetPool(context.Background(), testChain, testPool)
	require.NoError(t, err)

	assert.Equal(t, types.PoolTypeUniswapV3, pool.Type)
	// fee() of 500 hundredths of a bip is the 0.05% tier.
	assert.InDelta(t, 0.0005, pool.FeeTier, 1e-12)
	assert.InDelta(t, 1000.0, pool.Reserve0, 1e-6)
	assert.InDelta(t, 2_000_000.0, pool.Reserve1, 1e-3)
}

func TestGetPool_UnknownVariant(t *testing.T) {
	// Token pair resolves but neither probe answers.
	server := fakeRPC(t, tokenCalls(t))
	defer server.Close()
	useTestRPC(t, server.URL)

	pool, err := GetPool(context.Background(), testChain, testPool)
	require.NoError(t, err)
	assert.Equal(t, types.PoolTypeUnknown, pool.Type)
}

func TestGetPool_NotAPool(t *testing.T) {
	server := fakeRPC(t, map[string]string{})
	defer server.Close()
	useTestRPC(t, server.URL)

	_, err := GetPool(context.Background(), testChain, testPool)
	assert.ErrorIs(t, err, ErrInvalidPoolData)
}

func TestGetPool_BadInputs(t *testing.T) {
	server := fakeRPC(t, tokenCalls(t))
	defer server.Close()
	useTestRPC(t, server.URL)

	_, err := GetPool(context.Background(), testChain, "0x1234")
	assert.ErrorIs(t, err, ErrInvalidPoolData)

	// Unsupported chain has no RPC endpoint configured.
	_, err = GetPool(context.Background(), 424242, testPool)
	assert.ErrorIs(t, err, ErrInvalidPoolData)
}
