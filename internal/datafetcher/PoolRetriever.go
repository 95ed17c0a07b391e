/*
This file resolves an on-chain pool into typed metadata: token pair, decimals,
symbols, reserves, fee tier, and AMM variant. Detection is probe based: a pool
that answers getReserves() is a V2-style pair, one that answers fee() and
liquidity() is a V3 pool. Anything that answers neither is reported unknown
rather than guessed at.
*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/deganai/lp-estimator/internal/config"
	"github.com/deganai/lp-estimator/internal/logger"
	"github.com/deganai/lp-estimator/internal/types"
	"github.com/deganai/lp-estimator/internal/utils"
)

var poolLogger = logger.GetForComponent("pool_retriever")

var ErrInvalidPoolData = errors.New("invalid pool data")
var ErrMissingCriticalData = errors.New("missing critical pool data for financial calculations")

// OnChainPool is the fully resolved on-chain state of a pool. Reserves are
// normalized to human units; FeeTier is a decimal fraction (0.003 for 0.3%).
type OnChainPool struct {
	Address  string
	ChainID  int
	Type     types.PoolType
	Token0   types.Token
	Token1   types.Token
	Reserve0 float64
	Reserve1 float64
	FeeTier  float64
}

// GetPool fetches and validates everything the estimator needs about a pool.
// Returns error if any required read fails - no partial results with financial data.
func GetPool(ctx context.Context, chainID int, poolAddress string) (OnChainPool, error) {
	poolLogger.Info().Int("chainID", chainID).Str("pool", poolAddress).Msg("Starting strict pool retrieval")

	if !ValidAddress(poolAddress) {
		return OnChainPool{}, errors.Join(ErrInvalidPoolData, fmt.Errorf("malformed pool address %q", poolAddress))
	}

	rpcURL, err := config.RPCForChain(chainID)
	if err != nil {
		return OnChainPool{}, errors.Join(ErrInvalidPoolData, err)
	}

	pool := OnChainPool{
		Address: strings.ToLower(poolAddress),
		ChainID: chainID,
	}

	// Every supported variant exposes the token pair; a contract without it
	// is not a pool at all.
	pool.Token0.Address, err = fetchTokenAddress(ctx, rpcURL, pool.Address, selectorToken0)
	if err != nil {
		return OnChainPool{}, errors.Join(ErrInvalidPoolData, fmt.Errorf("token0 read failed: %w", err))
	}
	pool.Token1.Address, err = fetchTokenAddress(ctx, rpcURL, pool.Address, selectorToken1)
	if err != nil {
		return OnChainPool{}, errors.Join(ErrInvalidPoolData, fmt.Errorf("token1 read failed: %w", err))
	}
	if pool.Token0.Address == pool.Token1.Address {
		return OnChainPool{}, errors.Join(ErrInvalidPoolData, errors.New("token0 and token1 are the same contract"))
	}

	if err := fetchTokenMetadata(ctx, rpcURL, &pool.Token0); err != nil {
		return OnChainPool{}, errors.Join(ErrMissingCriticalData, fmt.Errorf("token0 metadata failed: %w", err))
	}
	if err := fetchTokenMetadata(ctx, rpcURL, &pool.Token1); err != nil {
		return OnChainPool{}, errors.Join(ErrMissingCriticalData, fmt.Errorf("token1 metadata failed: %w", err))
	}

	if err := detectPoolVariant(ctx, rpcURL, &pool); err != nil {
		return OnChainPool{}, err
	}

	if err := validatePool(pool); err != nil {
		return OnChainPool{}, errors.Join(ErrInvalidPoolData, err)
	}

	poolLogger.Info().
		Str("pool", pool.Address).
		Str("type", string(pool.Type)).
		Str("token0", pool.Token0.Symbol).
		Str("token1", pool.Token1.Symbol).
		Float64("reserve0", pool.Reserve0).
		Float64("reserve1", pool.Reserve1).
		Float64("feeTier", pool.FeeTier).
		Msg("Successfully retrieved and validated pool")

	return pool, nil
}

// detectPoolVariant probes the pool ABI: V2 first, then V3. On a V3 match the
// reserves come from the tokens' balanceOf since V3 has no getReserves.
func detectPoolVariant(ctx context.Context, rpcURL string, pool *OnChainPool) error {
	reservesResult, v2Err := EthCall(ctx, rpcURL, pool.Address, selectorGetReserves)
	if v2Err == nil {
		words, err := resultWords(reservesResult)
		if err != nil || len(words) < 2 {
			return errors.Join(ErrInvalidPoolData, fmt.Errorf("malformed getReserves result: %v", err))
		}
		pool.Reserve0, err = utils.HexWordToFloat64("0x"+words[0], pool.Token0.Decimals)
		if err != nil {
			return errors.Join(ErrInvalidPoolData, fmt.Errorf("reserve0 normalization failed: %w", err))
		}
		pool.Reserve1, err = utils.HexWordToFloat64("0x"+words[1], pool.Token1.Decimals)
		if err != nil {
			return errors.Join(ErrInvalidPoolData, fmt.Errorf("reserve1 normalization failed: %w", err))
		}
		pool.Type = types.PoolTypeUniswapV2
		pool.FeeTier = 0.003
		return nil
	}

	feeResult, v3Err := EthCall(ctx, rpcURL, pool.Address, selectorFee)
	if v3Err == nil {
		words, err := resultWords(feeResult)
		if err != nil || len(words) != 1 {
			return errors.Join(ErrInvalidPoolData, fmt.Errorf("malformed fee result: %v", err))
		}
		feeUnits, err := strconv.ParseUint(words[0], 16, 32)
		if err != nil {
			return errors.Join(ErrInvalidPoolData, fmt.Errorf("fee word is not a uint24: %s", words[0]))
		}

		// Confirm the V3 shape before trusting the fee read.
		if _, err := EthCall(ctx, rpcURL, pool.Address, selectorLiquidity); err != nil {
			return errors.Join(ErrInvalidPoolData, fmt.Errorf("pool answers fee() but not liquidity(): %w", err))
		}

		pool.Reserve0, err = fetchTokenBalance(ctx, rpcURL, pool.Token0, pool.Address)
		if err != nil {
			return errors.Join(ErrMissingCriticalData, fmt.Errorf("token0 balance read failed: %w", err))
		}
		pool.Reserve1, err = fetchTokenBalance(ctx, rpcURL, pool.Token1, pool.Address)
		if err != nil {
			return errors.Join(ErrMissingCriticalData, fmt.Errorf("token1 balance read failed: %w", err))
		}

		pool.Type = types.PoolTypeUniswapV3
		// fee() returns hundredths of a bip: 3000 means 0.3%.
		pool.FeeTier = float64(feeUnits) / 1_000_000
		return nil
	}

	poolLogger.Warn().
		Str("pool", pool.Address).
		AnErr("v2Probe", v2Err).
		AnErr("v3Probe", v3Err).
		Msg("Pool answers neither V2 nor V3 probes")

	pool.Type = types.PoolTypeUnknown

	// The caller may still name the variant explicitly (Balancer and Curve
	// pools answer neither probe), so read token balances for reserves on a
	// best-effort basis.
	if reserve0, err := fetchTokenBalance(ctx, rpcURL, pool.Token0, pool.Address); err == nil {
		pool.Reserve0 = reserve0
	}
	if reserve1, err := fetchTokenBalance(ctx, rpcURL, pool.Token1, pool.Address); err == nil {
		pool.Reserve1 = reserve1
	}
	return nil
}

// fetchTokenAddress reads a token address view such as token0().
func fetchTokenAddress(ctx context.Context, rpcURL, pool, selector string) (string, error) {
	result, err := EthCall(ctx, rpcURL, pool, selector)
	if err != nil {
		return "", err
	}
	words, err := resultWords(result)
	if err != nil || len(words) != 1 {
		return "", fmt.Errorf("expected a single address word: %v", err)
	}
	return addressFromWord(words[0])
}

// fetchTokenMetadata fills in symbol and decimals for a token.
func fetchTokenMetadata(ctx context.Context, rpcURL string, token *types.Token) error {
	symbolResult, err := EthCall(ctx, rpcURL, token.Address, selectorSymbol)
	if err != nil {
		return fmt.Errorf("symbol read failed: %w", err)
	}
	token.Symbol, err = stringFromResult(symbolResult)
	if err != nil {
		return err
	}
	if strings.TrimSpace(token.Symbol) == "" {
		return errors.New("token has empty symbol")
	}

	decimalsResult, err := EthCall(ctx, rpcURL, token.Address, selectorDecimals)
	if err != nil {
		return fmt.Errorf("decimals read failed: %w", err)
	}
	words, err := resultWords(decimalsResult)
	if err != nil || len(words) != 1 {
		return fmt.Errorf("expected a single decimals word: %v", err)
	}
	decimals, err := strconv.ParseUint(words[0], 16, 8)
	if err != nil {
		return fmt.Errorf("decimals word is not a uint8: %s", words[0])
	}
	if decimals > 18 {
		return fmt.Errorf("token decimals %d outside supported range", decimals)
	}
	token.Decimals = int(decimals)
	return nil
}

// fetchTokenBalance reads balanceOf(holder) normalized to human units.
func fetchTokenBalance(ctx context.Context, rpcURL string, token types.Token, holder string) (float64, error) {
	result, err := EthCall(ctx, rpcURL, token.Address, callDataWithAddress(selectorBalanceOf, holder))
	if err != nil {
		return 0, err
	}
	words, err := resultWords(result)
	if err != nil || len(words) != 1 {
		return 0, fmt.Errorf("expected a single balance word: %v", err)
	}
	return utils.HexWordToFloat64("0x"+words[0], token.Decimals)
}

// validatePool enforces the invariants every downstream consumer relies on.
func validatePool(pool OnChainPool) error {
	values := []struct {
		value float64
		name  string
	}{
		{pool.Reserve0, "reserve0"},
		{pool.Reserve1, "reserve1"},
		{pool.FeeTier, "fee tier"},
	}
	for _, v := range values {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return fmt.Errorf("%s is not finite: %f", v.name, v.value)
		}
		if v.value < 0 {
			return fmt.Errorf("%s cannot be negative: %f", v.name, v.value)
		}
	}
	if pool.Type != types.PoolTypeUnknown && pool.Reserve0 == 0 && pool.Reserve1 == 0 {
		return errors.New("pool has zero reserves on both sides")
	}
	if pool.FeeTier > 0.1 {
		return fmt.Errorf("fee tier %f is implausibly high", pool.FeeTier)
	}
	return nil
}
