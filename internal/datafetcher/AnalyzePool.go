/*
This file orchestrates the pool-based estimate path: on-chain pool state plus
price history resolved into a PoolContext the computation core can consume.
Degraded data never degrades silently: every fallback taken along the way is
recorded in the analysis notes that ship with the response.
*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/deganai/lp-estimator/internal/analyzer"
	"github.com/deganai/lp-estimator/internal/logger"
	"github.com/deganai/lp-estimator/internal/types"
)

var analyzeLogger = logger.GetForComponent("pool_analyzer")

// DefaultWindowHours is the observation window assumed when the request does
// not name one.
const DefaultWindowHours = 24.0

// PoolRequest is the resolved input of the pool-based path.
type PoolRequest struct {
	ChainID      int
	PoolAddress  string
	WindowHours  float64
	PoolType     types.PoolType // optional override; probes cannot see Balancer/Curve/Sushi
	TokenWeights [2]float64     // used for weighted pools; zero value means 50/50
}

// PoolAnalysis is everything the web layer needs to compute and report a
// pool-based estimate.
type PoolAnalysis struct {
	Context     types.PoolContext
	Info        types.PoolInfo
	PriceRatio0 float64
	PriceRatio1 float64
	Notes       []string
}

// AnalyzePool resolves a pool request into a PoolAnalysis: on-chain metadata,
// reserves, current and window-start prices, TVL, and the estimated window
// volume.
func AnalyzePool(ctx context.Context, req PoolRequest) (PoolAnalysis, error) {
	windowHours := req.WindowHours
	if windowHours == 0 {
		windowHours = DefaultWindowHours
	}
	if windowHours < 0 || math.IsNaN(windowHours) || math.IsInf(windowHours, 0) {
		return PoolAnalysis{}, errors.Join(analyzer.ErrInvalidInput, errors.New("window hours must be finite and positive"))
	}

	pool, err := GetPool(ctx, req.ChainID, req.PoolAddress)
	if err != nil {
		return PoolAnalysis{}, err
	}

	var notes []string

	poolType := pool.Type
	if req.PoolType != "" && req.PoolType != types.PoolTypeUnknown {
		if pool.Type != types.PoolTypeUnknown && req.PoolType != pool.Type {
			notes = append(notes, fmt.Sprintf("pool type %q supplied by request overrides probed type %q", req.PoolType, pool.Type))
		}
		poolType = req.PoolType
	}
	if poolType == types.PoolTypeUnknown {
		return PoolAnalysis{}, errors.Join(analyzer.ErrUnsupportedPoolType,
			fmt.Errorf("pool %s answers neither V2 nor V3 probes and no pool type was supplied", pool.Address))
	}

	feeTier := pool.FeeTier
	if feeTier == 0 {
		feeTier = defaultFeeTier(poolType)
		notes = append(notes, fmt.Sprintf("fee tier not readable on-chain, assuming %s default of %g%%", poolType, feeTier*100))
	}

	prices, err := FetchCurrentPrices(ctx, req.ChainID, []string{pool.Token0.Address, pool.Token1.Address})
	if err != nil {
		return PoolAnalysis{}, err
	}
	pool.Token0.PriceUSD = prices[pool.Token0.Address]
	pool.Token1.PriceUSD = prices[pool.Token1.Address]

	tvlUSD := pool.Reserve0*pool.Token0.PriceUSD + pool.Reserve1*pool.Token1.PriceUSD
	if tvlUSD <= 0 || math.IsNaN(tvlUSD) || math.IsInf(tvlUSD, 0) {
		return PoolAnalysis{}, errors.Join(ErrInvalidPoolData, fmt.Errorf("pool TVL must be finite and positive, got %f", tvlUSD))
	}

	ratio0, note0 := windowPriceRatio(ctx, req.ChainID, pool.Token0, windowHours)
	ratio1, note1 := windowPriceRatio(ctx, req.ChainID, pool.Token1, windowHours)
	if note0 != "" {
		notes = append(notes, note0)
	}
	if note1 != "" {
		notes = append(notes, note1)
	}

	// No per-pool volume feed: assume the pool turns its TVL over once per
	// day and scale to the window. Always surfaced as an estimate.
	volumeWindowUSD := tvlUSD * windowHours / 24
	notes = append(notes, "window volume estimated from TVL turnover heuristic, not observed trades")

	// Supplied weights are accepted in any scale (80/20 or 0.8/0.2) and
	// normalized to sum to 1 here, so PoolContext always carries fractions.
	weights := req.TokenWeights
	if weights == ([2]float64{}) {
		weights = [2]float64{0.5, 0.5}
	} else {
		sum := weights[0] + weights[1]
		if weights[0] < 0 || weights[1] < 0 || sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
			return PoolAnalysis{}, errors.Join(analyzer.ErrInvalidInput,
				fmt.Errorf("token weights must be non-negative with a positive finite sum, got %v", weights))
		}
		weights[0] /= sum
		weights[1] /= sum
	}

	analysis := PoolAnalysis{
		Context: types.PoolContext{
			PoolAddress:     pool.Address,
			ChainID:         pool.ChainID,
			PoolType:        poolType,
			TokenWeights:    weights,
			FeeTierPercent:  feeTier * 100,
			TvlUSD:          tvlUSD,
			VolumeWindowUSD: volumeWindowUSD,
			WindowHours:     windowHours,
		},
		Info: types.PoolInfo{
			Type:           poolType,
			Token0:         pool.Token0.Symbol,
			Token1:         pool.Token1.Symbol,
			FeeTierPercent: feeTier * 100,
			TvlUSD:         tvlUSD,
		},
		PriceRatio0: ratio0,
		PriceRatio1: ratio1,
		Notes:       notes,
	}

	analyzeLogger.Info().
		Str("pool", pool.Address).
		Str("type", string(poolType)).
		Float64("tvlUSD", tvlUSD).
		Float64("volumeWindowUSD", volumeWindowUSD).
		Float64("priceRatio0", ratio0).
		Float64("priceRatio1", ratio1).
		Int("notes", len(notes)).
		Msg("Pool analysis complete")

	return analysis, nil
}

// windowPriceRatio computes current/window-start price for a token. Missing
// history falls back to an unchanged price, reported in the returned note.
func windowPriceRatio(ctx context.Context, chainID int, token types.Token, windowHours float64) (float64, string) {
	daysBack := windowHours / 24
	series, err := FetchMarketChart(ctx, chainID, token.Address, daysBack)
	if err != nil {
		analyzeLogger.Warn().
			Err(err).
			Str("token", token.Symbol).
			Msg("Historical price unavailable, assuming unchanged price")
		return 1.0, fmt.Sprintf("no price history for %s, price assumed unchanged over the window", token.Symbol)
	}

	startPrice, err := PriceAt(series, time.Now().Add(-time.Duration(daysBack*24*float64(time.Hour))))
	if err != nil || startPrice <= 0 {
		return 1.0, fmt.Sprintf("no price history for %s, price assumed unchanged over the window", token.Symbol)
	}

	ratio := token.PriceUSD / startPrice
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 1.0, fmt.Sprintf("degenerate price ratio for %s, price assumed unchanged over the window", token.Symbol)
	}
	return ratio, ""
}

// defaultFeeTier is the assumed fee (decimal fraction) when the pool contract
// does not expose one.
func defaultFeeTier(poolType types.PoolType) float64 {
	switch poolType {
	case types.PoolTypeCurve:
		return 0.0004
	default:
		// V2 forks, Sushi, and standard Balancer pools commonly run 0.3%.
		return 0.003
	}
}
