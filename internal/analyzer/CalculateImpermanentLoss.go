/*

This file contains the impermanent loss calculations for the supported pool
curves: constant-product (50/50), weighted (Balancer-style), and correlated
stable pools.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/deganai/lp-estimator/internal/logger"
	"github.com/deganai/lp-estimator/internal/types"
)

var ilLogger = logger.GetForComponent("il_calculator")

// ErrInvalidInput indicates a request value that is non-finite, negative where
// disallowed, or zero where disallowed. It is always surfaced synchronously;
// no calculation is allowed to answer an invalid request with NaN or Inf.
var ErrInvalidInput = errors.New("invalid input")

// ErrUnsupportedPoolType indicates a pool type or weight configuration the
// invariant formulas do not cover.
var ErrUnsupportedPoolType = errors.New("unsupported pool type")

// DefaultStableAmplification is the amplification coefficient assumed for
// curve-stable pools when none is supplied. Curve mainnet pools commonly run
// with A between 100 and a few thousand.
const DefaultStableAmplification = 100.0

// CalculatePositionIL computes impermanent loss for an explicit 50/50
// constant-product position.
// Inputs:
//   - pos: deposit amounts and USD prices at deposit time.
//   - move: the token0/token1 price ratio now vs. at deposit (1.0 = unchanged).
//   - fees: fees earned and days held, used for the fee APR and net APR.
//
// Output:
//   - An ILResult with value breakdown, fee APR, net APR, and recommendation.
//   - ErrInvalidInput (wrapped with detail) if any precondition fails.
func CalculatePositionIL(pos types.Position, move types.PriceMovement, fees types.FeeRecord) (types.ILResult, error) {
	if err := ValidatePosition(pos); err != nil {
		return types.ILResult{}, errors.Join(ErrInvalidInput, err)
	}
	if err := ValidatePriceMovement(move); err != nil {
		return types.ILResult{}, errors.Join(ErrInvalidInput, err)
	}
	if err := ValidateFeeRecord(fees); err != nil {
		return types.ILResult{}, errors.Join(ErrInvalidInput, err)
	}

	ratio := move.CurrentPriceRatio

	// Invariant product held constant by the pool across the price move.
	k := pos.Amount0 * pos.Amount1
	if k <= 0 {
		return types.ILResult{}, errors.Join(ErrInvalidInput, errors.New("degenerate position: amount0 * amount1 must be positive"))
	}

	// Rebalanced holdings under x*y=k after the relative price moves by
	// ratio. Solved against the pool's internal price so that ratio=1
	// reproduces the deposit amounts exactly for any position shape:
	// newAmount0*newAmount1 == k and newAmount1/newAmount0 == ratio*(a1/a0).
	sqrtRatio := math.Sqrt(ratio)
	newAmount0 := pos.Amount0 / sqrtRatio
	newAmount1 := pos.Amount1 * sqrtRatio

	initialValueUSD := pos.Amount0*pos.InitialPrice0 + pos.Amount1*pos.InitialPrice1
	if initialValueUSD <= 0 {
		return types.ILResult{}, errors.Join(ErrInvalidInput, errors.New("position has zero initial USD value"))
	}

	// Hold baseline: the original quantities carried through the price move.
	// Token0's USD price scales by ratio; token1 is the pricing numeraire.
	hodlValueUSD := pos.Amount0*pos.InitialPrice0*ratio + pos.Amount1*pos.InitialPrice1
	if hodlValueUSD <= 0 {
		return types.ILResult{}, errors.Join(ErrInvalidInput, errors.New("hold baseline value is zero"))
	}

	currentPreFeesUSD := newAmount0*pos.InitialPrice0*ratio + newAmount1*pos.InitialPrice1

	ilUSD := currentPreFeesUSD - hodlValueUSD
	ilPercentage := 100 * ilUSD / hodlValueUSD

	feeAPR, shortWindow, err := CalculatePositionFeeAPR(fees.FeesEarnedUSD, fees.DaysHeld, initialValueUSD)
	if err != nil {
		return types.ILResult{}, err
	}

	netAPR := feeAPR + ilPercentage/fees.DaysHeld*365

	// Zero-tolerance finite check on everything that leaves this function.
	outputs := []struct {
		value float64
		name  string
	}{
		{ilPercentage, "il percentage"},
		{ilUSD, "il usd"},
		{initialValueUSD, "initial value"},
		{currentPreFeesUSD, "current value"},
		{hodlValueUSD, "hodl value"},
		{feeAPR, "fee apr"},
		{netAPR, "net apr"},
	}
	for _, out := range outputs {
		if math.IsNaN(out.value) || math.IsInf(out.value, 0) {
			return types.ILResult{}, fmt.Errorf("%s calculation resulted in non-finite value", out.name)
		}
	}

	result := types.ILResult{
		ILPercentage:    ilPercentage,
		ILUSD:           ilUSD,
		InitialValueUSD: initialValueUSD,
		CurrentValueUSD: currentPreFeesUSD + fees.FeesEarnedUSD,
		HodlValueUSD:    hodlValueUSD,
		FeeAPR:          feeAPR,
		NetAPR:          netAPR,
		Recommendation:  Recommend(ilPercentage, feeAPR, netAPR),
		ShortWindow:     shortWindow,
	}

	ilLogger.Debug().
		Float64("priceRatio", ratio).
		Float64("invariantK", k).
		Float64("newAmount0", newAmount0).
		Float64("newAmount1", newAmount1).
		Float64("initialValueUSD", initialValueUSD).
		Float64("hodlValueUSD", hodlValueUSD).
		Float64("currentPreFeesUSD", currentPreFeesUSD).
		Float64("ilUSD", ilUSD).
		Float64("ilPercentage", ilPercentage).
		Float64("feeAPR", feeAPR).
		Float64("netAPR", netAPR).
		Str("recommendation", result.Recommendation).
		Msg("Position IL calculated")

	return result, nil
}

// CalculateClosedFormIL computes the 50/50 constant-product IL as a percentage
// using the closed form IL = 2*sqrt(r)/(1+r) - 1. It agrees with the value
// derivation in CalculatePositionIL whenever the deposit is value-balanced
// (amount0*price0 == amount1*price1), and is symmetric under ratio inversion.
func CalculateClosedFormIL(priceRatio float64) (float64, error) {
	if math.IsNaN(priceRatio) || math.IsInf(priceRatio, 0) {
		return 0, errors.Join(ErrInvalidInput, errors.New("price ratio is not finite"))
	}
	if priceRatio <= 0 {
		return 0, errors.Join(ErrInvalidInput, errors.New("price ratio must be positive"))
	}

	il := 2*math.Sqrt(priceRatio)/(1+priceRatio) - 1
	if math.IsNaN(il) || math.IsInf(il, 0) {
		return 0, errors.New("closed-form IL calculation resulted in non-finite value")
	}

	return il * 100, nil
}

// CalculateWeightedIL computes IL for a weighted pool as a percentage.
// The generalized invariant is the product of balances raised to their
// weights; the pool value relative to holding becomes the weighted geometric
// mean of the price ratios over their weighted arithmetic mean.
// Inputs:
//   - priceRatios: per-token current/initial price ratios, all positive.
//   - weights: per-token weights; normalized internally, need not sum to 1.
//
// Output:
//   - IL percentage (non-positive for all positive ratios).
func CalculateWeightedIL(priceRatios []float64, weights []float64) (float64, error) {
	n := len(priceRatios)
	if n < 2 {
		return 0, errors.Join(ErrInvalidInput, errors.New("at least two tokens required"))
	}
	if len(weights) != n {
		return 0, errors.Join(ErrInvalidInput, fmt.Errorf("weight count %d does not match token count %d", len(weights), n))
	}

	var totalWeight float64
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return 0, errors.Join(ErrInvalidInput, fmt.Errorf("weight %d is not finite", i))
		}
		if w <= 0 {
			return 0, errors.Join(ErrInvalidInput, fmt.Errorf("weight %d must be positive", i))
		}
		totalWeight += w
	}
	if totalWeight <= 0 || math.IsNaN(totalWeight) || math.IsInf(totalWeight, 0) {
		return 0, errors.Join(ErrInvalidInput, errors.New("total weight must be positive and finite"))
	}

	// Weighted geometric mean (pool value) over weighted arithmetic mean
	// (hold value), both against the same normalized weights.
	geometric := 1.0
	arithmetic := 0.0
	for i, r := range priceRatios {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return 0, errors.Join(ErrInvalidInput, fmt.Errorf("price ratio %d is not finite", i))
		}
		if r <= 0 {
			return 0, errors.Join(ErrInvalidInput, fmt.Errorf("price ratio %d must be positive", i))
		}
		w := weights[i] / totalWeight
		geometric *= math.Pow(r, w)
		arithmetic += w * r
	}

	if arithmetic <= 0 || math.IsNaN(arithmetic) || math.IsInf(arithmetic, 0) {
		return 0, errors.New("weighted arithmetic mean calculation resulted in invalid value")
	}
	if math.IsNaN(geometric) || math.IsInf(geometric, 0) {
		return 0, errors.New("weighted geometric mean calculation resulted in non-finite value")
	}

	il := (geometric/arithmetic - 1) * 100
	if math.IsNaN(il) || math.IsInf(il, 0) {
		return 0, errors.New("weighted IL calculation resulted in non-finite value")
	}

	ilLogger.Debug().
		Floats64("priceRatios", priceRatios).
		Floats64("weights", weights).
		Float64("geometricMean", geometric).
		Float64("arithmeticMean", arithmetic).
		Float64("ilPercentage", il).
		Msg("Weighted IL calculated")

	return il, nil
}

// CalculateStableIL estimates IL for a correlated-asset stable pool as a
// percentage. The pricing curve of a stableswap pool is materially flatter
// near the peg than constant product; this models the pool as a blend of a
// constant-sum curve (no IL) and a constant-product curve, with the blend
// controlled by the amplification coefficient. It is an estimator, not a
// solution of the full stableswap invariant.
func CalculateStableIL(priceRatio float64, amplification float64) (float64, error) {
	if math.IsNaN(amplification) || math.IsInf(amplification, 0) {
		return 0, errors.Join(ErrInvalidInput, errors.New("amplification is not finite"))
	}
	if amplification < 0 {
		return 0, errors.Join(ErrInvalidInput, errors.New("amplification cannot be negative"))
	}

	constantProductIL, err := CalculateClosedFormIL(priceRatio)
	if err != nil {
		return 0, err
	}

	// A=0 degenerates to pure constant product; larger A flattens the curve
	// and shrinks IL toward zero.
	damped := constantProductIL / (1 + amplification)
	if math.IsNaN(damped) || math.IsInf(damped, 0) {
		return 0, errors.New("stable IL calculation resulted in non-finite value")
	}

	ilLogger.Debug().
		Float64("priceRatio", priceRatio).
		Float64("amplification", amplification).
		Float64("constantProductIL", constantProductIL).
		Float64("stableIL", damped).
		Msg("Stable IL calculated")

	return damped, nil
}

// CalculateILForPool dispatches to the invariant formula matching the pool
// type. There is no silent fallback: a pool type outside the supported set is
// rejected with ErrUnsupportedPoolType so the caller can decide whether (and
// how visibly) to degrade.
// Inputs:
//   - poolCtx: resolved pool context; TokenWeights are used for weighted pools.
//   - priceRatio0, priceRatio1: per-token current/initial price ratios.
//
// Output:
//   - IL percentage for the position implied by the pool's invariant.
func CalculateILForPool(poolCtx types.PoolContext, priceRatio0, priceRatio1 float64) (float64, error) {
	switch poolCtx.PoolType {
	case types.PoolTypeUniswapV2, types.PoolTypeUniswapV3, types.PoolTypeSushiswap:
		// Relative ratio of token0 against token1, then the 50/50 closed form.
		if priceRatio0 <= 0 || priceRatio1 <= 0 {
			return 0, errors.Join(ErrInvalidInput, errors.New("price ratios must be positive"))
		}
		return CalculateClosedFormIL(priceRatio0 / priceRatio1)
	case types.PoolTypeBalancer:
		return CalculateWeightedIL(
			[]float64{priceRatio0, priceRatio1},
			[]float64{poolCtx.TokenWeights[0], poolCtx.TokenWeights[1]},
		)
	case types.PoolTypeCurve:
		if priceRatio0 <= 0 || priceRatio1 <= 0 {
			return 0, errors.Join(ErrInvalidInput, errors.New("price ratios must be positive"))
		}
		return CalculateStableIL(priceRatio0/priceRatio1, DefaultStableAmplification)
	default:
		return 0, errors.Join(ErrUnsupportedPoolType, fmt.Errorf("pool type %q has no invariant formula", poolCtx.PoolType))
	}
}

// ValidatePosition checks the deposit record preconditions.
func ValidatePosition(pos types.Position) error {
	fields := []struct {
		value float64
		name  string
	}{
		{pos.Amount0, "amount0"},
		{pos.Amount1, "amount1"},
		{pos.InitialPrice0, "initial price0"},
		{pos.InitialPrice1, "initial price1"},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s is not finite", f.name)
		}
		if f.value < 0 {
			return fmt.Errorf("%s cannot be negative", f.name)
		}
	}
	if pos.Amount0*pos.Amount1 <= 0 {
		return errors.New("amount0 * amount1 must be positive")
	}
	return nil
}

// ValidatePriceMovement checks the price ratio precondition: a ratio of
// market prices cannot be zero or negative under the model.
func ValidatePriceMovement(move types.PriceMovement) error {
	if math.IsNaN(move.CurrentPriceRatio) || math.IsInf(move.CurrentPriceRatio, 0) {
		return errors.New("current price ratio is not finite")
	}
	if move.CurrentPriceRatio <= 0 {
		return errors.New("current price ratio must be positive")
	}
	return nil
}

// ValidateFeeRecord checks fee and holding-period preconditions.
func ValidateFeeRecord(fees types.FeeRecord) error {
	if math.IsNaN(fees.FeesEarnedUSD) || math.IsInf(fees.FeesEarnedUSD, 0) {
		return errors.New("fees earned is not finite")
	}
	if fees.FeesEarnedUSD < 0 {
		return errors.New("fees earned cannot be negative")
	}
	if math.IsNaN(fees.DaysHeld) || math.IsInf(fees.DaysHeld, 0) {
		return errors.New("days held is not finite")
	}
	if fees.DaysHeld <= 0 {
		return errors.New("days held must be positive")
	}
	return nil
}
