/*

This file contains the fee APR estimators. Both paths are linear
extrapolations of an observed window to an annual rate: no compounding and no
decay weighting. They are estimators, not forecasts, and short observation
windows are flagged because they amplify extrapolation error.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/deganai/lp-estimator/internal/logger"
)

var feeLogger = logger.GetForComponent("fee_estimator")

const hoursPerYear = 365 * 24

// shortWindowDays is the holding period below which position-based APR
// extrapolation is flagged as unreliable.
const shortWindowDays = 1.0

// shortWindowHours is the observation window below which pool-based APR
// extrapolation is flagged as unreliable.
const shortWindowHours = 1.0

// CalculatePositionFeeAPR annualizes fees earned by a position.
// Inputs:
//   - feesEarnedUSD: total fees earned over the holding period.
//   - daysHeld: holding period in days, must be positive.
//   - initialValueUSD: position value at deposit, must be positive.
//
// Output:
//   - Annualized fee APR as a percentage.
//   - Whether the observation window was short enough to flag.
func CalculatePositionFeeAPR(feesEarnedUSD, daysHeld, initialValueUSD float64) (float64, bool, error) {
	if math.IsNaN(feesEarnedUSD) || math.IsInf(feesEarnedUSD, 0) || feesEarnedUSD < 0 {
		return 0, false, errors.Join(ErrInvalidInput, errors.New("fees earned must be finite and non-negative"))
	}
	if math.IsNaN(daysHeld) || math.IsInf(daysHeld, 0) || daysHeld <= 0 {
		return 0, false, errors.Join(ErrInvalidInput, errors.New("days held must be finite and positive"))
	}
	if math.IsNaN(initialValueUSD) || math.IsInf(initialValueUSD, 0) || initialValueUSD <= 0 {
		return 0, false, errors.Join(ErrInvalidInput, errors.New("initial value must be finite and positive"))
	}

	annualFees := feesEarnedUSD / daysHeld * 365
	feeAPR := 100 * annualFees / initialValueUSD
	if math.IsNaN(feeAPR) || math.IsInf(feeAPR, 0) {
		return 0, false, errors.New("fee APR calculation resulted in non-finite value")
	}

	shortWindow := daysHeld < shortWindowDays
	if shortWindow {
		feeLogger.Warn().
			Float64("daysHeld", daysHeld).
			Float64("feeAPR", feeAPR).
			Msg("Holding period under one day, annualized APR is a noisy extrapolation")
	}

	feeLogger.Debug().
		Float64("feesEarnedUSD", feesEarnedUSD).
		Float64("daysHeld", daysHeld).
		Float64("annualFees", annualFees).
		Float64("initialValueUSD", initialValueUSD).
		Float64("feeAPR", feeAPR).
		Msg("Position fee APR calculated")

	return feeAPR, shortWindow, nil
}

// CalculatePoolFeeAPR annualizes pool fee income over an observation window.
// Inputs:
//   - volumeWindowUSD: trading volume in the window.
//   - feeTier: pool fee as a decimal fraction (0.003 for a 0.3% pool).
//   - tvlUSD: average TVL over the window, must be positive.
//   - windowHours: observation window length in hours, must be positive.
//
// Output:
//   - Annualized fee APR as a percentage.
//   - Whether the observation window was short enough to flag.
func CalculatePoolFeeAPR(volumeWindowUSD, feeTier, tvlUSD, windowHours float64) (float64, bool, error) {
	inputs := []struct {
		value float64
		name  string
	}{
		{volumeWindowUSD, "window volume"},
		{feeTier, "fee tier"},
		{tvlUSD, "tvl"},
		{windowHours, "window hours"},
	}
	for _, in := range inputs {
		if math.IsNaN(in.value) || math.IsInf(in.value, 0) {
			return 0, false, errors.Join(ErrInvalidInput, fmt.Errorf("%s is not finite", in.name))
		}
	}
	if volumeWindowUSD < 0 {
		return 0, false, errors.Join(ErrInvalidInput, errors.New("window volume cannot be negative"))
	}
	if feeTier < 0 {
		return 0, false, errors.Join(ErrInvalidInput, errors.New("fee tier cannot be negative"))
	}
	if tvlUSD <= 0 {
		return 0, false, errors.Join(ErrInvalidInput, errors.New("tvl must be positive"))
	}
	if windowHours <= 0 {
		return 0, false, errors.Join(ErrInvalidInput, errors.New("window hours must be positive"))
	}

	feesEarned := volumeWindowUSD * feeTier
	returnWindow := feesEarned / tvlUSD
	periodsPerYear := hoursPerYear / windowHours
	apr := returnWindow * periodsPerYear * 100
	if math.IsNaN(apr) || math.IsInf(apr, 0) {
		return 0, false, errors.New("pool fee APR calculation resulted in non-finite value")
	}

	shortWindow := windowHours < shortWindowHours
	if shortWindow {
		feeLogger.Warn().
			Float64("windowHours", windowHours).
			Float64("feeAPR", apr).
			Msg("Observation window under one hour, annualized APR is a noisy extrapolation")
	}

	feeLogger.Debug().
		Float64("volumeWindowUSD", volumeWindowUSD).
		Float64("feeTier", feeTier).
		Float64("feesEarnedUSD", feesEarned).
		Float64("tvlUSD", tvlUSD).
		Float64("windowHours", windowHours).
		Float64("feeAPR", apr).
		Msg("Pool fee APR calculated")

	return apr, shortWindow, nil
}

// CalculateDailyFees computes fee income for one day of trading volume.
func CalculateDailyFees(volume24hUSD, feeTier float64) float64 {
	return volume24hUSD * feeTier
}

// CalculateAnnualFees projects annual fee income assuming constant volume.
func CalculateAnnualFees(volume24hUSD, feeTier float64) float64 {
	return CalculateDailyFees(volume24hUSD, feeTier) * 365
}

// CalculateFeeVelocity computes the annualized volume/TVL ratio. Higher
// velocity means more trading activity relative to liquidity.
func CalculateFeeVelocity(volumeWindowUSD, tvlUSD, windowHours float64) (float64, error) {
	if tvlUSD <= 0 || math.IsNaN(tvlUSD) || math.IsInf(tvlUSD, 0) {
		return 0, errors.Join(ErrInvalidInput, errors.New("tvl must be finite and positive"))
	}
	if windowHours <= 0 || math.IsNaN(windowHours) || math.IsInf(windowHours, 0) {
		return 0, errors.Join(ErrInvalidInput, errors.New("window hours must be finite and positive"))
	}
	if volumeWindowUSD < 0 || math.IsNaN(volumeWindowUSD) || math.IsInf(volumeWindowUSD, 0) {
		return 0, errors.Join(ErrInvalidInput, errors.New("window volume must be finite and non-negative"))
	}

	velocity := volumeWindowUSD / tvlUSD * (hoursPerYear / windowHours)
	if math.IsNaN(velocity) || math.IsInf(velocity, 0) {
		return 0, errors.New("fee velocity calculation resulted in non-finite value")
	}
	return velocity, nil
}

// PositionEarnings is the fee projection for a specific position size.
type PositionEarnings struct {
	PositionSizeUSD  float64 `json:"position_size_usd"`
	PoolSharePercent float64 `json:"pool_share_percent"`
	EarningsWindow   float64 `json:"earnings_window"`
	EarningsDaily    float64 `json:"earnings_daily"`
	EarningsAnnual   float64 `json:"earnings_annual"`
	APRPercent       float64 `json:"apr_percent"`
}

// CalculatePositionEarnings projects fee earnings for a position of the given
// size from pool-level volume, assuming the position holds a constant pool
// share at current TVL.
func CalculatePositionEarnings(positionSizeUSD, volumeWindowUSD, tvlUSD, feeTier, windowHours float64) (PositionEarnings, error) {
	if positionSizeUSD <= 0 || math.IsNaN(positionSizeUSD) || math.IsInf(positionSizeUSD, 0) {
		return PositionEarnings{}, errors.Join(ErrInvalidInput, errors.New("position size must be finite and positive"))
	}
	if tvlUSD <= 0 || math.IsNaN(tvlUSD) || math.IsInf(tvlUSD, 0) {
		return PositionEarnings{}, errors.Join(ErrInvalidInput, errors.New("tvl must be finite and positive"))
	}
	if windowHours <= 0 || math.IsNaN(windowHours) || math.IsInf(windowHours, 0) {
		return PositionEarnings{}, errors.Join(ErrInvalidInput, errors.New("window hours must be finite and positive"))
	}
	if volumeWindowUSD < 0 || feeTier < 0 {
		return PositionEarnings{}, errors.Join(ErrInvalidInput, errors.New("volume and fee tier cannot be negative"))
	}

	poolShare := positionSizeUSD / tvlUSD
	earningsWindow := volumeWindowUSD * feeTier * poolShare
	earningsAnnual := earningsWindow * (hoursPerYear / windowHours)
	earningsDaily := earningsAnnual / 365
	aprPercent := earningsAnnual / positionSizeUSD * 100

	outputs := []float64{poolShare, earningsWindow, earningsAnnual, earningsDaily, aprPercent}
	for _, out := range outputs {
		if math.IsNaN(out) || math.IsInf(out, 0) {
			return PositionEarnings{}, errors.New("position earnings calculation resulted in non-finite value")
		}
	}

	return PositionEarnings{
		PositionSizeUSD:  positionSizeUSD,
		PoolSharePercent: poolShare * 100,
		EarningsWindow:   earningsWindow,
		EarningsDaily:    earningsDaily,
		EarningsAnnual:   earningsAnnual,
		APRPercent:       aprPercent,
	}, nil
}

// CompareFeeTiers computes the APR the same volume and TVL would produce at
// the standard Uniswap fee tiers.
func CompareFeeTiers(volumeWindowUSD, tvlUSD, windowHours float64) (map[string]float64, error) {
	tiers := map[string]float64{
		"0.05%": 0.0005,
		"0.3%":  0.003,
		"1.0%":  0.01,
	}

	results := make(map[string]float64, len(tiers))
	for name, tier := range tiers {
		apr, _, err := CalculatePoolFeeAPR(volumeWindowUSD, tier, tvlUSD, windowHours)
		if err != nil {
			return nil, err
		}
		results[name] = apr
	}
	return results, nil
}

// CalculateBreakevenVolume computes the window volume required to reach a
// target APR at the given TVL and fee tier. It is the APR formula solved for
// volume.
func CalculateBreakevenVolume(tvlUSD, feeTier, targetAPR, windowHours float64) (float64, error) {
	if tvlUSD <= 0 || math.IsNaN(tvlUSD) || math.IsInf(tvlUSD, 0) {
		return 0, errors.Join(ErrInvalidInput, errors.New("tvl must be finite and positive"))
	}
	if feeTier <= 0 || math.IsNaN(feeTier) || math.IsInf(feeTier, 0) {
		return 0, errors.Join(ErrInvalidInput, errors.New("fee tier must be finite and positive"))
	}
	if targetAPR < 0 || math.IsNaN(targetAPR) || math.IsInf(targetAPR, 0) {
		return 0, errors.Join(ErrInvalidInput, errors.New("target APR must be finite and non-negative"))
	}
	if windowHours <= 0 || math.IsNaN(windowHours) || math.IsInf(windowHours, 0) {
		return 0, errors.Join(ErrInvalidInput, errors.New("window hours must be finite and positive"))
	}

	periodsPerYear := hoursPerYear / windowHours
	required := (targetAPR / 100 * tvlUSD) / (feeTier * periodsPerYear)
	if math.IsNaN(required) || math.IsInf(required, 0) {
		return 0, errors.New("breakeven volume calculation resulted in non-finite value")
	}
	return required, nil
}
