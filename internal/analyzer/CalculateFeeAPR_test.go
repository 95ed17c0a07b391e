package analyzer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePositionFeeAPR(t *testing.T) {
	// 10 USD over 30 days on a 2001 USD position.
	apr, shortWindow, err := CalculatePositionFeeAPR(10, 30, 2001)
	require.NoError(t, err)
	assert.InDelta(t, 6.0803, apr, 1e-3)
	assert.False(t, shortWindow)

	// Linearity: doubling fees doubles the APR.
	doubled, _, err := CalculatePositionFeeAPR(20, 30, 2001)
	require.NoError(t, err)
	assert.InDelta(t, 2*apr, doubled, 1e-9)

	// Zero fees is a valid position that simply earned nothing.
	zero, shortWindow, err := CalculatePositionFeeAPR(0, 30, 2001)
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero)
	assert.False(t, shortWindow)
}

func TestCalculatePositionFeeAPR_ShortWindow(t *testing.T) {
	apr, shortWindow, err := CalculatePositionFeeAPR(1, 0.5, 1000)
	require.NoError(t, err)
	assert.True(t, shortWindow)
	// Still a valid extrapolation, just flagged.
	assert.InDelta(t, 100*(1/0.5*365)/1000, apr, 1e-9)
}

func TestCalculatePositionFeeAPR_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		fees    float64
		days    float64
		initial float64
	}{
		{"zero days", 10, 0, 1000},
		{"negative days", 10, -5, 1000},
		{"negative fees", -10, 30, 1000},
		{"zero initial value", 10, 30, 0},
		{"nan fees", math.NaN(), 30, 1000},
		{"inf days", 10, math.Inf(1), 1000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			apr, _, err := CalculatePositionFeeAPR(tc.fees, tc.days, tc.initial)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, 0.0, apr)
		})
	}
}

func TestCalculatePoolFeeAPR(t *testing.T) {
	// 1M USD daily volume at 0.3% on 10M TVL: 3000/day on 10M,
	// 0.03%/day, 10.95% annualized.
	apr, shortWindow, err := CalculatePoolFeeAPR(1_000_000, 0.003, 10_000_000, 24)
	require.NoError(t, err)
	assert.InDelta(t, 10.95, apr, 1e-9)
	assert.False(t, shortWindow)

	// The same turnover over a 12h window annualizes to double.
	half, _, err := CalculatePoolFeeAPR(1_000_000, 0.003, 10_000_000, 12)
	require.NoError(t, err)
	assert.InDelta(t, 2*apr, half, 1e-9)

	// Sub-hour windows are flagged.
	_, shortWindow, err = CalculatePoolFeeAPR(10_000, 0.003, 10_000_000, 0.5)
	require.NoError(t, err)
	assert.True(t, shortWindow)
}

func TestCalculatePoolFeeAPR_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		volume  float64
		feeTier float64
		tvl     float64
		hours   float64
	}{
		{"zero tvl", 1_000_000, 0.003, 0, 24},
		{"zero window", 1_000_000, 0.003, 10_000_000, 0},
		{"negative volume", -1, 0.003, 10_000_000, 24},
		{"negative fee tier", 1_000_000, -0.003, 10_000_000, 24},
		{"nan tvl", 1_000_000, 0.003, math.NaN(), 24},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			apr, _, err := CalculatePoolFeeAPR(tc.volume, tc.feeTier, tc.tvl, tc.hours)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, 0.0, apr)
		})
	}
}

func TestFeeProjections(t *testing.T) {
	assert.InDelta(t, 3000.0, CalculateDailyFees(1_000_000, 0.003), 1e-9)
	assert.InDelta(t, 3000.0*365, CalculateAnnualFees(1_000_000, 0.003), 1e-9)

	// 1M/day on 10M TVL turns the pool over 36.5x per year.
	velocity, err := CalculateFeeVelocity(1_000_000, 10_000_000, 24)
	require.NoError(t, err)
	assert.InDelta(t, 36.5, velocity, 1e-9)

	_, err = CalculateFeeVelocity(1_000_000, 0, 24)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCalculatePositionEarnings(t *testing.T) {
	earnings, err := CalculatePositionEarnings(100_000, 1_000_000, 10_000_000, 0.003, 24)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, earnings.PoolSharePercent, 1e-9)
	// 1% of 3000 USD/day in fees.
	assert.InDelta(t, 30.0, earnings.EarningsWindow, 1e-9)
	assert.InDelta(t, 30.0, earnings.EarningsDaily, 1e-9)
	assert.InDelta(t, 30.0*365, earnings.EarningsAnnual, 1e-9)
	// Position APR matches the pool APR when share is constant.
	assert.InDelta(t, 10.95, earnings.APRPercent, 1e-9)

	_, err = CalculatePositionEarnings(0, 1_000_000, 10_000_000, 0.003, 24)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCompareFeeTiers(t *testing.T) {
	results, err := CompareFeeTiers(1_000_000, 10_000_000, 24)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.InDelta(t, 10.95, results["0.3%"], 1e-9)
	// APR scales linearly with the tier.
	assert.InDelta(t, results["0.3%"]/6, results["0.05%"], 1e-9)
	assert.InDelta(t, results["0.3%"]*10/3, results["1.0%"], 1e-9)
}

func TestCalculateBreakevenVolume(t *testing.T) {
	volume, err := CalculateBreakevenVolume(10_000_000, 0.003, 10.95, 24)
	require.NoError(t, err)
	assert.InDelta(t, 1_000_000, volume, 1e-6)

	// Round trip: the breakeven volume reproduces the target APR.
	apr, _, err := CalculatePoolFeeAPR(volume, 0.003, 10_000_000, 24)
	require.NoError(t, err)
	assert.InDelta(t, 10.95, apr, 1e-9)

	_, err = CalculateBreakevenVolume(10_000_000, 0, 10, 24)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
