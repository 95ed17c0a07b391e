package analyzer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deganai/lp-estimator/internal/types"
)

func TestCalculatePositionIL_KnownVector(t *testing.T) {
	pos := types.Position{
		Amount0:       1,
		Amount1:       1,
		InitialPrice0: 2000,
		InitialPrice1: 1,
	}
	move := types.PriceMovement{CurrentPriceRatio: 1.5}
	fees := types.FeeRecord{FeesEarnedUSD: 10, DaysHeld: 30}

	result, err := CalculatePositionIL(pos, move, fees)
	require.NoError(t, err)

	assert.InDelta(t, 2001.0, result.InitialValueUSD, 1e-9)
	assert.InDelta(t, 3001.0, result.HodlValueUSD, 1e-9)
	// 1/sqrt(1.5) token0 and sqrt(1.5) token1 at the moved price,
	// plus the 10 USD of fees folded into current value.
	assert.InDelta(t, 2450.7144, result.CurrentValueUSD-fees.FeesEarnedUSD, 1e-3)
	assert.InDelta(t, -550.2856, result.ILUSD, 1e-3)
	assert.InDelta(t, -18.3367, result.ILPercentage, 1e-3)

	// 100 * (10/30*365) / 2001
	assert.InDelta(t, 6.0803, result.FeeAPR, 1e-3)
	assert.InDelta(t, result.FeeAPR+result.ILPercentage/30*365, result.NetAPR, 1e-9)

	// IL is past -5% and the fee APR does not cover it.
	assert.Equal(t, RecommendationExit, result.Recommendation)
	assert.False(t, result.ShortWindow)
}

func TestCalculatePositionIL_NoPriceMove(t *testing.T) {
	// ratio = 1 must produce exactly zero IL for any position shape,
	// including unbalanced deposits.
	positions := []types.Position{
		{Amount0: 1, Amount1: 1, InitialPrice0: 2000, InitialPrice1: 1},
		{Amount0: 3, Amount1: 7000, InitialPrice0: 1800, InitialPrice1: 1},
		{Amount0: 0.25, Amount1: 12, InitialPrice0: 40000, InitialPrice1: 2500},
	}

	for _, pos := range positions {
		result, err := CalculatePositionIL(pos,
			types.PriceMovement{CurrentPriceRatio: 1},
			types.FeeRecord{FeesEarnedUSD: 5, DaysHeld: 10})
		require.NoError(t, err)
		assert.Equal(t, 0.0, result.ILPercentage)
		assert.Equal(t, 0.0, result.ILUSD)
		assert.InDelta(t, result.InitialValueUSD, result.HodlValueUSD, 1e-9)
	}
}

func TestCalculatePositionIL_MatchesClosedFormWhenBalanced(t *testing.T) {
	// A value-balanced deposit (amount0*price0 == amount1*price1) must
	// reproduce the closed form at every ratio.
	pos := types.Position{Amount0: 1, Amount1: 2000, InitialPrice0: 2000, InitialPrice1: 1}
	fees := types.FeeRecord{FeesEarnedUSD: 1, DaysHeld: 30}

	for _, ratio := range []float64{0.25, 0.5, 0.9, 1.1, 1.5, 2, 4} {
		result, err := CalculatePositionIL(pos, types.PriceMovement{CurrentPriceRatio: ratio}, fees)
		require.NoError(t, err)

		closed, err := CalculateClosedFormIL(ratio)
		require.NoError(t, err)
		assert.InDelta(t, closed, result.ILPercentage, 1e-9, "ratio %v", ratio)
	}
}

func TestCalculatePositionIL_InvalidInputs(t *testing.T) {
	valid := types.Position{Amount0: 1, Amount1: 1, InitialPrice0: 2000, InitialPrice1: 1}
	validMove := types.PriceMovement{CurrentPriceRatio: 1.5}
	validFees := types.FeeRecord{FeesEarnedUSD: 10, DaysHeld: 30}

	cases := []struct {
		name string
		pos  types.Position
		move types.PriceMovement
		fees types.FeeRecord
	}{
		{"zero price ratio", valid, types.PriceMovement{CurrentPriceRatio: 0}, validFees},
		{"negative price ratio", valid, types.PriceMovement{CurrentPriceRatio: -2}, validFees},
		{"nan price ratio", valid, types.PriceMovement{CurrentPriceRatio: math.NaN()}, validFees},
		{"inf price ratio", valid, types.PriceMovement{CurrentPriceRatio: math.Inf(1)}, validFees},
		{"zero days held", valid, validMove, types.FeeRecord{FeesEarnedUSD: 10, DaysHeld: 0}},
		{"negative days held", valid, validMove, types.FeeRecord{FeesEarnedUSD: 10, DaysHeld: -1}},
		{"negative fees", valid, validMove, types.FeeRecord{FeesEarnedUSD: -1, DaysHeld: 30}},
		{"zero amount0", types.Position{Amount0: 0, Amount1: 1, InitialPrice0: 2000, InitialPrice1: 1}, validMove, validFees},
		{"negative amount1", types.Position{Amount0: 1, Amount1: -1, InitialPrice0: 2000, InitialPrice1: 1}, validMove, validFees},
		{"nan price", types.Position{Amount0: 1, Amount1: 1, InitialPrice0: math.NaN(), InitialPrice1: 1}, validMove, validFees},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := CalculatePositionIL(tc.pos, tc.move, tc.fees)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, types.ILResult{}, result)
		})
	}
}

func TestCalculateClosedFormIL_Symmetry(t *testing.T) {
	pairs := [][2]float64{{2, 0.5}, {4, 0.25}, {1.5, 1.0 / 1.5}}
	for _, pair := range pairs {
		up, err := CalculateClosedFormIL(pair[0])
		require.NoError(t, err)
		down, err := CalculateClosedFormIL(pair[1])
		require.NoError(t, err)
		assert.InDelta(t, up, down, 1e-9, "ratio %v vs %v", pair[0], pair[1])
	}
}

func TestCalculateClosedFormIL_KnownValues(t *testing.T) {
	il1, err := CalculateClosedFormIL(1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, il1)

	// 2*sqrt(2)/3 - 1
	il2, err := CalculateClosedFormIL(2)
	require.NoError(t, err)
	assert.InDelta(t, -5.7191, il2, 1e-3)

	il4, err := CalculateClosedFormIL(4)
	require.NoError(t, err)
	assert.InDelta(t, -20.0, il4, 1e-9)
}

func TestCalculateClosedFormIL_NeverPositive(t *testing.T) {
	for _, ratio := range []float64{0.01, 0.1, 0.5, 0.99, 1, 1.01, 2, 10, 100} {
		il, err := CalculateClosedFormIL(ratio)
		require.NoError(t, err)
		assert.LessOrEqual(t, il, 0.0, "ratio %v", ratio)
		assert.False(t, math.IsNaN(il) || math.IsInf(il, 0))
	}
}

func TestCalculateWeightedIL(t *testing.T) {
	// Equal weights reduce to the 50/50 closed form.
	equal, err := CalculateWeightedIL([]float64{2, 1}, []float64{0.5, 0.5})
	require.NoError(t, err)
	closed, err := CalculateClosedFormIL(2)
	require.NoError(t, err)
	assert.InDelta(t, closed, equal, 1e-9)

	// A skewed pool weighted toward the moving token carries less IL.
	skewed, err := CalculateWeightedIL([]float64{2, 1}, []float64{0.8, 0.2})
	require.NoError(t, err)
	assert.Greater(t, skewed, equal)
	assert.Less(t, skewed, 0.0)

	// Weights need not sum to 1; normalization handles raw weights.
	raw, err := CalculateWeightedIL([]float64{2, 1}, []float64{4, 1})
	require.NoError(t, err)
	assert.InDelta(t, skewed, raw, 1e-9)

	// Uniform price movement produces zero IL.
	uniform, err := CalculateWeightedIL([]float64{1.5, 1.5}, []float64{0.6, 0.4})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, uniform, 1e-9)
}

func TestCalculateWeightedIL_Invalid(t *testing.T) {
	_, err := CalculateWeightedIL([]float64{2}, []float64{1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = CalculateWeightedIL([]float64{2, 1}, []float64{0.5})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = CalculateWeightedIL([]float64{2, 1}, []float64{0.5, 0})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = CalculateWeightedIL([]float64{2, -1}, []float64{0.5, 0.5})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCalculateStableIL(t *testing.T) {
	closed, err := CalculateClosedFormIL(1.02)
	require.NoError(t, err)

	// A=0 degenerates to pure constant product.
	flat, err := CalculateStableIL(1.02, 0)
	require.NoError(t, err)
	assert.InDelta(t, closed, flat, 1e-12)

	// The default amplification damps IL by 1+A.
	damped, err := CalculateStableIL(1.02, DefaultStableAmplification)
	require.NoError(t, err)
	assert.InDelta(t, closed/(1+DefaultStableAmplification), damped, 1e-12)
	assert.Greater(t, damped, closed)

	_, err = CalculateStableIL(1.02, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCalculateILForPool(t *testing.T) {
	base := types.PoolContext{
		PoolAddress:  "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc",
		ChainID:      1,
		TokenWeights: [2]float64{0.5, 0.5},
	}

	closed, err := CalculateClosedFormIL(1.5 / 0.75)
	require.NoError(t, err)

	for _, poolType := range []types.PoolType{types.PoolTypeUniswapV2, types.PoolTypeUniswapV3, types.PoolTypeSushiswap} {
		ctx := base
		ctx.PoolType = poolType
		il, err := CalculateILForPool(ctx, 1.5, 0.75)
		require.NoError(t, err)
		assert.InDelta(t, closed, il, 1e-9, "pool type %v", poolType)
	}

	weightedCtx := base
	weightedCtx.PoolType = types.PoolTypeBalancer
	weightedCtx.TokenWeights = [2]float64{0.8, 0.2}
	weighted, err := CalculateILForPool(weightedCtx, 2, 1)
	require.NoError(t, err)
	expected, err := CalculateWeightedIL([]float64{2, 1}, []float64{0.8, 0.2})
	require.NoError(t, err)
	assert.InDelta(t, expected, weighted, 1e-9)

	stableCtx := base
	stableCtx.PoolType = types.PoolTypeCurve
	stable, err := CalculateILForPool(stableCtx, 1.01, 1)
	require.NoError(t, err)
	expectedStable, err := CalculateStableIL(1.01, DefaultStableAmplification)
	require.NoError(t, err)
	assert.InDelta(t, expectedStable, stable, 1e-9)

	unknownCtx := base
	unknownCtx.PoolType = types.PoolTypeUnknown
	_, err = CalculateILForPool(unknownCtx, 1.5, 1)
	assert.ErrorIs(t, err, ErrUnsupportedPoolType)
}

func TestRecommend(t *testing.T) {
	cases := []struct {
		name     string
		il       float64
		feeAPR   float64
		netAPR   float64
		expected string
	}{
		{"il past threshold and fees short", -6, 3, 50, RecommendationExit},
		{"fees cover heavy il", -6, 8, 12, RecommendationStrong},
		{"strong net apr", -2, 15, 12, RecommendationStrong},
		{"barely profitable", -2, 5, 1, RecommendationProfitable},
		{"deep il but fees above it", -12, 20, -5, RecommendationHighIL},
		{"flat position", 0, 0, 0, RecommendationMonitor},
		{"small il no fees", -3, 0, -2, RecommendationMonitor},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Recommend(tc.il, tc.feeAPR, tc.netAPR))
		})
	}
}

func TestRecommend_ExitRuleTakesPriority(t *testing.T) {
	// Even with a net APR that would otherwise classify as strong, the
	// exit rule fires first when fees do not cover the IL.
	assert.Equal(t, RecommendationExit, Recommend(-6, 3, 50))
}

func TestILScenarios(t *testing.T) {
	scenarios := ILScenarios()
	require.Len(t, scenarios, 10)

	var sawNoChange bool
	for _, s := range scenarios {
		assert.NotEmpty(t, s.Label)
		assert.Greater(t, s.PriceRatio, 0.0)
		assert.LessOrEqual(t, s.ILPercentage, 0.0, "scenario %q", s.Label)
		assert.False(t, math.IsNaN(s.ILPercentage) || math.IsInf(s.ILPercentage, 0))
		if s.PriceRatio == 1.0 {
			sawNoChange = true
			assert.Equal(t, 0.0, s.ILPercentage)
		}
	}
	assert.True(t, sawNoChange)

	// 2x and 0.5x are the same distance from the peg on the IL curve.
	byRatio := make(map[float64]float64, len(scenarios))
	for _, s := range scenarios {
		byRatio[s.PriceRatio] = s.ILPercentage
	}
	assert.InDelta(t, byRatio[2.0], byRatio[0.5], 1e-9)
	assert.InDelta(t, -20.0, byRatio[4.0], 1e-9)
}
