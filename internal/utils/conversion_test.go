package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexToSDKInt(t *testing.T) {
	v, err := HexToSDKInt("0xde0b6b3a7640000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", v.String())

	v, err = HexToSDKInt("0x0")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	// Full 32-byte word, beyond uint64.
	v, err = HexToSDKInt("0x00000000000000000000000000000000000000000000d3c21bcecceda1000000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000000", v.String())

	_, err = HexToSDKInt("0x")
	assert.ErrorIs(t, err, ErrInvalidHex)
	_, err = HexToSDKInt("not-hex")
	assert.ErrorIs(t, err, ErrInvalidHex)
}

func TestRawAmountToFloat64(t *testing.T) {
	f, err := RawAmountToFloat64(sdkmath.NewInt(1_000_000), 6)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, f, 1e-12)

	wei, ok := sdkmath.NewIntFromString("1500000000000000000")
	require.True(t, ok)
	f, err = RawAmountToFloat64(wei, 18)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, f, 1e-12)

	_, err = RawAmountToFloat64(sdkmath.NewInt(1), 19)
	assert.ErrorIs(t, err, ErrInvalidPrecision)
	_, err = RawAmountToFloat64(sdkmath.NewInt(-1), 6)
	assert.ErrorIs(t, err, ErrAmountNegative)
}

func TestFloat64ToRawAmount(t *testing.T) {
	raw, err := Float64ToRawAmount(1.5, 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", raw.String())

	raw, err = Float64ToRawAmount(0, 6)
	require.NoError(t, err)
	assert.True(t, raw.IsZero())

	_, err = Float64ToRawAmount(-1, 6)
	assert.ErrorIs(t, err, ErrAmountNegative)
}

func TestHexWordToFloat64(t *testing.T) {
	f, err := HexWordToFloat64("0xde0b6b3a7640000", 18)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, f, 1e-12)
}

func TestRoundTo2(t *testing.T) {
	assert.Equal(t, -18.34, RoundTo2(-18.3367))
	assert.Equal(t, 6.08, RoundTo2(6.0803))
	assert.Equal(t, 2.5, RoundTo2(2.499999999))
	assert.Equal(t, 0.0, RoundTo2(0))
}
