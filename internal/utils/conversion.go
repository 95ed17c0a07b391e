/*
This file contains common utility functions for converting between different types,
particularly for raw on-chain token amounts and precision handling.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
	ErrInvalidHex       = errors.New("invalid hex quantity")
)

// HexToSDKInt parses a 0x-prefixed hex quantity (the encoding eth_call and
// eth_getBalance return) into an SDK Int. RPC nodes return 32-byte words, so
// the value can exceed uint64 and must go through big.Int.
func HexToSDKInt(quantity string) (sdkmath.Int, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(quantity), "0x")
	if trimmed == "" {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: empty quantity", ErrInvalidHex)
	}

	value, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q", ErrInvalidHex, quantity)
	}
	if value.Sign() < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}

	return sdkmath.NewIntFromBigInt(value), nil
}

// RawAmountToFloat64 converts a raw on-chain token amount to float64 by
// dividing out the token's decimals. A USDC amount of 1000000 with 6 decimals
// becomes 1.0.
func RawAmountToFloat64(amount sdkmath.Int, decimals int) (float64, error) {
	if decimals < 0 || decimals > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, decimals)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromInt(amount)
	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < decimals; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	result := decAmount.Quo(factor)
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// Float64ToRawAmount converts a float64 token amount back to the raw on-chain
// integer representation at the token's decimals.
func Float64ToRawAmount(amount float64, decimals int) (sdkmath.Int, error) {
	if decimals < 0 || decimals > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, decimals)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if amount == 0 {
		return sdkmath.ZeroInt(), nil
	}

	// Use string conversion to avoid floating point precision issues
	formatStr := fmt.Sprintf("%%.%df", decimals)
	amountStr := fmt.Sprintf(formatStr, amount)

	decAmount, err := sdkmath.LegacyNewDecFromStr(amountStr)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: failed to create decimal from string: %w", ErrConversionFailed, err)
	}

	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < decimals; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	result := decAmount.Mul(factor).TruncateInt()
	if result.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}

	return result, nil
}

// HexWordToFloat64 combines HexToSDKInt and RawAmountToFloat64 for the common
// case of normalizing a single eth_call return word.
func HexWordToFloat64(quantity string, decimals int) (float64, error) {
	raw, err := HexToSDKInt(quantity)
	if err != nil {
		return 0, err
	}
	return RawAmountToFloat64(raw, decimals)
}

// RoundTo2 rounds a value to two decimal places, half away from zero. Applied
// only at the response boundary; internal math stays full precision.
func RoundTo2(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	return math.Round(value*100) / 100
}
