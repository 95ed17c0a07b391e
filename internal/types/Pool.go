/*

This file contains the types describing an on-chain pool as resolved by the
datafetcher layer. The computation core consumes these read-only.

*/

package types

import "time"

// PoolType identifies the AMM variant a pool belongs to. The set is fixed;
// anything outside it is rejected by the computation core.
type PoolType string

const (
	PoolTypeUniswapV2 PoolType = "uniswap-v2"
	PoolTypeUniswapV3 PoolType = "uniswap-v3"
	PoolTypeSushiswap PoolType = "sushiswap"
	PoolTypeBalancer  PoolType = "balancer-weighted"
	PoolTypeCurve     PoolType = "curve-stable"
	PoolTypeUnknown   PoolType = "unknown"
)

// Token holds the on-chain metadata for one side of a pool.
type Token struct {
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol"`
	Decimals int     `json:"decimals"`
	PriceUSD float64 `json:"price_usd"`
}

// PriceData holds one historical price observation.
type PriceData struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// PoolContext is everything the core needs to compute IL and fee APR for a
// pool over an observation window. It is produced by the datafetcher (or by
// explicit request fields) and never mutated by the core.
type PoolContext struct {
	PoolAddress     string     `json:"pool_address"`
	ChainID         int        `json:"chain"`
	PoolType        PoolType   `json:"pool_type"`
	TokenWeights    [2]float64 `json:"token_weights"`      // Normalized, sums to 1.0; 50/50 unless supplied
	FeeTierPercent  float64    `json:"fee_tier_percent"`   // e.g. 0.3 for a 0.3% pool
	TvlUSD          float64    `json:"tvl_usd"`
	VolumeWindowUSD float64    `json:"volume_window_usd"`
	WindowHours     float64    `json:"window_hours"`
}

// PoolInfo is the boundary-facing summary of a pool included in estimate
// responses.
type PoolInfo struct {
	Type           PoolType `json:"type"`
	Token0         string   `json:"token0"`
	Token1         string   `json:"token1"`
	FeeTierPercent float64  `json:"fee_tier_percent"`
	TvlUSD         float64  `json:"tvl_usd"`
}
