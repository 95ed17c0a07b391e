/*

This file contains the types describing an LP position as submitted by the caller,
and the derived result record returned from the IL/fee-APR computation.

*/

package types

// Position describes the deposit side of an LP position: token quantities and
// the USD prices of each token at deposit time. All computation treats this as
// an immutable value record.
type Position struct {
	Amount0       float64 `json:"amount_0"`        // Quantity of token0 at deposit
	Amount1       float64 `json:"amount_1"`        // Quantity of token1 at deposit
	InitialPrice0 float64 `json:"initial_price_0"` // USD price of token0 at deposit
	InitialPrice1 float64 `json:"initial_price_1"` // USD price of token1 at deposit
}

// PriceMovement captures how the token0/token1 price relationship has moved
// since deposit, as a multiplicative factor. 1.0 means unchanged.
type PriceMovement struct {
	CurrentPriceRatio float64 `json:"current_price_ratio"`
}

// FeeRecord captures fees earned by the position over the holding period.
type FeeRecord struct {
	FeesEarnedUSD float64 `json:"fees_earned"` // Total fees earned, USD
	DaysHeld      float64 `json:"days_held"`   // Holding period in days, must be positive
}

// ILScenario is one point of the canned what-if table: the IL a 50/50
// constant-product position would carry at the given price ratio.
type ILScenario struct {
	Label        string  `json:"label"`
	PriceRatio   float64 `json:"price_ratio"`
	ILPercentage float64 `json:"il_percentage"`
}

// ILResult is the derived output of a position computation. It is constructed
// fresh per request, returned, and discarded; it is never reused as an input.
type ILResult struct {
	ILPercentage    float64 `json:"il_percentage"`
	ILUSD           float64 `json:"il_usd"`
	InitialValueUSD float64 `json:"initial_value_usd"`
	CurrentValueUSD float64 `json:"current_value_usd"` // Includes fees earned
	HodlValueUSD    float64 `json:"hodl_value_usd"`
	FeeAPR          float64 `json:"fee_apr"`
	NetAPR          float64 `json:"net_apr"`
	Recommendation  string  `json:"recommendation"`
	ShortWindow     bool    `json:"short_window,omitempty"` // Holding period under one day, extrapolation is noisy
}
