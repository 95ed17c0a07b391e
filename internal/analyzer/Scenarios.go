/*

This file contains the canned what-if scenario table. It evaluates the closed
form IL curve at a fixed set of price movements so clients can show the shape
of the curve without issuing one request per point.

*/

package analyzer

import "github.com/deganai/lp-estimator/internal/types"

// scenarioPoints is the fixed set of price movements evaluated by
// ILScenarios, ordered from largest drawdown to largest rally.
var scenarioPoints = []struct {
	label string
	ratio float64
}{
	{"price -50% (0.5x)", 0.5},
	{"price -25%", 0.75},
	{"price -10%", 0.9},
	{"no change", 1.0},
	{"price +10%", 1.1},
	{"price +25%", 1.25},
	{"price +100% (2x)", 2.0},
	{"price +200% (3x)", 3.0},
	{"price +300% (4x)", 4.0},
	{"price +400% (5x)", 5.0},
}

// ILScenarios evaluates the constant product IL curve at the standard set of
// price movements.
//
// Output:
//   - One entry per scenario with the label, the price ratio, and the IL
//     percentage at that ratio.
func ILScenarios() []types.ILScenario {
	scenarios := make([]types.ILScenario, 0, len(scenarioPoints))
	for _, point := range scenarioPoints {
		il, err := CalculateClosedFormIL(point.ratio)
		if err != nil {
			// Ratios in the table are all finite and positive, an error
			// here means the table itself is broken.
			ilLogger.Error().Err(err).
				Str("scenario", point.label).
				Float64("priceRatio", point.ratio).
				Msg("Skipping scenario with invalid ratio")
			continue
		}
		scenarios = append(scenarios, types.ILScenario{
			Label:        point.label,
			PriceRatio:   point.ratio,
			ILPercentage: il,
		})
	}
	return scenarios
}
