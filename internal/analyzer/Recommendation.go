/*

This file contains the position recommendation classifier. Rules are checked
in a fixed order and the first match wins, so the most urgent condition always
takes priority over the generic profitability buckets.

*/

package analyzer

import "math"

// Recommendation labels returned by Recommend. Exported so callers and
// dashboards can match on them rather than string-compare ad hoc copies.
const (
	RecommendationExit       = "Consider exiting - IL exceeds fee earnings"
	RecommendationStrong     = "Strong position - fees outpace IL"
	RecommendationProfitable = "Profitable position - fees covering IL"
	RecommendationHighIL     = "High IL detected - evaluate exit strategy"
	RecommendationMonitor    = "Monitor position"
)

// Classification thresholds, in percentage points.
const (
	exitILThreshold   = -5.0
	highILThreshold   = -10.0
	strongNetAPRFloor = 10.0
)

// Recommend classifies a position from its IL percentage, fee APR, and net
// APR. All inputs are percentages. Rules are evaluated in order:
//  1. IL worse than -5% and fees not covering it: exit.
//  2. Net APR above 10%: strong.
//  3. Net APR positive: profitable.
//  4. IL worse than -10%: high IL warning.
//  5. Otherwise: monitor.
func Recommend(ilPercentage, feeAPR, netAPR float64) string {
	if ilPercentage < exitILThreshold && feeAPR < math.Abs(ilPercentage) {
		return RecommendationExit
	}
	if netAPR > strongNetAPRFloor {
		return RecommendationStrong
	}
	if netAPR > 0 {
		return RecommendationProfitable
	}
	if ilPercentage < highILThreshold {
		return RecommendationHighIL
	}
	return RecommendationMonitor
}
