/*
This file contains the estimator request handlers: strict request decoding,
the call into the computation core, boundary rounding, and the journal write.
All numeric response fields are rounded to two decimals here and nowhere else;
the core always works at full precision.
*/

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/deganai/lp-estimator/internal/analyzer"
	"github.com/deganai/lp-estimator/internal/datafetcher"
	"github.com/deganai/lp-estimator/internal/state"
	"github.com/deganai/lp-estimator/internal/types"
	"github.com/deganai/lp-estimator/internal/utils"
)

type positionRequest struct {
	Amount0           float64 `json:"amount_0"`
	Amount1           float64 `json:"amount_1"`
	InitialPrice0     float64 `json:"initial_price_0"`
	InitialPrice1     float64 `json:"initial_price_1"`
	CurrentPriceRatio float64 `json:"current_price_ratio"`
	FeesEarned        float64 `json:"fees_earned"`
	DaysHeld          float64 `json:"days_held"`
}

type estimateRequest struct {
	PoolAddress  string    `json:"pool_address"`
	ChainID      int       `json:"chain"`
	WindowHours  float64   `json:"window_hours"`
	PoolType     string    `json:"pool_type"`
	TokenWeights []float64 `json:"token_weights"`
}

type estimateResponse struct {
	Pool            types.PoolInfo `json:"pool"`
	WindowHours     float64        `json:"window_hours"`
	ILPercentage    float64        `json:"il_percentage"`
	FeeAPR          float64        `json:"fee_apr"`
	NetAPR          float64        `json:"net_apr"`
	VolumeWindowUSD float64        `json:"volume_window"`
	PriceChanges    [2]float64     `json:"price_changes"`
	Recommendation  string         `json:"recommendation"`
	ShortWindow     bool           `json:"short_window,omitempty"`
	Notes           []string       `json:"notes,omitempty"`
	Timestamp       string         `json:"timestamp"`
}

// handlePositionEstimate runs the explicit-position path.
func (ws *WebServer) handlePositionEstimate(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON request body: "+err.Error())
		return
	}

	result, err := analyzer.CalculatePositionIL(
		types.Position{
			Amount0:       req.Amount0,
			Amount1:       req.Amount1,
			InitialPrice0: req.InitialPrice0,
			InitialPrice1: req.InitialPrice1,
		},
		types.PriceMovement{CurrentPriceRatio: req.CurrentPriceRatio},
		types.FeeRecord{FeesEarnedUSD: req.FeesEarned, DaysHeld: req.DaysHeld},
	)
	if err != nil {
		ws.writeComputeError(w, err)
		return
	}

	ws.journal(types.EstimateSnapshot{
		Kind:           "position",
		ILPercentage:   result.ILPercentage,
		FeeAPR:         result.FeeAPR,
		NetAPR:         result.NetAPR,
		Recommendation: result.Recommendation,
	})

	ws.writeJSONResponse(w, http.StatusOK, roundResult(result))
}

// handlePoolEstimate runs the on-chain pool path.
func (ws *WebServer) handlePoolEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON request body: "+err.Error())
		return
	}
	if req.PoolAddress == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "pool_address is required")
		return
	}
	if req.ChainID == 0 {
		req.ChainID = 1
	}

	var weights [2]float64
	switch len(req.TokenWeights) {
	case 0:
	case 2:
		weights = [2]float64{req.TokenWeights[0], req.TokenWeights[1]}
	default:
		ws.writeErrorResponse(w, http.StatusBadRequest, "token_weights must contain exactly two entries")
		return
	}

	analysis, err := datafetcher.AnalyzePool(r.Context(), datafetcher.PoolRequest{
		ChainID:      req.ChainID,
		PoolAddress:  req.PoolAddress,
		WindowHours:  req.WindowHours,
		PoolType:     types.PoolType(req.PoolType),
		TokenWeights: weights,
	})
	if err != nil {
		ws.writeComputeError(w, err)
		return
	}

	ilPercentage, err := analyzer.CalculateILForPool(analysis.Context, analysis.PriceRatio0, analysis.PriceRatio1)
	if err != nil {
		ws.writeComputeError(w, err)
		return
	}

	feeAPR, shortWindow, err := analyzer.CalculatePoolFeeAPR(
		analysis.Context.VolumeWindowUSD,
		analysis.Context.FeeTierPercent/100,
		analysis.Context.TvlUSD,
		analysis.Context.WindowHours,
	)
	if err != nil {
		ws.writeComputeError(w, err)
		return
	}

	// Annualize the window IL the same way the position path annualizes
	// per-day IL.
	netAPR := feeAPR + ilPercentage*(365*24)/analysis.Context.WindowHours
	recommendation := analyzer.Recommend(ilPercentage, feeAPR, netAPR)

	// Interpretation first, data-degradation notes from the analysis after.
	notes := append(interpretationNotes(analysis.Context.PoolType, analysis.Context.TokenWeights, ilPercentage), analysis.Notes...)

	ws.journal(types.EstimateSnapshot{
		Kind:           "pool",
		PoolAddress:    analysis.Context.PoolAddress,
		ChainID:        analysis.Context.ChainID,
		ILPercentage:   ilPercentage,
		FeeAPR:         feeAPR,
		NetAPR:         netAPR,
		Recommendation: recommendation,
		Notes:          notes,
	})

	ws.writeJSONResponse(w, http.StatusOK, estimateResponse{
		Pool:            roundPoolInfo(analysis.Info),
		WindowHours:     analysis.Context.WindowHours,
		ILPercentage:    utils.RoundTo2(ilPercentage),
		FeeAPR:          utils.RoundTo2(feeAPR),
		NetAPR:          utils.RoundTo2(netAPR),
		VolumeWindowUSD: utils.RoundTo2(analysis.Context.VolumeWindowUSD),
		PriceChanges:    [2]float64{utils.RoundTo2(analysis.PriceRatio0), utils.RoundTo2(analysis.PriceRatio1)},
		Recommendation:  recommendation,
		ShortWindow:     shortWindow,
		Notes:           notes,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	})
}

// interpretationNotes translates the headline numbers into the guidance users
// get alongside them: IL magnitude callouts plus variant-specific caveats the
// raw figures cannot convey.
func interpretationNotes(poolType types.PoolType, weights [2]float64, ilPercentage float64) []string {
	var notes []string

	if math.Abs(ilPercentage) < 1 {
		notes = append(notes, "Minimal impermanent loss detected (<1%)")
	} else if math.Abs(ilPercentage) > 10 {
		notes = append(notes, "WARNING: High impermanent loss (>10%). Consider if fee APR compensates.")
	}

	switch poolType {
	case types.PoolTypeCurve:
		notes = append(notes, "Curve stablecoin pool - IL typically minimal")
	case types.PoolTypeBalancer:
		notes = append(notes, fmt.Sprintf("Balancer weighted pool - weights: %.2f/%.2f", weights[0], weights[1]))
	case types.PoolTypeUniswapV3:
		notes = append(notes, "Uniswap V3 concentrated liquidity - IL can be higher if price moves out of range")
	}

	return notes
}

// handleScenarios returns the canned what-if table.
func (ws *WebServer) handleScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios := analyzer.ILScenarios()
	rounded := make([]types.ILScenario, len(scenarios))
	for i, s := range scenarios {
		s.ILPercentage = utils.RoundTo2(s.ILPercentage)
		rounded[i] = s
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"scenarios": rounded,
		"count":     len(rounded),
	})
}

// writeComputeError maps core and datafetcher errors onto HTTP statuses.
func (ws *WebServer) writeComputeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analyzer.ErrInvalidInput):
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, analyzer.ErrUnsupportedPoolType):
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, datafetcher.ErrInvalidPoolData),
		errors.Is(err, datafetcher.ErrInvalidCallResult):
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, datafetcher.ErrRPCRequestFailed),
		errors.Is(err, datafetcher.ErrMissingCriticalData),
		errors.Is(err, datafetcher.ErrPriceUnavailable),
		errors.Is(err, datafetcher.ErrInvalidPriceData):
		ws.writeErrorResponse(w, http.StatusBadGateway, err.Error())
	default:
		webLogger.Error().Err(err).Msg("Unexpected computation error")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Internal error")
	}
}

// journal persists a snapshot and bumps the request counter, best effort.
func (ws *WebServer) journal(snapshot types.EstimateSnapshot) {
	if _, err := state.SaveEstimateSnapshot(snapshot); err != nil {
		webLogger.Warn().Err(err).Msg("Failed to journal estimate snapshot")
	}
	if _, err := state.IncrementRequestCounter(); err != nil {
		webLogger.Warn().Err(err).Msg("Failed to increment request counter")
	}
}

// roundResult applies boundary rounding to every numeric field of an ILResult.
func roundResult(result types.ILResult) types.ILResult {
	result.ILPercentage = utils.RoundTo2(result.ILPercentage)
	result.ILUSD = utils.RoundTo2(result.ILUSD)
	result.InitialValueUSD = utils.RoundTo2(result.InitialValueUSD)
	result.CurrentValueUSD = utils.RoundTo2(result.CurrentValueUSD)
	result.HodlValueUSD = utils.RoundTo2(result.HodlValueUSD)
	result.FeeAPR = utils.RoundTo2(result.FeeAPR)
	result.NetAPR = utils.RoundTo2(result.NetAPR)
	return result
}

func roundPoolInfo(info types.PoolInfo) types.PoolInfo {
	info.FeeTierPercent = utils.RoundTo2(info.FeeTierPercent)
	info.TvlUSD = utils.RoundTo2(info.TvlUSD)
	return info
}
