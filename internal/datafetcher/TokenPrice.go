/*
This file fetches token prices from the CoinGecko API, keyed by contract
address and the chain's asset platform. Current prices come from the simple
token price endpoint; the price at the start of an observation window comes
from the market chart endpoint, taking the sample closest to the target time.
*/

package datafetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deganai/lp-estimator/internal/config"
	"github.com/deganai/lp-estimator/internal/logger"
	"github.com/deganai/lp-estimator/internal/types"
)

var priceLogger = logger.GetForComponent("price_retriever")

var ErrInvalidPriceData = errors.New("invalid price data received")
var ErrPriceUnavailable = errors.New("no price data available for token")

// FetchCurrentPrices fetches the current USD price for each contract address
// on a chain. Returns error if any requested token is missing a price - no
// partial results for financial calculations.
func FetchCurrentPrices(ctx context.Context, chainID int, addresses []string) (map[string]float64, error) {
	if len(addresses) == 0 {
		return nil, errors.New("address list cannot be empty")
	}

	platform, err := config.PlatformForChain(chainID)
	if err != nil {
		return nil, err
	}

	lowered := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !ValidAddress(addr) {
			return nil, fmt.Errorf("%w: malformed token address %q", ErrInvalidPriceData, addr)
		}
		lowered = append(lowered, strings.ToLower(addr))
	}

	requestURL := fmt.Sprintf("%s/simple/token_price/%s?contract_addresses=%s&vs_currencies=usd",
		config.CoinGeckoAPI, platform, url.QueryEscape(strings.Join(lowered, ",")))

	body, err := fetchWithRetry(ctx, requestURL, "current prices")
	if err != nil {
		return nil, err
	}

	var parsed map[string]map[string]float64
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse price response: %w", err)
	}

	prices := make(map[string]float64, len(lowered))
	for _, addr := range lowered {
		entry, ok := parsed[addr]
		if !ok {
			return nil, errors.Join(ErrPriceUnavailable, fmt.Errorf("no quote for %s on %s", addr, platform))
		}
		price, ok := entry["usd"]
		if !ok {
			return nil, errors.Join(ErrPriceUnavailable, fmt.Errorf("no USD quote for %s", addr))
		}
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			return nil, errors.Join(ErrInvalidPriceData, fmt.Errorf("price for %s must be finite and positive: %f", addr, price))
		}
		prices[addr] = price
	}

	priceLogger.Debug().
		Int("chainID", chainID).
		Str("platform", platform).
		Int("tokens", len(prices)).
		Msg("Fetched current token prices")

	return prices, nil
}

// FetchMarketChart fetches the USD price series for a token over the last
// daysBack days, validated point by point.
func FetchMarketChart(ctx context.Context, chainID int, address string, daysBack float64) ([]types.PriceData, error) {
	if !ValidAddress(address) {
		return nil, fmt.Errorf("%w: malformed token address %q", ErrInvalidPriceData, address)
	}
	if daysBack <= 0 || math.IsNaN(daysBack) || math.IsInf(daysBack, 0) {
		return nil, fmt.Errorf("%w: daysBack must be finite and positive", ErrInvalidPriceData)
	}

	platform, err := config.PlatformForChain(chainID)
	if err != nil {
		return nil, err
	}

	requestURL := fmt.Sprintf("%s/coins/%s/contract/%s/market_chart?vs_currency=usd&days=%s",
		config.CoinGeckoAPI, platform, strings.ToLower(address), formatDays(daysBack))

	body, err := fetchWithRetry(ctx, requestURL, "market chart")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Prices [][2]float64 `json:"prices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse market chart response: %w", err)
	}
	if len(parsed.Prices) == 0 {
		return nil, errors.Join(ErrPriceUnavailable, fmt.Errorf("empty market chart for %s on %s", address, platform))
	}

	series := make([]types.PriceData, 0, len(parsed.Prices))
	for i, point := range parsed.Prices {
		ms, price := point[0], point[1]
		if ms <= 0 {
			return nil, errors.Join(ErrInvalidPriceData, fmt.Errorf("invalid timestamp at index %d: %f", i, ms))
		}
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			return nil, errors.Join(ErrInvalidPriceData, fmt.Errorf("price at index %d must be finite and positive: %f", i, price))
		}
		series = append(series, types.PriceData{
			Timestamp: time.UnixMilli(int64(ms)),
			Price:     price,
		})
	}

	priceLogger.Debug().
		Str("token", address).
		Int("dataPoints", len(series)).
		Time("oldestData", series[0].Timestamp).
		Time("newestData", series[len(series)-1].Timestamp).
		Msg("Fetched and validated market chart")

	return series, nil
}

// PriceAt returns the series price closest in time to target.
func PriceAt(series []types.PriceData, target time.Time) (float64, error) {
	if len(series) == 0 {
		return 0, ErrPriceUnavailable
	}
	best := series[0]
	bestDiff := absDuration(series[0].Timestamp.Sub(target))
	for _, point := range series[1:] {
		diff := absDuration(point.Timestamp.Sub(target))
		if diff < bestDiff {
			best = point
			bestDiff = diff
		}
	}
	return best.Price, nil
}

// FetchHistoricalPrice fetches the USD price a token had daysBack days ago.
func FetchHistoricalPrice(ctx context.Context, chainID int, address string, daysBack float64) (float64, error) {
	series, err := FetchMarketChart(ctx, chainID, address, daysBack)
	if err != nil {
		return 0, err
	}
	return PriceAt(series, time.Now().Add(-time.Duration(daysBack*24*float64(time.Hour))))
}

// fetchWithRetry GETs a CoinGecko URL with the bounded retry loop. The demo
// API key header is attached when configured.
func fetchWithRetry(ctx context.Context, requestURL, what string) ([]byte, error) {
	client := &http.Client{
		Timeout: TIMEOUT_SECONDS * time.Second,
	}

	var lastErr error
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		priceLogger.Debug().
			Str("what", what).
			Int("attempt", attempt).
			Int("maxRetries", MAX_RETRIES).
			Msg("Making price API request")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build price request: %w", err)
		}
		if config.CoinGeckoAPIKey != "" {
			req.Header.Set("x-cg-demo-api-key", config.CoinGeckoAPIKey)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed on attempt %d: %w", attempt, err)
			priceLogger.Warn().
				Err(err).
				Str("what", what).
				Int("attempt", attempt).
				Msg("Price API request failed, will retry if attempts remain")
			if attempt < MAX_RETRIES {
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			break
		}

		body, err := readPriceResponse(resp, what)
		if err != nil {
			lastErr = err
			if attempt < MAX_RETRIES {
				priceLogger.Warn().
					Err(err).
					Str("what", what).
					Int("attempt", attempt).
					Msg("Price API response invalid, will retry if attempts remain")
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			break
		}

		return body, nil
	}

	priceLogger.Error().
		Err(lastErr).
		Str("what", what).
		Int("maxRetries", MAX_RETRIES).
		Msg("All price API attempts failed")
	return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", what, MAX_RETRIES, lastErr)
}

// readPriceResponse validates status and drains the body.
func readPriceResponse(resp *http.Response, what string) ([]byte, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price API returned status %d for %s", resp.StatusCode, what)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read price response body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty price response body for %s", what)
	}
	return body, nil
}

// formatDays renders the days parameter the way the API expects: integral
// values without a decimal point, fractional values with one.
func formatDays(days float64) string {
	if days == math.Trunc(days) {
		return fmt.Sprintf("%d", int64(days))
	}
	return fmt.Sprintf("%g", days)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
