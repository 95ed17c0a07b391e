/*
This file contains the x402 payment gate and the discovery documents agents
use to find it. The service never touches payment cryptography itself: the
X-PAYMENT header is relayed to a facilitator for verification and settlement,
and a missing or rejected payment is answered with a 402 carrying the accepts
manifest.
*/

package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/deganai/lp-estimator/internal/config"
	"github.com/deganai/lp-estimator/internal/logger"
)

var paymentLogger = logger.GetForComponent("payment_gate")

const entrypointID = "lp-impermanent-loss-estimator"

const x402Version = 1

// usdcAssets maps x402 network names to the USDC contract used for payment.
var usdcAssets = map[string]string{
	"base":         "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
	"base-sepolia": "0x036cbd53842c5426634e7929541ec2318f3dcf7e",
}

// paymentRequirements is one entry of the accepts manifest.
type paymentRequirements struct {
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"`
	MaxAmountRequired string            `json:"maxAmountRequired"`
	Resource          string            `json:"resource"`
	Description       string            `json:"description"`
	MimeType          string            `json:"mimeType"`
	PayTo             string            `json:"payTo"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds"`
	Asset             string            `json:"asset"`
	Extra             map[string]string `json:"extra,omitempty"`
}

type verifyRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentHeader       string              `json:"paymentHeader"`
	PaymentRequirements paymentRequirements `json:"paymentRequirements"`
}

type verifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

// requirementsFor builds the payment requirements for one gated resource.
func requirementsFor(path, description string) paymentRequirements {
	return paymentRequirements{
		Scheme:            "exact",
		Network:           config.PaymentNetwork,
		MaxAmountRequired: priceAtomicUSDC(),
		Resource:          config.BaseURL + path,
		Description:       description,
		MimeType:          "application/json",
		PayTo:             config.PaymentAddress,
		MaxTimeoutSeconds: 60,
		Asset:             usdcAssets[config.PaymentNetwork],
		Extra:             map[string]string{"name": "USD Coin", "version": "2"},
	}
}

// priceAtomicUSDC renders the configured USDC price in 6-decimal atomic units.
func priceAtomicUSDC() string {
	price, err := strconv.ParseFloat(config.PriceUSDC, 64)
	if err != nil || price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		paymentLogger.Warn().Str("priceUSDC", config.PriceUSDC).Msg("Unparseable price, defaulting to 0.05 USDC")
		price = 0.05
	}
	return strconv.FormatInt(int64(math.Round(price*1e6)), 10)
}

// gatedResources lists every paid route with its manifest description.
func gatedResources() map[string]string {
	return map[string]string{
		"/lp/estimate": "Estimate impermanent loss and fee APR for an on-chain AMM pool",
		"/lp/position": "Calculate impermanent loss and fee APR for an explicit LP position",
		"/entrypoints/" + entrypointID + "/invoke": "Invoke the LP impermanent loss estimator",
	}
}

// paymentMiddleware enforces x402 on a handler. Free mode bypasses the gate
// entirely; otherwise a missing or unverifiable X-PAYMENT header answers 402
// with the accepts manifest for the requested resource.
func (ws *WebServer) paymentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if config.FreeMode {
			next.ServeHTTP(w, r)
			return
		}

		requirements := requirementsFor(r.URL.Path, gatedResources()[r.URL.Path])

		paymentHeader := r.Header.Get("X-PAYMENT")
		if paymentHeader == "" {
			ws.write402(w, "X-PAYMENT header is required", requirements)
			return
		}

		if err := ws.verifyPayment(paymentHeader, requirements); err != nil {
			paymentLogger.Warn().Err(err).Str("path", r.URL.Path).Msg("Payment verification failed")
			ws.write402(w, err.Error(), requirements)
			return
		}

		next.ServeHTTP(w, r)

		// Settlement runs after the response; a failure here is logged and
		// reconciled out of band, not surfaced to the caller.
		go ws.settlePayment(paymentHeader, requirements)
	})
}

// write402 answers with the x402 payment-required envelope.
func (ws *WebServer) write402(w http.ResponseWriter, reason string, requirements paymentRequirements) {
	ws.writeJSONResponse(w, http.StatusPaymentRequired, map[string]interface{}{
		"x402Version": x402Version,
		"error":       reason,
		"accepts":     []paymentRequirements{requirements},
	})
}

// verifyPayment relays the payment header to the facilitators in order and
// accepts the first positive verdict.
func (ws *WebServer) verifyPayment(paymentHeader string, requirements paymentRequirements) error {
	var lastErr error
	for _, facilitator := range config.FacilitatorURLs {
		verdict, err := ws.callFacilitator(facilitator+"/verify", paymentHeader, requirements)
		if err != nil {
			lastErr = err
			paymentLogger.Warn().Err(err).Str("facilitator", facilitator).Msg("Facilitator unreachable, trying next")
			continue
		}
		if verdict.IsValid {
			return nil
		}
		return fmt.Errorf("payment rejected: %s", verdict.InvalidReason)
	}
	if lastErr != nil {
		return fmt.Errorf("no facilitator reachable: %w", lastErr)
	}
	return fmt.Errorf("no facilitators configured")
}

// settlePayment asks the facilitators to settle a verified payment.
func (ws *WebServer) settlePayment(paymentHeader string, requirements paymentRequirements) {
	for _, facilitator := range config.FacilitatorURLs {
		if _, err := ws.callFacilitator(facilitator+"/settle", paymentHeader, requirements); err != nil {
			paymentLogger.Warn().Err(err).Str("facilitator", facilitator).Msg("Settlement failed, trying next")
			continue
		}
		return
	}
	paymentLogger.Error().Msg("Payment settlement failed on every facilitator")
}

// callFacilitator POSTs one verify/settle request.
func (ws *WebServer) callFacilitator(url, paymentHeader string, requirements paymentRequirements) (verifyResponse, error) {
	payload, err := json.Marshal(verifyRequest{
		X402Version:         x402Version,
		PaymentHeader:       paymentHeader,
		PaymentRequirements: requirements,
	})
	if err != nil {
		return verifyResponse{}, fmt.Errorf("failed to encode facilitator request: %w", err)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return verifyResponse{}, fmt.Errorf("facilitator request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return verifyResponse{}, fmt.Errorf("failed to read facilitator response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return verifyResponse{}, fmt.Errorf("facilitator returned status %d: %s", resp.StatusCode, string(body))
	}

	var verdict verifyResponse
	if err := json.Unmarshal(body, &verdict); err != nil {
		return verifyResponse{}, fmt.Errorf("failed to parse facilitator response: %w", err)
	}
	return verdict, nil
}

// handleX402Manifest serves the well-known payment discovery document. The
// 402 status is part of the protocol: it tells crawling agents what paying
// for this service buys.
func (ws *WebServer) handleX402Manifest(w http.ResponseWriter, r *http.Request) {
	accepts := make([]paymentRequirements, 0, len(gatedResources()))
	for path, description := range gatedResources() {
		accepts = append(accepts, requirementsFor(path, description))
	}

	status := http.StatusPaymentRequired
	if config.FreeMode {
		status = http.StatusOK
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		return
	}

	ws.writeJSONResponse(w, status, map[string]interface{}{
		"x402Version": x402Version,
		"accepts":     accepts,
	})
}

// handleAgentCard serves the agent discovery card.
func (ws *WebServer) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}

	card := map[string]interface{}{
		"name":        "LP Impermanent Loss Estimator",
		"description": "Estimates impermanent loss and fee APR for AMM liquidity positions, from explicit position records or live on-chain pools.",
		"url":         config.BaseURL,
		"version":     "1.0.0",
		"capabilities": map[string]interface{}{
			"streaming": false,
		},
		"entrypoints": []map[string]interface{}{
			{
				"id":          entrypointID,
				"description": "Estimate IL and fee APR for an LP position or pool",
				"url":         config.BaseURL + "/entrypoints/" + entrypointID + "/invoke",
				"pricing": map[string]interface{}{
					"amount":   config.PriceUSDC,
					"currency": "USDC",
					"network":  config.PaymentNetwork,
					"freeMode": config.FreeMode,
				},
			},
		},
		"payments": map[string]interface{}{
			"protocol": "x402",
			"manifest": config.BaseURL + "/.well-known/x402",
		},
	}

	ws.writeJSONResponse(w, http.StatusOK, card)
}

// handleInvokeDiscovery answers GET/HEAD probes on the entrypoint with its
// payment manifest.
func (ws *WebServer) handleInvokeDiscovery(w http.ResponseWriter, r *http.Request) {
	path := "/entrypoints/" + entrypointID + "/invoke"
	requirements := requirementsFor(path, gatedResources()[path])

	status := http.StatusPaymentRequired
	if config.FreeMode {
		status = http.StatusOK
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		return
	}

	ws.writeJSONResponse(w, status, map[string]interface{}{
		"x402Version": x402Version,
		"error":       "payment required to invoke this entrypoint",
		"accepts":     []paymentRequirements{requirements},
	})
}

// invokeEnvelope is the AP2 request wrapper: the estimator input travels
// under "input".
type invokeEnvelope struct {
	Input json.RawMessage `json:"input"`
}

// handleInvoke dispatches an entrypoint invocation to the pool or position
// path based on the input shape.
func (ws *WebServer) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var envelope invokeEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON request body: "+err.Error())
		return
	}
	if len(envelope.Input) == 0 {
		ws.writeErrorResponse(w, http.StatusBadRequest, "input is required")
		return
	}

	// A pool_address in the input selects the on-chain path.
	var probe struct {
		PoolAddress string `json:"pool_address"`
	}
	if err := json.Unmarshal(envelope.Input, &probe); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid input payload: "+err.Error())
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(envelope.Input))
	if probe.PoolAddress != "" {
		ws.handlePoolEstimate(w, r)
		return
	}
	ws.handlePositionEstimate(w, r)
}
