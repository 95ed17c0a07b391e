/*
This file contains the low-level EVM JSON-RPC client used for on-chain pool
reads, plus the ABI word helpers shared by the pool retriever. Only eth_call
against view functions is needed, so the encoding surface is small: 4-byte
selectors in, 32-byte words out.
*/

package datafetcher

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/deganai/lp-estimator/internal/logger"
)

var rpcLogger = logger.GetForComponent("rpc_client")

var ErrRPCRequestFailed = errors.New("rpc request failed")
var ErrInvalidCallResult = errors.New("invalid eth_call result")

const (
	MAX_RETRIES     = 3
	TIMEOUT_SECONDS = 30
)

// Function selectors (first 4 bytes of keccak256 of the signature) for every
// view function the retriever reads.
const (
	selectorToken0      = "0x0dfe1681" // token0()
	selectorToken1      = "0xd21220a7" // token1()
	selectorGetReserves = "0x0902f1ac" // getReserves()
	selectorFee         = "0xddca3f43" // fee()
	selectorLiquidity   = "0x1a686502" // liquidity()
	selectorSymbol      = "0x95d89b41" // symbol()
	selectorDecimals    = "0x313ce567" // decimals()
	selectorBalanceOf   = "0x70a08231" // balanceOf(address)
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress reports whether s is a well-formed 20-byte hex address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

type rpcRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// EthCall executes eth_call against a contract and returns the raw hex result.
// Retries transient transport failures with linear backoff; a contract revert
// (RPC error response) is returned immediately because retrying cannot change
// chain state.
func EthCall(ctx context.Context, rpcURL, to, data string) (string, error) {
	if !ValidAddress(to) {
		return "", fmt.Errorf("%w: malformed contract address %q", ErrInvalidCallResult, to)
	}

	payload, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		Method:  "eth_call",
		Params:  []any{map[string]string{"to": strings.ToLower(to), "data": data}, "latest"},
		ID:      1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode rpc request: %w", err)
	}

	client := &http.Client{
		Timeout: TIMEOUT_SECONDS * time.Second,
	}

	var lastErr error
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		rpcLogger.Debug().
			Str("to", to).
			Str("selector", firstSelector(data)).
			Int("attempt", attempt).
			Int("maxRetries", MAX_RETRIES).
			Msg("Making eth_call request")

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL, bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("failed to build rpc request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed on attempt %d: %w", attempt, err)
			rpcLogger.Warn().
				Err(err).
				Str("to", to).
				Int("attempt", attempt).
				Msg("eth_call transport failed, will retry if attempts remain")
			if attempt < MAX_RETRIES {
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			break
		}

		result, retryable, err := processRPCResponse(resp, to)
		if err != nil {
			lastErr = err
			if !retryable {
				return "", err
			}
			if attempt < MAX_RETRIES {
				rpcLogger.Warn().
					Err(err).
					Str("to", to).
					Int("attempt", attempt).
					Msg("eth_call response invalid, will retry if attempts remain")
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			break
		}

		return result, nil
	}

	rpcLogger.Error().
		Err(lastErr).
		Str("to", to).
		Int("maxRetries", MAX_RETRIES).
		Msg("All eth_call attempts failed")
	return "", errors.Join(ErrRPCRequestFailed, lastErr)
}

// processRPCResponse validates one HTTP response. The bool reports whether the
// failure is worth retrying.
func processRPCResponse(resp *http.Response, to string) (string, bool, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", true, fmt.Errorf("rpc returned status %d for %s", resp.StatusCode, to)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read rpc response body: %w", err)
	}
	if len(body) == 0 {
		return "", true, fmt.Errorf("empty rpc response body for %s", to)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return "", true, fmt.Errorf("failed to parse rpc response for %s: %w", to, err)
	}

	if rpcResp.Error != nil {
		// Reverts and execution errors are deterministic.
		return "", false, fmt.Errorf("%w: rpc error %d: %s", ErrInvalidCallResult, rpcResp.Error.Code, rpcResp.Error.Message)
	}

	var result string
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return "", true, fmt.Errorf("rpc result is not a string for %s: %w", to, err)
	}

	if result == "" || result == "0x" {
		// No return data: wrong ABI for this contract. Deterministic.
		return "", false, fmt.Errorf("%w: empty return data from %s", ErrInvalidCallResult, to)
	}

	return result, false, nil
}

// firstSelector extracts the leading selector from call data for logging.
func firstSelector(data string) string {
	if len(data) >= 10 {
		return data[:10]
	}
	return data
}

// callDataWithAddress appends a left-padded address argument to a selector.
func callDataWithAddress(selector, address string) string {
	return selector + strings.Repeat("0", 24) + strings.ToLower(strings.TrimPrefix(address, "0x"))
}

// resultWords splits a hex call result into 32-byte words.
func resultWords(result string) ([]string, error) {
	trimmed := strings.TrimPrefix(result, "0x")
	if len(trimmed) == 0 || len(trimmed)%64 != 0 {
		return nil, fmt.Errorf("%w: result length %d is not word aligned", ErrInvalidCallResult, len(trimmed))
	}
	words := make([]string, 0, len(trimmed)/64)
	for i := 0; i < len(trimmed); i += 64 {
		words = append(words, trimmed[i:i+64])
	}
	return words, nil
}

// addressFromWord extracts the address from a 32-byte return word.
func addressFromWord(word string) (string, error) {
	if len(word) != 64 {
		return "", fmt.Errorf("%w: word length %d", ErrInvalidCallResult, len(word))
	}
	address := "0x" + strings.ToLower(word[24:])
	if !ValidAddress(address) {
		return "", fmt.Errorf("%w: word does not contain an address: %s", ErrInvalidCallResult, word)
	}
	return address, nil
}

// stringFromResult decodes a string return value. Handles both the standard
// ABI dynamic string encoding and the legacy bytes32 encoding some older
// tokens use for symbol().
func stringFromResult(result string) (string, error) {
	words, err := resultWords(result)
	if err != nil {
		return "", err
	}

	// Legacy bytes32 symbol.
	if len(words) == 1 {
		raw, err := hex.DecodeString(words[0])
		if err != nil {
			return "", fmt.Errorf("%w: bad bytes32 symbol: %s", ErrInvalidCallResult, words[0])
		}
		return string(bytes.TrimRight(raw, "\x00")), nil
	}

	// Standard dynamic string: offset word, length word, then data words.
	if len(words) < 3 {
		return "", fmt.Errorf("%w: truncated string encoding", ErrInvalidCallResult)
	}
	length, err := strconv.ParseUint(words[1], 16, 32)
	if err != nil {
		return "", fmt.Errorf("%w: bad string length word: %s", ErrInvalidCallResult, words[1])
	}
	if int(length) > (len(words)-2)*32 {
		return "", fmt.Errorf("%w: string length %d exceeds payload", ErrInvalidCallResult, length)
	}

	raw, err := hex.DecodeString(strings.Join(words[2:], ""))
	if err != nil {
		return "", fmt.Errorf("%w: bad string payload", ErrInvalidCallResult)
	}
	return string(raw[:length]), nil
}
