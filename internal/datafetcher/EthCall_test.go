package datafetcher

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRPC serves eth_call responses keyed by "contract|calldata". A missing
// key answers with an execution revert, which is how a real node reports a
// call against the wrong ABI.
func fakeRPC(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "eth_call", req.Method)

		call := req.Params[0].(map[string]any)
		key := call["to"].(string) + "|" + call["data"].(string)

		w.Header().Set("Content-Type", "application/json")
		if result, ok := results[key]; ok {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":"%s"}`, result)
			return
		}
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"execution reverted"}}`)
	}))
}

func addressWord(addr string) string {
	return strings.Repeat("0", 24) + strings.ToLower(strings.TrimPrefix(addr, "0x"))
}

func uintWord(v uint64) string {
	return fmt.Sprintf("%064x", v)
}

func dynamicString(s string) string {
	data := hex.EncodeToString([]byte(s))
	padded := data + strings.Repeat("0", 64-len(data)%64)
	return "0x" + uintWord(0x20) + uintWord(uint64(len(s))) + padded
}

func TestEthCall(t *testing.T) {
	pool := "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc"
	server := fakeRPC(t, map[string]string{
		pool + "|" + selectorToken0: "0x" + addressWord("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"),
	})
	defer server.Close()

	result, err := EthCall(context.Background(), server.URL, pool, selectorToken0)
	require.NoError(t, err)
	assert.Equal(t, "0x"+addressWord("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"), result)

	// Reverts surface as ErrInvalidCallResult without retrying.
	_, err = EthCall(context.Background(), server.URL, pool, selectorGetReserves)
	assert.ErrorIs(t, err, ErrInvalidCallResult)

	// Malformed addresses are rejected before any request is made.
	_, err = EthCall(context.Background(), server.URL, "not-an-address", selectorToken0)
	assert.ErrorIs(t, err, ErrInvalidCallResult)
}

func TestResultWords(t *testing.T) {
	words, err := resultWords("0x" + uintWord(1) + uintWord(2))
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, uintWord(1), words[0])
	assert.Equal(t, uintWord(2), words[1])

	_, err = resultWords("0x1234")
	assert.ErrorIs(t, err, ErrInvalidCallResult)
	_, err = resultWords("0x")
	assert.ErrorIs(t, err, ErrInvalidCallResult)
}

func TestAddressFromWord(t *testing.T) {
	addr, err := addressFromWord(addressWord("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"))
	require.NoError(t, err)
	assert.Equal(t, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", addr)

	_, err = addressFromWord("deadbeef")
	assert.ErrorIs(t, err, ErrInvalidCallResult)
}

func TestStringFromResult(t *testing.T) {
	// Standard dynamic encoding.
	s, err := stringFromResult(dynamicString("WETH"))
	require.NoError(t, err)
	assert.Equal(t, "WETH", s)

	// Legacy bytes32 encoding (MKR-style symbol).
	raw := hex.EncodeToString([]byte("MKR"))
	s, err = stringFromResult("0x" + raw + strings.Repeat("0", 64-len(raw)))
	require.NoError(t, err)
	assert.Equal(t, "MKR", s)

	_, err = stringFromResult("0x" + uintWord(0x20) + uintWord(9999))
	assert.ErrorIs(t, err, ErrInvalidCallResult)
}

func TestCallDataWithAddress(t *testing.T) {
	data := callDataWithAddress(selectorBalanceOf, "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
	assert.Equal(t, selectorBalanceOf+addressWord("0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc"), data)
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress("0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc"))
	assert.True(t, ValidAddress("0xB4E16D0168E52D35CACD2C6185B44281EC28C9DC"))
	assert.False(t, ValidAddress("b4e16d0168e52d35cacd2c6185b44281ec28c9dc"))
	assert.False(t, ValidAddress("0x1234"))
	assert.False(t, ValidAddress(""))
}
