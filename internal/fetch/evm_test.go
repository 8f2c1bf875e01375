package fetch

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/multichain-pay/internal/fallback"
)

const (
	testEVMOwner = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	testUSDC     = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

// erc20Call answers eth_call by the 4-byte selector of the packed input
func erc20Call(t *testing.T, outputs map[string][]interface{}) func(json.RawMessage) rpcReply {
	return func(params json.RawMessage) rpcReply {
		var raw []json.RawMessage
		require.NoError(t, json.Unmarshal(params, &raw))
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(raw[0], &msg))

		input, _ := msg["input"].(string)
		if input == "" {
			input, _ = msg["data"].(string)
		}
		for method, values := range outputs {
			selector := hexutil.Encode(ERC20ABI.Methods[method].ID)
			if strings.HasPrefix(input, selector) {
				packed, err := ERC20ABI.Methods[method].Outputs.Pack(values...)
				require.NoError(t, err)
				return rpcReply{Result: `"` + hexutil.Encode(packed) + `"`}
			}
		}
		return rpcReply{Code: 3, Msg: "execution reverted"}
	}
}

func TestEVMClient_NativeBalance(t *testing.T) {
	server := newRPCServer(t, map[string]func(json.RawMessage) rpcReply{
		"eth_getBalance": result(`"0xde0b6b3a7640000"`),
	})

	balance, err := NewEVMClient().NativeBalance(context.Background(), server.URL, testEVMOwner)

	require.NoError(t, err)
	assert.Equal(t, "1", balance.String())
}

func TestEVMClient_InvalidAddress(t *testing.T) {
	_, err := NewEVMClient().NativeBalance(context.Background(), "http://unused.invalid", "0x123")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid address")
}

func TestEVMClient_TokenBalance(t *testing.T) {
	server := newRPCServer(t, map[string]func(json.RawMessage) rpcReply{
		"eth_call": erc20Call(t, map[string][]interface{}{
			"balanceOf": {big.NewInt(12_345_678)},
		}),
	})

	balance, err := NewEVMClient().TokenBalance(context.Background(), server.URL, testEVMOwner, testUSDC, 6)

	require.NoError(t, err)
	assert.Equal(t, "12.345678", balance.String())
}

func TestEVMClient_TokenInfo(t *testing.T) {
	server := newRPCServer(t, map[string]func(json.RawMessage) rpcReply{
		"eth_call": erc20Call(t, map[string][]interface{}{
			"name":     {"USD Coin"},
			"symbol":   {"USDC"},
			"decimals": {uint8(6)},
		}),
	})

	info, err := NewEVMClient().TokenInfo(context.Background(), server.URL, strings.ToLower(testUSDC))

	require.NoError(t, err)
	assert.Equal(t, "USD Coin", info.Name)
	assert.Equal(t, "USDC", info.Symbol)
	assert.Equal(t, int32(6), info.Decimals)
	assert.Equal(t, testUSDC, info.Contract, "Contract should be checksummed")
}

func TestEVMClient_GasPriceAndEstimate(t *testing.T) {
	server := newRPCServer(t, map[string]func(json.RawMessage) rpcReply{
		"eth_gasPrice":    result(`"0x4a817c800"`),
		"eth_estimateGas": result(`"0x5208"`),
	})
	client := NewEVMClient()
	defer client.Close()

	price, err := client.GasPrice(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20_000_000_000), price)

	gas, err := client.EstimateGas(context.Background(), server.URL, testEVMOwner, testEVMOwner, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), gas)
}

func TestEVMClient_ReusesDialledClient(t *testing.T) {
	server := newRPCServer(t, map[string]func(json.RawMessage) rpcReply{
		"eth_gasPrice": result(`"0x1"`),
	})
	client := NewEVMClient()

	_, err := client.GasPrice(context.Background(), server.URL)
	require.NoError(t, err)
	_, err = client.GasPrice(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Len(t, client.clients, 1)
}

func TestEVMClient_ErrorCodes(t *testing.T) {
	t.Run("json-rpc rate limit", func(t *testing.T) {
		server := newRPCServer(t, map[string]func(json.RawMessage) rpcReply{
			"eth_gasPrice": func(json.RawMessage) rpcReply { return rpcReply{Code: -32005, Msg: "rate limit exceeded"} },
		})

		_, err := NewEVMClient().GasPrice(context.Background(), server.URL)

		require.Error(t, err)
		assert.Equal(t, -32005, fallback.ErrorCode(err))
		assert.True(t, fallback.IsTemporaryError(err))
	})

	t.Run("http forbidden", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		_, err := NewEVMClient().GasPrice(context.Background(), server.URL)

		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, fallback.ErrorCode(err))
		assert.True(t, fallback.IsTemporaryError(err))
	})

	t.Run("reverted call", func(t *testing.T) {
		server := newRPCServer(t, map[string]func(json.RawMessage) rpcReply{
			"eth_call": erc20Call(t, nil),
		})

		_, err := NewEVMClient().TokenBalance(context.Background(), server.URL, testEVMOwner, testUSDC, 6)

		require.Error(t, err)
		assert.False(t, fallback.IsTemporaryError(err))
	})
}
