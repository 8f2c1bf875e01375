package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/multichain-pay/internal/fallback"
)

func TestBitcoinClient_Balance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/address/bc1qtest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"address":"bc1qtest","chain_stats":{"funded_txo_sum":250000000,"spent_txo_sum":100000000,"tx_count":3}}`))
	}))
	defer server.Close()

	client := NewBitcoinClient(time.Second)
	balance, err := client.Balance(context.Background(), server.URL+"/api/", "bc1qtest")

	require.NoError(t, err)
	assert.Equal(t, "1.5", balance.String())
}

func TestBitcoinClient_FeeEstimates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fee-estimates", r.URL.Path)
		w.Write([]byte(`{"1":25.3,"6":12.0,"144":1.01}`))
	}))
	defer server.Close()

	rates, err := NewBitcoinClient(time.Second).FeeEstimates(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, 25.3, rates["1"])
	assert.Len(t, rates, 3)
}

func TestBitcoinClient_RateLimitIsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var hits int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(status)
			}))
			defer server.Close()

			_, err := NewBitcoinClient(time.Second).Balance(context.Background(), server.URL, "bc1qtest")

			require.Error(t, err)
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "Refusals should be returned without retrying")
			assert.Equal(t, status, fallback.ErrorCode(err))
			assert.True(t, fallback.IsTemporaryError(err))
		})
	}
}

func TestBitcoinClient_ServerErrorIsRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"chain_stats":{"funded_txo_sum":1000,"spent_txo_sum":0}}`))
	}))
	defer server.Close()

	balance, err := NewBitcoinClient(time.Second).Balance(context.Background(), server.URL, "bc1qtest")

	require.NoError(t, err)
	assert.Equal(t, "0.00001", balance.String())
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestBitcoinClient_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewBitcoinClient(time.Second).Balance(context.Background(), server.URL, "bc1qtest")

	var rpcErr *fallback.RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, http.StatusNotFound, rpcErr.Code)
	assert.False(t, fallback.IsTemporaryError(err), "Not found is a request-level failure")
}
