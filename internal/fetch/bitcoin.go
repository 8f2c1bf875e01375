package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"github.com/yourorg/multichain-pay/internal/model"
	"github.com/yourorg/multichain-pay/internal/units"
)

// BitcoinClient talks to Esplora-compatible REST APIs (Blockstream, mempool.space)
type BitcoinClient struct {
	http *retryablehttp.Client
}

// addressStats is the subset of GET /address/{address} we use
type addressStats struct {
	Address    string `json:"address"`
	ChainStats struct {
		FundedTxoSum int64 `json:"funded_txo_sum"`
		SpentTxoSum  int64 `json:"spent_txo_sum"`
		TxCount      int64 `json:"tx_count"`
	} `json:"chain_stats"`
}

// NewBitcoinClient creates a client with the given per-request timeout
func NewBitcoinClient(timeout time.Duration) *BitcoinClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &BitcoinClient{http: newRetryClient(timeout)}
}

// Balance returns the confirmed balance of address in BTC
func (c *BitcoinClient) Balance(ctx context.Context, endpoint, address string) (decimal.Decimal, error) {
	var stats addressStats
	if err := c.getJSON(ctx, endpoint, "/address/"+url.PathEscape(address), &stats); err != nil {
		return decimal.Zero, err
	}
	sats := stats.ChainStats.FundedTxoSum - stats.ChainStats.SpentTxoSum
	return units.SatoshisToBtc(sats), nil
}

// FeeEstimates returns sat/vB fee rates keyed by confirmation target in blocks
func (c *BitcoinClient) FeeEstimates(ctx context.Context, endpoint string) (model.BitcoinFeeRates, error) {
	rates := model.BitcoinFeeRates{}
	if err := c.getJSON(ctx, endpoint, "/fee-estimates", &rates); err != nil {
		return nil, err
	}
	return rates, nil
}

func (c *BitcoinClient) getJSON(ctx context.Context, endpoint, path string, out interface{}) error {
	target := strings.TrimRight(endpoint, "/") + path

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return fmt.Errorf("request to %s failed: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", target, err)
	}
	return nil
}
