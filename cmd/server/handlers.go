package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourorg/multichain-pay/internal/fallback"
	"github.com/yourorg/multichain-pay/internal/fee"
	"github.com/yourorg/multichain-pay/internal/health"
	"github.com/yourorg/multichain-pay/internal/model"
	"github.com/yourorg/multichain-pay/internal/types"
	"github.com/yourorg/multichain-pay/internal/validation"
)

// BalanceService is what the API needs from the balance package
type BalanceService interface {
	Balance(ctx context.Context, address string, currency model.Currency, network types.SupportedChain) (model.Balance, error)
	TokenBalances(ctx context.Context, address string, chain types.SupportedChain) ([]model.TokenBalance, error)
	TokenInfo(ctx context.Context, chain types.SupportedChain, contract string) (model.TokenInfo, error)
	Invalidate(address string, currency model.Currency, network types.SupportedChain)
	ClearAll()
}

// FeeService is what the API needs from the fee package
type FeeService interface {
	GasSchedule(ctx context.Context, chain types.SupportedChain) (model.GasSchedule, error)
	EstimateGas(ctx context.Context, chain types.SupportedChain, from, to string, value decimal.Decimal) (uint64, bool, error)
	CalculateEVMFee(ctx context.Context, chain types.SupportedChain, gasLimit uint64, speed model.Speed) (model.FeeQuote, error)
	EstimateSolanaFee(ctx context.Context, level model.PriorityLevel) (model.SolanaFeeEstimate, error)
	BitcoinFeeRates(ctx context.Context) (model.BitcoinFeeRates, error)
}

// BalanceResponse is the body of GET /balance; Balance is null when it could not be fetched
type BalanceResponse struct {
	Address  string                  `json:"address"`
	Currency model.Currency          `json:"currency"`
	Network  types.SupportedChain    `json:"network,omitempty"`
	Balance  *decimal.Decimal        `json:"balance"`
	Error    string                  `json:"error,omitempty"`
	Details  []fallback.AttemptError `json:"details,omitempty"`
}

// EndpointStatus is one row of GET /endpoints
type EndpointStatus struct {
	Endpoint string `json:"endpoint"`
	health.Status
}

// ChainEndpoints lists the endpoint pool of a chain in configured order
type ChainEndpoints struct {
	Chain      types.SupportedChain `json:"chain"`
	RetryDelay string               `json:"retry_delay"`
	Endpoints  []EndpointStatus     `json:"endpoints"`
}

func queryChain(r *http.Request, key string, def types.SupportedChain) (types.SupportedChain, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key)))
	if raw == "" {
		return def, nil
	}
	chain := types.SupportedChain(raw)
	if !chain.Valid() {
		return "", fmt.Errorf("%w: chain %q", validation.ErrUnsupportedCurrency, raw)
	}
	return chain, nil
}

func requireParam(r *http.Request, key string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return "", fmt.Errorf("%w: missing %s", validation.ErrInvalidAddress, key)
	}
	return v, nil
}

// handleBalance serves GET /balance?address=&currency=&network=
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp := BalanceResponse{
		Address:  strings.TrimSpace(q.Get("address")),
		Currency: model.ParseCurrency(q.Get("currency")),
		Network:  types.SupportedChain(strings.ToLower(strings.TrimSpace(q.Get("network")))),
	}
	if resp.Address == "" || resp.Currency == "" {
		resp.Error = "address and currency are required"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	bal, err := s.balances.Balance(r.Context(), resp.Address, resp.Currency, resp.Network)
	if err != nil {
		status := statusForError(err)
		requestLogger(r).WithField("status", status).Warn(err.Error())
		resp.Error = err.Error()
		var aggErr *fallback.AggregateError
		if errors.As(err, &aggErr) {
			resp.Details = aggErr.Details
		}
		writeJSON(w, status, resp)
		return
	}

	resp.Network = bal.Chain
	resp.Balance = &bal.Amount
	writeJSON(w, http.StatusOK, resp)
}

// handleTokenBalances serves GET /tokens?address=&chain=
func (s *Server) handleTokenBalances(w http.ResponseWriter, r *http.Request) {
	address, err := requireParam(r, "address")
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err)
		return
	}
	chain, err := queryChain(r, "chain", types.ChainSolana)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err)
		return
	}

	tokens, err := s.balances.TokenBalances(r.Context(), address, chain)
	if err != nil {
		s.errorResponse(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"chain":   chain,
		"tokens":  tokens,
	})
}

// handleTokenInfo serves GET /tokens/info?chain=&contract=
func (s *Server) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	contract, err := requireParam(r, "contract")
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err)
		return
	}
	chain, err := queryChain(r, "chain", types.ChainEthereum)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err)
		return
	}

	info, err := s.balances.TokenInfo(r.Context(), chain, contract)
	if err != nil {
		s.errorResponse(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleGasSchedule serves GET /fees/evm?chain=
func (s *Server) handleGasSchedule(w http.ResponseWriter, r *http.Request) {
	chain, err := queryChain(r, "chain", types.ChainEthereum)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err)
		return
	}

	schedule, err := s.fees.GasSchedule(r.Context(), chain)
	if err != nil {
		s.errorResponse(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// handleFeeQuote serves GET /fees/evm/quote?chain=&speed=&gasLimit= or &from=&to=&value=.
// Without gasLimit the limit is estimated from from/to/value, or the plain transfer default.
func (s *Server) handleFeeQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chain, err := queryChain(r, "chain", types.ChainEthereum)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err)
		return
	}
	speed := model.Speed(strings.ToLower(q.Get("speed")))

	gasLimit := fee.DefaultGasLimit
	estimateFallback := false
	switch {
	case q.Get("gasLimit") != "":
		gasLimit, err = strconv.ParseUint(q.Get("gasLimit"), 10, 64)
		if err != nil || gasLimit == 0 {
			s.errorResponse(w, r, http.StatusBadRequest, fmt.Errorf("%w: gasLimit %q", validation.ErrInvalidAmount, q.Get("gasLimit")))
			return
		}
	case q.Get("from") != "" && q.Get("to") != "":
		value := decimal.Zero
		if raw := q.Get("value"); raw != "" {
			if value, err = validation.ValidateAmount(raw, 18); err != nil {
				s.errorResponse(w, r, http.StatusBadRequest, err)
				return
			}
		}
		gasLimit, estimateFallback, err = s.fees.EstimateGas(r.Context(), chain, q.Get("from"), q.Get("to"), value)
		if err != nil {
			s.errorResponse(w, r, statusForError(err), err)
			return
		}
	}

	quote, err := s.fees.CalculateEVMFee(r.Context(), chain, gasLimit, speed)
	if err != nil {
		s.errorResponse(w, r, statusForError(err), err)
		return
	}
	quote.Fallback = quote.Fallback || estimateFallback
	writeJSON(w, http.StatusOK, quote)
}

// handleSolanaFee serves GET /fees/solana?priority=
func (s *Server) handleSolanaFee(w http.ResponseWriter, r *http.Request) {
	level := model.PriorityLevel(strings.ToLower(r.URL.Query().Get("priority")))
	if level == "" {
		level = model.PriorityNone
	}

	estimate, err := s.fees.EstimateSolanaFee(r.Context(), level)
	if err != nil {
		s.errorResponse(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

// handleBitcoinFees serves GET /fees/bitcoin
func (s *Server) handleBitcoinFees(w http.ResponseWriter, r *http.Request) {
	rates, err := s.fees.BitcoinFeeRates(r.Context())
	if err != nil {
		s.errorResponse(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rates)
}

// handleEndpoints serves GET /endpoints?chain=, the health snapshot of each pool
func (s *Server) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	chains := types.AllChains
	if r.URL.Query().Get("chain") != "" {
		chain, err := queryChain(r, "chain", "")
		if err != nil {
			s.errorResponse(w, r, http.StatusBadRequest, err)
			return
		}
		chains = []types.SupportedChain{chain}
	}

	out := make([]ChainEndpoints, 0, len(chains))
	for _, chain := range chains {
		endpoints := s.config.Endpoints(chain)
		if len(endpoints) == 0 {
			continue
		}
		statuses := s.tracker.Status(string(chain), endpoints)

		entry := ChainEndpoints{
			Chain:      chain,
			RetryDelay: s.tracker.RetryDelay().String(),
			Endpoints:  make([]EndpointStatus, 0, len(endpoints)),
		}
		for _, ep := range endpoints {
			entry.Endpoints = append(entry.Endpoints, EndpointStatus{Endpoint: ep, Status: statuses[ep]})
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleEndpointsReset serves POST /endpoints/reset
func (s *Server) handleEndpointsReset(w http.ResponseWriter, r *http.Request) {
	s.tracker.Reset()
	requestLogger(r).Info("Endpoint health reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCacheInvalidate serves POST /cache/invalidate?address=&currency=&network=.
// Without address and currency the whole cache is dropped.
func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	address := strings.TrimSpace(q.Get("address"))
	currency := model.ParseCurrency(q.Get("currency"))

	switch {
	case address == "" && currency == "":
		s.balances.ClearAll()
	case address == "" || currency == "":
		s.errorResponse(w, r, http.StatusBadRequest, errors.New("address and currency must be given together"))
		return
	default:
		s.balances.Invalidate(address, currency, types.SupportedChain(strings.ToLower(q.Get("network"))))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"uptime":    time.Since(startTime).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

