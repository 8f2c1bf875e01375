// Package model defines the balance and fee shapes returned to the application layer.
package model

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yourorg/multichain-pay/internal/types"
)

// Currency is a payable asset symbol
type Currency string

// Supported currencies
const (
	CurrencySOL  Currency = "SOL"
	CurrencyETH  Currency = "ETH"
	CurrencyBTC  Currency = "BTC"
	CurrencyUSDC Currency = "USDC"
)

// ParseCurrency normalises a user supplied symbol
func ParseCurrency(s string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(s)))
}

// Balance is a resolved balance for one address and asset
type Balance struct {
	Address  string               `json:"address"`
	Currency Currency             `json:"currency"`
	Chain    types.SupportedChain `json:"chain"`
	Amount   decimal.Decimal      `json:"amount"`
}

// TokenInfo is on-chain ERC-20 metadata
type TokenInfo struct {
	Contract string `json:"contract"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// Speed selects a gas tier
type Speed string

// Gas tiers
const (
	SpeedSlow   Speed = "slow"
	SpeedMedium Speed = "medium"
	SpeedFast   Speed = "fast"
)

// GasTier is one speed option of an EVM gas schedule
type GasTier struct {
	GasPrice      *big.Int `json:"gas_price"`
	Gwei          string   `json:"gwei"`
	EstimatedTime string   `json:"estimated_time"`
}

// GasSchedule is the slow/medium/fast gas price menu for an EVM chain.
// Fallback is set when the values are defaults because no endpoint answered.
type GasSchedule struct {
	Chain    types.SupportedChain `json:"chain"`
	Slow     GasTier              `json:"slow"`
	Medium   GasTier              `json:"medium"`
	Fast     GasTier              `json:"fast"`
	Fallback bool                 `json:"fallback"`
}

// Tier returns the tier for speed, defaulting to medium
func (g GasSchedule) Tier(speed Speed) GasTier {
	switch speed {
	case SpeedSlow:
		return g.Slow
	case SpeedFast:
		return g.Fast
	default:
		return g.Medium
	}
}

// FeeQuote is the cost of an EVM transaction at a given speed
type FeeQuote struct {
	GasLimit      uint64          `json:"gas_limit"`
	GasPriceGwei  string          `json:"gas_price_gwei"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	EstimatedTime string          `json:"estimated_time"`
	Fallback      bool            `json:"fallback"`
}

// PriorityLevel selects a Solana priority fee
type PriorityLevel string

// Solana priority levels
const (
	PriorityNone   PriorityLevel = "none"
	PriorityLow    PriorityLevel = "low"
	PriorityMedium PriorityLevel = "medium"
	PriorityHigh   PriorityLevel = "high"
)

// PriorityFees are Solana priority fees per level, in micro-lamports per compute unit
type PriorityFees struct {
	None     uint64 `json:"none"`
	Low      uint64 `json:"low"`
	Medium   uint64 `json:"medium"`
	High     uint64 `json:"high"`
	Fallback bool   `json:"fallback"`
}

// Level returns the fee for level; unknown levels cost nothing
func (p PriorityFees) Level(level PriorityLevel) uint64 {
	switch level {
	case PriorityLow:
		return p.Low
	case PriorityMedium:
		return p.Medium
	case PriorityHigh:
		return p.High
	default:
		return p.None
	}
}

// SolanaFeeEstimate is the expected fee of a Solana transfer in SOL
type SolanaFeeEstimate struct {
	BaseFee       decimal.Decimal `json:"base_fee"`
	PriorityFee   decimal.Decimal `json:"priority_fee"`
	TotalFee      decimal.Decimal `json:"total_fee"`
	PriorityLevel PriorityLevel   `json:"priority_level"`
	Fallback      bool            `json:"fallback"`
}

// BitcoinFeeRates maps a confirmation target in blocks to sat/vB
type BitcoinFeeRates map[string]float64

// TokenBalance is one entry of a wallet's token list.
// Balance is nil and Error set when the token could not be read.
type TokenBalance struct {
	Symbol   string           `json:"symbol"`
	Address  string           `json:"address"`
	Decimals int32            `json:"decimals"`
	Balance  *decimal.Decimal `json:"balance"`
	Error    string           `json:"error,omitempty"`
}
