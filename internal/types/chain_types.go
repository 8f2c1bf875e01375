// Package types contains shared type definitions used across multiple packages
package types

// SupportedChain represents a blockchain network the wallet can query
type SupportedChain string

// Supported blockchain networks
const (
	ChainSolana   SupportedChain = "solana"
	ChainEthereum SupportedChain = "ethereum"
	ChainPolygon  SupportedChain = "polygon"
	ChainBase     SupportedChain = "base"
	ChainBitcoin  SupportedChain = "bitcoin"
)

// AllChains lists every supported chain in display order
var AllChains = []SupportedChain{ChainSolana, ChainEthereum, ChainPolygon, ChainBase, ChainBitcoin}

// IsEVM reports whether the chain speaks the Ethereum JSON-RPC API
func (c SupportedChain) IsEVM() bool {
	switch c {
	case ChainEthereum, ChainPolygon, ChainBase:
		return true
	}
	return false
}

// Valid reports whether c is one of the supported chains
func (c SupportedChain) Valid() bool {
	for _, known := range AllChains {
		if c == known {
			return true
		}
	}
	return false
}

// ChainConfig holds the ordered endpoint pool for a chain
type ChainConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Network   string   `json:"network" yaml:"network" validate:"required"`
	Endpoints []string `json:"endpoints" yaml:"endpoints" validate:"required,min=1,dive,url"`
	Explorer  string   `json:"explorer,omitempty" yaml:"explorer,omitempty" validate:"omitempty,url"`
}

// Token describes a fungible token on a chain. Address holds the SPL mint or ERC-20 contract.
type Token struct {
	Symbol   string         `json:"symbol" yaml:"symbol" validate:"required"`
	Name     string         `json:"name" yaml:"name"`
	Address  string         `json:"address" yaml:"address" validate:"required"`
	Decimals int32          `json:"decimals" yaml:"decimals" validate:"gte=0,lte=36"`
	Chain    SupportedChain `json:"chain" yaml:"chain" validate:"required"`
}
