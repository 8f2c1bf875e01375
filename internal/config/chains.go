package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/yourorg/multichain-pay/internal/types"
	"gopkg.in/yaml.v3"
)

// ChainsFile is the YAML layout of CHAINS_CONFIG.
// Chains listed in the file replace the built-in entry of the same name; token lists, when
// present, replace the built-in lists.
type ChainsFile struct {
	Chains      map[types.SupportedChain]types.ChainConfig `yaml:"chains"`
	SPLTokens   []types.Token                              `yaml:"spl_tokens"`
	ERC20Tokens []types.Token                              `yaml:"erc20_tokens"`
}

// LoadChainsFile reads and parses a chain table file
func LoadChainsFile(path string) (*ChainsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chains file '%s': %w", path, err)
	}

	var file ChainsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse chains file from YAML: %w", err)
	}
	return &file, nil
}

// Apply merges the file into cfg
func (f *ChainsFile) Apply(cfg *Config) {
	for chain, cc := range f.Chains {
		cfg.Chains[chain] = cc
	}
	if len(f.SPLTokens) > 0 {
		cfg.SPLTokens = f.SPLTokens
	}
	if len(f.ERC20Tokens) > 0 {
		cfg.ERC20Tokens = f.ERC20Tokens
	}
}

// Validate checks the chain and token tables and the cache settings
func (c Config) Validate() error {
	validate := validator.New()

	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	for chain, cc := range c.Chains {
		if !chain.Valid() {
			return fmt.Errorf("unsupported chain '%s'", chain)
		}
		if !cc.Enabled {
			continue
		}
		if err := validate.Struct(cc); err != nil {
			return fmt.Errorf("chain '%s': %w", chain, err)
		}
	}

	for _, tokens := range [][]types.Token{c.SPLTokens, c.ERC20Tokens} {
		for _, t := range tokens {
			if err := validate.Struct(t); err != nil {
				return fmt.Errorf("token '%s': %w", t.Symbol, err)
			}
		}
	}

	if c.CacheTTL.Balance <= 0 || c.CacheTTL.TokenMetadata <= 0 || c.CacheTTL.GasPrice <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	return nil
}

// DefaultChains is the built-in mainnet endpoint table, in priority order
func DefaultChains() map[types.SupportedChain]types.ChainConfig {
	return map[types.SupportedChain]types.ChainConfig{
		types.ChainSolana: {
			Enabled: true,
			Network: "mainnet",
			Endpoints: []string{
				"https://api.mainnet-beta.solana.com",
				"https://solana-rpc.publicnode.com",
				"https://solana.drpc.org",
			},
			Explorer: "https://solscan.io",
		},
		types.ChainEthereum: {
			Enabled: true,
			Network: "mainnet",
			Endpoints: []string{
				"https://eth.llamarpc.com",
				"https://ethereum-rpc.publicnode.com",
				"https://rpc.ankr.com/eth",
				"https://cloudflare-eth.com",
			},
			Explorer: "https://etherscan.io",
		},
		types.ChainPolygon: {
			Enabled: true,
			Network: "mainnet",
			Endpoints: []string{
				"https://polygon-rpc.com",
				"https://polygon-bor-rpc.publicnode.com",
				"https://rpc.ankr.com/polygon",
			},
			Explorer: "https://polygonscan.com",
		},
		types.ChainBase: {
			Enabled: true,
			Network: "mainnet",
			Endpoints: []string{
				"https://mainnet.base.org",
				"https://base-rpc.publicnode.com",
				"https://base.llamarpc.com",
			},
			Explorer: "https://basescan.org",
		},
		types.ChainBitcoin: {
			Enabled: true,
			Network: "mainnet",
			Endpoints: []string{
				"https://blockstream.info/api",
				"https://mempool.space/api",
			},
			Explorer: "https://blockchair.com/bitcoin",
		},
	}
}

// DefaultSPLTokens lists popular Solana tokens
func DefaultSPLTokens() []types.Token {
	return []types.Token{
		{Symbol: "USDC", Name: "USD Coin", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6, Chain: types.ChainSolana},
		{Symbol: "USDT", Name: "Tether USD", Address: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6, Chain: types.ChainSolana},
		{Symbol: "BONK", Name: "Bonk", Address: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Decimals: 5, Chain: types.ChainSolana},
		{Symbol: "RAY", Name: "Raydium", Address: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", Decimals: 6, Chain: types.ChainSolana},
		{Symbol: "ORCA", Name: "Orca", Address: "orcaEKTdK7LKz57vaAYr9QeNsVEPfiu6QeMU1kektZE", Decimals: 6, Chain: types.ChainSolana},
		{Symbol: "JUP", Name: "Jupiter", Address: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6, Chain: types.ChainSolana},
	}
}

// DefaultERC20Tokens lists popular Ethereum tokens
func DefaultERC20Tokens() []types.Token {
	return []types.Token{
		{Symbol: "USDT", Name: "Tether USD", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6, Chain: types.ChainEthereum},
		{Symbol: "USDC", Name: "USD Coin", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6, Chain: types.ChainEthereum},
		{Symbol: "DAI", Name: "Dai Stablecoin", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18, Chain: types.ChainEthereum},
		{Symbol: "LINK", Name: "Chainlink", Address: "0x514910771AF9Ca656af840dff83E8264EcF986CA", Decimals: 18, Chain: types.ChainEthereum},
		{Symbol: "UNI", Name: "Uniswap", Address: "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984", Decimals: 18, Chain: types.ChainEthereum},
	}
}
