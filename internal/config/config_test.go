package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/multichain-pay/internal/types"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.CacheTTL.Balance)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL.TokenMetadata)
	assert.Equal(t, 15*time.Second, cfg.CacheTTL.GasPrice)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)

	for _, chain := range types.AllChains {
		assert.NotEmpty(t, cfg.Endpoints(chain), "Chain %s should have a default endpoint pool", chain)
	}
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.Endpoints(types.ChainSolana)[0])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RPC_RETRY_DELAY", "2s")
	t.Setenv("GAS_CACHE_TTL", "5s")
	t.Setenv("ETHEREUM_RPC_ENDPOINTS", "https://one.example, https://two.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL.GasPrice)
	assert.Equal(t, []string{"https://one.example", "https://two.example"}, cfg.Endpoints(types.ChainEthereum))
}

func TestLoad_ChainsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chains.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chains:
  solana:
    enabled: true
    network: devnet
    endpoints:
      - https://api.devnet.solana.com
      - https://devnet.example.org
  polygon:
    enabled: false
    network: mainnet
    endpoints: []
spl_tokens:
  - symbol: USDC
    name: USD Coin (devnet)
    address: 4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU
    decimals: 6
    chain: solana
`), 0o600))
	t.Setenv("CHAINS_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://api.devnet.solana.com", "https://devnet.example.org"}, cfg.Endpoints(types.ChainSolana))
	assert.Equal(t, "devnet", cfg.Chains[types.ChainSolana].Network)
	assert.Nil(t, cfg.Endpoints(types.ChainPolygon), "Disabled chain should expose no endpoints")
	assert.NotEmpty(t, cfg.Endpoints(types.ChainEthereum), "Chains missing from the file keep their defaults")

	usdc, ok := cfg.Token(types.ChainSolana, "usdc")
	require.True(t, ok)
	assert.Equal(t, "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU", usdc.Address)
	assert.Len(t, cfg.TokensFor(types.ChainSolana), 1)
}

func TestLoad_InvalidChainsFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "chains: [unclosed"},
		{"no endpoints", "chains:\n  bitcoin:\n    enabled: true\n    network: mainnet\n    endpoints: []\n"},
		{"bad url", "chains:\n  bitcoin:\n    enabled: true\n    network: mainnet\n    endpoints: [\"not a url\"]\n"},
		{"unknown chain", "chains:\n  dogecoin:\n    enabled: true\n    network: mainnet\n    endpoints: [\"https://doge.example\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "chains.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			t.Setenv("CHAINS_CONFIG", path)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingChainsFile(t *testing.T) {
	t.Setenv("CHAINS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read chains file")
}

func TestToken_Lookup(t *testing.T) {
	cfg := Config{SPLTokens: DefaultSPLTokens(), ERC20Tokens: DefaultERC20Tokens()}

	usdc, ok := cfg.Token(types.ChainEthereum, "USDC")
	require.True(t, ok)
	assert.Equal(t, int32(6), usdc.Decimals)

	_, ok = cfg.Token(types.ChainEthereum, "BONK")
	assert.False(t, ok, "SPL token should not resolve on Ethereum")

	assert.Len(t, cfg.TokensFor(types.ChainEthereum), 5)
	assert.Empty(t, cfg.TokensFor(types.ChainBase))
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_FLOAT", "not-a-float")
	t.Setenv("TEST_BOOL", "true")

	assert.Equal(t, 42, GetEnvAsInt("TEST_INT", 1))
	assert.Equal(t, 1.5, GetEnvAsFloat("TEST_FLOAT", 1.5), "Unparseable value should fall back to the default")
	assert.True(t, GetEnvAsBool("TEST_BOOL", false))
	assert.Equal(t, "fallback", GetEnvOrDefault("TEST_UNSET_KEY", "fallback"))
}
