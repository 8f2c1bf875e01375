// Package config provides configuration loading and management for the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/multichain-pay/internal/types"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Upper bound for a single API request, all fallback attempts included
	RequestTimeout time.Duration

	// Timeout of one HTTP round trip to an upstream endpoint
	UpstreamTimeout time.Duration

	// How long an endpoint that was rate limited or forbidden is skipped
	RetryDelay time.Duration

	// Cache lifetimes per data class
	CacheTTL CacheTTL

	// Inbound rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Optional YAML file overriding the chain and token tables
	ChainsFile string

	// Ordered endpoint pools per chain
	Chains map[types.SupportedChain]types.ChainConfig

	// Known tokens
	SPLTokens   []types.Token
	ERC20Tokens []types.Token
}

// CacheTTL holds the static time-to-live of every cached data class
type CacheTTL struct {
	Balance       time.Duration
	TokenMetadata time.Duration
	GasPrice      time.Duration
}

// Load creates a new Config from environment variables and, if CHAINS_CONFIG is set,
// the chain table file it points to
func Load() (Config, error) {
	cfg := Config{
		Port:            GetEnvOrDefault("PORT", "8080"),
		LogLevel:        strings.ToLower(GetEnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(GetEnvOrDefault("LOG_FORMAT", "text")),
		OtelEndpoint:    GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		RequestTimeout:  GetEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		UpstreamTimeout: GetEnvAsDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		RetryDelay:      GetEnvAsDuration("RPC_RETRY_DELAY", 5*time.Second),
		CacheTTL: CacheTTL{
			Balance:       GetEnvAsDuration("BALANCE_CACHE_TTL", 30*time.Second),
			TokenMetadata: GetEnvAsDuration("TOKEN_METADATA_CACHE_TTL", 5*time.Minute),
			GasPrice:      GetEnvAsDuration("GAS_CACHE_TTL", 15*time.Second),
		},
		RateLimitRPS:   GetEnvAsFloat("RATE_LIMIT_RPS", 10.0),
		RateLimitBurst: GetEnvAsInt("RATE_LIMIT_BURST", 20),
		ChainsFile:     GetEnvOrDefault("CHAINS_CONFIG", ""),
		Chains:         DefaultChains(),
		SPLTokens:      DefaultSPLTokens(),
		ERC20Tokens:    DefaultERC20Tokens(),
	}

	if cfg.ChainsFile != "" {
		file, err := LoadChainsFile(cfg.ChainsFile)
		if err != nil {
			return Config{}, err
		}
		file.Apply(&cfg)
	}

	applyEndpointOverrides(cfg.Chains)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Endpoints returns the ordered endpoint pool of chain, or nil when it is unknown or disabled
func (c Config) Endpoints(chain types.SupportedChain) []string {
	cc, ok := c.Chains[chain]
	if !ok || !cc.Enabled {
		return nil
	}
	return cc.Endpoints
}

// Token returns the known token with symbol on chain
func (c Config) Token(chain types.SupportedChain, symbol string) (types.Token, bool) {
	tokens := c.ERC20Tokens
	if chain == types.ChainSolana {
		tokens = c.SPLTokens
	}
	for _, t := range tokens {
		if t.Chain == chain && strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return types.Token{}, false
}

// TokensFor lists the known tokens on chain
func (c Config) TokensFor(chain types.SupportedChain) []types.Token {
	tokens := c.ERC20Tokens
	if chain == types.ChainSolana {
		tokens = c.SPLTokens
	}
	out := make([]types.Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Chain == chain {
			out = append(out, t)
		}
	}
	return out
}

// applyEndpointOverrides replaces a chain's pool with <CHAIN>_RPC_ENDPOINTS when set
func applyEndpointOverrides(chains map[types.SupportedChain]types.ChainConfig) {
	for chain, cc := range chains {
		key := strings.ToUpper(string(chain)) + "_RPC_ENDPOINTS"
		if raw, ok := GetEnv(key); ok && strings.TrimSpace(raw) != "" {
			cc.Endpoints = splitList(raw)
			chains[chain] = cc
		}
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a bool with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
