// Package balance resolves wallet balances across chains with endpoint fallback and caching.
package balance

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/multichain-pay/internal/cache"
	"github.com/yourorg/multichain-pay/internal/config"
	"github.com/yourorg/multichain-pay/internal/fallback"
	"github.com/yourorg/multichain-pay/internal/model"
	"github.com/yourorg/multichain-pay/internal/types"
	"github.com/yourorg/multichain-pay/internal/validation"
)

// Cache classes used for metrics labels
const (
	ClassBalance       = "balance"
	ClassTokenMetadata = "token_metadata"
)

// SolanaQuerier reads Solana balances from one endpoint
type SolanaQuerier interface {
	NativeBalance(ctx context.Context, endpoint, address string) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, endpoint, address, mint string) (decimal.Decimal, error)
}

// EVMQuerier reads EVM balances and token metadata from one endpoint
type EVMQuerier interface {
	NativeBalance(ctx context.Context, endpoint, address string) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, endpoint, owner, contract string, decimals int32) (decimal.Decimal, error)
	TokenInfo(ctx context.Context, endpoint, contract string) (model.TokenInfo, error)
}

// BitcoinQuerier reads Bitcoin balances from one endpoint
type BitcoinQuerier interface {
	Balance(ctx context.Context, endpoint, address string) (decimal.Decimal, error)
}

// Service resolves balances. It is safe for concurrent use.
type Service struct {
	cfg      config.Config
	executor *fallback.Executor
	cache    *cache.Cache
	solana   SolanaQuerier
	evm      EVMQuerier
	bitcoin  BitcoinQuerier
}

// NewService creates a balance service
func NewService(cfg config.Config, executor *fallback.Executor, c *cache.Cache, sol SolanaQuerier, evm EVMQuerier, btc BitcoinQuerier) *Service {
	return &Service{
		cfg:      cfg,
		executor: executor,
		cache:    c,
		solana:   sol,
		evm:      evm,
		bitcoin:  btc,
	}
}

// queryType names the cache slot of a currency; USDC is kept per network
func queryType(currency model.Currency, chain types.SupportedChain) string {
	if currency == model.CurrencyUSDC {
		return fmt.Sprintf("%s_%s", currency, chain)
	}
	return string(currency)
}

// Balance returns the balance of address in currency.
// network only matters for USDC and defaults to Solana.
func (s *Service) Balance(ctx context.Context, address string, currency model.Currency, network types.SupportedChain) (model.Balance, error) {
	chain, err := validation.ValidateAddress(address, currency, network)
	if err != nil {
		return model.Balance{}, err
	}

	key := cache.Key(address, queryType(currency, chain))
	amount, err := cache.GetOrLoad(ctx, s.cache, ClassBalance, key, s.cfg.CacheTTL.Balance, func(ctx context.Context) (decimal.Decimal, error) {
		return s.fetchBalance(ctx, address, currency, chain)
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"currency": currency,
			"chain":    chain,
		}).Warnf("Failed to fetch balance: %v", err)
		return model.Balance{}, fmt.Errorf("failed to fetch %s balance: %w", currency, err)
	}

	return model.Balance{
		Address:  address,
		Currency: currency,
		Chain:    chain,
		Amount:   amount,
	}, nil
}

func (s *Service) fetchBalance(ctx context.Context, address string, currency model.Currency, chain types.SupportedChain) (decimal.Decimal, error) {
	endpoints := s.cfg.Endpoints(chain)

	switch currency {
	case model.CurrencySOL:
		return fallback.Execute(ctx, s.executor, string(chain), endpoints, func(ctx context.Context, endpoint string) (decimal.Decimal, error) {
			return s.solana.NativeBalance(ctx, endpoint, address)
		})
	case model.CurrencyETH:
		return fallback.Execute(ctx, s.executor, string(chain), endpoints, func(ctx context.Context, endpoint string) (decimal.Decimal, error) {
			return s.evm.NativeBalance(ctx, endpoint, address)
		})
	case model.CurrencyBTC:
		return fallback.Execute(ctx, s.executor, string(chain), endpoints, func(ctx context.Context, endpoint string) (decimal.Decimal, error) {
			return s.bitcoin.Balance(ctx, endpoint, address)
		})
	case model.CurrencyUSDC:
		token, ok := s.cfg.Token(chain, string(model.CurrencyUSDC))
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: no USDC token configured on %s", validation.ErrUnsupportedCurrency, chain)
		}
		return s.tokenBalance(ctx, address, chain, token)
	}
	return decimal.Zero, fmt.Errorf("%w: %s", validation.ErrUnsupportedCurrency, currency)
}

func (s *Service) tokenBalance(ctx context.Context, address string, chain types.SupportedChain, token types.Token) (decimal.Decimal, error) {
	endpoints := s.cfg.Endpoints(chain)
	if chain == types.ChainSolana {
		return fallback.Execute(ctx, s.executor, string(chain), endpoints, func(ctx context.Context, endpoint string) (decimal.Decimal, error) {
			return s.solana.TokenBalance(ctx, endpoint, address, token.Address)
		})
	}
	return fallback.Execute(ctx, s.executor, string(chain), endpoints, func(ctx context.Context, endpoint string) (decimal.Decimal, error) {
		return s.evm.TokenBalance(ctx, endpoint, address, token.Address, token.Decimals)
	})
}

// TokenBalances reads every known token of chain for address concurrently.
// A token that fails is reported with a nil balance; the call itself only fails on a bad address.
func (s *Service) TokenBalances(ctx context.Context, address string, chain types.SupportedChain) ([]model.TokenBalance, error) {
	if err := validation.ValidateAddressForChain(address, chain); err != nil {
		return nil, err
	}

	tokens := s.cfg.TokensFor(chain)
	out := make([]model.TokenBalance, len(tokens))

	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token types.Token) {
			defer wg.Done()

			entry := model.TokenBalance{
				Symbol:   token.Symbol,
				Address:  token.Address,
				Decimals: token.Decimals,
			}
			key := cache.Key(address, fmt.Sprintf("%s_%s", token.Symbol, chain))
			amount, err := cache.GetOrLoad(ctx, s.cache, ClassBalance, key, s.cfg.CacheTTL.Balance, func(ctx context.Context) (decimal.Decimal, error) {
				return s.tokenBalance(ctx, address, chain, token)
			})
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Balance = &amount
			}
			out[i] = entry
		}(i, token)
	}
	wg.Wait()

	return out, nil
}

// TokenInfo reads ERC-20 metadata for contract on an EVM chain
func (s *Service) TokenInfo(ctx context.Context, chain types.SupportedChain, contract string) (model.TokenInfo, error) {
	if !chain.IsEVM() {
		return model.TokenInfo{}, fmt.Errorf("%w: token metadata on %s", validation.ErrUnsupportedCurrency, chain)
	}
	if err := validation.ValidateAddressForChain(contract, chain); err != nil {
		return model.TokenInfo{}, err
	}

	key := cache.Key(strings.ToLower(contract), "TOKENINFO_"+string(chain))
	info, err := cache.GetOrLoad(ctx, s.cache, ClassTokenMetadata, key, s.cfg.CacheTTL.TokenMetadata, func(ctx context.Context) (model.TokenInfo, error) {
		return fallback.Execute(ctx, s.executor, string(chain), s.cfg.Endpoints(chain), func(ctx context.Context, endpoint string) (model.TokenInfo, error) {
			return s.evm.TokenInfo(ctx, endpoint, contract)
		})
	})
	if err != nil {
		return model.TokenInfo{}, fmt.Errorf("failed to fetch token info: %w", err)
	}
	return info, nil
}

// Invalidate drops the cached balance of address in currency.
// For USDC the network selects which entry; empty means Solana.
func (s *Service) Invalidate(address string, currency model.Currency, network types.SupportedChain) {
	chain := network
	if currency == model.CurrencyUSDC && chain == "" {
		chain = types.ChainSolana
	}
	s.cache.Clear(address, queryType(currency, chain))
}

// ClearAll drops every cached entry
func (s *Service) ClearAll() {
	s.cache.ClearAll()
}
