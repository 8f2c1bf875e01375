// Package fee estimates transaction fees for EVM chains, Solana and Bitcoin.
//
// When every endpoint of a chain fails, EVM gas prices, gas limits and Solana priority fees
// degrade to fixed defaults flagged with Fallback so a payment form can still be filled in.
// Defaults are never cached.
package fee

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/multichain-pay/internal/cache"
	"github.com/yourorg/multichain-pay/internal/config"
	"github.com/yourorg/multichain-pay/internal/fallback"
	"github.com/yourorg/multichain-pay/internal/model"
	"github.com/yourorg/multichain-pay/internal/types"
	"github.com/yourorg/multichain-pay/internal/units"
	"github.com/yourorg/multichain-pay/internal/validation"
)

// ClassGasPrice labels fee cache lookups in metrics
const ClassGasPrice = "gas_price"

const (
	// DefaultGasLimit is the gas used by a plain value transfer
	DefaultGasLimit uint64 = 21000

	// SolanaBaseFeeLamports is the signature fee of a single-signer transaction
	SolanaBaseFeeLamports uint64 = 5000

	defaultBaseGasPriceGwei = 20
)

// Default Solana priority fees, also the floor of the low/medium/high levels
var defaultPriorityFees = model.PriorityFees{None: 0, Low: 1000, Medium: 5000, High: 10000}

// EVMQuerier reads gas data from one endpoint
type EVMQuerier interface {
	GasPrice(ctx context.Context, endpoint string) (*big.Int, error)
	EstimateGas(ctx context.Context, endpoint, from, to string, value *big.Int) (uint64, error)
}

// SolanaQuerier reads recent prioritization fees from one endpoint
type SolanaQuerier interface {
	PriorityFees(ctx context.Context, endpoint string) ([]uint64, error)
}

// BitcoinQuerier reads fee rate estimates from one endpoint
type BitcoinQuerier interface {
	FeeEstimates(ctx context.Context, endpoint string) (model.BitcoinFeeRates, error)
}

// Service estimates fees
type Service struct {
	cfg      config.Config
	executor *fallback.Executor
	cache    *cache.Cache
	evm      EVMQuerier
	solana   SolanaQuerier
	bitcoin  BitcoinQuerier
}

// NewService creates a fee service
func NewService(cfg config.Config, executor *fallback.Executor, c *cache.Cache, evm EVMQuerier, sol SolanaQuerier, btc BitcoinQuerier) *Service {
	return &Service{
		cfg:      cfg,
		executor: executor,
		cache:    c,
		evm:      evm,
		solana:   sol,
		bitcoin:  btc,
	}
}

// GasSchedule returns slow/medium/fast gas prices for an EVM chain, cached for the gas TTL
func (s *Service) GasSchedule(ctx context.Context, chain types.SupportedChain) (model.GasSchedule, error) {
	if !chain.IsEVM() {
		return model.GasSchedule{}, fmt.Errorf("%w: gas prices on %s", validation.ErrUnsupportedCurrency, chain)
	}

	key := cache.Key(string(chain), "GAS")
	schedule, err := cache.GetOrLoad(ctx, s.cache, ClassGasPrice, key, s.cfg.CacheTTL.GasPrice, func(ctx context.Context) (model.GasSchedule, error) {
		base, err := fallback.Execute(ctx, s.executor, string(chain), s.cfg.Endpoints(chain), func(ctx context.Context, endpoint string) (*big.Int, error) {
			return s.evm.GasPrice(ctx, endpoint)
		})
		if err != nil {
			return model.GasSchedule{}, err
		}
		return BuildGasSchedule(chain, base), nil
	})
	if err != nil {
		logrus.WithField("chain", chain).Warnf("Using default gas prices: %v", err)
		return DefaultGasSchedule(chain), nil
	}
	return schedule, nil
}

// BuildGasSchedule derives the tiers from a base gas price: slow is 80% and fast 130% of base.
// A nil base falls back to 20 gwei.
func BuildGasSchedule(chain types.SupportedChain, base *big.Int) model.GasSchedule {
	if base == nil {
		base = units.GweiToWei(defaultBaseGasPriceGwei)
	}
	return model.GasSchedule{
		Chain:  chain,
		Slow:   gasTier(scale(base, 8, 10), "~5 min"),
		Medium: gasTier(new(big.Int).Set(base), "~2 min"),
		Fast:   gasTier(scale(base, 13, 10), "~30 sec"),
	}
}

// DefaultGasSchedule is returned when no endpoint answered
func DefaultGasSchedule(chain types.SupportedChain) model.GasSchedule {
	return model.GasSchedule{
		Chain:    chain,
		Slow:     gasTier(units.GweiToWei(15), "~5 min"),
		Medium:   gasTier(units.GweiToWei(20), "~2 min"),
		Fast:     gasTier(units.GweiToWei(30), "~30 sec"),
		Fallback: true,
	}
}

func gasTier(price *big.Int, eta string) model.GasTier {
	return model.GasTier{
		GasPrice:      price,
		Gwei:          units.WeiToGwei(price).String(),
		EstimatedTime: eta,
	}
}

func scale(v *big.Int, num, den int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(num))
	return out.Quo(out, big.NewInt(den))
}

// EstimateGas estimates the gas limit of a transfer of value (in ether) from one address to
// another. When no endpoint can estimate it DefaultGasLimit is returned with fallbackUsed set.
func (s *Service) EstimateGas(ctx context.Context, chain types.SupportedChain, from, to string, value decimal.Decimal) (gas uint64, fallbackUsed bool, err error) {
	if !chain.IsEVM() {
		return 0, false, fmt.Errorf("%w: gas estimation on %s", validation.ErrUnsupportedCurrency, chain)
	}
	if err := validation.ValidateAddressForChain(from, chain); err != nil {
		return 0, false, err
	}
	if err := validation.ValidateAddressForChain(to, chain); err != nil {
		return 0, false, err
	}

	wei := units.EthToWei(value)
	gas, err = fallback.Execute(ctx, s.executor, string(chain), s.cfg.Endpoints(chain), func(ctx context.Context, endpoint string) (uint64, error) {
		return s.evm.EstimateGas(ctx, endpoint, from, to, wei)
	})
	if err != nil {
		logrus.WithField("chain", chain).Warnf("Using default gas limit: %v", err)
		return DefaultGasLimit, true, nil
	}
	return gas, false, nil
}

// CalculateEVMFee prices gasLimit at the tier for speed
func (s *Service) CalculateEVMFee(ctx context.Context, chain types.SupportedChain, gasLimit uint64, speed model.Speed) (model.FeeQuote, error) {
	schedule, err := s.GasSchedule(ctx, chain)
	if err != nil {
		return model.FeeQuote{}, err
	}
	tier := schedule.Tier(speed)

	total := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), tier.GasPrice)
	return model.FeeQuote{
		GasLimit:      gasLimit,
		GasPriceGwei:  tier.Gwei,
		TotalCost:     units.WeiToEth(total),
		EstimatedTime: tier.EstimatedTime,
		Fallback:      schedule.Fallback,
	}, nil
}

// SolanaPriorityFees returns priority fees derived from recently paid fees
func (s *Service) SolanaPriorityFees(ctx context.Context) (model.PriorityFees, error) {
	chain := types.ChainSolana
	key := cache.Key(string(chain), "PRIORITY_FEES")
	fees, err := cache.GetOrLoad(ctx, s.cache, ClassGasPrice, key, s.cfg.CacheTTL.GasPrice, func(ctx context.Context) (model.PriorityFees, error) {
		recent, err := fallback.Execute(ctx, s.executor, string(chain), s.cfg.Endpoints(chain), func(ctx context.Context, endpoint string) ([]uint64, error) {
			return s.solana.PriorityFees(ctx, endpoint)
		})
		if err != nil {
			return model.PriorityFees{}, err
		}
		return ComputePriorityFees(recent), nil
	})
	if err != nil {
		logrus.WithField("chain", chain).Warnf("Using default priority fees: %v", err)
		out := defaultPriorityFees
		out.Fallback = true
		return out, nil
	}
	return fees, nil
}

// ComputePriorityFees maps recent fees to levels: low, medium and high are the 50th, 75th and
// 90th percentiles, each raised to at least its default
func ComputePriorityFees(recent []uint64) model.PriorityFees {
	if len(recent) == 0 {
		return defaultPriorityFees
	}

	sorted := append([]uint64(nil), recent...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	percentile := func(p float64) uint64 {
		return sorted[int(float64(len(sorted))*p)]
	}

	return model.PriorityFees{
		None:   0,
		Low:    maxUint64(percentile(0.5), defaultPriorityFees.Low),
		Medium: maxUint64(percentile(0.75), defaultPriorityFees.Medium),
		High:   maxUint64(percentile(0.9), defaultPriorityFees.High),
	}
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// EstimateSolanaFee returns the expected fee in SOL at level.
// The priority fee is added to the base fee as lamports; unknown levels add nothing.
func (s *Service) EstimateSolanaFee(ctx context.Context, level model.PriorityLevel) (model.SolanaFeeEstimate, error) {
	fees, err := s.SolanaPriorityFees(ctx)
	if err != nil {
		return model.SolanaFeeEstimate{}, err
	}
	priority := fees.Level(level)

	return model.SolanaFeeEstimate{
		BaseFee:       units.LamportsToSol(SolanaBaseFeeLamports),
		PriorityFee:   units.LamportsToSol(priority),
		TotalFee:      units.LamportsToSol(SolanaBaseFeeLamports + priority),
		PriorityLevel: level,
		Fallback:      fees.Fallback,
	}, nil
}

// BitcoinFeeRates returns sat/vB fee rates by confirmation target. There is no default.
func (s *Service) BitcoinFeeRates(ctx context.Context) (model.BitcoinFeeRates, error) {
	chain := types.ChainBitcoin
	key := cache.Key(string(chain), "FEE_RATES")
	rates, err := cache.GetOrLoad(ctx, s.cache, ClassGasPrice, key, s.cfg.CacheTTL.GasPrice, func(ctx context.Context) (model.BitcoinFeeRates, error) {
		return fallback.Execute(ctx, s.executor, string(chain), s.cfg.Endpoints(chain), func(ctx context.Context, endpoint string) (model.BitcoinFeeRates, error) {
			return s.bitcoin.FeeEstimates(ctx, endpoint)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bitcoin fee rates: %w", err)
	}
	return rates, nil
}
