package balance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/multichain-pay/internal/cache"
	"github.com/yourorg/multichain-pay/internal/clock"
	"github.com/yourorg/multichain-pay/internal/config"
	"github.com/yourorg/multichain-pay/internal/fallback"
	"github.com/yourorg/multichain-pay/internal/health"
	"github.com/yourorg/multichain-pay/internal/model"
	"github.com/yourorg/multichain-pay/internal/types"
	"github.com/yourorg/multichain-pay/internal/validation"
)

const (
	solAddr = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	ethAddr = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	btcAddr = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
)

// fakeChain answers every query with amount unless the endpoint has a scripted error
type fakeChain struct {
	mu     sync.Mutex
	amount decimal.Decimal
	errs   map[string]error
	calls  []string
}

func (f *fakeChain) answer(endpoint, what string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpoint+" "+what)
	if err := f.errs[endpoint]; err != nil {
		return decimal.Zero, err
	}
	return f.amount, nil
}

func (f *fakeChain) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeChain) NativeBalance(ctx context.Context, endpoint, address string) (decimal.Decimal, error) {
	return f.answer(endpoint, "native")
}

func (f *fakeChain) Balance(ctx context.Context, endpoint, address string) (decimal.Decimal, error) {
	return f.answer(endpoint, "native")
}

type fakeSolana struct{ fakeChain }

func (f *fakeSolana) TokenBalance(ctx context.Context, endpoint, address, mint string) (decimal.Decimal, error) {
	return f.answer(endpoint, mint)
}

type fakeEVM struct {
	fakeChain
	info model.TokenInfo
}

func (f *fakeEVM) TokenBalance(ctx context.Context, endpoint, owner, contract string, decimals int32) (decimal.Decimal, error) {
	return f.answer(endpoint, contract)
}

func (f *fakeEVM) TokenInfo(ctx context.Context, endpoint, contract string) (model.TokenInfo, error) {
	if _, err := f.answer(endpoint, "info"); err != nil {
		return model.TokenInfo{}, err
	}
	return f.info, nil
}

type fixture struct {
	svc     *Service
	clock   *clock.Fake
	tracker *health.Tracker
	solana  *fakeSolana
	evm     *fakeEVM
	bitcoin *fakeChain
}

func testConfig() config.Config {
	chains := map[types.SupportedChain]types.ChainConfig{}
	for _, chain := range types.AllChains {
		chains[chain] = types.ChainConfig{
			Enabled:   true,
			Network:   "mainnet",
			Endpoints: []string{"https://" + string(chain) + "-1", "https://" + string(chain) + "-2"},
		}
	}
	return config.Config{
		RetryDelay: 5 * time.Second,
		CacheTTL: config.CacheTTL{
			Balance:       30 * time.Second,
			TokenMetadata: 5 * time.Minute,
			GasPrice:      15 * time.Second,
		},
		Chains:      chains,
		SPLTokens:   config.DefaultSPLTokens(),
		ERC20Tokens: config.DefaultERC20Tokens(),
	}
}

func newFixture() *fixture {
	c := clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	tracker := health.New().WithClock(c)
	f := &fixture{
		clock:   c,
		tracker: tracker,
		solana:  &fakeSolana{fakeChain{amount: decimal.RequireFromString("1.5")}},
		evm:     &fakeEVM{fakeChain: fakeChain{amount: decimal.RequireFromString("0.25")}},
		bitcoin: &fakeChain{amount: decimal.RequireFromString("0.001")},
	}
	f.svc = NewService(testConfig(), fallback.NewExecutor(tracker), cache.New().WithClock(c), f.solana, f.evm, f.bitcoin)
	return f
}

func TestBalance_PerCurrency(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	sol, err := f.svc.Balance(ctx, solAddr, model.CurrencySOL, "")
	require.NoError(t, err)
	assert.Equal(t, "1.5", sol.Amount.String())
	assert.Equal(t, types.ChainSolana, sol.Chain)

	eth, err := f.svc.Balance(ctx, ethAddr, model.CurrencyETH, "")
	require.NoError(t, err)
	assert.Equal(t, "0.25", eth.Amount.String())

	btc, err := f.svc.Balance(ctx, btcAddr, model.CurrencyBTC, "")
	require.NoError(t, err)
	assert.Equal(t, "0.001", btc.Amount.String())

	usdc, err := f.svc.Balance(ctx, solAddr, model.CurrencyUSDC, "")
	require.NoError(t, err)
	assert.Equal(t, types.ChainSolana, usdc.Chain)
	assert.Contains(t, f.solana.Calls(), "https://solana-1 EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	usdcEth, err := f.svc.Balance(ctx, ethAddr, model.CurrencyUSDC, types.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, types.ChainEthereum, usdcEth.Chain)
	assert.Contains(t, f.evm.Calls(), "https://ethereum-1 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
}

func TestBalance_ValidationHappensBeforeAnyQuery(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Balance(context.Background(), ethAddr, model.CurrencySOL, "")
	assert.ErrorIs(t, err, validation.ErrInvalidAddress)

	_, err = f.svc.Balance(context.Background(), ethAddr, model.Currency("DOGE"), "")
	assert.ErrorIs(t, err, validation.ErrUnsupportedCurrency)

	assert.Empty(t, f.solana.Calls())
	assert.Empty(t, f.evm.Calls())
}

func TestBalance_CachedWithinTTL(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Balance(ctx, solAddr, model.CurrencySOL, "")
	require.NoError(t, err)

	f.clock.Advance(29 * time.Second)
	_, err = f.svc.Balance(ctx, solAddr, model.CurrencySOL, "")
	require.NoError(t, err)
	assert.Len(t, f.solana.Calls(), 1, "Second lookup within TTL should be served from cache")

	f.clock.Advance(time.Second)
	_, err = f.svc.Balance(ctx, solAddr, model.CurrencySOL, "")
	require.NoError(t, err)
	assert.Len(t, f.solana.Calls(), 2, "Lookup at TTL should re-query")
}

func TestBalance_FallsBackOnRateLimit(t *testing.T) {
	f := newFixture()
	f.solana.errs = map[string]error{"https://solana-1": fallback.NewRPCError(429, "Too Many Requests")}

	bal, err := f.svc.Balance(context.Background(), solAddr, model.CurrencySOL, "")

	require.NoError(t, err)
	assert.Equal(t, "1.5", bal.Amount.String())
	assert.Equal(t, []string{"https://solana-1 native", "https://solana-2 native"}, f.solana.Calls())
	status := f.tracker.Status("solana", []string{"https://solana-1"})
	assert.False(t, status["https://solana-1"].Healthy)
}

func TestBalance_TotalFailureIsNotCached(t *testing.T) {
	f := newFixture()
	f.bitcoin.errs = map[string]error{
		"https://bitcoin-1": errors.New("connection refused"),
		"https://bitcoin-2": errors.New("connection refused"),
	}

	_, err := f.svc.Balance(context.Background(), btcAddr, model.CurrencyBTC, "")

	require.Error(t, err)
	var aggErr *fallback.AggregateError
	require.True(t, errors.As(err, &aggErr), "Service errors should wrap the aggregate")
	assert.Len(t, aggErr.Details, 2)

	f.bitcoin.errs = nil
	bal, err := f.svc.Balance(context.Background(), btcAddr, model.CurrencyBTC, "")
	require.NoError(t, err)
	assert.Equal(t, "0.001", bal.Amount.String())
}

func TestInvalidate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Balance(ctx, solAddr, model.CurrencyUSDC, "")
	require.NoError(t, err)
	_, err = f.svc.Balance(ctx, solAddr, model.CurrencySOL, "")
	require.NoError(t, err)

	f.svc.Invalidate(solAddr, model.CurrencyUSDC, "")
	_, err = f.svc.Balance(ctx, solAddr, model.CurrencyUSDC, "")
	require.NoError(t, err)
	_, err = f.svc.Balance(ctx, solAddr, model.CurrencySOL, "")
	require.NoError(t, err)
	assert.Len(t, f.solana.Calls(), 3, "Only the invalidated entry should be re-queried")

	f.svc.ClearAll()
	_, err = f.svc.Balance(ctx, solAddr, model.CurrencySOL, "")
	require.NoError(t, err)
	assert.Len(t, f.solana.Calls(), 4)
}

func TestTokenBalances_PartialFailure(t *testing.T) {
	f := newFixture()
	evm := &contractFailingEVM{fakeEVM: f.evm, failing: "0x6B175474E89094C44Da98b954EedeAC495271d0F"}
	f.svc.evm = evm

	balances, err := f.svc.TokenBalances(context.Background(), ethAddr, types.ChainEthereum)

	require.NoError(t, err)
	require.Len(t, balances, 5)
	for _, b := range balances {
		if b.Symbol == "DAI" {
			assert.Nil(t, b.Balance)
			assert.Contains(t, b.Error, "All RPC endpoints failed")
			continue
		}
		require.NotNil(t, b.Balance, "Expected a balance for %s", b.Symbol)
		assert.Equal(t, "0.25", b.Balance.String())
	}
	assert.Equal(t, "USDT", balances[0].Symbol, "Order should follow the token table")
}

func TestTokenBalances_InvalidAddress(t *testing.T) {
	f := newFixture()

	_, err := f.svc.TokenBalances(context.Background(), solAddr, types.ChainEthereum)

	assert.ErrorIs(t, err, validation.ErrInvalidAddress)
}

func TestTokenInfo_CachedForMetadataTTL(t *testing.T) {
	f := newFixture()
	f.evm.info = model.TokenInfo{Contract: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Name: "USD Coin", Symbol: "USDC", Decimals: 6}
	ctx := context.Background()

	info, err := f.svc.TokenInfo(ctx, types.ChainEthereum, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	require.NoError(t, err)
	assert.Equal(t, "USDC", info.Symbol)

	f.clock.Advance(4 * time.Minute)
	_, err = f.svc.TokenInfo(ctx, types.ChainEthereum, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	require.NoError(t, err)
	assert.Len(t, f.evm.Calls(), 1, "Metadata should be cached regardless of address case")

	f.clock.Advance(time.Minute)
	_, err = f.svc.TokenInfo(ctx, types.ChainEthereum, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	require.NoError(t, err)
	assert.Len(t, f.evm.Calls(), 2)
}

func TestTokenInfo_NonEVMChain(t *testing.T) {
	f := newFixture()

	_, err := f.svc.TokenInfo(context.Background(), types.ChainSolana, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	assert.ErrorIs(t, err, validation.ErrUnsupportedCurrency)
}

// contractFailingEVM fails every call for one contract
type contractFailingEVM struct {
	*fakeEVM
	failing string
}

func (c *contractFailingEVM) TokenBalance(ctx context.Context, endpoint, owner, contract string, decimals int32) (decimal.Decimal, error) {
	if contract == c.failing {
		return decimal.Zero, errors.New("execution reverted")
	}
	return c.fakeEVM.TokenBalance(ctx, endpoint, owner, contract, decimals)
}
