package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/shopspring/decimal"
	"github.com/yourorg/multichain-pay/internal/fallback"
	"github.com/yourorg/multichain-pay/internal/units"
)

// SolanaClient queries Solana JSON-RPC endpoints
type SolanaClient struct {
	mu         sync.Mutex
	clients    map[string]*rpc.Client
	commitment rpc.CommitmentType
}

// NewSolanaClient creates a client reading at confirmed commitment
func NewSolanaClient() *SolanaClient {
	return &SolanaClient{
		clients:    make(map[string]*rpc.Client),
		commitment: rpc.CommitmentConfirmed,
	}
}

func (c *SolanaClient) client(endpoint string) *rpc.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.clients[endpoint]
	if !ok {
		cl = rpc.New(endpoint)
		c.clients[endpoint] = cl
	}
	return cl
}

// NativeBalance returns the SOL balance of address
func (c *SolanaClient) NativeBalance(ctx context.Context, endpoint, address string) (decimal.Decimal, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid wallet address: %w", err)
	}

	out, err := c.client(endpoint).GetBalance(ctx, owner, c.commitment)
	if err != nil {
		return decimal.Zero, solanaError("getBalance", err)
	}
	return units.LamportsToSol(out.Value), nil
}

// TokenBalance sums the balances of every token account owner holds for mint.
// An owner without a token account has a zero balance.
func (c *SolanaClient) TokenBalance(ctx context.Context, endpoint, address, mint string) (decimal.Decimal, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid wallet address: %w", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid mint address: %w", err)
	}

	cl := c.client(endpoint)
	accounts, err := cl.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{Mint: &mintKey},
		&rpc.GetTokenAccountsOpts{Commitment: c.commitment, Encoding: solana.EncodingBase64},
	)
	if err != nil {
		return decimal.Zero, solanaError("getTokenAccountsByOwner", err)
	}

	total := decimal.Zero
	for _, account := range accounts.Value {
		bal, err := cl.GetTokenAccountBalance(ctx, account.Pubkey, c.commitment)
		if err != nil {
			return decimal.Zero, solanaError("getTokenAccountBalance", err)
		}
		if bal.Value == nil {
			continue
		}
		raw, ok := new(big.Int).SetString(bal.Value.Amount, 10)
		if !ok {
			return decimal.Zero, fmt.Errorf("invalid token amount %q for account %s", bal.Value.Amount, account.Pubkey)
		}
		total = total.Add(units.FromBaseUnits(raw, int32(bal.Value.Decimals)))
	}
	return total, nil
}

// PriorityFees returns recently paid prioritization fees in micro-lamports per compute unit
func (c *SolanaClient) PriorityFees(ctx context.Context, endpoint string) ([]uint64, error) {
	out, err := c.client(endpoint).GetRecentPrioritizationFees(ctx, solana.PublicKeySlice{})
	if err != nil {
		return nil, solanaError("getRecentPrioritizationFees", err)
	}
	fees := make([]uint64, 0, len(out))
	for _, f := range out {
		fees = append(fees, f.PrioritizationFee)
	}
	return fees, nil
}

// solanaError keeps the JSON-RPC error code visible to classification
func solanaError(method string, err error) error {
	if isContextError(err) {
		return err
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return &fallback.RPCError{Code: rpcErr.Code, Message: method, Err: err}
	}
	return fmt.Errorf("%s: %w", method, err)
}
