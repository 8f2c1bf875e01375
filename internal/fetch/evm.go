package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"github.com/yourorg/multichain-pay/internal/fallback"
	"github.com/yourorg/multichain-pay/internal/model"
	"github.com/yourorg/multichain-pay/internal/units"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// ERC20ABI is the read-only subset of the ERC-20 interface
var ERC20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}

// EVMClient queries Ethereum-compatible JSON-RPC endpoints.
// Dialled clients are kept per endpoint and reused.
type EVMClient struct {
	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

// NewEVMClient creates an EVM client
func NewEVMClient() *EVMClient {
	return &EVMClient{clients: make(map[string]*ethclient.Client)}
}

func (c *EVMClient) dial(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[endpoint]; ok {
		return cl, nil
	}
	cl, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	c.clients[endpoint] = cl
	return cl, nil
}

// Close releases every dialled client
func (c *EVMClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for endpoint, cl := range c.clients {
		cl.Close()
		delete(c.clients, endpoint)
	}
}

// NativeBalance returns the ether balance of address at the latest block
func (c *EVMClient) NativeBalance(ctx context.Context, endpoint, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, fmt.Errorf("invalid address: %s", address)
	}
	cl, err := c.dial(ctx, endpoint)
	if err != nil {
		return decimal.Zero, err
	}

	wei, err := cl.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, evmError("eth_getBalance", err)
	}
	return units.WeiToEth(wei), nil
}

// TokenBalance returns the ERC-20 balance of owner scaled by decimals
func (c *EVMClient) TokenBalance(ctx context.Context, endpoint, owner, contract string, decimals int32) (decimal.Decimal, error) {
	if !common.IsHexAddress(owner) {
		return decimal.Zero, fmt.Errorf("invalid address: %s", owner)
	}
	out, err := c.call(ctx, endpoint, contract, "balanceOf", common.HexToAddress(owner))
	if err != nil {
		return decimal.Zero, err
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected balanceOf result type %T", out[0])
	}
	return units.FromBaseUnits(raw, decimals), nil
}

// TokenInfo reads name, symbol and decimals of an ERC-20 contract
func (c *EVMClient) TokenInfo(ctx context.Context, endpoint, contract string) (model.TokenInfo, error) {
	info := model.TokenInfo{Contract: common.HexToAddress(contract).Hex()}

	name, err := c.call(ctx, endpoint, contract, "name")
	if err != nil {
		return model.TokenInfo{}, err
	}
	symbol, err := c.call(ctx, endpoint, contract, "symbol")
	if err != nil {
		return model.TokenInfo{}, err
	}
	decimals, err := c.call(ctx, endpoint, contract, "decimals")
	if err != nil {
		return model.TokenInfo{}, err
	}

	var ok bool
	if info.Name, ok = name[0].(string); !ok {
		return model.TokenInfo{}, fmt.Errorf("unexpected name result type %T", name[0])
	}
	if info.Symbol, ok = symbol[0].(string); !ok {
		return model.TokenInfo{}, fmt.Errorf("unexpected symbol result type %T", symbol[0])
	}
	d, ok := decimals[0].(uint8)
	if !ok {
		return model.TokenInfo{}, fmt.Errorf("unexpected decimals result type %T", decimals[0])
	}
	info.Decimals = int32(d)
	return info, nil
}

// GasPrice returns the node's suggested gas price in wei
func (c *EVMClient) GasPrice(ctx context.Context, endpoint string) (*big.Int, error) {
	cl, err := c.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	price, err := cl.SuggestGasPrice(ctx)
	if err != nil {
		return nil, evmError("eth_gasPrice", err)
	}
	return price, nil
}

// EstimateGas estimates the gas used by a plain value transfer from one address to another
func (c *EVMClient) EstimateGas(ctx context.Context, endpoint, from, to string, value *big.Int) (uint64, error) {
	if !common.IsHexAddress(from) || !common.IsHexAddress(to) {
		return 0, fmt.Errorf("invalid address: %s -> %s", from, to)
	}
	cl, err := c.dial(ctx, endpoint)
	if err != nil {
		return 0, err
	}

	toAddr := common.HexToAddress(to)
	gas, err := cl.EstimateGas(ctx, ethereum.CallMsg{
		From:  common.HexToAddress(from),
		To:    &toAddr,
		Value: value,
	})
	if err != nil {
		return 0, evmError("eth_estimateGas", err)
	}
	return gas, nil
}

func (c *EVMClient) call(ctx context.Context, endpoint, contract, method string, args ...interface{}) ([]interface{}, error) {
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("invalid contract address: %s", contract)
	}
	input, err := ERC20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	cl, err := c.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	to := common.HexToAddress(contract)
	data, err := cl.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, evmError("eth_call "+method, err)
	}

	out, err := ERC20ABI.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return out, nil
}

// evmError surfaces HTTP statuses as codes; JSON-RPC errors already carry theirs
func evmError(method string, err error) error {
	if isContextError(err) {
		return err
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return &fallback.RPCError{Code: httpErr.StatusCode, Message: method, Err: err}
	}
	return fmt.Errorf("%s: %w", method, err)
}
