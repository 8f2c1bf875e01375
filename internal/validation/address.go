// Package validation checks user supplied addresses and amounts before any endpoint is contacted.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/yourorg/multichain-pay/internal/model"
	"github.com/yourorg/multichain-pay/internal/types"
)

var (
	// ErrInvalidAddress is returned for an address that does not belong to the requested chain
	ErrInvalidAddress = errors.New("invalid address")
	// ErrUnsupportedCurrency is returned for a currency or currency/network pair that is not supported
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrInvalidAmount is returned for non-positive or over-precise amounts
	ErrInvalidAmount = errors.New("invalid amount")
)

var (
	ethAddressPattern    = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	btcLegacyPattern     = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	btcBech32Pattern     = regexp.MustCompile(`^bc1[a-z0-9]{39,59}$`)
	sanitizeInputPattern = regexp.MustCompile(`[^\w\s.-]`)
)

// IsValidSolanaAddress reports whether address decodes to a 32-byte public key
func IsValidSolanaAddress(address string) bool {
	_, err := solana.PublicKeyFromBase58(address)
	return err == nil
}

// IsValidEthereumAddress reports whether address is a 0x-prefixed 20-byte hex string.
// Checksums are not enforced.
func IsValidEthereumAddress(address string) bool {
	return ethAddressPattern.MatchString(address) && common.IsHexAddress(address)
}

// IsValidBitcoinAddress accepts legacy (P2PKH, P2SH) and bech32 mainnet addresses
func IsValidBitcoinAddress(address string) bool {
	return btcLegacyPattern.MatchString(address) || btcBech32Pattern.MatchString(address)
}

// ValidateAddressForChain checks address against the format of chain
func ValidateAddressForChain(address string, chain types.SupportedChain) error {
	var ok bool
	switch {
	case chain == types.ChainSolana:
		ok = IsValidSolanaAddress(address)
	case chain.IsEVM():
		ok = IsValidEthereumAddress(address)
	case chain == types.ChainBitcoin:
		ok = IsValidBitcoinAddress(address)
	default:
		return fmt.Errorf("%w: chain %q", ErrUnsupportedCurrency, chain)
	}
	if !ok {
		return fmt.Errorf("%w for %s: %q", ErrInvalidAddress, chain, address)
	}
	return nil
}

// ChainFor resolves the chain a currency is queried on.
// USDC defaults to Solana and may also be held on Ethereum.
func ChainFor(currency model.Currency, network types.SupportedChain) (types.SupportedChain, error) {
	switch currency {
	case model.CurrencySOL:
		return types.ChainSolana, nil
	case model.CurrencyETH:
		return types.ChainEthereum, nil
	case model.CurrencyBTC:
		return types.ChainBitcoin, nil
	case model.CurrencyUSDC:
		switch network {
		case "", types.ChainSolana:
			return types.ChainSolana, nil
		case types.ChainEthereum:
			return types.ChainEthereum, nil
		}
		return "", fmt.Errorf("%w: USDC on %s", ErrUnsupportedCurrency, network)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
}

// ValidateAddress checks address for currency on network (network may be empty)
func ValidateAddress(address string, currency model.Currency, network types.SupportedChain) (types.SupportedChain, error) {
	chain, err := ChainFor(currency, network)
	if err != nil {
		return "", err
	}
	if err := ValidateAddressForChain(address, chain); err != nil {
		return "", err
	}
	return chain, nil
}

// SanitizeInput trims s and strips everything but word characters, whitespace, dots and dashes
func SanitizeInput(s string) string {
	return sanitizeInputPattern.ReplaceAllString(strings.TrimSpace(s), "")
}
