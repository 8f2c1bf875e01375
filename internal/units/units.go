// Package units converts between base units and display amounts for each chain.
package units

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals of the native assets
const (
	SolDecimals  = 9
	EthDecimals  = 18
	BtcDecimals  = 8
	GweiDecimals = 9
)

// FromBaseUnits scales an integer amount down by decimals
func FromBaseUnits(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// ToBaseUnits scales a display amount up by decimals, truncating any excess precision
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

// LamportsToSol converts lamports to SOL
func LamportsToSol(lamports uint64) decimal.Decimal {
	return FromBaseUnits(new(big.Int).SetUint64(lamports), SolDecimals)
}

// SolToLamports converts SOL to lamports
func SolToLamports(sol decimal.Decimal) uint64 {
	return ToBaseUnits(sol, SolDecimals).Uint64()
}

// WeiToEth converts wei to ether
func WeiToEth(wei *big.Int) decimal.Decimal {
	return FromBaseUnits(wei, EthDecimals)
}

// EthToWei converts ether to wei
func EthToWei(eth decimal.Decimal) *big.Int {
	return ToBaseUnits(eth, EthDecimals)
}

// WeiToGwei converts wei to gwei
func WeiToGwei(wei *big.Int) decimal.Decimal {
	return FromBaseUnits(wei, GweiDecimals)
}

// GweiToWei converts gwei to wei
func GweiToWei(gwei int64) *big.Int {
	return ToBaseUnits(decimal.NewFromInt(gwei), GweiDecimals)
}

// SatoshisToBtc converts satoshis to BTC
func SatoshisToBtc(sats int64) decimal.Decimal {
	return decimal.New(sats, -BtcDecimals)
}

// BtcToSatoshis converts BTC to satoshis
func BtcToSatoshis(btc decimal.Decimal) int64 {
	return btc.Shift(BtcDecimals).Truncate(0).IntPart()
}

// FormatAmount renders an amount with at most places decimals and no trailing zeros
func FormatAmount(amount decimal.Decimal, places int32) string {
	return amount.Truncate(places).String()
}

// ShortenAddress renders an address as its first and last chars characters
func ShortenAddress(address string, chars int) string {
	if len(address) <= chars*2+3 {
		return address
	}
	return address[:chars] + "..." + address[len(address)-chars:]
}
