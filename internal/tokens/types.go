// Package tokens defines the canonical token, pool and fee value types used
// across discovery, screening and trading. Addresses are canonicalized to
// lowercase hex on construction so that map keys and persisted state always
// agree regardless of the checksum casing the chain or subgraph returned.
package tokens

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Token identifies an ERC-20 token on the selected chain.
type Token struct {
	Address string `json:"id"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
}

// NewToken builds a Token with a lowercased address.
func NewToken(address, symbol, name string) Token {
	return Token{
		Address: strings.ToLower(address),
		Symbol:  symbol,
		Name:    name,
	}
}

// Fee is a DEX pool fee tier expressed in hundredths of a basis point,
// e.g. 3000 for the 0.3% Uniswap tier.
type Fee struct {
	BasisPoints int `json:"basis_points"`
}

// Percentage returns the fee as a fraction, e.g. 0.003 for the 3000 tier.
func (f Fee) Percentage() decimal.Decimal {
	return decimal.New(int64(f.BasisPoints), 0).Div(decimal.New(1_000_000, 0))
}

// Pool is an immutable snapshot of a liquidity pool as of one discovery cycle.
type Pool struct {
	Address   string  `json:"id"`
	Token0    Token   `json:"token0"`
	Token1    Token   `json:"token1"`
	Fee       Fee     `json:"fee"`
	VolumeUSD float64 `json:"volume_usd"`
}

// NewPool builds a Pool with a lowercased address.
func NewPool(address string, token0, token1 Token, fee Fee, volumeUSD float64) Pool {
	return Pool{
		Address:   strings.ToLower(address),
		Token0:    token0,
		Token1:    token1,
		Fee:       fee,
		VolumeUSD: volumeUSD,
	}
}

// PoolInfo pairs a candidate token with the pool it was discovered in. The
// token is whichever side of the pool is not the chain's wrapped native token.
type PoolInfo struct {
	Token Token
	Pool  Pool
	Fee   Fee
}

// PoolID is the canonical "{token}_{pool}" key used by the watchlist and the
// position monitor, lowercased on both sides.
func PoolID(tokenAddress, poolAddress string) string {
	return fmt.Sprintf("%s_%s", strings.ToLower(tokenAddress), strings.ToLower(poolAddress))
}

// ZeroAddress is the null pool/token address returned by some factories for
// nonexistent pairs.
const ZeroAddress = "0x0000000000000000000000000000000000000000"
