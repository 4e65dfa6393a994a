// Package oracle provides price quoting against the DEX. Quotes follow the
// wrapped client's convention: any failure returns the -1 sentinel instead of
// an error, and every caller must check for a negative result before using it.
package oracle

import (
	"context"
	"math/big"

	"dex-trading-bot/internal/tokens"
)

// PriceOracle quotes swap amounts in both directions and dispatches real
// swaps in live mode.
type PriceOracle interface {
	// GetPriceForInput quotes the amount of tokenOut received for amountIn
	// of tokenIn. Returns -1 on any failure.
	GetPriceForInput(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, fee tokens.Fee) *big.Int

	// GetPriceForOutput quotes the amount of tokenIn required to receive
	// amountOut of tokenOut. Returns -1 on any failure.
	GetPriceForOutput(ctx context.Context, tokenIn, tokenOut string, amountOut *big.Int, fee tokens.Fee) *big.Int

	// ExecuteSwap performs a real swap of amountIn of tokenIn into tokenOut.
	ExecuteSwap(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, fee tokens.Fee) error
}

// Invalid is the quote-failure sentinel.
func Invalid() *big.Int {
	return big.NewInt(-1)
}

// IsInvalid reports whether a quote is the failure sentinel or otherwise
// unusable.
func IsInvalid(amount *big.Int) bool {
	return amount == nil || amount.Sign() < 0
}

// Market adapts the oracle to the trading core's vocabulary: quotes are
// always against the chain's wrapped native token.
type Market struct {
	oracle PriceOracle
	native string
}

// NewMarket wraps an oracle for a chain whose wrapped native token lives at
// nativeTokenAddress.
func NewMarket(oracle PriceOracle, nativeTokenAddress string) *Market {
	return &Market{oracle: oracle, native: nativeTokenAddress}
}

// Native returns the wrapped native token address quotes run against.
func (m *Market) Native() string {
	return m.native
}

// MinTokenForNative quotes the amount of token received for nativeAmount of
// the native currency. Fewer tokens per unit means the token appreciated.
func (m *Market) MinTokenForNative(ctx context.Context, token string, nativeAmount *big.Int, fee tokens.Fee) *big.Int {
	return m.oracle.GetPriceForInput(ctx, m.native, token, nativeAmount, fee)
}

// MaxNativeForToken quotes the native-currency proceeds of selling
// tokenAmount of token.
func (m *Market) MaxNativeForToken(ctx context.Context, token string, tokenAmount *big.Int, fee tokens.Fee) *big.Int {
	return m.oracle.GetPriceForInput(ctx, token, m.native, tokenAmount, fee)
}

// Buy swaps nativeAmount of the native currency into token (live mode only).
func (m *Market) Buy(ctx context.Context, token string, nativeAmount *big.Int, fee tokens.Fee) error {
	return m.oracle.ExecuteSwap(ctx, m.native, token, nativeAmount, fee)
}

// Sell swaps tokenAmount of token back into the native currency (live mode
// only).
func (m *Market) Sell(ctx context.Context, token string, tokenAmount *big.Int, fee tokens.Fee) error {
	return m.oracle.ExecuteSwap(ctx, token, m.native, tokenAmount, fee)
}
