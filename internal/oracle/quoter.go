package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"dex-trading-bot/internal/ethereum"
	"dex-trading-bot/internal/tokens"
)

const (
	maxRetries = 3
	retryDelay = time.Second
)

var (
	quoteExactInputSingleSel  = crypto.Keccak256([]byte("quoteExactInputSingle(address,address,uint24,uint256,uint160)"))[:4]
	quoteExactOutputSingleSel = crypto.Keccak256([]byte("quoteExactOutputSingle(address,address,uint24,uint256,uint160)"))[:4]
)

// UniswapQuoter quotes prices through the Uniswap v3 Quoter contract using
// static calls. Swap execution is left unimplemented until live trading is
// wired to a signer; demo mode never reaches it.
type UniswapQuoter struct {
	client *ethereum.Client
	quoter string
	logger zerolog.Logger
}

// NewUniswapQuoter creates a quoter bound to the chain's Quoter contract.
func NewUniswapQuoter(client *ethereum.Client, quoterAddress string, logger zerolog.Logger) *UniswapQuoter {
	return &UniswapQuoter{
		client: client,
		quoter: quoterAddress,
		logger: logger.With().Str("component", "UniswapQuoter").Logger(),
	}
}

// GetPriceForInput quotes tokenOut received for amountIn of tokenIn.
func (q *UniswapQuoter) GetPriceForInput(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, fee tokens.Fee) *big.Int {
	return q.quote(ctx, quoteExactInputSingleSel, tokenIn, tokenOut, amountIn, fee)
}

// GetPriceForOutput quotes tokenIn required for amountOut of tokenOut.
func (q *UniswapQuoter) GetPriceForOutput(ctx context.Context, tokenIn, tokenOut string, amountOut *big.Int, fee tokens.Fee) *big.Int {
	return q.quote(ctx, quoteExactOutputSingleSel, tokenIn, tokenOut, amountOut, fee)
}

// ExecuteSwap dispatches a real swap. Not supported by the quote-only client.
func (q *UniswapQuoter) ExecuteSwap(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, fee tokens.Fee) error {
	return fmt.Errorf("live swap execution is not enabled for the quote-only client")
}

func (q *UniswapQuoter) quote(ctx context.Context, selector []byte, tokenIn, tokenOut string, amount *big.Int, fee tokens.Fee) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		q.logger.Warn().Str("token_in", tokenIn).Str("token_out", tokenOut).Msg("Rejecting quote for non-positive amount")
		return Invalid()
	}

	data := packQuote(selector, tokenIn, tokenOut, amount, fee)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return Invalid()
			}
		}

		out, err := q.client.CallContract(ctx, q.quoter, data)
		if err != nil {
			lastErr = err
			continue
		}
		if len(out) < 32 {
			lastErr = fmt.Errorf("short quoter return data (%d bytes)", len(out))
			continue
		}
		return new(big.Int).SetBytes(out[:32])
	}

	q.logger.Warn().Err(lastErr).
		Str("token_in", tokenIn).
		Str("token_out", tokenOut).
		Str("amount", amount.String()).
		Int("fee", fee.BasisPoints).
		Msg("Quote failed after retries")
	return Invalid()
}

func packQuote(selector []byte, tokenIn, tokenOut string, amount *big.Int, fee tokens.Fee) []byte {
	data := make([]byte, 0, 4+5*32)
	data = append(data, selector...)
	data = append(data, gethcommon.LeftPadBytes(gethcommon.HexToAddress(tokenIn).Bytes(), 32)...)
	data = append(data, gethcommon.LeftPadBytes(gethcommon.HexToAddress(tokenOut).Bytes(), 32)...)
	data = append(data, gethcommon.LeftPadBytes(big.NewInt(int64(fee.BasisPoints)).Bytes(), 32)...)
	data = append(data, gethcommon.LeftPadBytes(amount.Bytes(), 32)...)
	data = append(data, gethcommon.LeftPadBytes(nil, 32)...) // no sqrtPriceLimitX96
	return data
}
