package oracle

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dex-trading-bot/internal/tokens"
)

// SimulatedOracle serves quotes from an in-memory price model so demo mode
// can run without a chain connection. Each token has a rate expressed as
// tokens received per wei of native currency; tokens registered as pumping
// appreciate a little on every quote, which drives the trend check and the
// sell-side ROI math through their full paths.
type SimulatedOracle struct {
	mu     sync.Mutex
	native string
	rates  map[string]decimal.Decimal
	pumps  map[string]decimal.Decimal // per-quote appreciation factor, e.g. 1.001
	logger zerolog.Logger
}

// NewSimulatedOracle creates an empty simulated market for the given wrapped
// native token.
func NewSimulatedOracle(nativeTokenAddress string, logger zerolog.Logger) *SimulatedOracle {
	return &SimulatedOracle{
		native: strings.ToLower(nativeTokenAddress),
		rates:  make(map[string]decimal.Decimal),
		pumps:  make(map[string]decimal.Decimal),
		logger: logger.With().Str("component", "SimulatedOracle").Logger(),
	}
}

// SetRate registers a token at the given tokens-per-wei rate.
func (s *SimulatedOracle) SetRate(token string, tokensPerWei float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[strings.ToLower(token)] = decimal.NewFromFloat(tokensPerWei)
}

// SetPump marks a token as appreciating by the given factor on every quote.
func (s *SimulatedOracle) SetPump(token string, factor float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pumps[strings.ToLower(token)] = decimal.NewFromFloat(factor)
}

// GetPriceForInput quotes tokenOut received for amountIn of tokenIn.
func (s *SimulatedOracle) GetPriceForInput(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, fee tokens.Fee) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return Invalid()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in := strings.ToLower(tokenIn)
	out := strings.ToLower(tokenOut)
	amount := decimal.NewFromBigInt(amountIn, 0)

	switch {
	case in == s.native:
		// native -> token: appreciation means fewer tokens per wei.
		rate, ok := s.rates[out]
		if !ok {
			return Invalid()
		}
		s.advance(out)
		return amount.Mul(rate).BigInt()
	case out == s.native:
		// token -> native
		rate, ok := s.rates[in]
		if !ok || rate.IsZero() {
			return Invalid()
		}
		s.advance(in)
		return amount.Div(rate).BigInt()
	default:
		return Invalid()
	}
}

// GetPriceForOutput quotes tokenIn required for amountOut of tokenOut.
func (s *SimulatedOracle) GetPriceForOutput(ctx context.Context, tokenIn, tokenOut string, amountOut *big.Int, fee tokens.Fee) *big.Int {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return Invalid()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in := strings.ToLower(tokenIn)
	out := strings.ToLower(tokenOut)
	amount := decimal.NewFromBigInt(amountOut, 0)

	switch {
	case in == s.native:
		rate, ok := s.rates[out]
		if !ok || rate.IsZero() {
			return Invalid()
		}
		s.advance(out)
		return amount.Div(rate).BigInt()
	case out == s.native:
		rate, ok := s.rates[in]
		if !ok {
			return Invalid()
		}
		s.advance(in)
		return amount.Mul(rate).BigInt()
	default:
		return Invalid()
	}
}

// ExecuteSwap is a no-op in the simulated market; the executor mutates the
// demo ledger itself.
func (s *SimulatedOracle) ExecuteSwap(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, fee tokens.Fee) error {
	s.logger.Info().
		Str("token_in", tokenIn).
		Str("token_out", tokenOut).
		Str("amount_in", amountIn.String()).
		Msg("Simulated swap")
	return nil
}

// advance applies one pump step to a token's rate. Appreciation divides the
// tokens-per-wei rate: a more valuable token yields fewer tokens per wei.
func (s *SimulatedOracle) advance(token string) {
	factor, ok := s.pumps[token]
	if !ok || factor.IsZero() {
		return
	}
	if rate, ok := s.rates[token]; ok {
		s.rates[token] = rate.Div(factor)
	}
}
