// Package trader runs the trade lifecycle: watchlist entries become
// positions when their entry condition fires, and positions are sold once
// price action covers costs plus the profit margin.
package trader

import (
	"context"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dex-trading-bot/internal/database"
	"dex-trading-bot/internal/evaluator"
	"dex-trading-bot/internal/events"
	"dex-trading-bot/internal/monitor"
	"dex-trading-bot/internal/oracle"
	"dex-trading-bot/internal/risk"
	"dex-trading-bot/internal/tokens"
	"dex-trading-bot/internal/wallet"
)

// Trade sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Executor performs a single swap, demo or live, and keeps the wallet,
// position monitor and trade history in sync with the outcome.
type Executor struct {
	chain        string
	market       *oracle.Market
	ledger       *wallet.Ledger
	eval         *evaluator.Evaluator
	gasThreshold decimal.Decimal // max round-trip gas as a fraction of the buy amount, zero disables
	positions    *monitor.PositionMonitor
	blacklist    *risk.Blacklist
	bus          *events.EventBus
	trades       *database.TradeRepository // nil when history is disabled
	logger       zerolog.Logger
}

// NewExecutor wires an executor. trades may be nil. gasThreshold skips buys
// whose round-trip gas would eat more than that fraction of the input, zero
// disables the check.
func NewExecutor(chain string, market *oracle.Market, ledger *wallet.Ledger, eval *evaluator.Evaluator, gasThreshold float64, positions *monitor.PositionMonitor, blacklist *risk.Blacklist, bus *events.EventBus, trades *database.TradeRepository, logger zerolog.Logger) *Executor {
	return &Executor{
		chain:        chain,
		market:       market,
		ledger:       ledger,
		eval:         eval,
		gasThreshold: decimal.NewFromFloat(gasThreshold),
		positions:    positions,
		blacklist:    blacklist,
		bus:          bus,
		trades:       trades,
		logger:       logger.With().Str("component", "Executor").Logger(),
	}
}

// TradeToken executes one side of a trade for the given amount: native in
// on a buy, tokens in on a sell. It re-quotes immediately before executing
// so the fill reflects the current pool state, checks balances, applies the
// swap, and records the resulting position (buy) or closes it (sell).
//
// A failed quote is a soft failure: it counts against the token's
// blacklist retries and returns false without error.
func (e *Executor) TradeToken(ctx context.Context, info tokens.PoolInfo, amount *big.Int, side string) (bool, error) {
	if amount == nil || amount.Sign() <= 0 {
		return false, fmt.Errorf("trade amount must be positive")
	}

	log := e.logger.With().Str("token", info.Token.Address).Str("side", side).Logger()

	var quoted *big.Int
	switch side {
	case SideBuy:
		quoted = e.market.MinTokenForNative(ctx, info.Token.Address, amount, info.Fee)
	case SideSell:
		quoted = e.market.MaxNativeForToken(ctx, info.Token.Address, amount, info.Fee)
	default:
		return false, fmt.Errorf("unknown trade side %q", side)
	}

	if oracle.IsInvalid(quoted) {
		retries := e.blacklist.RecordFailure(info.Token.Address)
		log.Warn().Int("retries", retries).Msg("Quote failed, trade skipped")
		return false, nil
	}
	e.blacklist.Clear(info.Token.Address)

	nativeBalance, err := e.ledger.NativeBalance(ctx)
	if err != nil {
		return false, fmt.Errorf("native balance: %w", err)
	}
	tokenBalance, err := e.ledger.TokenBalance(ctx, info.Token.Address)
	if err != nil {
		return false, fmt.Errorf("token balance: %w", err)
	}

	ok, err := e.eval.HasBalanceForTrade(ctx, nativeBalance, tokenBalance, amount, side)
	if err != nil {
		return false, fmt.Errorf("balance check: %w", err)
	}
	if !ok {
		log.Info().Str("amount", amount.String()).Msg("Insufficient balance for trade")
		return false, nil
	}

	gasCost, err := e.eval.GasCost(ctx, 1)
	if err != nil {
		return false, fmt.Errorf("gas cost: %w", err)
	}

	if side == SideBuy && e.gasThreshold.IsPositive() {
		roundTrip := new(big.Int).Mul(gasCost, big.NewInt(2))
		ratio := decimal.NewFromBigInt(roundTrip, 0).Div(decimal.NewFromBigInt(amount, 0))
		if ratio.GreaterThan(e.gasThreshold) {
			log.Info().Str("gas_ratio", ratio.StringFixed(4)).
				Str("threshold", e.gasThreshold.String()).
				Msg("Gas would dominate trade, buy skipped")
			return false, nil
		}
	}

	if e.ledger.DemoMode() {
		e.settleDemo(info, amount, quoted, gasCost, side)
	} else {
		if err := e.executeLive(ctx, info, amount, side); err != nil {
			return false, fmt.Errorf("execute swap: %w", err)
		}
	}

	switch side {
	case SideBuy:
		e.openPosition(ctx, info, amount)
	case SideSell:
		e.positions.Remove(info.Token.Address, "sold")
	}

	log.Info().Str("input", amount.String()).Str("output", quoted.String()).
		Bool("demo", e.ledger.DemoMode()).Msg("Trade executed")
	e.bus.PublishTradeExecuted(info.Token.Address, info.Pool.Address, side, amount.String(), quoted.String())
	e.recordTrade(ctx, info, amount, quoted, gasCost, side)
	return true, nil
}

// settleDemo applies the swap to the simulated ledger at the amounts a live
// fill would land: the buy credit is the quote less slippage, the sell
// proceeds are netted by pool fee and slippage, and both sides pay the
// simulated gas from native.
func (e *Executor) settleDemo(info tokens.PoolInfo, amount, quoted, gasCost *big.Int, side string) {
	native := e.market.Native()
	if side == SideBuy {
		spent := new(big.Int).Add(amount, gasCost)
		e.ledger.Adjust(native, new(big.Int).Neg(spent))
		filled := decimal.NewFromBigInt(quoted, 0).
			Mul(decimal.NewFromInt(1).Sub(evaluator.SlippageTolerance)).BigInt()
		e.ledger.Adjust(info.Token.Address, filled)
		return
	}
	e.ledger.Adjust(info.Token.Address, new(big.Int).Neg(amount))
	rate := info.Fee.Percentage().Add(evaluator.SlippageTolerance)
	adjusted := decimal.NewFromBigInt(quoted, 0).
		Div(decimal.NewFromInt(1).Add(rate)).BigInt()
	e.ledger.Adjust(native, new(big.Int).Sub(adjusted, gasCost))
}

func (e *Executor) executeLive(ctx context.Context, info tokens.PoolInfo, amount *big.Int, side string) error {
	if side == SideBuy {
		return e.market.Buy(ctx, info.Token.Address, amount, info.Fee)
	}
	return e.market.Sell(ctx, info.Token.Address, amount, info.Fee)
}

// openPosition records the new holding against the wallet's actual token
// balance rather than the quote, so partial fills and fee-on-transfer
// tokens are captured as they really landed.
func (e *Executor) openPosition(ctx context.Context, info tokens.PoolInfo, inputAmount *big.Int) {
	holding, err := e.ledger.TokenBalance(ctx, info.Token.Address)
	if err != nil {
		e.logger.Warn().Err(err).Str("token", info.Token.Address).
			Msg("Could not read post-buy balance, recording zero holding")
		holding = big.NewInt(0)
	}

	expectedROI, err := e.eval.ROIMultiplier(ctx, inputAmount, info.Fee)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Could not compute expected ROI for new position")
	}
	roi, _ := expectedROI.Float64()

	if !e.positions.Add(info, inputAmount, holding, roi) {
		// The buy already settled; an untracked holding has no sell path.
		e.logger.Error().Str("token", info.Token.Address).Str("holding", holding.String()).
			Msg("Bought holding could not be monitored, manual intervention required")
	}
}

func (e *Executor) recordTrade(ctx context.Context, info tokens.PoolInfo, input, output, gasCost *big.Int, side string) {
	if e.trades == nil {
		return
	}
	record := &database.TradeRecord{
		Chain:        e.chain,
		TokenAddress: info.Token.Address,
		TokenSymbol:  info.Token.Symbol,
		PoolAddress:  info.Pool.Address,
		Side:         side,
		InputAmount:  input,
		OutputAmount: output,
		GasCost:      gasCost,
		Demo:         e.ledger.DemoMode(),
	}
	if err := e.trades.RecordTrade(ctx, record); err != nil {
		e.logger.Warn().Err(err).Msg("Could not persist trade record")
	}
}
