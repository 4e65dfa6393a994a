package trader

import (
	"context"
	"math/big"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dex-trading-bot/internal/evaluator"
	"dex-trading-bot/internal/monitor"
	"dex-trading-bot/internal/oracle"
	"dex-trading-bot/internal/risk"
	"dex-trading-bot/internal/tokens"
	"dex-trading-bot/internal/wallet"
	"dex-trading-bot/internal/watchlist"
)

// BuyHandler walks the watchlist each cycle and opens positions for entries
// whose price has moved above their base value.
type BuyHandler struct {
	watchlist *watchlist.Watchlist
	market    *oracle.Market
	executor  *Executor
	positions *monitor.PositionMonitor
	blacklist *risk.Blacklist

	priceDecreaseThreshold decimal.Decimal
	logger                 zerolog.Logger
}

// NewBuyHandler builds the buy side. priceDecreaseThreshold is the ratio
// below 1 past which a watched token is considered to have lost its
// momentum and is dropped.
func NewBuyHandler(wl *watchlist.Watchlist, market *oracle.Market, executor *Executor, positions *monitor.PositionMonitor, blacklist *risk.Blacklist, priceDecreaseThreshold float64, logger zerolog.Logger) *BuyHandler {
	return &BuyHandler{
		watchlist:              wl,
		market:                 market,
		executor:               executor,
		positions:              positions,
		blacklist:              blacklist,
		priceDecreaseThreshold: decimal.NewFromFloat(priceDecreaseThreshold),
		logger:                 logger.With().Str("component", "BuyHandler").Logger(),
	}
}

// Handle evaluates one watchlist entry against the current quote.
//
// Quoting tradeAmount of native again and comparing with the entry's base
// value: a smaller quote means the token appreciated since the signal, so
// buy. A quote grown past base/decreaseThreshold means the price fell hard
// and the entry is stale, so drop it. Failed quotes keep the entry alive
// until blacklist retries run out.
func (h *BuyHandler) Handle(ctx context.Context, entry watchlist.Entry, tradeAmount *big.Int) {
	log := h.logger.With().Str("token", entry.Token.Address).Logger()

	// No capital commits without a tracked position to sell from: an entry
	// that cannot be monitored leaves the watchlist untraded.
	if h.positions.IsPositioned(entry.Token.Address) {
		h.watchlist.Remove(entry.PoolID(), "already positioned")
		return
	}
	if !h.positions.HasCapacity() {
		h.watchlist.Remove(entry.PoolID(), "position limit reached")
		log.Info().Msg("Position monitor at limit, watched entry dropped")
		return
	}

	current := h.market.MinTokenForNative(ctx, entry.Token.Address, tradeAmount, entry.Fee)
	if oracle.IsInvalid(current) {
		retries := h.blacklist.RecordFailure(entry.Token.Address)
		if h.blacklist.IsBlacklisted(entry.Token.Address) {
			h.watchlist.Remove(entry.PoolID(), "blacklisted")
			log.Info().Int("retries", retries).Msg("Watched token blacklisted after repeated quote failures")
		}
		return
	}
	h.blacklist.Clear(entry.Token.Address)

	base := decimal.NewFromBigInt(entry.BaseValue, 0)
	cur := decimal.NewFromBigInt(current, 0)

	// More tokens per native than base/threshold means the price dropped
	// below the staleness floor.
	if cur.GreaterThan(base.Div(h.priceDecreaseThreshold)) {
		h.watchlist.Remove(entry.PoolID(), "price decayed")
		log.Info().Str("base", entry.BaseValue.String()).Str("current", current.String()).
			Msg("Watched token lost momentum, dropped")
		return
	}

	if current.Cmp(entry.BaseValue) < 0 {
		info := tokens.PoolInfo{Token: entry.Token, Pool: entry.Pool, Fee: entry.Fee}
		bought, err := h.executor.TradeToken(ctx, info, tradeAmount, SideBuy)
		if err != nil {
			log.Error().Err(err).Msg("Buy failed")
			return
		}
		if bought {
			h.watchlist.Remove(entry.PoolID(), "bought")
		}
	}
}

// SellHandler walks open positions each cycle and closes those that have
// reached their expected ROI or fallen through the stop-loss floor.
type SellHandler struct {
	positions *monitor.PositionMonitor
	market    *oracle.Market
	executor  *Executor
	eval      *evaluator.Evaluator
	ledger    *wallet.Ledger
	blacklist *risk.Blacklist

	priceDecreaseThreshold decimal.Decimal
	logger                 zerolog.Logger
}

// NewSellHandler builds the sell side. priceDecreaseThreshold is the ROI
// floor below which a position is cut regardless of its target.
func NewSellHandler(positions *monitor.PositionMonitor, market *oracle.Market, executor *Executor, eval *evaluator.Evaluator, ledger *wallet.Ledger, blacklist *risk.Blacklist, priceDecreaseThreshold float64, logger zerolog.Logger) *SellHandler {
	return &SellHandler{
		positions:              positions,
		market:                 market,
		executor:               executor,
		eval:                   eval,
		ledger:                 ledger,
		blacklist:              blacklist,
		priceDecreaseThreshold: decimal.NewFromFloat(priceDecreaseThreshold),
		logger:                 logger.With().Str("component", "SellHandler").Logger(),
	}
}

// Handle evaluates one open position. In demo mode a position whose token
// no longer appears in the ledger is an orphan, left over from a reset or
// manual edit, and is removed without a trade.
func (h *SellHandler) Handle(ctx context.Context, pos monitor.Position) {
	log := h.logger.With().Str("token", pos.Token.Address).Logger()

	if h.ledger.DemoMode() && !h.ledger.HasEntry(pos.Token.Address) {
		h.positions.Remove(pos.Token.Address, "orphaned")
		log.Info().Msg("Orphaned position removed, token absent from ledger")
		return
	}

	proceeds := h.market.MaxNativeForToken(ctx, pos.Token.Address, pos.TokenAmount, pos.Fee)
	if oracle.IsInvalid(proceeds) {
		h.blacklist.RecordFailure(pos.Token.Address)
		log.Warn().Msg("Sell-side quote failed, position kept")
		return
	}
	h.blacklist.Clear(pos.Token.Address)

	net, _, err := h.eval.NetAmountAndCosts(ctx, proceeds, pos.Fee, 1)
	if err != nil {
		log.Error().Err(err).Msg("Could not net sell proceeds")
		return
	}

	expected, err := h.eval.ROIMultiplier(ctx, pos.InputAmount, pos.Fee)
	if err != nil {
		log.Error().Err(err).Msg("Could not compute expected ROI")
		return
	}

	currentROI := decimal.NewFromBigInt(net, 0).Div(decimal.NewFromBigInt(pos.InputAmount, 0))
	curF, _ := currentROI.Float64()
	expF, _ := expected.Float64()
	h.positions.Annotate(pos.PoolID(), curF, expF)

	log.Debug().Float64("current_roi", curF).Float64("expected_roi", expF).
		Msg("Position evaluated")

	// Take profit at the target, or cut the position once its ROI falls
	// through the stop-loss floor.
	hitTarget := currentROI.GreaterThanOrEqual(expected)
	hitStop := currentROI.LessThan(h.priceDecreaseThreshold)
	if !hitTarget && !hitStop {
		return
	}
	if hitStop && !hitTarget {
		log.Info().Float64("current_roi", curF).Str("floor", h.priceDecreaseThreshold.String()).
			Msg("Stop-loss hit, cutting position")
	}

	info := tokens.PoolInfo{Token: pos.Token, Pool: pos.Pool, Fee: pos.Fee}
	if _, err := h.executor.TradeToken(ctx, info, pos.TokenAmount, SideSell); err != nil {
		log.Error().Err(err).Msg("Sell failed")
	}
}
