package trader

import (
	"context"
	"math/big"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dex-trading-bot/internal/monitor"
	"dex-trading-bot/internal/wallet"
	"dex-trading-bot/internal/watchlist"
)

// Controller runs one buy-and-sell pass over the watchlist and the open
// positions. The two sides are independent and run concurrently, as do the
// per-token evaluations within each side.
type Controller struct {
	watchlist *watchlist.Watchlist
	positions *monitor.PositionMonitor
	ledger    *wallet.Ledger
	buys      *BuyHandler
	sells     *SellHandler

	tradeAmountPct decimal.Decimal
	logger         zerolog.Logger
}

// NewController wires the trading controller. tradeAmountPct is the
// fraction of the native balance committed per buy.
func NewController(wl *watchlist.Watchlist, positions *monitor.PositionMonitor, ledger *wallet.Ledger, buys *BuyHandler, sells *SellHandler, tradeAmountPct float64, logger zerolog.Logger) *Controller {
	return &Controller{
		watchlist:      wl,
		positions:      positions,
		ledger:         ledger,
		buys:           buys,
		sells:          sells,
		tradeAmountPct: decimal.NewFromFloat(tradeAmountPct),
		logger:         logger.With().Str("component", "Trader").Logger(),
	}
}

// TradeAmount sizes one buy from the current native balance.
func (c *Controller) TradeAmount(ctx context.Context) (*big.Int, error) {
	balance, err := c.ledger.NativeBalance(ctx)
	if err != nil {
		return nil, err
	}
	return decimal.NewFromBigInt(balance, 0).Mul(c.tradeAmountPct).BigInt(), nil
}

// MonitorTrades runs one full pass: every watchlist entry is checked for
// its entry condition and every open position for its exit condition. It
// returns once both sides have finished.
func (c *Controller) MonitorTrades(ctx context.Context) error {
	tradeAmount, err := c.TradeAmount(ctx)
	if err != nil {
		return err
	}

	entries := c.watchlist.Entries()
	positions := c.positions.Positions()
	c.logger.Debug().Int("watchlist", len(entries)).Int("positions", len(positions)).
		Str("trade_amount", tradeAmount.String()).Msg("Starting trade pass")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		var inner sync.WaitGroup
		for _, entry := range entries {
			if ctx.Err() != nil {
				break
			}
			inner.Add(1)
			go func(e watchlist.Entry) {
				defer inner.Done()
				c.buys.Handle(ctx, e, tradeAmount)
			}(entry)
		}
		inner.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		var inner sync.WaitGroup
		for _, pos := range positions {
			if ctx.Err() != nil {
				break
			}
			inner.Add(1)
			go func(p monitor.Position) {
				defer inner.Done()
				c.sells.Handle(ctx, p)
			}(pos)
		}
		inner.Wait()
	}()

	wg.Wait()
	return ctx.Err()
}
