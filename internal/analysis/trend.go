// Package analysis watches short-term pool behaviour to decide whether a
// token is trending: price moving up while trade volume grows over the
// observation window.
package analysis

import (
	"context"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dex-trading-bot/internal/oracle"
	"dex-trading-bot/internal/tokens"
)

// VolumeSource reports a pool's cumulative traded volume in USD.
type VolumeSource interface {
	PoolVolumeUSD(ctx context.Context, poolAddress string) (float64, error)
}

// Config holds the trend thresholds and observation window.
type Config struct {
	PriceIncreaseThreshold  decimal.Decimal
	VolumeIncreaseThreshold decimal.Decimal
	Window                  time.Duration
}

// Checker samples a pool twice across the window and compares the samples.
type Checker struct {
	market  *oracle.Market
	volumes VolumeSource
	cfg     Config
	logger  zerolog.Logger
}

// NewChecker builds a trend checker.
func NewChecker(market *oracle.Market, volumes VolumeSource, cfg Config, logger zerolog.Logger) *Checker {
	return &Checker{
		market:  market,
		volumes: volumes,
		cfg:     cfg,
		logger:  logger.With().Str("component", "TrendChecker").Logger(),
	}
}

// CheckTrend quotes how many tokens the probe amount of native buys now,
// waits out the window, and quotes again. A shrinking quote means the price
// rose; combined with growing volume that is the buy signal. The returned
// amount is the opening quote, used as the position's base value.
//
// Any failed quote or an interrupted wait yields (false, 0): a token that
// cannot be priced is never a signal.
func (c *Checker) CheckTrend(ctx context.Context, info tokens.PoolInfo, probe *big.Int) (bool, *big.Int) {
	log := c.logger.With().Str("token", info.Token.Address).Str("pool", info.Pool.Address).Logger()

	start := c.market.MinTokenForNative(ctx, info.Token.Address, probe, info.Fee)
	if oracle.IsInvalid(start) {
		log.Debug().Msg("Opening quote failed, no signal")
		return false, big.NewInt(0)
	}

	startVolume, err := c.volumes.PoolVolumeUSD(ctx, info.Pool.Address)
	if err != nil {
		log.Debug().Err(err).Msg("Opening volume lookup failed, no signal")
		return false, big.NewInt(0)
	}

	if !sleepCtx(ctx, c.cfg.Window) {
		return false, big.NewInt(0)
	}

	end := c.market.MinTokenForNative(ctx, info.Token.Address, probe, info.Fee)
	if oracle.IsInvalid(end) {
		log.Debug().Msg("Closing quote failed, no signal")
		return false, big.NewInt(0)
	}

	endVolume, err := c.volumes.PoolVolumeUSD(ctx, info.Pool.Address)
	if err != nil {
		log.Debug().Err(err).Msg("Closing volume lookup failed, no signal")
		return false, big.NewInt(0)
	}

	priceUp := priceRose(start, end, c.cfg.PriceIncreaseThreshold)
	volumeUp := decimal.NewFromFloat(endVolume).
		GreaterThan(decimal.NewFromFloat(startVolume).Mul(c.cfg.VolumeIncreaseThreshold))

	log.Info().
		Str("start", start.String()).Str("end", end.String()).
		Float64("start_volume", startVolume).Float64("end_volume", endVolume).
		Bool("price_up", priceUp).Bool("volume_up", volumeUp).
		Msg("Trend check complete")

	return priceUp && volumeUp, start
}

// priceRose reports whether the closing quote is below the opening quote
// scaled down by the increase threshold. Fewer tokens per unit of native
// means the token got more expensive.
func priceRose(start, end *big.Int, threshold decimal.Decimal) bool {
	bound := decimal.NewFromBigInt(start, 0).Div(threshold)
	return decimal.NewFromBigInt(end, 0).LessThan(bound)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
