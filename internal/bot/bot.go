// Package bot drives the trading cycle: discover pools, screen and watch
// candidates, then run the buy and sell passes, on a fixed interval until
// stopped.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dex-trading-bot/internal/discovery"
	"dex-trading-bot/internal/events"
	"dex-trading-bot/internal/monitor"
	"dex-trading-bot/internal/status"
	"dex-trading-bot/internal/trader"
	"dex-trading-bot/internal/watchlist"
)

// TradingBot owns the cycle loop and the components it orchestrates.
type TradingBot struct {
	discovery  *discovery.Client
	statuses   *status.Manager
	watchlist  *watchlist.Watchlist
	positions  *monitor.PositionMonitor
	controller *trader.Controller
	eventBus   *events.EventBus
	interval   time.Duration
	logger     zerolog.Logger

	mu       sync.Mutex
	cycle    int
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New wires a trading bot.
func New(disc *discovery.Client, statuses *status.Manager, wl *watchlist.Watchlist, positions *monitor.PositionMonitor, controller *trader.Controller, bus *events.EventBus, interval time.Duration, logger zerolog.Logger) *TradingBot {
	return &TradingBot{
		discovery:  disc,
		statuses:   statuses,
		watchlist:  wl,
		positions:  positions,
		controller: controller,
		eventBus:   bus,
		interval:   interval,
		logger:     logger.With().Str("component", "Bot").Logger(),
		stopChan:   make(chan struct{}),
	}
}

// Start launches the cycle loop. It returns immediately; Stop shuts the
// loop down and waits for the in-flight cycle to finish.
func (b *TradingBot) Start(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	b.logger.Info().Dur("interval", b.interval).Msg("Trading bot started")
	b.eventBus.Publish(events.Event{Type: events.EventBotStarted})

	b.wg.Add(1)
	go b.loop(ctx)
}

func (b *TradingBot) loop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	// First cycle runs immediately rather than waiting out the interval.
	b.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.runCycle(ctx)
		}
	}
}

// Stop shuts down the cycle loop.
func (b *TradingBot) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	close(b.stopChan)
	b.wg.Wait()
	b.eventBus.Publish(events.Event{Type: events.EventBotStopped})
	b.logger.Info().Msg("Trading bot stopped")
}

// Cycle returns the number of completed cycles.
func (b *TradingBot) Cycle() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cycle
}

// runCycle executes one full pass: discovery, trend checks, watchlist
// admission, then the trade pass. Discovery failures skip straight to
// trading so existing positions keep being managed through subgraph
// outages.
func (b *TradingBot) runCycle(ctx context.Context) {
	started := time.Now()
	b.mu.Lock()
	b.cycle++
	cycle := b.cycle
	b.mu.Unlock()

	log := b.logger.With().Int("cycle", cycle).Logger()
	log.Info().Msg("Cycle started")

	discovered := 0
	launched := 0

	probe, err := b.controller.TradeAmount(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Could not size trade amount, cycle skipped")
		b.eventBus.PublishError("bot", "trade sizing failed", err)
		return
	}

	if b.watchlist.HasCapacity() {
		candidates, err := b.discovery.DiscoverNewPools(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Pool discovery failed, trading existing state only")
			b.eventBus.PublishError("discovery", "pool discovery failed", err)
		} else {
			discovered = len(candidates)
			tasks := b.statuses.CreateTokenCheckTasks(ctx, candidates, probe)
			launched = len(tasks)

			checks := make([]watchlist.CheckTask, len(tasks))
			for i, task := range tasks {
				checks[i] = task
			}
			b.watchlist.Update(ctx, checks)
		}
	} else {
		log.Info().Msg("Watchlist at capacity, skipping discovery")
	}

	if err := b.controller.MonitorTrades(ctx); err != nil {
		log.Warn().Err(err).Msg("Trade pass interrupted")
	}

	took := time.Since(started)
	log.Info().Int("discovered", discovered).Int("tasks", launched).
		Int("watchlist", b.watchlist.Len()).Int("positions", b.positions.Len()).
		Dur("took", took).Msg("Cycle complete")
	b.eventBus.PublishCycleComplete(cycle, discovered, launched, b.watchlist.Len(), b.positions.Len(), took)
}
