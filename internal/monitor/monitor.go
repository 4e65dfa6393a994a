// Package monitor tracks open positions: tokens that were actually bought
// and are waiting to be sold. Positions persist across restarts and carry
// the ROI annotations the sell side works from.
package monitor

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dex-trading-bot/internal/events"
	"dex-trading-bot/internal/state"
	"dex-trading-bot/internal/tokens"
)

// Position is one open holding. InputAmount is the native spent on entry,
// TokenAmount the wallet's token balance recorded right after the buy.
// ExpectedROI is the sell-trigger multiplier; CurrentROI is refreshed each
// sell-side pass.
type Position struct {
	Token       tokens.Token `json:"token"`
	Pool        tokens.Pool  `json:"pool"`
	Fee         tokens.Fee   `json:"fee"`
	InputAmount *big.Int     `json:"input_amount"`
	TokenAmount *big.Int     `json:"token_amount"`
	ExpectedROI float64      `json:"expected_roi"`
	CurrentROI  float64      `json:"current_roi"`
	BoughtAt    time.Time    `json:"bought_at"`
}

// PoolID returns the position's key.
func (p Position) PoolID() string {
	return tokens.PoolID(p.Token.Address, p.Pool.Address)
}

// PositionMonitor is the persisted set of open positions for one chain.
type PositionMonitor struct {
	mu        sync.Mutex
	chain     string
	max       int                            // 0 means unbounded
	positions map[string]map[string]Position // chain -> pool id -> position
	store     *state.FileStore
	bus       *events.EventBus
	logger    zerolog.Logger
}

// New loads the monitored positions for the selected chain from path. max
// bounds the number of concurrently held positions, zero for no bound.
func New(path, chainName string, max int, bus *events.EventBus, logger zerolog.Logger) *PositionMonitor {
	m := &PositionMonitor{
		chain:     chainName,
		max:       max,
		positions: make(map[string]map[string]Position),
		store:     state.NewFileStore(path, logger),
		bus:       bus,
		logger:    logger.With().Str("component", "PositionMonitor").Logger(),
	}
	m.store.Load(&m.positions)
	return m
}

// Add records a freshly opened position. Adding a pool id that is already
// monitored is a no-op so a retried buy never doubles a position.
func (m *PositionMonitor) Add(info tokens.PoolInfo, inputAmount, tokenAmount *big.Int, expectedROI float64) bool {
	id := tokens.PoolID(info.Token.Address, info.Pool.Address)

	m.mu.Lock()
	if _, exists := m.positions[m.chain][id]; exists {
		m.mu.Unlock()
		return false
	}
	if m.max > 0 && len(m.positions[m.chain]) >= m.max {
		m.mu.Unlock()
		m.logger.Info().Str("token", info.Token.Address).Int("max", m.max).
			Msg("Position limit reached, not monitoring new position")
		return false
	}
	if m.positions[m.chain] == nil {
		m.positions[m.chain] = make(map[string]Position)
	}
	m.positions[m.chain][id] = Position{
		Token:       info.Token,
		Pool:        info.Pool,
		Fee:         info.Fee,
		InputAmount: new(big.Int).Set(inputAmount),
		TokenAmount: new(big.Int).Set(tokenAmount),
		ExpectedROI: expectedROI,
		BoughtAt:    time.Now().UTC(),
	}
	m.persist()
	m.mu.Unlock()

	m.logger.Info().Str("token", info.Token.Address).Str("pool", info.Pool.Address).
		Str("input", inputAmount.String()).Str("holding", tokenAmount.String()).
		Float64("expected_roi", expectedROI).Msg("Position opened")
	if m.bus != nil {
		m.bus.PublishPositionOpened(info.Token.Address, info.Pool.Address, inputAmount.String())
	}
	return true
}

// Remove closes out every monitored position for the given token address,
// across all of its pools. Returns how many positions were dropped.
func (m *PositionMonitor) Remove(tokenAddress, reason string) int {
	token := strings.ToLower(tokenAddress)

	m.mu.Lock()
	var removed []Position
	for id, pos := range m.positions[m.chain] {
		if pos.Token.Address == token {
			removed = append(removed, pos)
			delete(m.positions[m.chain], id)
		}
	}
	if len(removed) > 0 {
		m.persist()
	}
	m.mu.Unlock()

	for _, pos := range removed {
		m.logger.Info().Str("token", pos.Token.Address).Str("pool", pos.Pool.Address).
			Str("reason", reason).Msg("Position closed")
		if m.bus != nil {
			m.bus.PublishPositionClosed(pos.Token.Address, pos.Pool.Address, reason, pos.CurrentROI, pos.ExpectedROI)
		}
	}
	return len(removed)
}

// Annotate refreshes a position's ROI figures, persisting so progress shows
// up in the state file between cycles.
func (m *PositionMonitor) Annotate(poolID string, currentROI, expectedROI float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[m.chain][poolID]
	if !ok {
		return
	}
	pos.CurrentROI = currentROI
	pos.ExpectedROI = expectedROI
	m.positions[m.chain][poolID] = pos
	m.persist()
}

// IsPositioned reports whether any pool of the token is currently held.
func (m *PositionMonitor) IsPositioned(tokenAddress string) bool {
	token := strings.ToLower(tokenAddress)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pos := range m.positions[m.chain] {
		if pos.Token.Address == token {
			return true
		}
	}
	return false
}

// Positions returns a snapshot of the active chain's open positions.
func (m *PositionMonitor) Positions() []Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Position, 0, len(m.positions[m.chain]))
	for _, pos := range m.positions[m.chain] {
		out = append(out, pos)
	}
	return out
}

// Len returns the number of open positions on the active chain.
func (m *PositionMonitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions[m.chain])
}

// HasCapacity reports whether another position can be opened.
func (m *PositionMonitor) HasCapacity() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max <= 0 || len(m.positions[m.chain]) < m.max
}

// caller holds m.mu
func (m *PositionMonitor) persist() {
	if err := m.store.Save(m.positions); err != nil {
		m.logger.Warn().Err(err).Msg("Could not persist monitored positions")
	}
}
