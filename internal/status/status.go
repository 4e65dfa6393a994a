// Package status fans discovered tokens out into concurrent screening and
// trend-check tasks, capped by a weighted semaphore so a busy discovery
// cycle cannot overwhelm the RPC endpoint.
package status

import (
	"context"
	"math/big"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"dex-trading-bot/internal/analysis"
	"dex-trading-bot/internal/risk"
	"dex-trading-bot/internal/tokens"
)

// PositionSource reports whether a token is already held. Satisfied by
// monitor.PositionMonitor.
type PositionSource interface {
	IsPositioned(tokenAddress string) bool
}

// Task is one in-flight token check. Wait blocks until the check finishes
// or ctx is cancelled.
type Task struct {
	Info tokens.PoolInfo

	done      chan struct{}
	signal    bool
	baseValue *big.Int
}

// PoolInfo returns the candidate under check.
func (t *Task) PoolInfo() tokens.PoolInfo { return t.Info }

// Wait returns the check outcome: whether the token signalled a trend and
// the opening quote to use as base value. Cancellation reads as no signal.
func (t *Task) Wait(ctx context.Context) (bool, *big.Int) {
	select {
	case <-ctx.Done():
		return false, big.NewInt(0)
	case <-t.done:
		return t.signal, t.baseValue
	}
}

// Manager creates and tracks the per-cycle token check tasks.
type Manager struct {
	checker   *analysis.Checker
	screen    *risk.Screen
	blacklist *risk.Blacklist
	positions PositionSource
	sem       *semaphore.Weighted
	logger    zerolog.Logger

	mu    sync.Mutex
	tasks map[string]*Task // pool id -> task
}

// NewManager builds the manager. maxConcurrent caps simultaneous checks.
func NewManager(checker *analysis.Checker, screen *risk.Screen, blacklist *risk.Blacklist, positions PositionSource, maxConcurrent int, logger zerolog.Logger) *Manager {
	return &Manager{
		checker:   checker,
		screen:    screen,
		blacklist: blacklist,
		positions: positions,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		logger:    logger.With().Str("component", "TokenStatus").Logger(),
		tasks:     make(map[string]*Task),
	}
}

// CreateTokenCheckTasks starts a check for each candidate and returns the
// launched tasks. The previous cycle's task set is cleared first. Tokens
// already positioned, already tasked this cycle, or blacklisted are skipped
// without a task.
func (m *Manager) CreateTokenCheckTasks(ctx context.Context, candidates []tokens.PoolInfo, probe *big.Int) []*Task {
	m.mu.Lock()
	m.tasks = make(map[string]*Task)
	m.mu.Unlock()

	var launched []*Task
	for _, info := range candidates {
		id := tokens.PoolID(info.Token.Address, info.Pool.Address)

		if m.positions != nil && m.positions.IsPositioned(info.Token.Address) {
			continue
		}
		if m.blacklist != nil && m.blacklist.IsBlacklisted(info.Token.Address) {
			continue
		}

		m.mu.Lock()
		if _, exists := m.tasks[id]; exists {
			m.mu.Unlock()
			continue
		}
		task := &Task{Info: info, done: make(chan struct{}), baseValue: big.NewInt(0)}
		m.tasks[id] = task
		m.mu.Unlock()

		launched = append(launched, task)
		go m.run(ctx, task, probe)
	}

	m.logger.Info().Int("candidates", len(candidates)).Int("tasks", len(launched)).
		Msg("Token check tasks created")
	return launched
}

func (m *Manager) run(ctx context.Context, task *Task, probe *big.Int) {
	defer close(task.done)

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer m.sem.Release(1)

	if m.screen != nil && !m.screen.Passes(ctx, task.Info.Token.Address) {
		m.logger.Info().Str("token", task.Info.Token.Address).Msg("Token failed risk screen")
		return
	}

	task.signal, task.baseValue = m.checker.CheckTrend(ctx, task.Info, probe)
}

// ActiveTasks returns the number of tasks created in the current cycle.
func (m *Manager) ActiveTasks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
