// Package watchlist tracks tokens that showed a buy signal and are waiting
// for a favourable entry price. The list is capacity-bounded and persisted
// across restarts.
package watchlist

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dex-trading-bot/internal/events"
	"dex-trading-bot/internal/state"
	"dex-trading-bot/internal/tokens"
)

// Entry is one watched token/pool pair. BaseValue is the quote captured
// when the trend signal fired: the number of tokens the probe amount of
// native bought at signal time.
type Entry struct {
	Token     tokens.Token `json:"token"`
	Pool      tokens.Pool  `json:"pool"`
	Fee       tokens.Fee   `json:"fee"`
	BaseValue *big.Int     `json:"base_value"`
	AddedAt   time.Time    `json:"added_at"`
}

// PoolID returns the entry's watchlist key.
func (e Entry) PoolID() string {
	return tokens.PoolID(e.Token.Address, e.Pool.Address)
}

// Watchlist is the capacity-bounded set of buy candidates for one chain.
type Watchlist struct {
	mu      sync.Mutex
	chain   string
	max     int
	entries map[string]map[string]Entry // chain -> pool id -> entry
	store   *state.FileStore
	bus     *events.EventBus
	logger  zerolog.Logger
}

// New loads the watchlist for the selected chain from path. max bounds the
// number of concurrently watched tokens on that chain.
func New(path, chainName string, max int, bus *events.EventBus, logger zerolog.Logger) *Watchlist {
	w := &Watchlist{
		chain:   chainName,
		max:     max,
		entries: make(map[string]map[string]Entry),
		store:   state.NewFileStore(path, logger),
		bus:     bus,
		logger:  logger.With().Str("component", "Watchlist").Logger(),
	}
	w.store.Load(&w.entries)
	return w
}

// Add admits a token to the watchlist. It refuses duplicates, entries
// without a positive base value, and anything beyond capacity. Returns
// whether the entry was admitted.
func (w *Watchlist) Add(info tokens.PoolInfo, baseValue *big.Int) bool {
	if baseValue == nil || baseValue.Sign() <= 0 {
		w.logger.Debug().Str("token", info.Token.Address).Msg("Rejecting watchlist entry without base value")
		return false
	}

	id := tokens.PoolID(info.Token.Address, info.Pool.Address)

	w.mu.Lock()
	if _, exists := w.entries[w.chain][id]; exists {
		w.mu.Unlock()
		return false
	}
	if len(w.entries[w.chain]) >= w.max {
		w.mu.Unlock()
		w.logger.Info().Str("token", info.Token.Address).Int("max", w.max).
			Msg("Watchlist full, rejecting token")
		return false
	}
	if w.entries[w.chain] == nil {
		w.entries[w.chain] = make(map[string]Entry)
	}
	w.entries[w.chain][id] = Entry{
		Token:     info.Token,
		Pool:      info.Pool,
		Fee:       info.Fee,
		BaseValue: new(big.Int).Set(baseValue),
		AddedAt:   time.Now().UTC(),
	}
	w.persist()
	w.mu.Unlock()

	w.logger.Info().Str("token", info.Token.Address).Str("pool", info.Pool.Address).
		Str("base_value", baseValue.String()).Msg("Token added to watchlist")
	if w.bus != nil {
		w.bus.PublishWatchlisted(info.Token.Address, info.Pool.Address, baseValue.String())
	}
	return true
}

// CheckTask is an in-flight trend check whose outcome can be awaited.
// Implemented by status.Task.
type CheckTask interface {
	Wait(ctx context.Context) (bool, *big.Int)
	PoolInfo() tokens.PoolInfo
}

// Update gathers the cycle's finished trend checks and admits every token
// that signalled. Returns the number of entries admitted.
func (w *Watchlist) Update(ctx context.Context, tasks []CheckTask) int {
	admitted := 0
	for _, task := range tasks {
		signal, baseValue := task.Wait(ctx)
		if !signal {
			continue
		}
		if w.Add(task.PoolInfo(), baseValue) {
			admitted++
		}
	}
	return admitted
}

// Remove drops an entry by pool id. Removing an absent entry is a no-op.
func (w *Watchlist) Remove(poolID, reason string) {
	w.mu.Lock()
	entry, existed := w.entries[w.chain][poolID]
	if existed {
		delete(w.entries[w.chain], poolID)
		w.persist()
	}
	w.mu.Unlock()

	if existed {
		w.logger.Info().Str("pool_id", poolID).Str("reason", reason).Msg("Token removed from watchlist")
		if w.bus != nil {
			w.bus.PublishWatchlistRemoved(entry.Token.Address, entry.Pool.Address, reason)
		}
	}
}

// Contains reports whether the pool id is currently watched.
func (w *Watchlist) Contains(poolID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.entries[w.chain][poolID]
	return ok
}

// Get returns the entry for a pool id.
func (w *Watchlist) Get(poolID string) (Entry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[w.chain][poolID]
	return e, ok
}

// Entries returns a snapshot of the active chain's entries. Mutating the
// snapshot does not affect the watchlist.
func (w *Watchlist) Entries() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Entry, 0, len(w.entries[w.chain]))
	for _, e := range w.entries[w.chain] {
		out = append(out, e)
	}
	return out
}

// Len returns the number of watched tokens on the active chain.
func (w *Watchlist) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries[w.chain])
}

// HasCapacity reports whether another token can be admitted.
func (w *Watchlist) HasCapacity() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries[w.chain]) < w.max
}

// caller holds w.mu
func (w *Watchlist) persist() {
	if err := w.store.Save(w.entries); err != nil {
		w.logger.Warn().Err(err).Msg("Could not persist watchlist")
	}
}
