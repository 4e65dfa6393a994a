// Package wallet provides balance access for the trading wallet. In demo
// mode balances live in a persisted ledger seeded with one unit of wrapped
// native currency; in live mode reads go straight to the chain.
package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"dex-trading-bot/internal/chains"
	"dex-trading-bot/internal/ethereum"
	"dex-trading-bot/internal/state"
)

// DemoSeedAmount is the wrapped-native balance a fresh demo ledger starts
// with: 1e18 wei, one whole unit.
var DemoSeedAmount = new(big.Int).SetUint64(1_000_000_000_000_000_000)

// Ledger answers balance queries for the active wallet.
type Ledger struct {
	chain   chains.Chain
	client  *ethereum.Client
	address string
	demo    bool
	logger  zerolog.Logger

	mu       sync.Mutex
	balances map[string]map[string]*big.Int // chain -> token -> wei
	store    *state.FileStore
}

// NewLedger builds the ledger. In demo mode the balance file at path is
// loaded, or seeded when missing, corrupt, or reset is requested. client
// may be nil in demo mode.
func NewLedger(path string, chain chains.Chain, client *ethereum.Client, walletAddress string, demoMode, reset bool, logger zerolog.Logger) *Ledger {
	l := &Ledger{
		chain:    chain,
		client:   client,
		address:  strings.ToLower(walletAddress),
		demo:     demoMode,
		logger:   logger.With().Str("component", "Wallet").Logger(),
		balances: make(map[string]map[string]*big.Int),
		store:    state.NewFileStore(path, logger),
	}

	if !demoMode {
		return l
	}

	loaded := false
	if !reset {
		loaded = l.store.Load(&l.balances)
	}
	if !loaded {
		l.balances = make(map[string]map[string]*big.Int)
	}
	if l.balances[chain.Name] == nil || l.balances[chain.Name][chain.NativeTokenAddress] == nil {
		l.seed()
	}
	return l
}

func (l *Ledger) seed() {
	if l.balances[l.chain.Name] == nil {
		l.balances[l.chain.Name] = make(map[string]*big.Int)
	}
	l.balances[l.chain.Name][l.chain.NativeTokenAddress] = new(big.Int).Set(DemoSeedAmount)
	l.persist()
	l.logger.Info().Str("chain", l.chain.Name).Str("amount", DemoSeedAmount.String()).
		Msg("Seeded demo wallet with wrapped native balance")
}

// DemoMode reports whether the ledger is simulated.
func (l *Ledger) DemoMode() bool { return l.demo }

// Address returns the wallet address, empty in demo mode without one.
func (l *Ledger) Address() string { return l.address }

// NativeBalance returns the wrapped-native token balance used to size trades.
func (l *Ledger) NativeBalance(ctx context.Context) (*big.Int, error) {
	return l.TokenBalance(ctx, l.chain.NativeTokenAddress)
}

// TokenBalance returns the wallet's balance of the given token. Absent demo
// entries read as zero.
func (l *Ledger) TokenBalance(ctx context.Context, tokenAddress string) (*big.Int, error) {
	token := strings.ToLower(tokenAddress)

	if l.demo {
		l.mu.Lock()
		defer l.mu.Unlock()
		if bal, ok := l.balances[l.chain.Name][token]; ok {
			return new(big.Int).Set(bal), nil
		}
		return big.NewInt(0), nil
	}

	if l.client == nil {
		return nil, fmt.Errorf("live wallet requires an RPC client")
	}
	bal, err := l.client.TokenBalance(ctx, l.address, token)
	if err != nil {
		return nil, fmt.Errorf("token balance %s: %w", token, err)
	}
	return bal, nil
}

// SetTokenBalance overwrites a demo balance. A zero or negative amount
// removes the entry so the ledger never accumulates dust keys. No-op in
// live mode.
func (l *Ledger) SetTokenBalance(tokenAddress string, amount *big.Int) {
	if !l.demo {
		return
	}
	token := strings.ToLower(tokenAddress)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.setLocked(token, amount)
}

// Adjust applies a signed delta to a demo balance, clamping at zero. The
// read and the write happen under one lock acquisition so concurrent
// adjustments never lose updates.
func (l *Ledger) Adjust(tokenAddress string, delta *big.Int) {
	if !l.demo {
		return
	}
	token := strings.ToLower(tokenAddress)

	l.mu.Lock()
	defer l.mu.Unlock()

	cur := big.NewInt(0)
	if bal, ok := l.balances[l.chain.Name][token]; ok {
		cur = bal
	}
	l.setLocked(token, new(big.Int).Add(cur, delta))
}

// caller holds l.mu
func (l *Ledger) setLocked(token string, amount *big.Int) {
	if l.balances[l.chain.Name] == nil {
		l.balances[l.chain.Name] = make(map[string]*big.Int)
	}
	if amount == nil || amount.Sign() <= 0 {
		delete(l.balances[l.chain.Name], token)
	} else {
		l.balances[l.chain.Name][token] = new(big.Int).Set(amount)
	}
	l.persist()
}

// Snapshot returns a copy of the demo balances for the active chain,
// keyed by token address. Empty in live mode.
func (l *Ledger) Snapshot() map[string]*big.Int {
	out := make(map[string]*big.Int)
	if !l.demo {
		return out
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for token, bal := range l.balances[l.chain.Name] {
		out[token] = new(big.Int).Set(bal)
	}
	return out
}

// HasEntry reports whether the demo ledger holds any entry for the token.
// Distinct from a zero balance: an absent key means no position exists.
func (l *Ledger) HasEntry(tokenAddress string) bool {
	if !l.demo {
		return false
	}
	token := strings.ToLower(tokenAddress)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.balances[l.chain.Name][token]
	return ok
}

// caller holds l.mu
func (l *Ledger) persist() {
	if err := l.store.Save(l.balances); err != nil {
		l.logger.Warn().Err(err).Msg("Could not persist demo balances")
	}
}
