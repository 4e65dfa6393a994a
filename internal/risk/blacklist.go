package risk

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"dex-trading-bot/internal/state"
)

// MaxQuoteRetries is the default number of failed quote attempts a token
// gets before it is blacklisted and dropped from discovery.
const MaxQuoteRetries = 5

type blacklistEntry struct {
	TokenAddress string `json:"token_address"`
	Retries      int    `json:"retries"`
}

// Blacklist tracks tokens whose quotes keep failing. Entries survive
// restarts so a broken token does not get a fresh set of retries every run.
type Blacklist struct {
	mu         sync.Mutex
	chain      string
	maxRetries int
	entries    map[string][]blacklistEntry // chain -> entries
	store      *state.FileStore
	logger     zerolog.Logger
}

// NewBlacklist loads the blacklist for the selected chain from path.
// maxRetries at or below zero falls back to MaxQuoteRetries.
func NewBlacklist(path, chainName string, maxRetries int, logger zerolog.Logger) *Blacklist {
	if maxRetries <= 0 {
		maxRetries = MaxQuoteRetries
	}
	b := &Blacklist{
		chain:      chainName,
		maxRetries: maxRetries,
		entries:    make(map[string][]blacklistEntry),
		store:      state.NewFileStore(path, logger),
		logger:     logger.With().Str("component", "Blacklist").Logger(),
	}
	b.store.Load(&b.entries)
	return b
}

// RecordFailure increments the retry count for a token, adding it at one
// retry if unseen. Returns the updated count.
func (b *Blacklist) RecordFailure(tokenAddress string) int {
	token := strings.ToLower(tokenAddress)

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.entries[b.chain]
	for i := range list {
		if list[i].TokenAddress == token {
			list[i].Retries++
			b.persist()
			if list[i].Retries > b.maxRetries {
				b.logger.Info().Str("token", token).Int("retries", list[i].Retries).
					Msg("Token exceeded quote retries, now blacklisted")
			}
			return list[i].Retries
		}
	}

	b.entries[b.chain] = append(list, blacklistEntry{TokenAddress: token, Retries: 1})
	b.persist()
	return 1
}

// Clear removes a token's entry entirely. Called after a successful quote so
// a transient RPC problem does not accumulate into a ban.
func (b *Blacklist) Clear(tokenAddress string) {
	token := strings.ToLower(tokenAddress)

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.entries[b.chain]
	for i := range list {
		if list[i].TokenAddress == token {
			b.entries[b.chain] = append(list[:i], list[i+1:]...)
			b.persist()
			return
		}
	}
}

// IsBlacklisted reports whether the token has exhausted its quote retries.
func (b *Blacklist) IsBlacklisted(tokenAddress string) bool {
	token := strings.ToLower(tokenAddress)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range b.entries[b.chain] {
		if entry.TokenAddress == token {
			return entry.Retries > b.maxRetries
		}
	}
	return false
}

// Retries returns the current retry count for a token, zero if unseen.
func (b *Blacklist) Retries(tokenAddress string) int {
	token := strings.ToLower(tokenAddress)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range b.entries[b.chain] {
		if entry.TokenAddress == token {
			return entry.Retries
		}
	}
	return 0
}

// caller holds b.mu
func (b *Blacklist) persist() {
	if err := b.store.Save(b.entries); err != nil {
		b.logger.Warn().Err(err).Msg("Could not persist blacklist")
	}
}
