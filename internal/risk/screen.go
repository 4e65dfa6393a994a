// Package risk filters candidate tokens before any capital is committed: a
// third-party reputation score gates admission, and tokens that repeatedly
// fail quoting are blacklisted so discovery stops resurfacing them.
package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"dex-trading-bot/internal/state"
)

// Pending and failed sentinel scores, kept in the cache so a token under
// review is not re-scraped on every cycle.
const (
	ScorePending = -1
	ScoreFailed  = -2
)

// ScoreProvider fetches a fresh risk score (0-100) for a token. Higher is
// safer; the threshold comparison is the screen's responsibility.
type ScoreProvider interface {
	GetRiskScore(ctx context.Context, tokenAddress string) (int, error)
}

// Config holds the screen's thresholds and cache settings.
type Config struct {
	RatingThreshold int
	CacheFile       string
	CacheMaxAge     time.Duration
}

type cacheEntry struct {
	Score       int   `json:"score"`
	LastChecked int64 `json:"last_checked"`
}

// Screen decides whether a token passes the scam-risk gate. Scores are
// cached in redis when available, with a JSON file fallback so a redis
// outage degrades to slower lookups instead of failures.
type Screen struct {
	cfg      Config
	chain    string
	provider ScoreProvider
	rdb      *redis.Client
	store    *state.FileStore
	logger   zerolog.Logger

	mu    sync.Mutex
	cache map[string]map[string]cacheEntry // chain -> token -> entry
}

// NewScreen builds a screen for the selected chain. rdb may be nil when
// redis is disabled.
func NewScreen(cfg Config, chainName string, provider ScoreProvider, rdb *redis.Client, logger zerolog.Logger) *Screen {
	s := &Screen{
		cfg:      cfg,
		chain:    chainName,
		provider: provider,
		rdb:      rdb,
		store:    state.NewFileStore(cfg.CacheFile, logger),
		logger:   logger.With().Str("component", "RiskScreen").Logger(),
		cache:    make(map[string]map[string]cacheEntry),
	}
	s.store.Load(&s.cache)
	return s
}

// Passes reports whether the token's risk score clears the rating threshold.
// A pending or unavailable score fails closed: no capital is committed to a
// token that cannot be screened. With no provider configured screening is
// disabled entirely and every token passes.
func (s *Screen) Passes(ctx context.Context, tokenAddress string) bool {
	if s.provider == nil {
		return true
	}
	score, err := s.Score(ctx, tokenAddress)
	if err != nil {
		s.logger.Warn().Err(err).Str("token", tokenAddress).Msg("Risk score unavailable, failing closed")
		return false
	}
	if score < 0 {
		s.logger.Info().Str("token", tokenAddress).Int("score", score).Msg("Risk score pending, failing closed")
		return false
	}
	return score >= s.cfg.RatingThreshold
}

// Score returns the cached or freshly fetched risk score for a token.
func (s *Screen) Score(ctx context.Context, tokenAddress string) (int, error) {
	token := strings.ToLower(tokenAddress)

	if entry, ok := s.lookup(ctx, token); ok {
		age := time.Since(time.Unix(entry.LastChecked, 0))
		stale := entry.Score < 0 && age > s.cfg.CacheMaxAge
		if !stale {
			return entry.Score, nil
		}
		s.logger.Info().Str("token", token).Int("score", entry.Score).
			Msg("Cached score is pending/failed and stale, refetching")
	}

	if s.provider == nil {
		return 0, nil
	}

	score, err := s.provider.GetRiskScore(ctx, token)
	if err != nil {
		s.remember(ctx, token, ScoreFailed)
		return 0, fmt.Errorf("fetch risk score for %s: %w", token, err)
	}

	s.remember(ctx, token, score)
	return score, nil
}

func (s *Screen) redisKey(token string) string {
	return fmt.Sprintf("risk:%s:%s", s.chain, token)
}

func (s *Screen) lookup(ctx context.Context, token string) (cacheEntry, bool) {
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, s.redisKey(token)).Result()
		if err == nil {
			var entry cacheEntry
			if json.Unmarshal([]byte(raw), &entry) == nil {
				return entry, true
			}
		} else if err != redis.Nil {
			s.logger.Debug().Err(err).Msg("Redis lookup failed, using file cache")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[s.chain][token]
	return entry, ok
}

func (s *Screen) remember(ctx context.Context, token string, score int) {
	entry := cacheEntry{Score: score, LastChecked: time.Now().Unix()}

	if s.rdb != nil {
		if raw, err := json.Marshal(entry); err == nil {
			if err := s.rdb.Set(ctx, s.redisKey(token), raw, s.cfg.CacheMaxAge).Err(); err != nil {
				s.logger.Debug().Err(err).Msg("Redis cache write failed")
			}
		}
	}

	s.mu.Lock()
	if s.cache[s.chain] == nil {
		s.cache[s.chain] = make(map[string]cacheEntry)
	}
	s.cache[s.chain][token] = entry
	snapshot := s.cache
	s.mu.Unlock()

	if err := s.store.Save(snapshot); err != nil {
		s.logger.Warn().Err(err).Msg("Could not persist risk score cache")
	}
}

// HTTPScoreProvider fetches scores from a score service exposing
// GET {base}/{chain_short_name}/{token} -> {"score": n}.
type HTTPScoreProvider struct {
	baseURL   string
	shortName string
	client    *http.Client
}

// NewHTTPScoreProvider builds a provider for the given chain short name.
func NewHTTPScoreProvider(baseURL, chainShortName string) *HTTPScoreProvider {
	return &HTTPScoreProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		shortName: chainShortName,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GetRiskScore fetches a fresh score for the token.
func (p *HTTPScoreProvider) GetRiskScore(ctx context.Context, tokenAddress string) (int, error) {
	url := fmt.Sprintf("%s/%s/%s", p.baseURL, p.shortName, tokenAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("score request: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Score int `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode score response: %w", err)
	}
	return body.Score, nil
}
