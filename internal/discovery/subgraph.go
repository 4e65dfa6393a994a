// Package discovery finds freshly created pools that pair a candidate token
// with the chain's wrapped native currency, by querying the DEX subgraph.
package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dex-trading-bot/internal/chains"
	"dex-trading-bot/internal/risk"
	"dex-trading-bot/internal/tokens"
)

const (
	maxRetries = 3
	retryDelay = time.Second
)

// Subgraph schema flavours the client understands.
const (
	SchemaUniswapV3 = "uniswap_v3"
	SchemaMessari   = "messari"
)

// Config bounds the discovery queries.
type Config struct {
	PastTime        time.Duration // how far back to look for pool creation
	MinLiquidityUSD float64
	MaxLiquidityUSD float64
	MinVolumeUSD    float64
}

// Client queries one chain's subgraph for new pools.
type Client struct {
	chain       chains.Chain
	cfg         Config
	stablecoins map[string]bool
	blacklist   *risk.Blacklist
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewClient builds a discovery client. stablecoins lists token addresses to
// exclude as uninteresting counterparts; blacklist may be nil.
func NewClient(chain chains.Chain, cfg Config, stablecoins []string, blacklist *risk.Blacklist, logger zerolog.Logger) *Client {
	stable := make(map[string]bool, len(stablecoins))
	for _, addr := range stablecoins {
		stable[strings.ToLower(addr)] = true
	}
	return &Client{
		chain:       chain,
		cfg:         cfg,
		stablecoins: stable,
		blacklist:   blacklist,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger.With().Str("component", "Discovery").Str("chain", chain.Name).Logger(),
	}
}

type graphqlRequest struct {
	Query string `json:"query"`
}

type subgraphToken struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

type subgraphPool struct {
	ID        string        `json:"id"`
	FeeTier   string        `json:"feeTier"`
	VolumeUSD string        `json:"volumeUSD"`
	Token0    subgraphToken `json:"token0"`
	Token1    subgraphToken `json:"token1"`
}

// DiscoverNewPools returns candidate token/pool pairs created within the
// configured lookback window. Pools are filtered to those pairing against
// the wrapped native token, excluding stablecoins, blacklisted tokens and
// malformed entries.
func (c *Client) DiscoverNewPools(ctx context.Context) ([]tokens.PoolInfo, error) {
	raw, err := c.query(ctx, c.buildNewPoolsQuery())
	if err != nil {
		return nil, fmt.Errorf("discover new pools: %w", err)
	}

	pools, err := c.parsePools(raw)
	if err != nil {
		return nil, fmt.Errorf("parse new pools: %w", err)
	}

	candidates := c.filter(pools)
	c.logger.Info().Int("pools", len(pools)).Int("candidates", len(candidates)).
		Msg("Pool discovery complete")
	return candidates, nil
}

// PoolVolumeUSD returns a single pool's cumulative traded volume in USD.
func (c *Client) PoolVolumeUSD(ctx context.Context, poolAddress string) (float64, error) {
	field := "pool"
	if c.chain.SubgraphType == SchemaMessari {
		field = "liquidityPool"
	}
	query := fmt.Sprintf(`{ %s(id: %q) { id volumeUSD } }`, field, strings.ToLower(poolAddress))

	raw, err := c.query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("pool volume: %w", err)
	}

	var body map[string]struct {
		VolumeUSD string `json:"volumeUSD"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return 0, fmt.Errorf("parse pool volume: %w", err)
	}
	entry, ok := body[field]
	if !ok || entry.VolumeUSD == "" {
		return 0, fmt.Errorf("pool %s not found in subgraph", poolAddress)
	}
	vol, err := strconv.ParseFloat(entry.VolumeUSD, 64)
	if err != nil {
		return 0, fmt.Errorf("parse pool volume %q: %w", entry.VolumeUSD, err)
	}
	return vol, nil
}

func (c *Client) buildNewPoolsQuery() string {
	since := time.Now().Add(-c.cfg.PastTime).Unix()
	native := c.chain.NativeTokenAddress

	if c.chain.SubgraphType == SchemaMessari {
		return fmt.Sprintf(`{
  liquidityPools(
    first: 100
    orderBy: createdTimestamp
    orderDirection: desc
    where: {createdTimestamp_gte: %d, totalValueLockedUSD_gte: %g, totalValueLockedUSD_lte: %g, cumulativeVolumeUSD_gte: %g}
  ) {
    id
    fees { feePercentage feeType }
    cumulativeVolumeUSD
    inputTokens { id symbol name }
  }
}`, since, c.cfg.MinLiquidityUSD, c.cfg.MaxLiquidityUSD, c.cfg.MinVolumeUSD)
	}

	poolFields := `id feeTier volumeUSD token0 { id symbol name } token1 { id symbol name }`
	where := fmt.Sprintf(`createdAtTimestamp_gte: %d, totalValueLockedUSD_gte: %g, totalValueLockedUSD_lte: %g, volumeUSD_gte: %g`,
		since, c.cfg.MinLiquidityUSD, c.cfg.MaxLiquidityUSD, c.cfg.MinVolumeUSD)

	return fmt.Sprintf(`{
  poolsWithToken0: pools(
    first: 100
    orderBy: createdAtTimestamp
    orderDirection: desc
    where: {%s, token0: %q}
  ) { %s }
  poolsWithToken1: pools(
    first: 100
    orderBy: createdAtTimestamp
    orderDirection: desc
    where: {%s, token1: %q}
  ) { %s }
}`, where, native, poolFields, where, native, poolFields)
}

func (c *Client) parsePools(raw json.RawMessage) ([]subgraphPool, error) {
	if c.chain.SubgraphType == SchemaMessari {
		return c.parseMessariPools(raw)
	}

	var body struct {
		PoolsWithToken0 []subgraphPool `json:"poolsWithToken0"`
		PoolsWithToken1 []subgraphPool `json:"poolsWithToken1"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return append(body.PoolsWithToken0, body.PoolsWithToken1...), nil
}

func (c *Client) parseMessariPools(raw json.RawMessage) ([]subgraphPool, error) {
	var body struct {
		LiquidityPools []struct {
			ID   string `json:"id"`
			Fees []struct {
				FeePercentage string `json:"feePercentage"`
				FeeType       string `json:"feeType"`
			} `json:"fees"`
			CumulativeVolumeUSD string          `json:"cumulativeVolumeUSD"`
			InputTokens         []subgraphToken `json:"inputTokens"`
		} `json:"liquidityPools"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}

	var pools []subgraphPool
	for _, lp := range body.LiquidityPools {
		if len(lp.InputTokens) != 2 {
			continue
		}
		pool := subgraphPool{
			ID:        lp.ID,
			VolumeUSD: lp.CumulativeVolumeUSD,
			Token0:    lp.InputTokens[0],
			Token1:    lp.InputTokens[1],
		}
		for _, fee := range lp.Fees {
			if fee.FeeType == "FIXED_TRADING_FEE" {
				// Messari reports percent, the fee tier is in hundredths
				// of a basis point.
				if pct, err := strconv.ParseFloat(fee.FeePercentage, 64); err == nil {
					pool.FeeTier = strconv.Itoa(int(pct * 10000))
				}
			}
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

// filter keeps pools where exactly one side is the wrapped native token and
// the other side is a tradeable candidate.
func (c *Client) filter(pools []subgraphPool) []tokens.PoolInfo {
	native := c.chain.NativeTokenAddress
	seen := make(map[string]bool)
	var out []tokens.PoolInfo

	for _, pool := range pools {
		poolAddr := strings.ToLower(pool.ID)
		if poolAddr == "" || poolAddr == tokens.ZeroAddress {
			continue
		}

		t0 := strings.ToLower(pool.Token0.ID)
		t1 := strings.ToLower(pool.Token1.ID)

		var candidate subgraphToken
		switch {
		case t0 == native && t1 != native:
			candidate = pool.Token1
		case t1 == native && t0 != native:
			candidate = pool.Token0
		default:
			continue
		}

		addr := strings.ToLower(candidate.ID)
		if addr == "" || addr == tokens.ZeroAddress || c.stablecoins[addr] {
			continue
		}
		if c.blacklist != nil && c.blacklist.IsBlacklisted(addr) {
			continue
		}

		id := tokens.PoolID(addr, poolAddr)
		if seen[id] {
			continue
		}
		seen[id] = true

		feeTier, err := strconv.Atoi(pool.FeeTier)
		if err != nil || feeTier <= 0 {
			continue
		}
		volume, _ := strconv.ParseFloat(pool.VolumeUSD, 64)

		fee := tokens.Fee{BasisPoints: feeTier}
		token0 := tokens.NewToken(pool.Token0.ID, pool.Token0.Symbol, pool.Token0.Name)
		token1 := tokens.NewToken(pool.Token1.ID, pool.Token1.Symbol, pool.Token1.Name)
		out = append(out, tokens.PoolInfo{
			Token: tokens.NewToken(candidate.ID, candidate.Symbol, candidate.Name),
			Pool:  tokens.NewPool(poolAddr, token0, token1, fee, volume),
			Fee:   fee,
		})
	}
	return out
}

// query posts a GraphQL query, retrying transient failures.
func (c *Client) query(ctx context.Context, query string) (json.RawMessage, error) {
	payload, err := json.Marshal(graphqlRequest{Query: query})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		raw, err := c.post(ctx, payload)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Subgraph query failed")

		if attempt < maxRetries {
			timer := time.NewTimer(retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil, fmt.Errorf("subgraph query failed after %d attempts: %w", maxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, payload []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chain.SubgraphURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(body.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", body.Errors[0].Message)
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("empty response data")
	}
	return body.Data, nil
}
