package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dex-trading-bot/internal/chains"
	"dex-trading-bot/internal/tokens"
)

const testNative = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"

func testChain(subgraphURL string) chains.Chain {
	return chains.Chain{
		Name:               "ethereum",
		ShortName:          "eth",
		SubgraphURL:        subgraphURL,
		SubgraphType:       SchemaUniswapV3,
		NativeTokenAddress: testNative,
	}
}

func testConfig() Config {
	return Config{
		PastTime:        3 * time.Hour,
		MinLiquidityUSD: 1,
		MaxLiquidityUSD: 100_000,
		MinVolumeUSD:    5_000,
	}
}

func newTestClient(chain chains.Chain, stablecoins []string) *Client {
	return NewClient(chain, testConfig(), stablecoins, nil, zerolog.Nop())
}

func pool(id string, token0, token1 subgraphToken) subgraphPool {
	return subgraphPool{
		ID:        id,
		FeeTier:   "3000",
		VolumeUSD: "12000",
		Token0:    token0,
		Token1:    token1,
	}
}

func TestFilterKeepsOnlyNativePairedCandidates(t *testing.T) {
	c := newTestClient(testChain(""), []string{"0xdAC17F958D2ee523a2206206994597C13D831ec7"})

	native := subgraphToken{ID: testNative, Symbol: "WETH"}
	candidate := subgraphToken{ID: "0xAAA1", Symbol: "NEW"}
	stable := subgraphToken{ID: "0xdac17f958d2ee523a2206206994597c13d831ec7", Symbol: "USDT"}
	other := subgraphToken{ID: "0xbbb2", Symbol: "OTHER"}

	pools := []subgraphPool{
		pool("0x1111", native, candidate),                       // keep, token1 is the candidate
		pool("0x2222", candidate, native),                       // keep, token0 is the candidate
		pool("0x3333", native, stable),                          // drop, stablecoin counterpart
		pool("0x4444", other, candidate),                        // drop, not paired with native
		pool("0x5555", native, native),                          // drop, both sides native
		pool("0x6666", native, subgraphToken{ID: ""}),           // drop, empty address
		pool(tokens.ZeroAddress, native, candidate),             // drop, zero pool address
		pool("0x7777", native, subgraphToken{ID: tokens.ZeroAddress}), // drop, zero token
	}

	got := c.filter(pools)
	if len(got) != 2 {
		t.Fatalf("filter kept %d pools, want 2", len(got))
	}
	for _, info := range got {
		if info.Token.Address != "0xaaa1" {
			t.Errorf("candidate = %s, want lowercased 0xaaa1", info.Token.Address)
		}
		if info.Fee.BasisPoints != 3000 {
			t.Errorf("fee tier = %d, want 3000", info.Fee.BasisPoints)
		}
	}
}

func TestFilterDedupesByPoolID(t *testing.T) {
	c := newTestClient(testChain(""), nil)
	native := subgraphToken{ID: testNative, Symbol: "WETH"}
	candidate := subgraphToken{ID: "0xaaa1", Symbol: "NEW"}

	pools := []subgraphPool{
		pool("0x1111", native, candidate),
		pool("0x1111", native, candidate),
	}

	if got := c.filter(pools); len(got) != 1 {
		t.Errorf("filter kept %d pools, want 1", len(got))
	}
}

func TestFilterDropsInvalidFeeTier(t *testing.T) {
	c := newTestClient(testChain(""), nil)
	native := subgraphToken{ID: testNative, Symbol: "WETH"}
	candidate := subgraphToken{ID: "0xaaa1", Symbol: "NEW"}

	broken := pool("0x1111", native, candidate)
	broken.FeeTier = "not-a-number"

	if got := c.filter([]subgraphPool{broken}); len(got) != 0 {
		t.Errorf("filter kept %d pools, want 0", len(got))
	}
}

func TestParsePoolsMergesBothAliases(t *testing.T) {
	c := newTestClient(testChain(""), nil)

	raw := json.RawMessage(`{
		"poolsWithToken0": [
			{"id": "0x1111", "feeTier": "3000", "volumeUSD": "9000",
			 "token0": {"id": "` + testNative + `", "symbol": "WETH"},
			 "token1": {"id": "0xaaa1", "symbol": "NEW"}}
		],
		"poolsWithToken1": [
			{"id": "0x2222", "feeTier": "500", "volumeUSD": "7000",
			 "token0": {"id": "0xbbb2", "symbol": "ALT"},
			 "token1": {"id": "` + testNative + `", "symbol": "WETH"}}
		]
	}`)

	pools, err := c.parsePools(raw)
	if err != nil {
		t.Fatalf("parsePools failed: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("parsed %d pools, want 2", len(pools))
	}
}

func TestDiscoverNewPoolsEndToEnd(t *testing.T) {
	response := `{"data": {
		"poolsWithToken0": [
			{"id": "0x1111", "feeTier": "3000", "volumeUSD": "9000",
			 "token0": {"id": "` + testNative + `", "symbol": "WETH"},
			 "token1": {"id": "0xaaa1", "symbol": "NEW", "name": "New Token"}}
		],
		"poolsWithToken1": []
	}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("subgraph hit with %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
	defer server.Close()

	c := newTestClient(testChain(server.URL), nil)
	got, err := c.DiscoverNewPools(context.Background())
	if err != nil {
		t.Fatalf("DiscoverNewPools failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("discovered %d candidates, want 1", len(got))
	}
	if got[0].Token.Symbol != "NEW" {
		t.Errorf("candidate symbol = %q, want NEW", got[0].Token.Symbol)
	}
	if got[0].Pool.Address != "0x1111" {
		t.Errorf("pool address = %q, want 0x1111", got[0].Pool.Address)
	}
}

func TestPoolVolumeUSD(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"pool": {"id": "0x1111", "volumeUSD": "123456.78"}}}`))
	}))
	defer server.Close()

	c := newTestClient(testChain(server.URL), nil)
	vol, err := c.PoolVolumeUSD(context.Background(), "0x1111")
	if err != nil {
		t.Fatalf("PoolVolumeUSD failed: %v", err)
	}
	if vol != 123456.78 {
		t.Errorf("volume = %v, want 123456.78", vol)
	}
}

func TestGraphQLErrorSurfacesAfterRetries(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"errors": [{"message": "indexing in progress"}]}`))
	}))
	defer server.Close()

	c := newTestClient(testChain(server.URL), nil)
	if _, err := c.DiscoverNewPools(context.Background()); err == nil {
		t.Fatal("persistent graphql errors should surface")
	}
	if hits != maxRetries {
		t.Errorf("subgraph hit %d times, want %d", hits, maxRetries)
	}
}
