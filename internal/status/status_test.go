package status

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dex-trading-bot/internal/analysis"
	"dex-trading-bot/internal/oracle"
	"dex-trading-bot/internal/risk"
	"dex-trading-bot/internal/tokens"
)

const testNative = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"

type stubVolumes struct{}

func (stubVolumes) PoolVolumeUSD(ctx context.Context, poolAddress string) (float64, error) {
	return 1000, nil
}

type stubPositions struct {
	held map[string]bool
}

func (s stubPositions) IsPositioned(tokenAddress string) bool {
	return s.held[tokenAddress]
}

func testPoolInfo(token, pool string) tokens.PoolInfo {
	fee := tokens.Fee{BasisPoints: 3000}
	tok := tokens.NewToken(token, "TKN", "Token")
	return tokens.PoolInfo{
		Token: tok,
		Pool:  tokens.NewPool(pool, tok, tokens.NewToken(testNative, "WETH", "Wrapped Ether"), fee, 0),
		Fee:   fee,
	}
}

func newTestManager(t *testing.T, positions PositionSource) (*Manager, *risk.Blacklist) {
	t.Helper()
	logger := zerolog.Nop()

	sim := oracle.NewSimulatedOracle(testNative, logger)
	sim.SetRate("0xaaa", 1.0)
	sim.SetRate("0xbbb", 1.0)
	sim.SetRate("0xccc", 1.0)

	checker := analysis.NewChecker(oracle.NewMarket(sim, testNative), stubVolumes{}, analysis.Config{
		PriceIncreaseThreshold:  decimal.NewFromFloat(1.0025),
		VolumeIncreaseThreshold: decimal.NewFromFloat(1.1),
		Window:                  0,
	}, logger)

	blacklist := risk.NewBlacklist(filepath.Join(t.TempDir(), "token_blacklist.json"), "ethereum", 0, logger)
	return NewManager(checker, nil, blacklist, positions, 20, logger), blacklist
}

func TestCreateTokenCheckTasksSkipsPositionedAndBlacklisted(t *testing.T) {
	positions := stubPositions{held: map[string]bool{"0xaaa": true}}
	m, blacklist := newTestManager(t, positions)

	for i := 0; i <= risk.MaxQuoteRetries; i++ {
		blacklist.RecordFailure("0xbbb")
	}

	candidates := []tokens.PoolInfo{
		testPoolInfo("0xaaa", "0x111"), // already positioned
		testPoolInfo("0xbbb", "0x222"), // blacklisted
		testPoolInfo("0xccc", "0x333"),
	}

	tasks := m.CreateTokenCheckTasks(context.Background(), candidates, big.NewInt(1_000_000))
	if len(tasks) != 1 {
		t.Fatalf("launched %d tasks, want 1", len(tasks))
	}
	if tasks[0].Info.Token.Address != "0xccc" {
		t.Errorf("task token = %s, want 0xccc", tasks[0].Info.Token.Address)
	}
}

func TestCreateTokenCheckTasksDedupesPoolIDs(t *testing.T) {
	m, _ := newTestManager(t, stubPositions{})

	candidates := []tokens.PoolInfo{
		testPoolInfo("0xccc", "0x333"),
		testPoolInfo("0xccc", "0x333"), // same pool id
		testPoolInfo("0xccc", "0x444"), // same token, different pool
	}

	tasks := m.CreateTokenCheckTasks(context.Background(), candidates, big.NewInt(1_000_000))
	if len(tasks) != 2 {
		t.Errorf("launched %d tasks, want 2", len(tasks))
	}
}

func TestTaskWaitReturnsCheckOutcome(t *testing.T) {
	m, _ := newTestManager(t, stubPositions{})

	tasks := m.CreateTokenCheckTasks(context.Background(),
		[]tokens.PoolInfo{testPoolInfo("0xccc", "0x333")}, big.NewInt(1_000_000))
	if len(tasks) != 1 {
		t.Fatal("expected one task")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Flat price in the simulated market: no signal, but the task completes.
	signal, base := tasks[0].Wait(ctx)
	if signal {
		t.Error("flat price should not signal")
	}
	if base == nil {
		t.Error("base value should never be nil")
	}
}

func TestNewCycleClearsPreviousTasks(t *testing.T) {
	m, _ := newTestManager(t, stubPositions{})
	probe := big.NewInt(1_000_000)

	first := m.CreateTokenCheckTasks(context.Background(),
		[]tokens.PoolInfo{testPoolInfo("0xccc", "0x333")}, probe)
	for _, task := range first {
		task.Wait(context.Background())
	}

	// The same candidate is eligible again in the next cycle.
	second := m.CreateTokenCheckTasks(context.Background(),
		[]tokens.PoolInfo{testPoolInfo("0xccc", "0x333")}, probe)
	if len(second) != 1 {
		t.Errorf("launched %d tasks in the new cycle, want 1", len(second))
	}
}
