package watchlist

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"dex-trading-bot/internal/tokens"
)

func testPoolInfo(token, pool string) tokens.PoolInfo {
	fee := tokens.Fee{BasisPoints: 3000}
	tok := tokens.NewToken(token, "TKN", "Token")
	return tokens.PoolInfo{
		Token: tok,
		Pool:  tokens.NewPool(pool, tok, tokens.NewToken("0xweth", "WETH", "Wrapped Ether"), fee, 0),
		Fee:   fee,
	}
}

func newTestWatchlist(t *testing.T, max int) *Watchlist {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.json")
	return New(path, "ethereum", max, nil, zerolog.Nop())
}

func TestAddRequiresPositiveBaseValue(t *testing.T) {
	wl := newTestWatchlist(t, 10)
	info := testPoolInfo("0xaaa", "0x111")

	tests := []struct {
		name string
		base *big.Int
		want bool
	}{
		{"nil base value", nil, false},
		{"zero base value", big.NewInt(0), false},
		{"negative base value", big.NewInt(-5), false},
		{"positive base value", big.NewInt(1000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wl.Add(info, tt.base); got != tt.want {
				t.Errorf("Add with base %v = %v, want %v", tt.base, got, tt.want)
			}
		})
	}
}

func TestAddRejectsWhenFull(t *testing.T) {
	wl := newTestWatchlist(t, 1)

	if !wl.Add(testPoolInfo("0xaaa", "0x111"), big.NewInt(100)) {
		t.Fatal("first Add should succeed")
	}
	if wl.Add(testPoolInfo("0xbbb", "0x222"), big.NewInt(100)) {
		t.Error("Add should be rejected at capacity")
	}
	if wl.Len() != 1 {
		t.Errorf("Len = %d, want 1", wl.Len())
	}
	if wl.HasCapacity() {
		t.Error("HasCapacity should be false at the limit")
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	wl := newTestWatchlist(t, 10)
	info := testPoolInfo("0xaaa", "0x111")

	if !wl.Add(info, big.NewInt(100)) {
		t.Fatal("first Add should succeed")
	}
	if wl.Add(info, big.NewInt(200)) {
		t.Error("duplicate Add should be rejected")
	}

	entry, ok := wl.Get(tokens.PoolID("0xaaa", "0x111"))
	if !ok {
		t.Fatal("entry should exist")
	}
	if entry.BaseValue.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("duplicate Add must not overwrite base value, got %s", entry.BaseValue)
	}
}

type stubCheck struct {
	info   tokens.PoolInfo
	signal bool
	base   *big.Int
}

func (s stubCheck) Wait(ctx context.Context) (bool, *big.Int) { return s.signal, s.base }
func (s stubCheck) PoolInfo() tokens.PoolInfo                 { return s.info }

func TestUpdateAdmitsOnlySignalledTokens(t *testing.T) {
	wl := newTestWatchlist(t, 10)

	checks := []CheckTask{
		stubCheck{info: testPoolInfo("0xaaa", "0x111"), signal: true, base: big.NewInt(1000)},
		stubCheck{info: testPoolInfo("0xbbb", "0x222"), signal: false, base: big.NewInt(1000)},
		stubCheck{info: testPoolInfo("0xccc", "0x333"), signal: true, base: big.NewInt(0)},
	}

	if admitted := wl.Update(context.Background(), checks); admitted != 1 {
		t.Errorf("Update admitted %d entries, want 1", admitted)
	}
	if !wl.Contains(tokens.PoolID("0xaaa", "0x111")) {
		t.Error("signalled token should be watched")
	}
	if wl.Contains(tokens.PoolID("0xbbb", "0x222")) {
		t.Error("unsignalled token must not be watched")
	}
	if wl.Contains(tokens.PoolID("0xccc", "0x333")) {
		t.Error("a signal without a base value must not be watched")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	wl := newTestWatchlist(t, 10)
	info := testPoolInfo("0xaaa", "0x111")
	id := tokens.PoolID("0xaaa", "0x111")

	wl.Add(info, big.NewInt(100))
	wl.Remove(id, "test")
	if wl.Contains(id) {
		t.Error("entry should be gone after Remove")
	}

	// Second removal of the same id must not panic or alter state.
	wl.Remove(id, "test")
	if wl.Len() != 0 {
		t.Errorf("Len = %d, want 0", wl.Len())
	}
}

func TestWatchlistPersistsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.json")
	info := testPoolInfo("0xaaa", "0x111")

	first := New(path, "ethereum", 10, nil, zerolog.Nop())
	first.Add(info, big.NewInt(12345))

	second := New(path, "ethereum", 10, nil, zerolog.Nop())
	entry, ok := second.Get(tokens.PoolID("0xaaa", "0x111"))
	if !ok {
		t.Fatal("entry should survive a restart")
	}
	if entry.BaseValue.Cmp(big.NewInt(12345)) != 0 {
		t.Errorf("base value = %s, want 12345", entry.BaseValue)
	}
	if entry.Token.Symbol != "TKN" {
		t.Errorf("token symbol = %q, want TKN", entry.Token.Symbol)
	}
}

func TestWatchlistIsChainScoped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.json")

	eth := New(path, "ethereum", 10, nil, zerolog.Nop())
	eth.Add(testPoolInfo("0xaaa", "0x111"), big.NewInt(100))

	base := New(path, "base", 10, nil, zerolog.Nop())
	if base.Len() != 0 {
		t.Errorf("another chain's view should be empty, got %d entries", base.Len())
	}
}
