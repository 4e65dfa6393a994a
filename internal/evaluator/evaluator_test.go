package evaluator

import (
	"context"
	"math/big"
	"testing"

	"github.com/rs/zerolog"

	"dex-trading-bot/internal/ethereum"
	"dex-trading-bot/internal/tokens"
)

type fixedGas struct {
	price *big.Int
}

func (f fixedGas) GasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.price), nil
}

func newTestEvaluator(gasPrice int64, margin float64) *Evaluator {
	return New(fixedGas{price: big.NewInt(gasPrice)}, margin, zerolog.Nop())
}

func TestGasCost(t *testing.T) {
	e := newTestEvaluator(10_000_000_000, 0.01) // 10 gwei

	got, err := e.GasCost(context.Background(), 2)
	if err != nil {
		t.Fatalf("GasCost failed: %v", err)
	}

	want := new(big.Int).Mul(big.NewInt(10_000_000_000), big.NewInt(ethereum.GasLimitPerTransaction))
	want.Mul(want, big.NewInt(2))
	if got.Cmp(want) != 0 {
		t.Errorf("GasCost(2) = %s, want %s", got, want)
	}
}

func TestNetAmountAndCostsConserveGross(t *testing.T) {
	e := newTestEvaluator(1_000_000_000, 0.01)
	gross := new(big.Int)
	gross.SetString("1000000000000000000", 10)
	fee := tokens.Fee{BasisPoints: 3000}

	net, costs, err := e.NetAmountAndCosts(context.Background(), gross, fee, 1)
	if err != nil {
		t.Fatalf("NetAmountAndCosts failed: %v", err)
	}

	if net.Cmp(gross) >= 0 {
		t.Errorf("net %s should be below gross %s", net, gross)
	}
	if costs.Sign() <= 0 {
		t.Errorf("costs should be positive, got %s", costs)
	}

	// net + costs must reconstruct gross, allowing for integer truncation.
	sum := new(big.Int).Add(net, costs)
	diff := new(big.Int).Sub(gross, sum)
	if diff.CmpAbs(big.NewInt(2)) > 0 {
		t.Errorf("net + costs = %s, want %s within 2 wei", sum, gross)
	}
}

func TestNetAmountScalesWithTransactionCount(t *testing.T) {
	e := newTestEvaluator(1_000_000_000, 0.01)
	gross := big.NewInt(1_000_000_000_000_000)
	fee := tokens.Fee{BasisPoints: 3000}

	netOne, _, err := e.NetAmountAndCosts(context.Background(), gross, fee, 1)
	if err != nil {
		t.Fatal(err)
	}
	netTwo, _, err := e.NetAmountAndCosts(context.Background(), gross, fee, 2)
	if err != nil {
		t.Fatal(err)
	}

	if netTwo.Cmp(netOne) >= 0 {
		t.Errorf("two transactions should net less than one: %s vs %s", netTwo, netOne)
	}
}

func TestROIMultiplierExceedsMargin(t *testing.T) {
	e := newTestEvaluator(1_000_000_000, 0.01)
	original := new(big.Int)
	original.SetString("60000000000000000", 10) // 0.06 native
	fee := tokens.Fee{BasisPoints: 3000}

	multiplier, err := e.ROIMultiplier(context.Background(), original, fee)
	if err != nil {
		t.Fatalf("ROIMultiplier failed: %v", err)
	}

	m, _ := multiplier.Float64()
	// Covering round-trip costs means the target sits above bare 1+margin.
	if m <= 1.01 {
		t.Errorf("multiplier = %v, want above 1.01", m)
	}
}

func TestROIMultiplierMonotonicInMargin(t *testing.T) {
	original := big.NewInt(60_000_000_000_000_000)
	fee := tokens.Fee{BasisPoints: 3000}

	low, err := newTestEvaluator(1_000_000_000, 0.01).ROIMultiplier(context.Background(), original, fee)
	if err != nil {
		t.Fatal(err)
	}
	high, err := newTestEvaluator(1_000_000_000, 0.05).ROIMultiplier(context.Background(), original, fee)
	if err != nil {
		t.Fatal(err)
	}

	if !high.GreaterThan(low) {
		t.Errorf("multiplier should grow with margin: %s vs %s", high, low)
	}
}

func TestROIMultiplierRejectsNonPositiveInput(t *testing.T) {
	e := newTestEvaluator(1_000_000_000, 0.01)
	fee := tokens.Fee{BasisPoints: 3000}

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		if _, err := e.ROIMultiplier(context.Background(), amount, fee); err == nil {
			t.Errorf("ROIMultiplier(%v) should fail", amount)
		}
	}
}

func TestHasBalanceForTrade(t *testing.T) {
	// 150_000_000 wei gas price puts round-trip gas at 4.5e13 wei.
	e := newTestEvaluator(150_000_000, 0.01)
	ctx := context.Background()

	oneNative := new(big.Int)
	oneNative.SetString("1000000000000000000", 10)
	buyAmount := new(big.Int)
	buyAmount.SetString("60000000000000000", 10)

	gasCost, err := e.GasCost(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	exactBuy := new(big.Int).Add(buyAmount, gasCost)
	justShort := new(big.Int).Sub(exactBuy, big.NewInt(1))

	tests := []struct {
		name    string
		native  *big.Int
		token   *big.Int
		amount  *big.Int
		side    string
		want    bool
		wantErr bool
	}{
		{"buy with ample native", oneNative, big.NewInt(0), buyAmount, "BUY", true, false},
		{"buy at exact boundary", exactBuy, big.NewInt(0), buyAmount, "BUY", true, false},
		{"buy one wei short", justShort, big.NewInt(0), buyAmount, "BUY", false, false},
		{"buy with nil native", nil, big.NewInt(0), buyAmount, "BUY", false, false},
		{"sell with exact tokens", big.NewInt(0), big.NewInt(500), big.NewInt(500), "SELL", true, false},
		{"sell with insufficient tokens", big.NewInt(0), big.NewInt(499), big.NewInt(500), "SELL", false, false},
		{"sell with nil tokens", big.NewInt(0), nil, big.NewInt(500), "SELL", false, false},
		{"unknown side", oneNative, oneNative, buyAmount, "HODL", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.HasBalanceForTrade(ctx, tt.native, tt.token, tt.amount, tt.side)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("HasBalanceForTrade = %v, want %v", got, tt.want)
			}
		})
	}
}
