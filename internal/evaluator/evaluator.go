// Package evaluator prices the overhead of a trade: gas, pool fees and
// slippage, and the resulting profitability targets. All amounts are wei.
package evaluator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dex-trading-bot/internal/ethereum"
	"dex-trading-bot/internal/tokens"
)

// SlippageTolerance is the per-transaction slippage assumed when netting a
// quote down to a realistic fill.
var SlippageTolerance = decimal.NewFromFloat(0.01)

// GasPricer supplies the current gas price. Satisfied by ethereum.Client.
type GasPricer interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// Evaluator computes trade costs against the live gas price.
type Evaluator struct {
	gas          GasPricer
	profitMargin decimal.Decimal
	logger       zerolog.Logger
}

// New builds an evaluator. profitMargin is the target margin over break-even,
// e.g. 0.01 for one percent.
func New(gas GasPricer, profitMargin float64, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		gas:          gas,
		profitMargin: decimal.NewFromFloat(profitMargin),
		logger:       logger.With().Str("component", "Evaluator").Logger(),
	}
}

// GasCost returns the native-currency cost of nTx transactions at the
// current gas price, each budgeted at the fixed per-transaction gas limit.
func (e *Evaluator) GasCost(ctx context.Context, nTx int) (*big.Int, error) {
	gasPrice, err := e.gas.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	cost := new(big.Int).Mul(gasPrice, big.NewInt(ethereum.GasLimitPerTransaction))
	return cost.Mul(cost, big.NewInt(int64(nTx))), nil
}

// NetAmountAndCosts discounts a gross quote by pool fee and slippage over
// nTx transactions, then subtracts gas. It returns the net amount actually
// expected and the total overhead (gas plus the fee/slippage haircut).
// Net can go negative for small trades; callers compare it against targets
// rather than clamping.
func (e *Evaluator) NetAmountAndCosts(ctx context.Context, gross *big.Int, fee tokens.Fee, nTx int) (net, costs *big.Int, err error) {
	gasCost, err := e.GasCost(ctx, nTx)
	if err != nil {
		return nil, nil, err
	}

	rate := fee.Percentage().Add(SlippageTolerance).Mul(decimal.NewFromInt(int64(nTx)))
	grossDec := decimal.NewFromBigInt(gross, 0)
	adjusted := grossDec.Div(decimal.NewFromInt(1).Add(rate))

	haircut := grossDec.Sub(adjusted).BigInt()
	net = adjusted.BigInt()
	net.Sub(net, gasCost)
	costs = new(big.Int).Add(gasCost, haircut)
	return net, costs, nil
}

// ROIMultiplier returns the price multiple at which selling the position
// recovers the original outlay plus round-trip costs plus the profit
// margin. Round-trip costs are priced at two transactions.
func (e *Evaluator) ROIMultiplier(ctx context.Context, original *big.Int, fee tokens.Fee) (decimal.Decimal, error) {
	if original == nil || original.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("original amount must be positive")
	}

	_, costs, err := e.NetAmountAndCosts(ctx, original, fee, 2)
	if err != nil {
		return decimal.Zero, err
	}

	origDec := decimal.NewFromBigInt(original, 0)
	target := origDec.Add(decimal.NewFromBigInt(costs, 0)).
		Mul(decimal.NewFromInt(1).Add(e.profitMargin))
	return target.Div(origDec), nil
}

// HasBalanceForTrade reports whether the wallet balances cover the trade.
// A buy needs native balance for the amount plus round-trip gas; a sell
// only needs the token amount itself since gas is paid from native.
func (e *Evaluator) HasBalanceForTrade(ctx context.Context, nativeBalance, tokenBalance, amount *big.Int, side string) (bool, error) {
	switch side {
	case "BUY":
		if nativeBalance == nil {
			return false, nil
		}
		gasCost, err := e.GasCost(ctx, 2)
		if err != nil {
			return false, err
		}
		need := new(big.Int).Add(amount, gasCost)
		return nativeBalance.Cmp(need) >= 0, nil
	case "SELL":
		if tokenBalance == nil {
			return false, nil
		}
		return tokenBalance.Cmp(amount) >= 0, nil
	default:
		return false, fmt.Errorf("unknown trade side %q", side)
	}
}

// ProfitMargin exposes the configured margin.
func (e *Evaluator) ProfitMargin() decimal.Decimal { return e.profitMargin }
