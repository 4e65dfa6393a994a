package database

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// TradeRecord is one executed swap, demo or live.
type TradeRecord struct {
	ID           uuid.UUID `json:"id"`
	Chain        string    `json:"chain"`
	TokenAddress string    `json:"token_address"`
	TokenSymbol  string    `json:"token_symbol"`
	PoolAddress  string    `json:"pool_address"`
	Side         string    `json:"side"`
	InputAmount  *big.Int  `json:"input_amount"`
	OutputAmount *big.Int  `json:"output_amount"`
	GasCost      *big.Int  `json:"gas_cost"`
	Demo         bool      `json:"demo"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// TradeRepository stores and queries trade records.
type TradeRepository struct {
	db *DB
}

// NewTradeRepository creates a repository over the given connection.
func NewTradeRepository(db *DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// RecordTrade inserts an executed trade, assigning it a fresh id.
func (r *TradeRepository) RecordTrade(ctx context.Context, trade *TradeRecord) error {
	if trade.ID == uuid.Nil {
		trade.ID = uuid.New()
	}
	if trade.ExecutedAt.IsZero() {
		trade.ExecutedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO trades (id, chain, token_address, token_symbol, pool_address,
			side, input_amount, output_amount, gas_cost, demo, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Pool.Exec(ctx, query,
		trade.ID, trade.Chain, trade.TokenAddress, trade.TokenSymbol, trade.PoolAddress,
		trade.Side, trade.InputAmount.String(), trade.OutputAmount.String(),
		bigOrZero(trade.GasCost), trade.Demo, trade.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// RecentTrades returns the most recent trades on a chain, newest first.
func (r *TradeRepository) RecentTrades(ctx context.Context, chain string, limit int) ([]TradeRecord, error) {
	query := `
		SELECT id, chain, token_address, token_symbol, pool_address,
			side, input_amount, output_amount, gas_cost, demo, executed_at
		FROM trades
		WHERE chain = $1
		ORDER BY executed_at DESC
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, chain, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		var input, output, gas string
		if err := rows.Scan(&t.ID, &t.Chain, &t.TokenAddress, &t.TokenSymbol, &t.PoolAddress,
			&t.Side, &input, &output, &gas, &t.Demo, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.InputAmount, _ = new(big.Int).SetString(input, 10)
		t.OutputAmount, _ = new(big.Int).SetString(output, 10)
		t.GasCost, _ = new(big.Int).SetString(gas, 10)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func bigOrZero(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
