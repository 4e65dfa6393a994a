// Package ethereum wraps the JSON-RPC connection to the selected chain. It
// exposes the few reads the trading core needs: gas price, native balance and
// ERC-20 token balances. Gas price is cached briefly because the evaluator
// consults it on every buy/sell evaluation.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	geth "github.com/ethereum/go-ethereum"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// GasLimitPerTransaction is the fixed gas-limit estimate used for swap cost
// projections.
const GasLimitPerTransaction = 150_000

// gasPriceTTL bounds how stale the cached gas price may get.
const gasPriceTTL = 15 * time.Second

// balanceOf(address) selector.
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// Client is the chain read client.
type Client struct {
	eth    *ethclient.Client
	logger zerolog.Logger

	mu         sync.Mutex
	gasPrice   *big.Int
	gasPriceAt time.Time
}

// Dial connects to the chain RPC endpoint.
func Dial(ctx context.Context, rpcURL string, logger zerolog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", rpcURL, err)
	}
	return &Client{
		eth:    eth,
		logger: logger.With().Str("component", "ChainClient").Logger(),
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.eth.Close()
}

// GasPrice returns the suggested gas price in wei, cached for a short window.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	if c.gasPrice != nil && time.Since(c.gasPriceAt) < gasPriceTTL {
		price := new(big.Int).Set(c.gasPrice)
		c.mu.Unlock()
		return price, nil
	}
	c.mu.Unlock()

	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	c.mu.Lock()
	c.gasPrice = new(big.Int).Set(price)
	c.gasPriceAt = time.Now()
	c.mu.Unlock()

	return price, nil
}

// NativeBalance returns the wallet's native-currency balance in wei.
func (c *Client) NativeBalance(ctx context.Context, wallet string) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, gethcommon.HexToAddress(wallet), nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", wallet, err)
	}
	return balance, nil
}

// TokenBalance returns the wallet's balance of an ERC-20 token via a
// balanceOf static call.
func (c *Client) TokenBalance(ctx context.Context, wallet, token string) (*big.Int, error) {
	data := make([]byte, 0, 36)
	data = append(data, balanceOfSelector...)
	data = append(data, gethcommon.LeftPadBytes(gethcommon.HexToAddress(wallet).Bytes(), 32)...)

	tokenAddr := gethcommon.HexToAddress(token)
	out, err := c.eth.CallContract(ctx, geth.CallMsg{
		To:   &tokenAddr,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s for %s: %w", token, wallet, err)
	}
	if len(out) < 32 {
		return nil, fmt.Errorf("balanceOf %s: short return data (%d bytes)", token, len(out))
	}
	return new(big.Int).SetBytes(out[:32]), nil
}

// CallContract performs a raw static call; the quoter uses this for price
// quotes.
func (c *Client) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	addr := gethcommon.HexToAddress(to)
	return c.eth.CallContract(ctx, geth.CallMsg{To: &addr, Data: data}, nil)
}
