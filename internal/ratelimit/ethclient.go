package ratelimit

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"

	"github.com/feral-file/marketplace-indexer/internal/adapter"
)

const DEFAULT_BURST = 10

// Config holds the RPC rate limit
type Config struct {
	// RequestsPerSecond caps RPC calls, 0 disables limiting
	RequestsPerSecond float64
	// Burst is the number of calls allowed at once, defaults to DEFAULT_BURST
	Burst int
}

// ethClient throttles every RPC call of the wrapped client with a token bucket
type ethClient struct {
	client  adapter.EthClient
	limiter *rate.Limiter
}

// NewEthClient wraps client with a token bucket limiter.
// The client is returned as is when no rate is configured.
func NewEthClient(client adapter.EthClient, cfg Config) adapter.EthClient {
	if cfg.RequestsPerSecond <= 0 {
		return client
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = DEFAULT_BURST
	}
	return &ethClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

// Dial connects to rawurl and applies cfg to the resulting client
func Dial(ctx context.Context, dialer adapter.EthClientDialer, rawurl string, cfg Config) (adapter.EthClient, error) {
	client, err := dialer.Dial(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ethereum rpc: %w", err)
	}
	return NewEthClient(client, cfg), nil
}

func (c *ethClient) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rpc rate limit: %w", err)
	}
	return nil
}

func (c *ethClient) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	return c.client.BlockNumber(ctx)
}

func (c *ethClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.client.FilterLogs(ctx, query)
}

func (c *ethClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.client.HeaderByNumber(ctx, number)
}

func (c *ethClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.client.CallContract(ctx, msg, blockNumber)
}

func (c *ethClient) Close() {
	c.client.Close()
}
