// Package evm implements chain clients and event decoding for EVM networks.
package evm

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/pendergraft/questhub/internal/chains"
	"github.com/pendergraft/questhub/internal/observability/metrics"
)

// Options tunes RPC behaviour for every dialed client.
type Options struct {
	// Timeout bounds each individual RPC call. Zero disables the bound.
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls per chain. Zero means unlimited.
	RequestsPerSecond float64
	Burst             int
}

// Client is a chains.Client backed by a JSON-RPC endpoint.
type Client struct {
	network chains.Network
	rpc     *rpc.Client
	eth     *ethclient.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// Dial connects to the network's RPC endpoint. For HTTP endpoints no
// request is made until the first call.
func Dial(ctx context.Context, network chains.Network, opts Options) (*Client, error) {
	rc, err := rpc.DialContext(ctx, network.RPCURL)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		network: network,
		rpc:     rc,
		eth:     ethclient.NewClient(rc),
		limiter: rate.NewLimiter(limit, burst),
		timeout: opts.Timeout,
	}, nil
}

// NewDialer returns a chains.Dialer that dials with opts.
func NewDialer(opts Options) chains.Dialer {
	return func(n chains.Network) (chains.Client, error) {
		return Dial(context.Background(), n, opts)
	}
}

// Network returns the network this client is bound to.
func (c *Client) Network() chains.Network {
	return c.network
}

// BlockNumber returns the current head block.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	err := c.call(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		head, err = c.eth.BlockNumber(ctx)
		return err
	})
	return head, err
}

// FilterLogs runs eth_getLogs.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.call(ctx, "eth_getLogs", func(ctx context.Context) error {
		var err error
		logs, err = c.eth.FilterLogs(ctx, q)
		return err
	})
	return logs, err
}

// rpcTransaction holds the one field of eth_getTransactionByHash we need.
type rpcTransaction struct {
	From *common.Address `json:"from"`
}

// TransactionSender returns the node-reported sender of a transaction.
// Reading "from" directly keeps deposit transactions on OP-stack chains
// working, which go-ethereum's typed decoder rejects.
func (c *Client) TransactionSender(ctx context.Context, hash common.Hash) (common.Address, error) {
	var tx *rpcTransaction
	err := c.call(ctx, "eth_getTransactionByHash", func(ctx context.Context) error {
		return c.rpc.CallContext(ctx, &tx, "eth_getTransactionByHash", hash)
	})
	if err != nil {
		return common.Address{}, err
	}
	if tx == nil {
		return common.Address{}, ethereum.NotFound
	}
	if tx.From == nil {
		return common.Address{}, fmt.Errorf("transaction %s has no sender", hash.Hex())
	}
	return *tx.From, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() error {
	c.rpc.Close()
	return nil
}

func (c *Client) call(ctx context.Context, method string, fn func(context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	metrics.RPCRequest(c.network.Name, method, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s on %s: %w", method, c.network.Name, err)
	}
	return nil
}
