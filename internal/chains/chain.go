// Package chains provides the read-only chain clients used to check
// on-chain quest activity on the supported networks.
package chains

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Supported chain IDs.
const (
	ChainIDEthereum int64 = 1
	ChainIDBase     int64 = 8453
	ChainIDInk      int64 = 57073
)

// DefaultChainID is used when a config names no chain or an unknown one.
const DefaultChainID = ChainIDInk

// Client is the read-only view of a chain needed for verification.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	TransactionSender(ctx context.Context, hash common.Hash) (common.Address, error)
}

// Network describes one supported chain.
type Network struct {
	ChainID  int64
	Name     string
	RPCURL   string
	Explorer string
	// TxSenderWindow is how many blocks back the transaction sender scan looks.
	TxSenderWindow uint64
}

// DefaultNetworks returns the built-in network table.
func DefaultNetworks() []Network {
	return []Network{
		{
			ChainID:        ChainIDEthereum,
			Name:           "ethereum",
			RPCURL:         "https://ethereum.publicnode.com",
			Explorer:       "https://etherscan.io",
			TxSenderWindow: 7200,
		},
		{
			ChainID:        ChainIDBase,
			Name:           "base",
			RPCURL:         "https://base.publicnode.com",
			Explorer:       "https://basescan.org",
			TxSenderWindow: 2000,
		},
		{
			ChainID:        ChainIDInk,
			Name:           "ink",
			RPCURL:         "https://rpc-gel.inkonchain.com",
			Explorer:       "https://explorer.inkonchain.com",
			TxSenderWindow: 2000,
		},
	}
}

// WithRPCURLs returns a copy of networks with endpoints replaced from overrides.
func WithRPCURLs(networks []Network, overrides map[int64]string) []Network {
	out := make([]Network, len(networks))
	copy(out, networks)
	for i := range out {
		if url, ok := overrides[out[i].ChainID]; ok && url != "" {
			out[i].RPCURL = url
		}
	}
	return out
}

// Dialer opens a client for a network.
type Dialer func(n Network) (Client, error)

// Registry maps chain IDs to networks and hands out cached clients.
type Registry struct {
	mu       sync.Mutex
	networks map[int64]Network
	clients  map[int64]Client
	dial     Dialer
}

// NewRegistry creates a registry over the given networks.
// The networks must include DefaultChainID.
func NewRegistry(networks []Network, dial Dialer) *Registry {
	r := &Registry{
		networks: make(map[int64]Network, len(networks)),
		clients:  make(map[int64]Client),
		dial:     dial,
	}
	for _, n := range networks {
		r.networks[n.ChainID] = n
	}
	return r
}

// Network resolves a chain ID, falling back to the default network.
func (r *Registry) Network(chainID int64) Network {
	if n, ok := r.networks[chainID]; ok {
		return n
	}
	return r.networks[DefaultChainID]
}

// Supported reports whether chainID is one of the registered networks.
func (r *Registry) Supported(chainID int64) bool {
	_, ok := r.networks[chainID]
	return ok
}

// Client returns the client for chainID, dialing it on first use.
func (r *Registry) Client(chainID int64) (Client, Network, error) {
	n := r.Network(chainID)
	if n.RPCURL == "" {
		return nil, n, fmt.Errorf("no RPC endpoint configured for chain %d", n.ChainID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[n.ChainID]; ok {
		return c, n, nil
	}
	c, err := r.dial(n)
	if err != nil {
		return nil, n, fmt.Errorf("dialing %s: %w", n.Name, err)
	}
	r.clients[n.ChainID] = c
	return c, n, nil
}

// List returns all registered networks ordered by chain ID.
func (r *Registry) List() []Network {
	networks := make([]Network, 0, len(r.networks))
	for _, n := range r.networks {
		networks = append(networks, n)
	}
	sort.Slice(networks, func(i, j int) bool { return networks[i].ChainID < networks[j].ChainID })
	return networks
}

// Close closes every dialed client.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, c := range r.clients {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		delete(r.clients, id)
	}
	return errors.Join(errs...)
}
