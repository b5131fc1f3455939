//go:build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http/httptest"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/questhub/internal/chains"
	"github.com/pendergraft/questhub/internal/config"
	"github.com/pendergraft/questhub/internal/quests"
	"github.com/pendergraft/questhub/internal/server"
	"github.com/pendergraft/questhub/internal/storage"
	verification "github.com/pendergraft/questhub/internal/verification/domain"
	"github.com/pendergraft/questhub/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const headBlock = 1_000_000

// Contracts of the test catalogue
var (
	bridgeContract = common.HexToAddress("0x1000000000000000000000000000000000000001")
	swapContract   = common.HexToAddress("0x1000000000000000000000000000000000000002")
	depositPool    = common.HexToAddress("0x1000000000000000000000000000000000000003")
	claimContract  = common.HexToAddress("0x1000000000000000000000000000000000000004")

	transferSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	swapSig     = crypto.Keccak256Hash([]byte("Swap(address,uint256)"))
	depositSig  = crypto.Keccak256Hash([]byte("Deposit(address)"))
	claimSig    = crypto.Keccak256Hash([]byte("Claim(uint256)"))
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	TestServer        *httptest.Server
	Store             storage.Store
	Chain             *fakeChain
}

// fakeChain is an in-memory chain that answers log filters the way a node does.
type fakeChain struct {
	mu      sync.Mutex
	logs    []types.Log
	senders map[common.Hash]common.Address
}

func newFakeChain() *fakeChain {
	return &fakeChain{senders: make(map[common.Hash]common.Address)}
}

// emit records a log sent by from.
func (c *fakeChain) emit(from common.Address, log types.Log) {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.BlockNumber = headBlock - 10
	log.TxHash = crypto.Keccak256Hash([]byte(uuid.NewString()))
	c.logs = append(c.logs, log)
	c.senders[log.TxHash] = from
}

func (c *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	return headBlock, nil
}

func (c *fakeChain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []types.Log
	for _, l := range c.logs {
		if len(q.Addresses) > 0 && !slices.Contains(q.Addresses, l.Address) {
			continue
		}
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if matchTopics(q.Topics, l.Topics) {
			out = append(out, l)
		}
	}
	return out, nil
}

func matchTopics(filter [][]common.Hash, topics []common.Hash) bool {
	for i, set := range filter {
		if len(set) == 0 {
			continue
		}
		if i >= len(topics) || !slices.Contains(set, topics[i]) {
			return false
		}
	}
	return true
}

func (c *fakeChain) TransactionSender(ctx context.Context, hash common.Hash) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	from, ok := c.senders[hash]
	if !ok {
		return common.Address{}, errors.New("transaction not found")
	}
	return from, nil
}

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func transferLog(from, to common.Address, value int64) types.Log {
	return types.Log{
		Address: bridgeContract,
		Topics:  []common.Hash{transferSig, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    word(big.NewInt(value)),
	}
}

func swapLog(sender common.Address, amountIn *big.Int) types.Log {
	return types.Log{
		Address: swapContract,
		Topics:  []common.Hash{swapSig, common.BytesToHash(sender.Bytes())},
		Data:    word(amountIn),
	}
}

func depositLog(user common.Address) types.Log {
	return types.Log{
		Address: depositPool,
		Topics:  []common.Hash{depositSig, common.BytesToHash(user.Bytes())},
	}
}

func claimLog(id int64) types.Log {
	return types.Log{
		Address: claimContract,
		Topics:  []common.Hash{claimSig},
		Data:    word(big.NewInt(id)),
	}
}

// ether returns n * 10^18.
func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// newUser returns a fresh address so tests never share progress.
func newUser() common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(uuid.NewString())))
}

var catalogue = fmt.Sprintf(`
milestones:
  - {id: explorer, name: Explorer, xpRequired: 500, rarity: Common}
  - {id: adventurer, name: Adventurer, xpRequired: 1000, rarity: Common}
quests:
  - id: bridge
    title: Bridge to Ink
    xp: 500
    category: Bridge
    status: active
    verification:
      - type: onchain
        chainId: 57073
        contractAddress: %q
        eventName: Transfer
        argName: from
        eventAbi:
          name: Transfer
          type: event
          inputs:
            - {name: from, type: address, indexed: true}
            - {name: to, type: address, indexed: true}
            - {name: value, type: uint256, indexed: false}
  - id: swap
    title: Swap at least one token
    xp: 300
    category: DeFi
    status: active
    verification:
      - type: onchain
        chainId: 57073
        contractAddress: %q
        eventName: Swap
        minAmount: "1"
        eventAbi:
          name: Swap
          type: event
          inputs:
            - {name: sender, type: address, indexed: true}
            - {name: amount0In, type: uint256, indexed: false}
  - id: liquidity
    title: Provide liquidity
    xp: 900
    category: DeFi
    status: active
    steps:
      - title: Deposit
        verification:
          type: onchain
          chainId: 57073
          contractAddress: %q
          eventName: Deposit
          argName: user
          eventAbi:
            name: Deposit
            type: event
            inputs:
              - {name: user, type: address, indexed: true}
      - title: Claim rewards
        verification:
          type: onchain
          chainId: 57073
          contractAddress: %q
          eventName: Claim
          eventSignatureHash: %q
      - title: Share your position
  - id: follow
    title: Follow on X
    xp: 50
    category: Social
    status: active
  - id: soon
    title: Coming soon
    xp: 400
    category: DeFi
    status: active
    verification:
      - type: onchain
        chainId: 57073
        contractAddress: "0x0000000000000000000000000000000000000000"
        eventName: Transfer
`, bridgeContract.Hex(), swapContract.Hex(), depositPool.Hex(), claimContract.Hex(), claimSig.Hex())

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("questhub"),
		postgres.WithUsername("questhub"),
		postgres.WithPassword("questhub"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// startServerE starts questhub in-process against Postgres and the fake chain.
// The returned function shuts everything down.
func startServerE(tc *TestContext) (func(), error) {
	cfg := config.Default()
	cfg.Storage = config.StorageConfig{
		Type:     "postgres",
		Postgres: config.PostgresConfig{URL: tc.ConnString},
	}
	cfg.Logging = config.LoggingConfig{Level: "debug", Format: "text"}
	cfg.RateLimit.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Sync.MaxJitterMS = 0

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	registry, err := quests.Parse([]byte(catalogue))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to parse catalogue: %w", err)
	}

	clients := chains.NewRegistry(
		[]chains.Network{{ChainID: chains.ChainIDInk, Name: "ink", RPCURL: "memory://ink", TxSenderWindow: 2000}},
		func(n chains.Network) (chains.Client, error) { return tc.Chain, nil },
	)
	engine := verification.NewEngine(clients, verification.DefaultOptions(), logger)

	srv := server.New(cfg, store, registry, engine, logger)
	tc.TestServer = httptest.NewServer(srv.Handler())
	tc.Store = store

	return func() {
		tc.TestServer.Close()
		srv.Close()
		clients.Close()
		store.Close()
	}, nil
}

// newClient creates a new API client for the test server
func newClient() *client.Client {
	return client.New(testCtx.TestServer.URL)
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "Error should be an APIError")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
