package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/pendergraft/questhub/internal/chains"
	"github.com/pendergraft/questhub/internal/chains/evm"
	"github.com/pendergraft/questhub/internal/observability/metrics"
)

// ErrInvalidConfig marks configs that can never be checked.
var ErrInvalidConfig = errors.New("invalid verification config")

// ClientFactory hands out chain clients by chain ID.
type ClientFactory interface {
	Client(chainID int64) (chains.Client, chains.Network, error)
}

// Options bounds the RPC cost of a single verification.
type Options struct {
	// LookbackBlocks is the window searched by the direct and raw topic queries.
	LookbackBlocks uint64
	// MaxSenderTxs caps the number of transactions inspected by the sender scan.
	MaxSenderTxs int
	// SenderBatchSize is how many transactions are fetched concurrently.
	SenderBatchSize int
}

// DefaultOptions returns the production limits.
func DefaultOptions() Options {
	return Options{
		LookbackBlocks:  2000,
		MaxSenderTxs:    500,
		SenderBatchSize: 20,
	}
}

// Engine decides whether an address performed the action a Config describes.
// It keeps no state between calls and is safe for concurrent use.
type Engine struct {
	clients ClientFactory
	opts    Options
	logger  *slog.Logger
}

// NewEngine creates a verification engine.
func NewEngine(clients ClientFactory, opts Options, logger *slog.Logger) *Engine {
	defaults := DefaultOptions()
	if opts.LookbackBlocks == 0 {
		opts.LookbackBlocks = defaults.LookbackBlocks
	}
	if opts.MaxSenderTxs <= 0 {
		opts.MaxSenderTxs = defaults.MaxSenderTxs
	}
	if opts.SenderBatchSize <= 0 {
		opts.SenderBatchSize = defaults.SenderBatchSize
	}
	return &Engine{clients: clients, opts: opts, logger: logger}
}

// run carries the resolved inputs and intermediate results of one verification.
type run struct {
	label      string
	cfg        Config
	user       common.Address
	userTopic  common.Hash
	contracts  []common.Address
	selector   common.Hash
	event      *abi.Event
	argName    string
	topicIndex int
	minAmount  *decimal.Decimal
	client     chains.Client
	network    chains.Network
	head       uint64
	directLogs []map[string]any
	result     Result
}

// Verify checks cfg for address. label identifies the quest or step in logs.
// Failures are reported in the Result, never as a Go error.
func (e *Engine) Verify(ctx context.Context, cfg Config, address, label string) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("verification panicked", "label", label, "panic", rec)
			res = failed(TierError, fmt.Sprint(rec))
		}
		metrics.Verification(string(res.Tier), res.Success)
	}()

	if !cfg.IsOnchain() {
		return succeeded(TierManual, MsgVerifiedManually)
	}

	r, err := e.prepare(cfg, address, label)
	if err != nil {
		if errors.Is(err, errPlaceholder) {
			e.logger.Warn("quest has placeholder contract address", "label", label)
			return failed(TierPlaceholder, MsgNotIntegrated)
		}
		return failed(TierConfig, err.Error())
	}

	r.client, r.network, err = e.clients.Client(cfg.ChainID)
	if err != nil {
		return failed(TierError, err.Error())
	}
	r.head, err = r.client.BlockNumber(ctx)
	if err != nil {
		e.logger.Error("fetching head block failed", "label", label, "chain", r.network.Name, "error", err)
		return failed(TierError, err.Error())
	}

	state := StateDirectQuery
	for !state.terminal() {
		next := e.step(ctx, r, state)
		e.logger.Debug("verification transition", "label", label, "from", state, "to", next)
		state = next
	}
	if state == StateFailed && r.result.Tier == "" {
		r.result = failed(TierNone, MsgNoMatch)
	}
	return r.result
}

var (
	errPlaceholder  = errors.New("placeholder contract")
	errMissingEvent = errors.New(MsgMissingEvent)
)

// prepare validates cfg and resolves everything that does not need the network.
func (e *Engine) prepare(cfg Config, address, label string) (*run, error) {
	if (cfg.ContractAddress == "" && cfg.EventABI == nil) || (cfg.EventName == "" && cfg.EventSignatureHash == "") {
		return nil, errMissingEvent
	}
	if evm.IsPlaceholder(cfg.ContractAddress) {
		return nil, errPlaceholder
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: invalid user address %q", ErrInvalidConfig, address)
	}

	r := &run{
		label:      label,
		cfg:        cfg,
		user:       common.HexToAddress(address),
		argName:    cfg.FilterArg(),
		topicIndex: -1,
	}
	r.userTopic = evm.AddressTopic(r.user)

	for _, c := range append([]string{cfg.ContractAddress}, cfg.Contracts...) {
		if c == "" {
			continue
		}
		if !common.IsHexAddress(c) {
			return nil, fmt.Errorf("%w: invalid contract address %q", ErrInvalidConfig, c)
		}
		r.contracts = append(r.contracts, common.HexToAddress(c))
	}

	if cfg.EventABI != nil {
		ev, err := cfg.EventABI.Event()
		if err != nil {
			return nil, fmt.Errorf("%w: event abi: %v", ErrInvalidConfig, err)
		}
		r.event = &ev
		if idx, ok := cfg.EventABI.TopicIndex(r.argName); ok {
			r.topicIndex = idx
		}
	}

	switch {
	case cfg.EventSignatureHash != "":
		raw := strings.TrimPrefix(strings.ToLower(cfg.EventSignatureHash), "0x")
		if len(raw) != 64 {
			return nil, fmt.Errorf("%w: malformed event signature hash", ErrInvalidConfig)
		}
		r.selector = common.HexToHash(cfg.EventSignatureHash)
	case r.event != nil:
		r.selector = r.event.ID
	default:
		return nil, fmt.Errorf("%w: cannot derive event selector without an event abi or signature hash", ErrInvalidConfig)
	}

	if cfg.MinAmount != "" {
		threshold, err := decimal.NewFromString(cfg.MinAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: minAmount %q: %v", ErrInvalidConfig, cfg.MinAmount, err)
		}
		r.minAmount = &threshold
	}
	if cfg.TokenDecimals != nil && *cfg.TokenDecimals < 0 {
		return nil, fmt.Errorf("%w: tokenDecimals must not be negative", ErrInvalidConfig)
	}
	return r, nil
}

// step executes one state and returns the next one.
func (e *Engine) step(ctx context.Context, r *run, state State) State {
	switch state {
	case StateDirectQuery:
		return e.directQuery(ctx, r)
	case StateRawTopicQuery:
		return e.rawTopicQuery(ctx, r)
	case StateTxSenderScan:
		return e.txSenderScan(ctx, r)
	case StateAmountGate:
		return e.amountGate(r)
	default:
		return StateFailed
	}
}

// directQuery asks the node for the event filtered on the user and re-checks
// every decoded log client side, since some nodes ignore topic filters.
func (e *Engine) directQuery(ctx context.Context, r *run) State {
	if r.cfg.EventSignatureHash != "" || r.event == nil {
		return StateRawTopicQuery
	}

	topics := evm.TopicFilter(r.selector, r.topicIndex, r.userTopic)
	logs, err := r.client.FilterLogs(ctx, e.query(r, windowStart(r.head, e.opts.LookbackBlocks), topics))
	if err != nil {
		e.logger.Warn("direct log query failed", "label", r.label, "chain", r.network.Name, "error", err)
		return StateRawTopicQuery
	}

	for _, log := range logs {
		args, err := evm.DecodeLog(*r.event, log)
		if err != nil {
			e.logger.Debug("skipping undecodable log", "label", r.label, "tx", log.TxHash, "error", err)
			continue
		}
		if evm.MatchesAddress(args[r.argName], r.user) {
			r.directLogs = append(r.directLogs, args)
		}
	}

	switch {
	case len(r.directLogs) == 0:
		return StateRawTopicQuery
	case r.minAmount != nil:
		// logs exist, so the raw topic query has nothing to add
		return StateTxSenderScan
	default:
		r.result = succeeded(TierDirect, MsgVerified)
		return StateSucceeded
	}
}

// rawTopicQuery matches the padded address at the argument's topic slot
// without decoding, which survives truncated or mismatched ABIs.
func (e *Engine) rawTopicQuery(ctx context.Context, r *run) State {
	if r.topicIndex < 1 {
		return StateTxSenderScan
	}

	topics := evm.TopicFilter(r.selector, r.topicIndex, r.userTopic)
	logs, err := r.client.FilterLogs(ctx, e.query(r, windowStart(r.head, e.opts.LookbackBlocks), topics))
	if err != nil {
		e.logger.Warn("raw topic log query failed", "label", r.label, "chain", r.network.Name, "error", err)
		return StateTxSenderScan
	}

	for _, log := range logs {
		if len(log.Topics) > r.topicIndex && log.Topics[r.topicIndex] == r.userTopic {
			r.result = succeeded(TierRawTopic, MsgVerifiedRaw)
			return StateSucceeded
		}
	}
	return StateTxSenderScan
}

// txSenderScan accepts the user when they sent a recent transaction that
// emitted the event.
func (e *Engine) txSenderScan(ctx context.Context, r *run) State {
	from := windowStart(r.head, r.network.TxSenderWindow)
	logs, err := r.client.FilterLogs(ctx, e.query(r, from, [][]common.Hash{{r.selector}}))
	if err != nil {
		e.logger.Warn("tx sender log query failed", "label", r.label, "chain", r.network.Name, "error", err)
		return r.afterSenderScan()
	}

	hashes := recentTxHashes(logs, e.opts.MaxSenderTxs)
	for start := 0; start < len(hashes); start += e.opts.SenderBatchSize {
		end := min(start+e.opts.SenderBatchSize, len(hashes))
		if e.batchHasSender(ctx, r, hashes[start:end]) {
			r.result = succeeded(TierTxSender, MsgVerifiedSender)
			return StateSucceeded
		}
		if ctx.Err() != nil {
			break
		}
	}
	return r.afterSenderScan()
}

// afterSenderScan falls back to the amount gate when the direct query found
// logs for the user that still need their amount checked.
func (r *run) afterSenderScan() State {
	if len(r.directLogs) > 0 && r.minAmount != nil {
		return StateAmountGate
	}
	return StateFailed
}

func (e *Engine) batchHasSender(ctx context.Context, r *run, batch []common.Hash) bool {
	matches := make([]bool, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, hash := range batch {
		g.Go(func() error {
			from, err := r.client.TransactionSender(gctx, hash)
			if err != nil {
				e.logger.Debug("transaction lookup failed", "label", r.label, "tx", hash, "error", err)
				return nil
			}
			matches[i] = from == r.user
			return nil
		})
	}
	_ = g.Wait()
	return slices.Contains(matches, true)
}

// amountFields are checked in order; the first non-zero value wins.
var amountFields = []string{"amount", "value", "amount0In"}

func (e *Engine) amountGate(r *run) State {
	decimals := r.cfg.Decimals()
	for _, args := range r.directLogs {
		amount := logAmount(args)
		if decimal.NewFromBigInt(amount, -decimals).GreaterThanOrEqual(*r.minAmount) {
			r.result = succeeded(TierAmountGate, MsgVerified)
			return StateSucceeded
		}
	}
	e.logger.Debug("matching logs below minimum amount", "label", r.label, "min", r.minAmount.String(), "logs", len(r.directLogs))
	r.result = failed(TierAmountGate, MsgNoMatch)
	return StateFailed
}

func logAmount(args map[string]any) *big.Int {
	for _, field := range amountFields {
		if v := evm.ToBigInt(args[field]); v != nil && v.Sign() != 0 {
			return v
		}
	}
	return new(big.Int)
}

func (e *Engine) query(r *run, from uint64, topics [][]common.Hash) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		Addresses: r.contracts,
		Topics:    topics,
	}
}

// windowStart returns head-span clamped at block 0.
func windowStart(head, span uint64) uint64 {
	if head > span {
		return head - span
	}
	return 0
}

// recentTxHashes dedupes transaction hashes and returns up to limit of them,
// most recent first.
func recentTxHashes(logs []types.Log, limit int) []common.Hash {
	seen := make(map[common.Hash]struct{}, len(logs))
	hashes := make([]common.Hash, 0, len(logs))
	for _, log := range logs {
		if _, ok := seen[log.TxHash]; ok {
			continue
		}
		seen[log.TxHash] = struct{}{}
		hashes = append(hashes, log.TxHash)
	}
	slices.Reverse(hashes)
	if len(hashes) > limit {
		hashes = hashes[:limit]
	}
	return hashes
}
