// Package domain contains the on-chain verification engine.
package domain

import (
	"github.com/pendergraft/questhub/internal/chains/evm"
)

// Type selects how a verification config is checked.
type Type string

const (
	TypeOnchain Type = "onchain"
	TypeManual  Type = "manual"
	TypeAPI     Type = "api"
)

// DefaultArgName is the event argument compared against the user when a
// config does not name one.
const DefaultArgName = "sender"

// DefaultTokenDecimals is the fixed-point precision used for minAmount.
const DefaultTokenDecimals = 18

// Config declares an on-chain fact that proves a user did something.
type Config struct {
	Type            Type   `json:"type" yaml:"type"`
	ChainID         int64  `json:"chainId,omitempty" yaml:"chainId,omitempty"`
	ContractAddress string `json:"contractAddress,omitempty" yaml:"contractAddress,omitempty"`
	// Contracts lists further contract addresses searched alongside ContractAddress.
	Contracts          []string         `json:"contracts,omitempty" yaml:"contracts,omitempty"`
	EventABI           *evm.EventSchema `json:"eventAbi,omitempty" yaml:"eventAbi,omitempty"`
	EventName          string           `json:"eventName,omitempty" yaml:"eventName,omitempty"`
	EventSignatureHash string           `json:"eventSignatureHash,omitempty" yaml:"eventSignatureHash,omitempty"`
	ArgName            string           `json:"argName,omitempty" yaml:"argName,omitempty"`
	MinAmount          string           `json:"minAmount,omitempty" yaml:"minAmount,omitempty"`
	TokenDecimals      *int32           `json:"tokenDecimals,omitempty" yaml:"tokenDecimals,omitempty"`
}

// IsOnchain reports whether the config is checked against a chain.
// An empty type is treated as onchain.
func (c Config) IsOnchain() bool {
	return c.Type == TypeOnchain || c.Type == ""
}

// FilterArg returns the argument compared against the user.
func (c Config) FilterArg() string {
	if c.ArgName == "" {
		return DefaultArgName
	}
	return c.ArgName
}

// Decimals returns the precision used to scale on-chain amounts.
func (c Config) Decimals() int32 {
	if c.TokenDecimals == nil {
		return DefaultTokenDecimals
	}
	return *c.TokenDecimals
}

// Tier names the stage of the engine that decided a result.
type Tier string

const (
	TierDirect      Tier = "direct"
	TierRawTopic    Tier = "raw_topic"
	TierTxSender    Tier = "tx_sender"
	TierAmountGate  Tier = "amount_gate"
	TierManual      Tier = "manual"
	TierConfig      Tier = "config"
	TierPlaceholder Tier = "placeholder"
	TierError       Tier = "error"
	TierNone        Tier = "none"
)

// User-facing result messages.
const (
	MsgVerified         = "Verified!"
	MsgVerifiedRaw      = "Verified (Raw Match)"
	MsgVerifiedSender   = "Verified (Tx Sender)"
	MsgVerifiedManually = "Verified manually"
	MsgNoMatch          = "No matching transaction found"
	MsgNotIntegrated    = "Quest contract not yet integrated."
	MsgMissingEvent     = "Invalid config: Missing event details"
)

// Result is the outcome of one verification.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Tier    Tier   `json:"tier,omitempty"`
}

func succeeded(tier Tier, msg string) Result {
	return Result{Success: true, Message: msg, Tier: tier}
}

func failed(tier Tier, msg string) Result {
	return Result{Error: msg, Tier: tier}
}
