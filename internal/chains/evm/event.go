package evm

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrTopicMismatch is returned when a log was not emitted by the event being decoded.
var ErrTopicMismatch = errors.New("log topic does not match event")

// EventParam is one parameter of an event signature.
type EventParam struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type" yaml:"type"`
	Indexed      bool   `json:"indexed" yaml:"indexed"`
	InternalType string `json:"internalType,omitempty" yaml:"internalType,omitempty"`
}

// EventSchema describes an event as an ordered parameter list, the same
// shape as an event entry of a contract ABI.
type EventSchema struct {
	Name      string       `json:"name" yaml:"name"`
	Type      string       `json:"type,omitempty" yaml:"type,omitempty"`
	Anonymous bool         `json:"anonymous,omitempty" yaml:"anonymous,omitempty"`
	Inputs    []EventParam `json:"inputs" yaml:"inputs"`
}

// Event builds the go-ethereum representation of the schema.
func (s EventSchema) Event() (abi.Event, error) {
	if s.Name == "" {
		return abi.Event{}, errors.New("event name is required")
	}
	args := make(abi.Arguments, 0, len(s.Inputs))
	for i, in := range s.Inputs {
		typ, err := abi.NewType(in.Type, in.InternalType, nil)
		if err != nil {
			return abi.Event{}, fmt.Errorf("input %d (%s): %w", i, in.Name, err)
		}
		args = append(args, abi.Argument{Name: in.Name, Type: typ, Indexed: in.Indexed})
	}
	return abi.NewEvent(s.Name, s.Name, s.Anonymous, args), nil
}

// Selector returns topic 0 of the event, the keccak256 of its canonical signature.
func (s EventSchema) Selector() (common.Hash, error) {
	ev, err := s.Event()
	if err != nil {
		return common.Hash{}, err
	}
	return ev.ID, nil
}

// TopicIndex returns the log topic position holding the named argument.
// Topic 0 is the selector, so indexed parameters start at 1.
// The second result is false when the argument is missing or not indexed.
func (s EventSchema) TopicIndex(name string) (int, bool) {
	idx := 1
	for _, in := range s.Inputs {
		if in.Name == name {
			if !in.Indexed {
				return 0, false
			}
			return idx, true
		}
		if in.Indexed {
			idx++
		}
	}
	return 0, false
}

// Param returns the named parameter.
func (s EventSchema) Param(name string) (EventParam, bool) {
	for _, in := range s.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return EventParam{}, false
}

// DecodeLog decodes both indexed and non-indexed arguments of a log.
// Indexed dynamic types (string, bytes, arrays) decode to their topic hash.
func DecodeLog(ev abi.Event, log types.Log) (map[string]any, error) {
	if len(log.Topics) == 0 || log.Topics[0] != ev.ID {
		return nil, ErrTopicMismatch
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	out := make(map[string]any, len(ev.Inputs))
	if err := abi.ParseTopicsIntoMap(out, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("decoding topics: %w", err)
	}
	if len(ev.Inputs.NonIndexed()) > 0 {
		if err := ev.Inputs.UnpackIntoMap(out, log.Data); err != nil {
			return nil, fmt.Errorf("decoding data: %w", err)
		}
	}
	return out, nil
}
