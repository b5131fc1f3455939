package evm

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsPlaceholder reports whether addr is the all-zero address used for
// contracts that are not wired up yet.
func IsPlaceholder(addr string) bool {
	return common.IsHexAddress(addr) && common.HexToAddress(addr) == (common.Address{})
}

// AddressTopic left-pads an address to a 32 byte topic word.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// TopicFilter builds a topic filter with the selector at position 0 and
// value at position index. Positions in between match anything.
func TopicFilter(selector common.Hash, index int, value common.Hash) [][]common.Hash {
	if index <= 0 {
		return [][]common.Hash{{selector}}
	}
	topics := make([][]common.Hash, index+1)
	topics[0] = []common.Hash{selector}
	topics[index] = []common.Hash{value}
	return topics
}

// MatchesAddress reports whether a decoded argument equals addr.
// Strings are compared case-insensitively.
func MatchesAddress(v any, addr common.Address) bool {
	switch val := v.(type) {
	case common.Address:
		return val == addr
	case *common.Address:
		return val != nil && *val == addr
	case string:
		return strings.EqualFold(val, addr.Hex())
	default:
		return false
	}
}

// ToBigInt converts a decoded integer argument into a big.Int.
// It returns nil for non-integer values.
func ToBigInt(v any) *big.Int {
	switch n := v.(type) {
	case *big.Int:
		return n
	case uint8:
		return new(big.Int).SetUint64(uint64(n))
	case uint16:
		return new(big.Int).SetUint64(uint64(n))
	case uint32:
		return new(big.Int).SetUint64(uint64(n))
	case uint64:
		return new(big.Int).SetUint64(n)
	case int8:
		return big.NewInt(int64(n))
	case int16:
		return big.NewInt(int64(n))
	case int32:
		return big.NewInt(int64(n))
	case int64:
		return big.NewInt(n)
	default:
		return nil
	}
}
