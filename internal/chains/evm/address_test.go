package evm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder("0x0000000000000000000000000000000000000000"))
	assert.False(t, IsPlaceholder("0x9F500d075118272B3564ac6Ef2c70a9067Fd2d3F"))
	assert.False(t, IsPlaceholder(""))
	assert.False(t, IsPlaceholder("0x0"))
}

func TestAddressTopic(t *testing.T) {
	addr := common.HexToAddress("0x9F500d075118272B3564ac6Ef2c70a9067Fd2d3F")
	assert.Equal(t,
		"0x0000000000000000000000009f500d075118272b3564ac6ef2c70a9067fd2d3f",
		AddressTopic(addr).Hex())
}

func TestTopicFilter(t *testing.T) {
	sel := common.HexToHash("0xaa")
	val := common.HexToHash("0xbb")

	got := TopicFilter(sel, 3, val)
	require.Len(t, got, 4)
	assert.Equal(t, []common.Hash{sel}, got[0])
	assert.Nil(t, got[1])
	assert.Nil(t, got[2])
	assert.Equal(t, []common.Hash{val}, got[3])

	assert.Equal(t, [][]common.Hash{{sel}}, TopicFilter(sel, 0, val))
}

func TestMatchesAddress(t *testing.T) {
	addr := common.HexToAddress("0xAbCdEf0123456789aBcDeF0123456789AbCdEf01")

	assert.True(t, MatchesAddress(addr, addr))
	assert.True(t, MatchesAddress(&addr, addr))
	assert.True(t, MatchesAddress("0xabcdef0123456789abcdef0123456789abcdef01", addr))
	assert.False(t, MatchesAddress(common.Address{}, addr))
	assert.False(t, MatchesAddress(big.NewInt(1), addr))
	assert.False(t, MatchesAddress(nil, addr))
}

func TestToBigInt(t *testing.T) {
	assert.Equal(t, int64(7), ToBigInt(big.NewInt(7)).Int64())
	assert.Equal(t, int64(300), ToBigInt(uint16(300)).Int64())
	assert.Equal(t, int64(-5), ToBigInt(int32(-5)).Int64())
	assert.Nil(t, ToBigInt("12"))
	assert.Nil(t, ToBigInt(nil))
}
