package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/questhub/internal/quests"
)

const testCatalogue = `
milestones:
  - {id: explorer, name: Explorer, xpRequired: 500, rarity: Common}
quests:
  - id: swap
    title: Swap on Velodrome
    xp: 300
    category: DeFi
    status: active
    verification:
      - type: onchain
        chainId: 57073
        contractAddress: "0x31832f2a97Fd20664D76Cc421207669b55CE4BC0"
        eventName: Swap
        eventAbi:
          name: Swap
          type: event
          inputs:
            - {name: sender, type: address, indexed: true}
            - {name: amount0In, type: uint256, indexed: false}
  - id: pending
    title: Pending Partner
    xp: 200
    category: DeFi
    status: active
    steps:
      - title: Deposit
        verification:
          type: onchain
          contractAddress: "0x0000000000000000000000000000000000000000"
          eventName: Deposit
      - title: Tell a friend
  - id: follow
    title: Follow on X
    xp: 50
    category: Social
    status: active
    hidden: true
`

func newTestRegistry(t *testing.T) *quests.Registry {
	t.Helper()
	r, err := quests.Parse([]byte(testCatalogue))
	require.NoError(t, err)
	return r
}

func TestQuestsList(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runQuestsList(&out, newTestRegistry(t), quests.Filter{}))

	got := out.String()
	assert.Contains(t, got, "ID")
	assert.Contains(t, got, "Swap on Velodrome")
	assert.Contains(t, got, "onchain (1 configs)")
	assert.Contains(t, got, "steps (1 of 2)")
	assert.NotContains(t, got, "Follow on X")
}

func TestQuestsList_Filters(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runQuestsList(&out, newTestRegistry(t), quests.Filter{Category: "social", IncludeHidden: true}))
	assert.Contains(t, out.String(), "Follow on X")
	assert.Contains(t, out.String(), "auto")

	out.Reset()
	require.NoError(t, runQuestsList(&out, newTestRegistry(t), quests.Filter{Category: "nft"}))
	assert.Equal(t, "No quests found\n", out.String())
}

func TestQuestsCheck(t *testing.T) {
	var out bytes.Buffer
	err := runQuestsCheck(&out, newTestRegistry(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 verification configs have problems")

	got := out.String()
	assert.Contains(t, got, "placeholder contract address")
	assert.Contains(t, got, "2 configs checked, 1 with problems")
	assert.Contains(t, got, "ok")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["quests"])
	assert.True(t, names["verify"])

	verify, _, err := root.Find([]string{"verify"})
	require.NoError(t, err)
	assert.NotNil(t, verify.Flags().Lookup("quest"))
	assert.NotNil(t, verify.Flags().Lookup("step"))

	root.SetArgs([]string{"verify", "--quest", "swap"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err = root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address")
}
