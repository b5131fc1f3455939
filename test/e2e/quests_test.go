//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/questhub/pkg/client"
)

func TestCatalogue(t *testing.T) {
	c := newClient()
	ctx := context.Background()

	t.Run("list quests", func(t *testing.T) {
		list, err := c.ListQuests(ctx, "")
		require.NoError(t, err)
		assert.Len(t, list, 5)
	})

	t.Run("filter by category", func(t *testing.T) {
		list, err := c.ListQuests(ctx, "defi")
		require.NoError(t, err)
		ids := make([]string, len(list))
		for i, q := range list {
			ids[i] = q.ID
		}
		assert.ElementsMatch(t, []string{"swap", "liquidity", "soon"}, ids)
	})

	t.Run("get quest", func(t *testing.T) {
		q, err := c.GetQuest(ctx, "liquidity")
		require.NoError(t, err)
		assert.Equal(t, int64(900), q.XP)
		require.Len(t, q.Steps, 3)
		assert.NotNil(t, q.Steps[0].Verification)
		assert.Nil(t, q.Steps[2].Verification)
	})

	t.Run("unknown quest", func(t *testing.T) {
		_, err := c.GetQuest(ctx, "nope")
		assertHTTPError(t, err, "NOT_FOUND")
	})

	t.Run("milestones are ordered", func(t *testing.T) {
		ms, err := c.Milestones(ctx)
		require.NoError(t, err)
		require.Len(t, ms, 2)
		assert.Equal(t, "explorer", ms[0].ID)
		assert.Equal(t, "adventurer", ms[1].ID)
	})
}

func TestAdHocVerify(t *testing.T) {
	c := newClient()
	ctx := context.Background()
	user := newUser()
	testCtx.Chain.emit(user, depositLog(user))

	cfg := client.VerificationConfig{
		Type:            "onchain",
		ChainID:         57073,
		ContractAddress: depositPool.Hex(),
		EventName:       "Deposit",
		ArgName:         "user",
		EventABI:        []byte(`{"name":"Deposit","type":"event","inputs":[{"name":"user","type":"address","indexed":true}]}`),
	}

	res, err := c.Verify(ctx, cfg, user.Hex())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "direct", res.Tier)

	// nothing is recorded
	profile, err := c.Profile(ctx, user.Hex())
	require.NoError(t, err)
	assert.Empty(t, profile.CompletedQuests)
	assert.Zero(t, profile.XP)

	res, err = c.Verify(ctx, cfg, newUser().Hex())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "No matching transaction found", res.Error)
}
