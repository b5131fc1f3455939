package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/questhub/internal/quests"
)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	reg, err := quests.Load()
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(reg).RegisterRoutes(r)
	return r
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_List(t *testing.T) {
	router := setupRouter(t)

	t.Run("hidden quests excluded by default", func(t *testing.T) {
		rec := get(router, "/quests")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, len(resp.Data), resp.Count)
		for _, q := range resp.Data {
			assert.False(t, q.Hidden)
		}
	})

	t.Run("include hidden", func(t *testing.T) {
		rec := get(router, "/quests?includeHidden=true")
		var resp ListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 18, resp.Count)
	})

	t.Run("category filter", func(t *testing.T) {
		rec := get(router, "/quests?category=NFT&includeHidden=true")
		var resp ListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, 2, resp.Count)
		assert.Equal(t, "16", resp.Data[0].ID)
	})
}

func TestHandler_Get(t *testing.T) {
	router := setupRouter(t)

	t.Run("found", func(t *testing.T) {
		rec := get(router, "/quests/15")
		require.Equal(t, http.StatusOK, rec.Code)

		var q quests.Quest
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
		assert.Equal(t, "Say GM on Inkchain", q.Title)
		require.Len(t, q.Steps, 1)
		require.NotNil(t, q.Steps[0].Verification)
		assert.Equal(t, "GM", q.Steps[0].Verification.EventName)
	})

	t.Run("not found", func(t *testing.T) {
		rec := get(router, "/quests/404")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	})
}

func TestHandler_Milestones(t *testing.T) {
	rec := get(setupRouter(t), "/milestones")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MilestonesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 6)
	assert.Equal(t, "explorer", resp.Data[0].ID)
	assert.Equal(t, int64(10000), resp.Data[5].XPRequired)
	assert.Equal(t, quests.RarityMythic, resp.Data[5].Rarity)
}
