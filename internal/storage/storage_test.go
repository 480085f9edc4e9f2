package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
)

func exchange(id string) *models.HTTPExchange {
	return &models.HTTPExchange{
		ID:      id,
		Request: models.RequestPart{Method: "GET", URL: "https://example.com/" + id},
	}
}

func TestExchangeStore_OrderAndLimit(t *testing.T) {
	store := NewExchangeStore(3)
	for i := 1; i <= 5; i++ {
		store.StoreExchange(exchange(fmt.Sprintf("e%d", i)))
	}

	assert.Equal(t, 3, store.Len())
	_, ok := store.GetExchange("e1")
	assert.False(t, ok, "oldest entries are evicted")

	var ids []string
	for _, e := range store.ListExchanges() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"e3", "e4", "e5"}, ids)
}

func TestExchangeStore_GetExchanges(t *testing.T) {
	store := NewExchangeStore(0)
	store.StoreExchange(exchange("a"))
	store.StoreExchange(exchange("b"))

	got, err := store.GetExchanges([]string{"b", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID, "selection order is preserved")

	_, err = store.GetExchanges([]string{"a", "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExchangeStore_Delete(t *testing.T) {
	store := NewExchangeStore(0)
	store.StoreExchange(exchange("a"))
	store.StoreExchange(exchange("b"))
	store.StoreExchange(exchange("a"))

	assert.Equal(t, 2, store.Len(), "re-storing an ID does not duplicate it")

	assert.True(t, store.DeleteExchange("a"))
	assert.False(t, store.DeleteExchange("unknown"))
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, "b", store.ListExchanges()[0].ID)
}

func result(id string, created time.Time) *models.AnalysisResult {
	return &models.AnalysisResult{
		ID:         id,
		ExchangeID: "ex-" + id,
		URL:        "https://example.com/" + id,
		Provider:   "gemini",
		Model:      "gemini-1.5-flash",
		Text:       "finding for " + id,
		Duration:   1500 * time.Millisecond,
		CreatedAt:  created,
	}
}

func TestResultStores(t *testing.T) {
	stores := map[string]func(t *testing.T) ResultStore{
		"memory": func(t *testing.T) ResultStore {
			return NewMemoryResultStore()
		},
		"sqlite": func(t *testing.T) ResultStore {
			s, err := NewSQLiteResultStore(filepath.Join(t.TempDir(), "nested", "results.db"))
			require.NoError(t, err)
			return s
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			defer store.Close()

			base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
			require.NoError(t, store.Save(ctx, result("r1", base)))
			require.NoError(t, store.Save(ctx, result("r2", base.Add(time.Minute))))

			failed := result("r3", base.Add(2*time.Minute))
			failed.Text = ""
			failed.Error = "API returned status 403: Forbidden"
			require.NoError(t, store.Save(ctx, failed))

			got, err := store.Get(ctx, "r2")
			require.NoError(t, err)
			assert.Equal(t, "finding for r2", got.Text)
			assert.Equal(t, "ex-r2", got.ExchangeID)
			assert.Equal(t, 1500*time.Millisecond, got.Duration)
			assert.True(t, got.CreatedAt.Equal(base.Add(time.Minute)))

			_, err = store.Get(ctx, "nope")
			assert.ErrorIs(t, err, ErrNotFound)

			list, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, "r1", list[0].ID)
			assert.Equal(t, "r3", list[2].ID)
			assert.False(t, list[2].Succeeded())

			updated := result("r1", base)
			updated.Text = "rewritten"
			require.NoError(t, store.Save(ctx, updated))

			got, err = store.Get(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, "rewritten", got.Text)

			list, err = store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 3)
		})
	}
}

func TestSQLiteResultStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")

	store, err := NewSQLiteResultStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, result("persisted", time.Now())))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteResultStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "finding for persisted", got.Text)
}

func TestMemoryResultStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryResultStore()
	r := result("r", time.Now())
	require.NoError(t, store.Save(ctx, r))

	r.Text = "mutated after save"
	got, err := store.Get(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "finding for r", got.Text)
}

func TestNewResultStore(t *testing.T) {
	mem, err := NewResultStore("")
	require.NoError(t, err)
	assert.IsType(t, &MemoryResultStore{}, mem)

	db, err := NewResultStore(filepath.Join(t.TempDir(), "r.db"))
	require.NoError(t, err)
	defer db.Close()
	assert.IsType(t, &SQLiteResultStore{}, db)
}
