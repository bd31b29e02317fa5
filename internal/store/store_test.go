package store

import (
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscan/shielded-stats-pipeline/internal/db"
	"github.com/veilscan/shielded-stats-pipeline/internal/db/model"
	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

func newResult(key string) *model.StoredResult {
	return &model.StoredResult{
		Key:         key,
		ReferenceID: gofakeit.UUID(),
		Payload:     []byte(`{"values": [1, 2, 3]}`),
		Provenance: model.Provenance{
			SourceURL:   "http://localhost:8232",
			BlockRange:  "100-200",
			SubmittedAt: time.Now().UTC(),
		},
		StoredAt: time.Now().UTC(),
	}
}

func TestPut_ConflictWithoutOverwrite(t *testing.T) {
	metrics.Init(9999)
	store := New(NewMemoryBackend(), time.Minute)

	require.NoError(t, store.Put(t.Context(), newResult("job-1"), false))

	err := store.Put(t.Context(), newResult("job-1"), false)
	require.Error(t, err)
	assert.True(t, types.IsStorageConflictError(err))

	// explicit overwrite is allowed
	require.NoError(t, store.Put(t.Context(), newResult("job-1"), true))
}

func TestPut_AtMostOneConcurrentWriter(t *testing.T) {
	metrics.Init(9999)
	store := New(NewMemoryBackend(), time.Minute)

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)

	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.Put(t.Context(), newResult("contested"), false)
		}()
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case types.IsStorageConflictError(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, writers-1, conflicts)
}

func TestGet_CachePopulationAndExpiry(t *testing.T) {
	metrics.Init(9999)
	backend := NewMemoryBackend()
	store := New(backend, 30*time.Millisecond)

	result := newResult("job-1")
	require.NoError(t, store.Put(t.Context(), result, false))

	// served from cache even after the backend copy is gone
	require.NoError(t, backend.DeleteResult(t.Context(), "job-1"))
	got, err := store.Get(t.Context(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, result.ReferenceID, got.ReferenceID)

	// after the TTL the lazy expiry falls through to the backend
	time.Sleep(50 * time.Millisecond)
	_, err = store.Get(t.Context(), "job-1")
	require.Error(t, err)
	assert.True(t, db.IsNotFoundError(err))
}

func TestList_FilterAndLimit(t *testing.T) {
	metrics.Init(9999)
	store := New(NewMemoryBackend(), time.Minute)

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(t.Context(), newResult(key), false))
	}
	other := newResult("d")
	other.Provenance.SourceURL = "http://other:8232"
	require.NoError(t, store.Put(t.Context(), other, false))

	summaries, err := store.List(t.Context(), db.ResultFilter{Source: "http://localhost:8232"})
	require.NoError(t, err)
	assert.Len(t, summaries, 3)

	limited, err := store.List(t.Context(), db.ResultFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDeleteExpired(t *testing.T) {
	metrics.Init(9999)
	store := New(NewMemoryBackend(), time.Minute)

	old := newResult("old")
	old.StoredAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.Put(t.Context(), old, false))
	require.NoError(t, store.Put(t.Context(), newResult("fresh"), false))

	deleted, err := store.DeleteExpired(t.Context(), time.Now().UTC().Add(-time.Hour), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	// the expired entry is also gone from the cache
	_, err = store.Get(t.Context(), "old")
	require.Error(t, err)

	count, err := store.Count(t.Context())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
