package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veilscan/shielded-stats-pipeline/internal/db"
	"github.com/veilscan/shielded-stats-pipeline/internal/db/model"
	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

// Backend is the durable layer under the cache. The Mongo database
// implements it; an in-memory backend exists for tests and offline runs.
type Backend interface {
	SaveResult(ctx context.Context, result *model.StoredResult, overwrite bool) error
	GetResult(ctx context.Context, key string) (*model.StoredResult, error)
	ListResults(ctx context.Context, filter db.ResultFilter) ([]model.ResultSummary, error)
	DeleteResult(ctx context.Context, key string) error
	DeleteExpiredResults(ctx context.Context, before time.Time, limit uint64) (uint64, error)
	CountResults(ctx context.Context) (uint64, error)
}

type cacheEntry struct {
	result    *model.StoredResult
	expiresAt time.Time
}

// ResultStore layers a TTL cache over a durable backend. Reads check the
// cache first and populate it on miss; writes go to both layers
// synchronously. Cache entries expire lazily on access.
type ResultStore struct {
	backend Backend
	ttl     time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func New(backend Backend, cacheTTL time.Duration) *ResultStore {
	return &ResultStore{
		backend: backend,
		ttl:     cacheTTL,
		cache:   make(map[string]cacheEntry),
	}
}

// Put writes a result to the backend and the cache. Without the overwrite
// flag an existing key is rejected with StorageConflictError, which keeps
// writes at-most-once per key.
func (s *ResultStore) Put(ctx context.Context, result *model.StoredResult, overwrite bool) error {
	if err := s.backend.SaveResult(ctx, result, overwrite); err != nil {
		if db.IsDuplicateKeyError(err) {
			return &types.StorageConflictError{
				Key:     result.Key,
				Message: "result already finalized for key " + result.Key,
			}
		}
		return err
	}

	s.mu.Lock()
	s.cache[result.Key] = cacheEntry{result: result, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	return nil
}

func (s *ResultStore) Get(ctx context.Context, key string) (*model.StoredResult, error) {
	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()

	if ok {
		if time.Now().Before(entry.expiresAt) {
			metrics.IncResultCacheHit()
			return entry.result, nil
		}
		s.mu.Lock()
		delete(s.cache, key)
		s.mu.Unlock()
	}

	result, err := s.backend.GetResult(ctx, key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = cacheEntry{result: result, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	return result, nil
}

func (s *ResultStore) List(ctx context.Context, filter db.ResultFilter) ([]model.ResultSummary, error) {
	return s.backend.ListResults(ctx, filter)
}

func (s *ResultStore) Delete(ctx context.Context, key string) error {
	if err := s.backend.DeleteResult(ctx, key); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	return nil
}

// DeleteExpired removes results stored before the cutoff, bounded by limit,
// and drops any cached copies.
func (s *ResultStore) DeleteExpired(ctx context.Context, before time.Time, limit uint64) (uint64, error) {
	deleted, err := s.backend.DeleteExpiredResults(ctx, before, limit)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.mu.Lock()
		for key, entry := range s.cache {
			if entry.result.StoredAt.Before(before) {
				delete(s.cache, key)
			}
		}
		s.mu.Unlock()

		log.Ctx(ctx).Info().Uint64("deleted", deleted).Msg("Expired results removed")
	}
	return deleted, nil
}

func (s *ResultStore) Count(ctx context.Context) (uint64, error) {
	return s.backend.CountResults(ctx)
}
