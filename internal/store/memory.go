package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/veilscan/shielded-stats-pipeline/internal/db"
	"github.com/veilscan/shielded-stats-pipeline/internal/db/model"
)

// MemoryBackend is a Backend held entirely in memory. Used by tests and by
// offline runs with the simulator gateway.
type MemoryBackend struct {
	mu      sync.Mutex
	results map[string]*model.StoredResult
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{results: make(map[string]*model.StoredResult)}
}

func (m *MemoryBackend) SaveResult(_ context.Context, result *model.StoredResult, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.results[result.Key]; exists && !overwrite {
		return &db.DuplicateKeyError{
			Key:     result.Key,
			Message: "result already exists",
		}
	}

	stored := *result
	m.results[result.Key] = &stored
	return nil
}

func (m *MemoryBackend) GetResult(_ context.Context, key string) (*model.StoredResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, ok := m.results[key]
	if !ok {
		return nil, &db.NotFoundError{Key: key, Message: "result not found"}
	}

	copied := *result
	return &copied, nil
}

func (m *MemoryBackend) ListResults(_ context.Context, filter db.ResultFilter) ([]model.ResultSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var summaries []model.ResultSummary
	for _, result := range m.results {
		if filter.Source != "" && result.Provenance.SourceURL != filter.Source {
			continue
		}
		if !filter.StoredAfter.IsZero() && result.StoredAt.Before(filter.StoredAfter) {
			continue
		}
		if !filter.StoredBefore.IsZero() && !result.StoredAt.Before(filter.StoredBefore) {
			continue
		}
		summaries = append(summaries, model.ResultSummary{
			Key:         result.Key,
			ReferenceID: result.ReferenceID,
			Provenance:  result.Provenance,
			StoredAt:    result.StoredAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StoredAt.After(summaries[j].StoredAt)
	})
	if filter.Limit > 0 && int64(len(summaries)) > filter.Limit {
		summaries = summaries[:filter.Limit]
	}
	return summaries, nil
}

func (m *MemoryBackend) DeleteResult(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.results[key]; !ok {
		return &db.NotFoundError{Key: key, Message: "result not found"}
	}
	delete(m.results, key)
	return nil
}

func (m *MemoryBackend) DeleteExpiredResults(_ context.Context, before time.Time, limit uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted uint64
	for key, result := range m.results {
		if deleted >= limit {
			break
		}
		if result.StoredAt.Before(before) {
			delete(m.results, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryBackend) CountResults(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return uint64(len(m.results)), nil
}
