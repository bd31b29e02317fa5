package sourceclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscan/shielded-stats-pipeline/internal/config"
	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

func testConfig(baseURL string) *config.SourceConfig {
	return &config.SourceConfig{
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
		MaxRetryTimes: 5,
		RetryInterval: 20 * time.Millisecond,
		CacheTTL:      time.Minute,
		PageSize:      100,
	}
}

const pageBody = `{
	"transactions": [
		{"tx_id": "a1", "block_height": 100, "fee": 0.0001, "shielded_spends": 1, "shielded_outputs": 0, "timestamp": 1700000000},
		{"tx_id": "b2", "block_height": 101, "fee": 0.0002, "shielded_spends": 0, "shielded_outputs": 0, "timestamp": 1700000060}
	],
	"next_page": null
}`

func TestFetchBatch_RetryWithBackoff(t *testing.T) {
	metrics.Init(9999)

	// 503 for the first 4 requests, then 200
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestCount.Add(1) <= 4 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(pageBody))
	}))
	defer server.Close()

	client := NewSourceClient(testConfig(server.URL))

	start := time.Now()
	records, next, err := client.FetchBatch(t.Context(), Cursor{StartHeight: 100, EndHeight: 200})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Len(t, records, 2)
	assert.EqualValues(t, 5, requestCount.Load())

	// backoff before the final success must cumulate at least
	// base*(1+2+4+8)
	minWait := 15 * 20 * time.Millisecond
	assert.GreaterOrEqual(t, elapsed, minWait)
}

func TestFetchBatch_Exhausted(t *testing.T) {
	metrics.Init(9999)

	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewSourceClient(testConfig(server.URL))

	_, _, err := client.FetchBatch(t.Context(), Cursor{StartHeight: 100, EndHeight: 200})
	require.Error(t, err)
	assert.True(t, types.IsFetchExhaustedError(err))
	assert.True(t, types.IsTransientFetchError(err), "exhausted error keeps its transient cause")
	assert.EqualValues(t, 5, requestCount.Load())
}

func TestFetchBatch_NotFoundIsNotRetried(t *testing.T) {
	metrics.Init(9999)

	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewSourceClient(testConfig(server.URL))

	_, _, err := client.FetchBatch(t.Context(), Cursor{StartHeight: 100, EndHeight: 200})
	require.Error(t, err)
	assert.True(t, types.IsNotFoundError(err))
	assert.EqualValues(t, 1, requestCount.Load())

	// FetchRange treats the missing range as an empty batch
	records, err := client.FetchRange(t.Context(), 100, 200)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchBatch_CacheHitSkipsUpstream(t *testing.T) {
	metrics.Init(9999)

	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(pageBody))
	}))
	defer server.Close()

	client := NewSourceClient(testConfig(server.URL))

	cursor := Cursor{StartHeight: 100, EndHeight: 200}
	first, _, err := client.FetchBatch(t.Context(), cursor)
	require.NoError(t, err)

	second, _, err := client.FetchBatch(t.Context(), cursor)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, requestCount.Load(), "second read must be served from cache")
}

func TestFetchRange_Pagination(t *testing.T) {
	metrics.Init(9999)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if r.URL.Query().Get("page") == "0" {
			w.Write([]byte(`{"transactions": [{"tx_id": "p0", "block_height": 100, "fee": 0.0001}], "next_page": 1}`))
			return
		}
		w.Write([]byte(`{"transactions": [{"tx_id": "p1", "block_height": 101, "fee": 0.0002}], "next_page": null}`))
	}))
	defer server.Close()

	client := NewSourceClient(testConfig(server.URL))

	records, err := client.FetchRange(t.Context(), 100, 200)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "p0", records[0].TxID)
	assert.Equal(t, "p1", records[1].TxID)
}
