package gateway

import (
	"encoding/json"
	"fmt"
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

func testVector() types.EncodedVector {
	return types.EncodedVector{
		Values: []int64{1250000000, 892000000, 125000, 1250, 1000000000, 200000000, 40000000, 10000000},
		Metadata: types.VectorMetadata{
			ScalingFactor: 1e6,
			BucketCount:   4,
			BucketWidth:   0.0005,
			BucketPolicy:  types.BucketPolicyDynamicMax,
			VarianceMode:  types.VarianceModeVariance,
		},
	}
}

func awaitConfig() *config.GatewayConfig {
	return &config.GatewayConfig{
		Mode:          string(config.GatewayModeSimulator),
		MaxPolls:      4,
		PollInterval:  5 * time.Millisecond,
		MaxRetryTimes: 3,
		RetryInterval: 5 * time.Millisecond,
	}
}

func TestSimulator_IdempotentSubmit(t *testing.T) {
	sim := NewSimulator()

	token1, err := sim.Submit(t.Context(), testVector(), "job-abc")
	require.NoError(t, err)

	token2, err := sim.Submit(t.Context(), testVector(), "job-abc")
	require.NoError(t, err)
	assert.Equal(t, token1, token2, "same idempotency key must return the same token")

	token3, err := sim.Submit(t.Context(), testVector(), "job-def")
	require.NoError(t, err)
	assert.NotEqual(t, token1, token3)
}

func TestSimulator_RoundTrip(t *testing.T) {
	sim := NewSimulator()

	vector := testVector()
	token, err := sim.Submit(t.Context(), vector, "job-abc")
	require.NoError(t, err)

	result, err := sim.Poll(t.Context(), token)
	require.NoError(t, err)
	require.Equal(t, StatusDone, result.Status)

	decoded, err := DecodeResult(result.ResultBlob)
	require.NoError(t, err)
	assert.Equal(t, vector.Values, decoded.Values)
	assert.Equal(t, vector.Metadata.BucketPolicy, decoded.Metadata.BucketPolicy)
}

func TestSimulator_RejectsMalformedVector(t *testing.T) {
	sim := NewSimulator()

	bad := testVector()
	bad.Values = bad.Values[:3]

	_, err := sim.Submit(t.Context(), bad, "job-bad")
	require.Error(t, err)
	assert.True(t, types.IsComputationRejectedError(err))
}

func TestAwaitResult_PendingThenDone(t *testing.T) {
	metrics.Init(9999)

	sim := NewSimulator()
	sim.PendingPolls = 2

	token, err := sim.Submit(t.Context(), testVector(), "job-abc")
	require.NoError(t, err)

	blob, err := AwaitResult(t.Context(), sim, awaitConfig(), token)
	require.NoError(t, err)
	assert.NotEmpty(t, blob)
}

func TestAwaitResult_TimesOut(t *testing.T) {
	metrics.Init(9999)

	sim := NewSimulator()
	sim.PendingPolls = 100 // never reaches done within the budget

	token, err := sim.Submit(t.Context(), testVector(), "job-abc")
	require.NoError(t, err)

	_, err = AwaitResult(t.Context(), sim, awaitConfig(), token)
	require.Error(t, err)
	assert.True(t, types.IsComputationTimeoutError(err))
}

func TestAwaitResult_RejectedIsTerminal(t *testing.T) {
	metrics.Init(9999)

	sim := NewSimulator()

	// unknown token is rejected, not retried
	_, err := AwaitResult(t.Context(), sim, awaitConfig(), "no-such-token")
	require.Error(t, err)
	assert.True(t, types.IsComputationRejectedError(err))
}

func TestRemoteGateway_Contract(t *testing.T) {
	metrics.Init(9999)

	var submits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/computations", func(w http.ResponseWriter, r *http.Request) {
		submits.Add(1)
		var req submitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, r.Header.Get("Idempotency-Key"), req.IdempotencyKey)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"token": "tok-%s"}`, req.IdempotencyKey)
	})
	mux.HandleFunc("GET /v1/computations/{token}", func(w http.ResponseWriter, r *http.Request) {
		blob, _ := json.Marshal(testVector())
		resp := pollResponse{Status: "done", Result: blob}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := awaitConfig()
	cfg.Mode = string(config.GatewayModeRemote)
	cfg.Endpoint = server.URL
	cfg.Timeout = 5 * time.Second

	gw := NewRemoteGateway(cfg)

	token, err := gw.Submit(t.Context(), testVector(), "job-abc")
	require.NoError(t, err)
	assert.Equal(t, "tok-job-abc", token)

	result, err := gw.Poll(t.Context(), token)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, result.Status)

	decoded, err := DecodeResult(result.ResultBlob)
	require.NoError(t, err)
	assert.Equal(t, testVector().Values, decoded.Values)
}

func TestRemoteGateway_RetriesTransientSubmit(t *testing.T) {
	metrics.Init(9999)

	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestCount.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"token": "tok-1"}`))
	}))
	defer server.Close()

	cfg := awaitConfig()
	cfg.Mode = string(config.GatewayModeRemote)
	cfg.Endpoint = server.URL
	cfg.Timeout = 5 * time.Second

	token, err := NewRemoteGateway(cfg).Submit(t.Context(), testVector(), "job-abc")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.EqualValues(t, 2, requestCount.Load())
}

func TestFactory_SelectsImplementation(t *testing.T) {
	simCfg := awaitConfig()
	_, ok := New(simCfg).(*Simulator)
	assert.True(t, ok)

	remoteCfg := awaitConfig()
	remoteCfg.Mode = string(config.GatewayModeRemote)
	remoteCfg.Endpoint = "http://localhost:9090"
	remoteCfg.Timeout = time.Second
	_, ok = New(remoteCfg).(*RemoteGateway)
	assert.True(t, ok)
}
