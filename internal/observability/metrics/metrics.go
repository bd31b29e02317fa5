package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	Success                  Outcome       = "success"
	Error                    Outcome       = "error"
	MetricRequestTimeout     time.Duration = 5 * time.Second
	MetricRequestIdleTimeout time.Duration = 10 * time.Second
)

func (O Outcome) String() string {
	return string(O)
}

var (
	once                      sync.Once
	metricsRouter             *chi.Mux
	sourceClientLatency       *prometheus.HistogramVec
	gatewayLatency            *prometheus.HistogramVec
	dbLatency                 *prometheus.HistogramVec
	pollerDurationHistogram   *prometheus.HistogramVec
	pipelineStageDuration     *prometheus.HistogramVec
	jobsByStageGauge          *prometheus.GaugeVec
	storedResultsGauge        prometheus.Gauge
	sourceCacheHitCounter     prometheus.Counter
	resultCacheHitCounter     prometheus.Counter
	queuePublishErrorCounter  prometheus.Counter
	jobRetryCounter           *prometheus.CounterVec
	encodingOverflowCounter   prometheus.Counter
	computationTimeoutCounter prometheus.Counter
)

// Init initializes the metrics package.
func Init(metricsPort int) {
	once.Do(func() {
		initMetricsRouter(metricsPort)
		registerMetrics()
	})
}

// initMetricsRouter initializes the metrics router.
func initMetricsRouter(metricsPort int) {
	metricsRouter = chi.NewRouter()
	metricsRouter.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	// Create a custom server with timeout settings
	metricsAddr := fmt.Sprintf(":%d", metricsPort)
	server := &http.Server{
		Addr:         metricsAddr,
		Handler:      metricsRouter,
		ReadTimeout:  MetricRequestTimeout,
		WriteTimeout: MetricRequestTimeout,
		IdleTimeout:  MetricRequestIdleTimeout,
	}

	// Start the server in a separate goroutine
	go func() {
		log.Printf("Starting metrics server on %s", metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msgf("Error starting metrics server on %s", metricsAddr)
		}
	}()
}

// RegisterHandler mounts an extra GET route on the metrics router, e.g. a
// health or status endpoint. Must be called during startup, after Init and
// before the server takes traffic.
func RegisterHandler(pattern string, handler http.HandlerFunc) {
	if metricsRouter == nil {
		return
	}
	metricsRouter.Get(pattern, handler)
}

// registerMetrics initializes and register the Prometheus metrics.
func registerMetrics() {
	defaultHistogramBucketsSeconds := []float64{0.1, 0.5, 1, 2.5, 5, 10, 30}

	sourceClientLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_client_latency_seconds",
			Help:    "Histogram of source client request durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"method", "status"},
	)

	gatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_latency_seconds",
			Help:    "Histogram of computation gateway call durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"method", "status"},
	)

	dbLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_latency_seconds",
			Help:    "Histogram of db method durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"method", "status"},
	)

	pollerDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poller_duration_seconds",
			Help:    "Histogram of poller run durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"poller", "status"},
	)

	pipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Histogram of pipeline stage durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"stage", "status"},
	)

	jobsByStageGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_jobs_by_stage",
			Help: "Number of pipeline jobs currently in each stage.",
		},
		[]string{"stage"},
	)

	storedResultsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stored_results_total",
			Help: "Number of results currently held by the result store.",
		},
	)

	sourceCacheHitCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "source_cache_hit_count",
			Help: "The total number of source client responses served from cache.",
		},
	)

	resultCacheHitCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "result_cache_hit_count",
			Help: "The total number of result store reads served from cache.",
		},
	)

	queuePublishErrorCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_publish_error_count",
			Help: "The total number of errors when publishing result events to the queue.",
		},
	)

	jobRetryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_retry_count",
			Help: "The total number of stage retries, by stage.",
		},
		[]string{"stage"},
	)

	encodingOverflowCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "encoding_overflow_count",
			Help: "The total number of encode attempts rejected for overflow.",
		},
	)

	computationTimeoutCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "computation_timeout_count",
			Help: "The total number of jobs whose computation polling timed out.",
		},
	)

	prometheus.MustRegister(
		sourceClientLatency,
		gatewayLatency,
		dbLatency,
		pollerDurationHistogram,
		pipelineStageDuration,
		jobsByStageGauge,
		storedResultsGauge,
		sourceCacheHitCounter,
		resultCacheHitCounter,
		queuePublishErrorCounter,
		jobRetryCounter,
		encodingOverflowCounter,
		computationTimeoutCounter,
	)
}

func outcome(err error) Outcome {
	if err != nil {
		return Error
	}
	return Success
}

// ObserveSourceClientLatency records the duration of a source client method.
func ObserveSourceClientLatency(method string, duration time.Duration, err error) {
	sourceClientLatency.WithLabelValues(method, outcome(err).String()).Observe(duration.Seconds())
}

// ObserveGatewayLatency records the duration of a computation gateway method.
func ObserveGatewayLatency(method string, duration time.Duration, err error) {
	gatewayLatency.WithLabelValues(method, outcome(err).String()).Observe(duration.Seconds())
}

// ObserveDbLatency records the duration of a db method.
func ObserveDbLatency(method string, duration time.Duration, err error) {
	dbLatency.WithLabelValues(method, outcome(err).String()).Observe(duration.Seconds())
}

// ObserveStageDuration records the duration of one pipeline stage execution.
func ObserveStageDuration(stage string, duration time.Duration, err error) {
	pipelineStageDuration.WithLabelValues(stage, outcome(err).String()).Observe(duration.Seconds())
}

func SetJobsByStage(stage string, count float64) {
	jobsByStageGauge.WithLabelValues(stage).Set(count)
}

func SetStoredResults(count float64) {
	storedResultsGauge.Set(count)
}

func IncSourceCacheHit() {
	sourceCacheHitCounter.Inc()
}

func IncResultCacheHit() {
	resultCacheHitCounter.Inc()
}

func IncQueuePublishError() {
	queuePublishErrorCounter.Inc()
}

func IncJobRetry(stage string) {
	jobRetryCounter.WithLabelValues(stage).Inc()
}

func IncEncodingOverflow() {
	encodingOverflowCounter.Inc()
}

func IncComputationTimeout() {
	computationTimeoutCounter.Inc()
}
