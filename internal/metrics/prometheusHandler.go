package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_jobs_in_queue",
	Help: "Number of jobs in queue",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start a worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var cacheOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "result_cache_outcomes_total",
	Help: "Result cache lookups labelled hit/miss/bypass",
}, []string{"outcome"})

var providerRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "provider_retries_total",
	Help: "Provider calls retried after transient or rate-limit failures",
}, []string{"op"})

var reduceRounds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "reduce_rounds_per_request",
	Help:    "Collapse rounds needed before the result fit the budget.",
	Buckets: []float64{1, 2, 3, 4, 6, 8, 12},
})

var forcedSplitChunks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chunker_forced_splits_total",
	Help: "Chunks produced by character-level force splitting",
})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

// WriteHeader shadows the embedded writer so the final status survives for
// the request counter.
func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}

func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func CaptureCacheOutcome(outcome string) {
	cacheOutcomes.WithLabelValues(outcome).Inc()
}

func CaptureProviderRetry(op string) {
	providerRetries.WithLabelValues(op).Inc()
}

func CaptureReduceRounds(rounds int) {
	reduceRounds.Observe(float64(rounds))
}

func CaptureForcedSplit() {
	forcedSplitChunks.Inc()
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "job_duration_seconds",
	Help:    "Total time a job spends in a worker.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
