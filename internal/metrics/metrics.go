// Package metrics exposes the prometheus collectors for the render
// pipeline: pool saturation, frame throughput, encoder/preprocessor
// outcomes, and circuit breaker state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wvc_frames_captured_total",
		Help: "Frames captured per render run, by outcome (captured|skipped|timeout)",
	}, []string{"outcome"})

	frameWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wvc_frame_wait_seconds",
		Help:    "Time spent waiting for captureFrame to resolve",
		Buckets: prometheus.DefBuckets,
	})

	poolAcquireSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wvc_pool_acquire_seconds",
		Help:    "Time spent waiting to acquire a pooled resource",
		Buckets: prometheus.DefBuckets,
	}, []string{"tier"}) // tier=browser|page

	poolInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wvc_pool_in_use",
		Help: "Resources currently checked out of the pool",
	}, []string{"tier"})

	preprocessorFetch = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wvc_preprocessor_fetch_total",
		Help: "Preprocessor download attempts by outcome",
	}, []string{"outcome"}) // outcome=downloaded|error

	encoderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wvc_encoder_failures_total",
		Help: "Encoder subprocess failures by reason",
	}, []string{"reason"})

	chunkProgress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wvc_chunk_progress_ratio",
		Help: "Fraction of a render run's progress attributable to chunk encoding (0..1)",
	}, []string{"run_id"})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wvc_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed,1=open,2=half-open)",
	}, []string{"name"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wvc_circuit_breaker_trips_total",
		Help: "Circuit breaker trip count",
	}, []string{"name"})
)

// IncFramesCaptured records a captured or skipped frame, or a frame-wait
// timeout.
func IncFramesCaptured(outcome string) {
	framesCaptured.WithLabelValues(outcome).Inc()
}

// ObserveFrameWait records how long captureFrame took to resolve.
func ObserveFrameWait(seconds float64) {
	frameWaitSeconds.Observe(seconds)
}

// ObservePoolAcquire records how long a pool tier took to hand out a resource.
func ObservePoolAcquire(tier string, seconds float64) {
	poolAcquireSeconds.WithLabelValues(tier).Observe(seconds)
}

// SetPoolInUse sets the current checked-out count for a pool tier.
func SetPoolInUse(tier string, n int) {
	poolInUse.WithLabelValues(tier).Set(float64(n))
}

// IncPreprocessorFetch records a preprocessor download outcome.
func IncPreprocessorFetch(outcome string) {
	preprocessorFetch.WithLabelValues(outcome).Inc()
}

// IncEncoderFailure records an encoder subprocess failure.
func IncEncoderFailure(reason string) {
	encoderFailures.WithLabelValues(reason).Inc()
}

// SetChunkProgress records the chunk-stage progress ratio for a run.
func SetChunkProgress(runID string, ratio float64) {
	chunkProgress.WithLabelValues(runID).Set(ratio)
}

// SetCircuitBreakerState records the current state of a named breaker.
func SetCircuitBreakerState(name, state string) {
	var v float64
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 2
	}
	circuitBreakerState.WithLabelValues(name).Set(v)
}

// RecordCircuitBreakerTrip increments the trip counter for a named breaker.
func RecordCircuitBreakerTrip(name string) {
	circuitBreakerTrips.WithLabelValues(name).Inc()
}
