// Package metrics provides Prometheus metrics for the download and
// processing pipelines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for one run.
type Metrics struct {
	RequestsAttempted *prometheus.CounterVec
	RequestsSucceeded *prometheus.CounterVec
	RequestsFailed    *prometheus.CounterVec

	FetchDuration *prometheus.HistogramVec
	FetchBytes    *prometheus.HistogramVec

	FeaturesMerged   *prometheus.CounterVec
	FeaturesSkipped  *prometheus.CounterVec
	ArtifactsWritten *prometheus.CounterVec
}

// Init registers the pipeline metrics under the given namespace. Call once at
// startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "daymet_pipeline"
	}

	return &Metrics{
		RequestsAttempted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_attempted_total",
				Help:      "Total number of subset requests issued",
			},
			[]string{"variable", "version"},
		),
		RequestsSucceeded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_succeeded_total",
				Help:      "Total number of subset requests that returned data",
			},
			[]string{"variable", "version"},
		),
		RequestsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_failed_total",
				Help:      "Total number of failed subset requests by failure class",
			},
			[]string{"variable", "version", "reason"},
		),
		FetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Wall-clock duration of one subset request",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"variable", "version"},
		),
		FetchBytes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_bytes",
				Help:      "Payload size of one subset response",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
			},
			[]string{"variable", "version"},
		),
		FeaturesMerged: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "features_merged_total",
				Help:      "Features whose per-year fetches were merged into one artifact",
			},
			[]string{"variable", "version"},
		),
		FeaturesSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "features_skipped_total",
				Help:      "Features skipped because no data could be fetched",
			},
			[]string{"variable", "version"},
		),
		ArtifactsWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_written_total",
				Help:      "Output artifacts written to storage",
			},
			[]string{"format"},
		),
	}
}

// Serve exposes /metrics on the given address. Blocking; run in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
