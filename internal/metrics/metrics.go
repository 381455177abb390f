// Package metrics exposes Prometheus collectors for pipeline and provider
// activity. A nil *Metrics is a valid no-op.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ListingsProcessed *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	ProviderRequests  *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
	BatchDuration     prometheus.Histogram
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ListingsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propeval_listings_processed_total",
			Help: "Listings processed by the pipeline, by outcome",
		}, []string{"outcome"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "propeval_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"stage"}),
		ProviderRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propeval_provider_requests_total",
			Help: "Provider-backed estimates, by provider and result source",
		}, []string{"provider", "source"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propeval_cache_lookups_total",
			Help: "Content-hash cache lookups, by cache and result",
		}, []string{"cache", "result"}),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "propeval_batch_duration_seconds",
			Help:    "Duration of batch pipeline runs",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
		}),
	}
}

// ListingProcessed records a terminal per-listing outcome.
func (m *Metrics) ListingProcessed(outcome string) {
	if m == nil {
		return
	}
	m.ListingsProcessed.WithLabelValues(outcome).Inc()
}

// ObserveStage records a stage duration. Call with time.Now() at the start
// of the stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// ProviderRequest records which source answered an estimate.
func (m *Metrics) ProviderRequest(provider, source string) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, source).Inc()
}

// CacheLookup records a cache outcome.
func (m *Metrics) CacheLookup(cache, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// ObserveBatch records a batch duration.
func (m *Metrics) ObserveBatch(start time.Time) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(time.Since(start).Seconds())
}
