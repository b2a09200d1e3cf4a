// Package metrics holds the Prometheus instrumentation for the assessment
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. It satisfies the
// pipeline's Metrics interface.
type Metrics struct {
	AssessmentsStarted   prometheus.Counter
	AssessmentsCompleted *prometheus.CounterVec
	AssessmentsFailed    *prometheus.CounterVec
	AssessmentDuration   prometheus.Histogram
	CacheHits            prometheus.Counter
	CacheMisses          prometheus.Counter
}

// New creates and registers all metrics with the given registerer. Pass
// prometheus.DefaultRegisterer in main; tests use a private registry to stay
// isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AssessmentsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "finrisk_assessments_started_total",
			Help: "Total assessments entering the pipeline.",
		}),
		AssessmentsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finrisk_assessments_completed_total",
			Help: "Completed assessments by risk tier.",
		}, []string{"tier"}),
		AssessmentsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finrisk_assessments_failed_total",
			Help: "Failed assessments by pipeline stage.",
		}, []string{"stage"}),
		AssessmentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "finrisk_assessment_duration_seconds",
			Help:    "End-to-end assessment latency.",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "finrisk_enrichment_cache_hits_total",
			Help: "Enrichment results served from cache.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "finrisk_enrichment_cache_misses_total",
			Help: "Enrichment results computed on miss.",
		}),
	}
}

// AssessmentStarted counts a pipeline entry.
func (m *Metrics) AssessmentStarted() {
	m.AssessmentsStarted.Inc()
}

// AssessmentCompleted counts a completed assessment and observes its
// latency.
func (m *Metrics) AssessmentCompleted(tier string, duration time.Duration) {
	m.AssessmentsCompleted.WithLabelValues(tier).Inc()
	m.AssessmentDuration.Observe(duration.Seconds())
}

// AssessmentFailed counts a failure by stage.
func (m *Metrics) AssessmentFailed(stage string) {
	m.AssessmentsFailed.WithLabelValues(stage).Inc()
}

// CacheHit counts an enrichment result served from cache.
func (m *Metrics) CacheHit() {
	m.CacheHits.Inc()
}

// CacheMiss counts an enrichment result computed on a cache miss.
func (m *Metrics) CacheMiss() {
	m.CacheMisses.Inc()
}
