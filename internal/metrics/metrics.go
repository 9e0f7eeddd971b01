// Package metrics provides Prometheus metrics for the local pipeline
// server. The Lambda entry point does not carry a registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

// PipelineMetrics contains Prometheus metrics for batch processing
type PipelineMetrics struct {
	registry *prometheus.Registry

	eventsTotal     *prometheus.CounterVec
	batchesTotal    prometheus.Counter
	batchDuration   prometheus.Histogram
	labelsPerRecord prometheus.Histogram

	collectors []prometheus.Collector
}

// NewPipelineMetrics creates and registers new pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_total",
			Help: "Total number of upload events by terminal outcome",
		},
		[]string{"outcome", "reason"},
	)

	m.batchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_batches_total",
		Help: "Total number of notification batches processed",
	})

	m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_batch_duration_seconds",
		Help:    "Time taken to process one notification batch",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})

	m.labelsPerRecord = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_labels_per_record",
		Help:    "Number of labels kept on each stored record",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
	})

	m.collectors = []prometheus.Collector{
		m.eventsTotal,
		m.batchesTotal,
		m.batchDuration,
		m.labelsPerRecord,
	}
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// ObserveBatch records one processed batch. Failure reasons are folded
// to transient/permanent so label cardinality stays bounded.
func (m *PipelineMetrics) ObserveBatch(rep results.BatchReport, elapsed time.Duration) {
	m.batchesTotal.Inc()
	m.batchDuration.Observe(elapsed.Seconds())

	for _, ev := range rep.Events {
		reason := ev.Reason
		switch ev.Outcome {
		case results.OutcomePersisted:
			reason = "none"
			m.labelsPerRecord.Observe(float64(ev.LabelCount))
		case results.OutcomeFailed:
			if ev.Retryable {
				reason = "transient"
			} else {
				reason = "permanent"
			}
		}
		m.eventsTotal.WithLabelValues(ev.Outcome, reason).Inc()
	}
}
