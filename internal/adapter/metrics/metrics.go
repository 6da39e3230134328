package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "safewatch"

// PipelineMetrics holds the Prometheus metrics for the analysis pipeline.
type PipelineMetrics struct {
	ItemsTotal         *prometheus.CounterVec
	ClassifyDuration   prometheus.Histogram
	ClassifierFailures prometheus.Counter
	ParseFailures      prometheus.Counter
	RecordsRetained    prometheus.Counter
	IndexFailures      prometheus.Counter
}

// NewPipelineMetrics initializes and registers the pipeline metrics with reg.
// A nil reg registers with the default registry.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &PipelineMetrics{
		ItemsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "items_total",
			Help:      "Total number of processed posts by final state.",
		}, []string{"state"}), // state: retained, discarded, failed
		ClassifyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "request_duration_seconds",
			Help:      "Latency of classifier requests.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		ClassifierFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "failures_total",
			Help:      "Total number of classifier transport failures.",
		}),
		ParseFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "parse_failures_total",
			Help:      "Total number of classifier responses that were not valid JSON.",
		}),
		RecordsRetained: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "records_written_total",
			Help:      "Total number of analysis records written to the store.",
		}),
		IndexFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "index_failures_total",
			Help:      "Total number of failed writes to the analysis index.",
		}),
	}
}

// NotifierMetrics holds the Prometheus metrics for the event notifier.
type NotifierMetrics struct {
	Subscribers     prometheus.Gauge
	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter
	NotifyRequests  *prometheus.CounterVec

	APIKeyCacheHits   prometheus.Counter
	APIKeyCacheMisses prometheus.Counter
}

// NewNotifierMetrics initializes and registers the notifier metrics with reg.
func NewNotifierMetrics(reg prometheus.Registerer) *NotifierMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &NotifierMetrics{
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "subscribers",
			Help:      "Number of connected dashboard subscribers.",
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "events_published_total",
			Help:      "Total number of events broadcast by type.",
		}, []string{"type"}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "events_dropped_total",
			Help:      "Total number of deliveries skipped because a subscriber was not keeping up.",
		}),
		NotifyRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "notify_requests_total",
			Help:      "Total number of publish requests by status.",
		}, []string{"status"}), // status: ok, bad_request, too_large, method_not_allowed
		APIKeyCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "api_key_cache_hits_total",
			Help:      "Total number of API key cache hits.",
		}),
		APIKeyCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "api_key_cache_misses_total",
			Help:      "Total number of API key cache misses.",
		}),
	}
}
