// Package metrics defines the Prometheus metric collectors used by the
// indexer, the search service and batch runs, and exposes an HTTP handler
// for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes recorded in QueriesTotal.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeSyntax      = "syntax_error"
	OutcomeUnsupported = "unsupported"
	OutcomeTimeout     = "timeout"
	OutcomeError       = "error"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	QueriesTotal          *prometheus.CounterVec
	QueryLatency          *prometheus.HistogramVec
	QueryResultsCount     prometheus.Histogram
	FeedbackExpansions    prometheus.Counter
	FeedbackMissingDocs   prometheus.Counter
	DocsIndexedTotal      prometheus.Counter
	IndexFlushesTotal     *prometheus.CounterVec
	IndexDocumentCount    prometheus.Gauge
	LTRUnavailableFeature *prometheus.CounterVec
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_evaluations_total",
				Help: "Total query evaluations by outcome (ok, empty, syntax_error, unsupported, timeout, error).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "query_evaluation_seconds",
				Help:    "Query evaluation latency in seconds by retrieval model.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"model"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "query_results_count",
				Help:    "Number of ranked documents returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		FeedbackExpansions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "feedback_expansions_total",
				Help: "Total queries expanded with pseudo-relevance feedback.",
			},
		),
		FeedbackMissingDocs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "feedback_missing_documents_total",
				Help: "Initial-ranking documents skipped because they are not in the index.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents indexed.",
			},
		),
		IndexFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_flushes_total",
				Help: "Total index flush operations by status.",
			},
			[]string{"status"},
		),
		IndexDocumentCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_document_count",
				Help: "Number of documents in the served index.",
			},
		),
		LTRUnavailableFeature: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ltr_unavailable_features_total",
				Help: "Feature values that could not be computed, by feature id.",
			},
			[]string{"feature"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.FeedbackExpansions,
		m.FeedbackMissingDocs,
		m.DocsIndexedTotal,
		m.IndexFlushesTotal,
		m.IndexDocumentCount,
		m.LTRUnavailableFeature,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
