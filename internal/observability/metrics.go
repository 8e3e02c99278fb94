// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	RowsRead    *prometheus.CounterVec
	RowsDropped *prometheus.CounterVec

	// Analytics metrics
	PRGIRecords       prometheus.Gauge
	SpikesDetected    prometheus.Counter
	TrendAlerts       prometheus.Counter
	SimpleAnomalies   prometheus.Counter
	StatAnomalies     prometheus.Counter
	PeerComparisons   *prometheus.CounterVec
	CriticalDistricts prometheus.Gauge

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	ReportsGenerated  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Cache metrics
	CacheLookups *prometheus.CounterVec

	// Alert metrics
	AlertsSent   *prometheus.CounterVec
	AlertsFailed prometheus.Counter

	// Health metrics
	LastSuccessfulPipeline prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "civinigrani"
	}
	f := promauto.With(reg)

	return &Metrics{
		RowsRead: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rows_read_total",
			Help:      "Total number of raw rows read by source",
		}, []string{"source"}),
		RowsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rows_dropped_total",
			Help:      "Total number of raw rows dropped by reason",
		}, []string{"reason"}),

		PRGIRecords: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "prgi",
			Name:      "records",
			Help:      "Number of (district, month) records in the latest run",
		}),
		SpikesDetected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grievance",
			Name:      "spikes_detected_total",
			Help:      "Total number of grievance spikes detected",
		}),
		TrendAlerts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prgi",
			Name:      "trend_alerts_total",
			Help:      "Total number of PRGI trend alerts raised",
		}),
		SimpleAnomalies: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "anomaly",
			Name:      "rule_flags_total",
			Help:      "Total number of records flagged by the rule pass",
		}),
		StatAnomalies: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "anomaly",
			Name:      "statistical_flags_total",
			Help:      "Total number of records flagged by the isolation forest",
		}),
		PeerComparisons: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peerlens",
			Name:      "comparisons_total",
			Help:      "Total number of peer comparisons by validity",
		}, []string{"valid"}),
		CriticalDistricts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "prgi",
			Name:      "critical_districts",
			Help:      "Leaderboard districts above the critical threshold",
		}),

		PipelineRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline stage runs by status",
		}, []string{"stage", "status"}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"stage"}),
		ReportsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"table", "operation"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result",
		}, []string{"result"}),

		AlertsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "sent_total",
			Help:      "Total number of alerts delivered by kind",
		}, []string{"kind"}),
		AlertsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "failed_batches_total",
			Help:      "Total number of alert batches that could not be delivered",
		}),

		LastSuccessfulPipeline: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordRows records rows read from a source and rows dropped during normalization.
func RecordRows(source string, read int, dropped map[string]int) {
	DefaultMetrics.RowsRead.WithLabelValues(source).Add(float64(read))
	for reason, n := range dropped {
		if n > 0 {
			DefaultMetrics.RowsDropped.WithLabelValues(reason).Add(float64(n))
		}
	}
}

// RecordAnalytics records the outcome counts of one pipeline run.
func RecordAnalytics(records, spikes, trends, simple, statistical, critical int) {
	DefaultMetrics.PRGIRecords.Set(float64(records))
	DefaultMetrics.SpikesDetected.Add(float64(spikes))
	DefaultMetrics.TrendAlerts.Add(float64(trends))
	DefaultMetrics.SimpleAnomalies.Add(float64(simple))
	DefaultMetrics.StatAnomalies.Add(float64(statistical))
	DefaultMetrics.CriticalDistricts.Set(float64(critical))
}

// RecordPeerComparison records one PeerLens result.
func RecordPeerComparison(valid bool) {
	label := "false"
	if valid {
		label = "true"
	}
	DefaultMetrics.PeerComparisons.WithLabelValues(label).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(table, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(table, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(table, operation).Inc()
	}
}

// RecordPipelineRun records a pipeline stage run.
func RecordPipelineRun(stage, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(stage, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordReport increments the reports generated counter.
func RecordReport() {
	DefaultMetrics.ReportsGenerated.Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(result).Inc()
}

// RecordAlerts records a delivered batch by kind, or a failed batch.
func RecordAlerts(kinds []string, err error) {
	if err != nil {
		DefaultMetrics.AlertsFailed.Inc()
		return
	}
	for _, k := range kinds {
		DefaultMetrics.AlertsSent.WithLabelValues(k).Inc()
	}
}

// RecordPipelineSuccess sets the last successful pipeline timestamp.
func RecordPipelineSuccess(unix int64) {
	DefaultMetrics.LastSuccessfulPipeline.Set(float64(unix))
}
