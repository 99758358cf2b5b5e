package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sales-coach-go/internal/types"
)

// Metrics holds the Prometheus collectors for the coach service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Analysis metrics
	AnalysesStarted  prometheus.Counter
	AnalysesFinished *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	StageDuration    *prometheus.HistogramVec
	PayloadSize      prometheus.Histogram
	Anomalies        prometheus.Counter
	CurrentState     *prometheus.GaugeVec

	// Source metrics
	SourceRejections *prometheus.CounterVec
	RecorderEvents   *prometheus.CounterVec

	// Export metrics
	ReportsWritten prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers all collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AnalysesStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "coach_analyses_started_total",
			Help: "Total number of analyses started",
		}),
		AnalysesFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_analyses_finished_total",
			Help: "Total number of analyses finished, by outcome and failure kind",
		}, []string{"outcome", "kind"}),
		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "coach_analysis_duration_seconds",
			Help:    "End-to-end duration of one analysis",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coach_stage_duration_seconds",
			Help:    "Duration of each analysis stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4 minutes
		}, []string{"stage"}),
		PayloadSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "coach_payload_size_bytes",
			Help:    "Size of submitted audio payloads",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 11), // 16KB to ~16MB
		}),
		Anomalies: f.NewCounter(prometheus.CounterOpts{
			Name: "coach_result_anomalies_total",
			Help: "Out-of-range values seen in otherwise valid results",
		}),
		CurrentState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coach_state",
			Help: "1 for the current application state, 0 otherwise",
		}, []string{"state"}),

		SourceRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_source_rejections_total",
			Help: "Submissions rejected before analysis, by failure kind",
		}, []string{"kind"}),
		RecorderEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_recorder_events_total",
			Help: "Microphone recorder events",
		}, []string{"event"}),

		ReportsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "coach_reports_written_total",
			Help: "Total number of workbook reports exported",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coach_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordAnalysisStarted counts a submission entering Analyzing.
func (m *Metrics) RecordAnalysisStarted(payloadBytes int64) {
	if m == nil {
		return
	}
	m.AnalysesStarted.Inc()
	if payloadBytes > 0 {
		m.PayloadSize.Observe(float64(payloadBytes))
	}
}

// RecordAnalysisFinished records the outcome. kind is empty on success.
func (m *Metrics) RecordAnalysisFinished(kind string, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "complete"
	if kind != "" {
		outcome = "error"
	}
	m.AnalysesFinished.WithLabelValues(outcome, kind).Inc()
	m.AnalysisDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) RecordAnomalies(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Anomalies.Add(float64(n))
}

// SetState marks state as current and clears the others.
func (m *Metrics) SetState(state types.AppState) {
	if m == nil {
		return
	}
	for _, s := range []types.AppState{types.StateIdle, types.StateAnalyzing, types.StateComplete, types.StateError} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.CurrentState.WithLabelValues(string(s)).Set(v)
	}
}

func (m *Metrics) RecordSourceRejection(kind string) {
	if m == nil {
		return
	}
	m.SourceRejections.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordRecorderEvent(event string) {
	if m == nil {
		return
	}
	m.RecorderEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) RecordReportWritten() {
	if m == nil {
		return
	}
	m.ReportsWritten.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}
