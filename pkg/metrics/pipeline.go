package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomePartial   = "partially_processed"
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
)

// Page outcomes.
const (
	PageSucceeded = "succeeded"
	PageFailed    = "failed"
)

// PipelineMetrics instruments extraction runs.
type PipelineMetrics struct {
	runs       *prometheus.CounterVec
	pages      *prometheus.CounterVec
	questions  prometheus.Counter
	duration   *prometheus.HistogramVec
	queueDepth prometheus.Gauge
	inFlight   prometheus.Gauge
}

// NewPipelineMetrics registers the pipeline collectors on reg. A nil registerer yields
// a no-op recorder.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	m := &PipelineMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "testhub_extraction_runs_total",
			Help: "Finished extraction runs by outcome.",
		}, []string{"outcome"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "testhub_extraction_pages_total",
			Help: "Pages sent to the extraction service by outcome.",
		}, []string{"outcome"}),
		questions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "testhub_extraction_questions_total",
			Help: "Questions persisted by extraction runs.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "testhub_extraction_run_duration_seconds",
			Help:    "Wall time of extraction runs in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
		}, []string{"outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "testhub_extraction_queue_depth",
			Help: "Jobs waiting in the local worker queue.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "testhub_extraction_runs_in_flight",
			Help: "Extraction runs currently executing.",
		}),
	}
	reg.MustRegister(m.runs, m.pages, m.questions, m.duration, m.queueDepth, m.inFlight)
	return m
}

// ObserveRun records a finished run.
func (m *PipelineMetrics) ObserveRun(outcome string, duration time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncPage counts one page by outcome.
func (m *PipelineMetrics) IncPage(outcome string) {
	if m == nil || m.pages == nil {
		return
	}
	m.pages.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddQuestions counts persisted questions.
func (m *PipelineMetrics) AddQuestions(n int) {
	if m == nil || m.questions == nil || n <= 0 {
		return
	}
	m.questions.Add(float64(n))
}

// SetQueueDepth publishes the local queue length.
func (m *PipelineMetrics) SetQueueDepth(n int) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// RunStarted and RunFinished bracket an executing run.
func (m *PipelineMetrics) RunStarted() {
	if m == nil || m.inFlight == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *PipelineMetrics) RunFinished() {
	if m == nil || m.inFlight == nil {
		return
	}
	m.inFlight.Dec()
}
