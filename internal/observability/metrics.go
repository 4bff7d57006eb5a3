package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions       prometheus.Gauge
	SessionEvents        *prometheus.CounterVec
	Chunks               *prometheus.CounterVec
	WSMessages           *prometheus.CounterVec
	ProviderErrors       *prometheus.CounterVec
	TranscriptionLatency prometheus.Histogram
	Summaries            *prometheus.CounterVec
	SummaryRejections    *prometheus.CounterVec
	VisitsApplied        prometheus.Counter
}

// NewMetrics registers every instrument on a private registry so several
// instances can coexist in one process.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open conversation sessions.",
		}),
		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		Chunks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Audio chunks by outcome.",
		}, []string{"result"}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ProviderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and stage.",
		}, []string{"provider", "stage"}),
		TranscriptionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_latency_ms",
			Help:      "Speech-to-text backend latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		}),
		Summaries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Produced summaries by source.",
		}, []string{"source"}),
		SummaryRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_rejections_total",
			Help:      "Generated summaries discarded by the copy detector, by reason.",
		}, []string{"reason"}),
		VisitsApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_applied_total",
			Help:      "Visits written to the person registry.",
		}),
	}
}

// ObserveTranscription fits voice.Transcriber.SetObserver.
func (m *Metrics) ObserveTranscription(backend string, d time.Duration, err error) {
	m.TranscriptionLatency.Observe(float64(d.Milliseconds()))
	if err != nil {
		stage := "transcribe"
		if errors.Is(err, context.DeadlineExceeded) {
			stage = "timeout"
		}
		m.ProviderErrors.WithLabelValues(backend, stage).Inc()
	}
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
