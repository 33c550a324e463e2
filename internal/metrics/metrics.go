package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gokatarajesh/fluentflow/internal/exam"
)

const namespace = "fluentflow"

// Metrics holds the service collectors.
type Metrics struct {
	questionRequests  *prometheus.CounterVec
	questionLatency   prometheus.Histogram
	questionRejected  *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	activeSessions    prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to expose them on
// /metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		questionRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "question_requests_total",
				Help:      "Question generation requests by result",
			},
			[]string{"result"},
		),
		questionLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "question_request_seconds",
				Help:      "Question generation latency including retries",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
		),
		questionRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "question_load_failures_total",
				Help:      "Question loads that left a session in load_failed, by error kind",
			},
			[]string{"kind"},
		),
		sessionsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_completed_total",
				Help:      "Completed exam sessions by reason",
			},
			[]string{"reason"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Sessions held in memory",
			},
		),
	}
}

// ObserveQuestionRequest implements generation.Recorder.
func (m *Metrics) ObserveQuestionRequest(result string, elapsed time.Duration) {
	m.questionRequests.WithLabelValues(result).Inc()
	m.questionLatency.Observe(elapsed.Seconds())
}

// OnEvent implements exam.Listener.
func (m *Metrics) OnEvent(e exam.Event) {
	switch e.Type {
	case exam.EventCompleted:
		m.sessionsCompleted.WithLabelValues(string(e.Reason)).Inc()
	case exam.EventLoadFailed:
		m.questionRejected.WithLabelValues(e.ErrorKind).Inc()
	}
}

// SessionOpened and SessionClosed track the registry size.
func (m *Metrics) SessionOpened() { m.activeSessions.Inc() }

func (m *Metrics) SessionClosed() { m.activeSessions.Dec() }
