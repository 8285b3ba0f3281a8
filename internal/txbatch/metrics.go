// internal/txbatch/metrics.go
package txbatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks submission rounds. A nil *Metrics is a valid no-op.
type Metrics struct {
	roundCounter        prometheus.Counter
	submitCounter       prometheus.Counter
	resubmitCounter     prometheus.Counter
	confirmationCounter prometheus.Counter
	failureCounter      *prometheus.CounterVec
	durationHistogram   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		roundCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solana_tx_rounds_total",
			Help: "Total number of submission rounds started",
		}),
		submitCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solana_tx_submits_total",
			Help: "Total number of raw transaction submissions, resends included",
		}),
		resubmitCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solana_tx_resubmits_total",
			Help: "Total number of resends after a confirmation timeout",
		}),
		confirmationCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solana_tx_confirmations_total",
			Help: "Total number of confirmed transactions",
		}),
		failureCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solana_tx_round_failures_total",
			Help: "Total number of failed rounds by error kind",
		}, []string{"kind"}),
		durationHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "solana_tx_round_duration_seconds",
			Help:    "Submission round duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.roundCounter,
			m.submitCounter,
			m.resubmitCounter,
			m.confirmationCounter,
			m.failureCounter,
			m.durationHistogram,
		)
	}
	return m
}

func (m *Metrics) trackRound(start time.Time, err error) {
	if m == nil {
		return
	}
	m.roundCounter.Inc()
	m.durationHistogram.Observe(time.Since(start).Seconds())
	if err != nil {
		m.failureCounter.WithLabelValues(errorKind(err)).Inc()
	}
}

func (m *Metrics) submitted(resend bool) {
	if m == nil {
		return
	}
	m.submitCounter.Inc()
	if resend {
		m.resubmitCounter.Inc()
	}
}

func (m *Metrics) confirmed() {
	if m == nil {
		return
	}
	m.confirmationCounter.Inc()
}
