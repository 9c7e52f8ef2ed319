// Package prometheus implements the pkg/metrics interfaces using
// prometheus/client_golang, registered against the shared registry that
// pkg/metrics owns.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/slskd/slskd/pkg/metrics"
)

func init() {
	metrics.RegisterUploadMetricsConstructor(func() metrics.UploadMetrics {
		return newUploadMetrics()
	})
}

type uploadMetrics struct {
	grantsRequested *prometheus.CounterVec
	grantsGranted   *prometheus.CounterVec
	returns         *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
	usedSlots       *prometheus.GaugeVec
	dispatches      *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	outcomeDuration *prometheus.HistogramVec
}

func newUploadMetrics() *uploadMetrics {
	reg := metrics.GetRegistry()

	return &uploadMetrics{
		grantsRequested: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "slskd_upload_governor_requested_bytes_total",
				Help: "Total bytes requested from the Governor, by group.",
			},
			[]string{"group"},
		),
		grantsGranted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "slskd_upload_governor_granted_bytes_total",
				Help: "Total bytes granted by the Governor, by group.",
			},
			[]string{"group"},
		),
		returns: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "slskd_upload_governor_returned_bytes_total",
				Help: "Total bytes returned to a bucket on overshoot, by group.",
			},
			[]string{"group"},
		),
		queueDepth: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "slskd_upload_queue_depth",
				Help: "Number of not-yet-granted uploads queued, by group.",
			},
			[]string{"group"},
		),
		usedSlots: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "slskd_upload_group_used_slots",
				Help: "Currently occupied upload slots, by group.",
			},
			[]string{"group"},
		),
		dispatches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "slskd_upload_scheduler_dispatches_total",
				Help: "Total uploads launched by the Scheduler, by group and strategy.",
			},
			[]string{"group", "strategy"},
		),
		outcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "slskd_upload_outcomes_total",
				Help: "Total finished uploads, by group and outcome.",
			},
			[]string{"group", "outcome"},
		),
		outcomeDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slskd_upload_duration_seconds",
				Help:    "Wall-clock duration of a finished upload.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"group"},
		),
	}
}

func (m *uploadMetrics) RecordGrant(group string, requested, granted int64) {
	m.grantsRequested.WithLabelValues(group).Add(float64(requested))
	m.grantsGranted.WithLabelValues(group).Add(float64(granted))
}

func (m *uploadMetrics) RecordReturn(group string, bytes int64) {
	m.returns.WithLabelValues(group).Add(float64(bytes))
}

func (m *uploadMetrics) SetQueueDepth(group string, depth int) {
	m.queueDepth.WithLabelValues(group).Set(float64(depth))
}

func (m *uploadMetrics) SetUsedSlots(group string, used int) {
	m.usedSlots.WithLabelValues(group).Set(float64(used))
}

func (m *uploadMetrics) RecordDispatch(group, strategy string) {
	m.dispatches.WithLabelValues(group, strategy).Inc()
}

func (m *uploadMetrics) RecordOutcome(group string, succeeded bool, duration time.Duration) {
	outcome := "failure"
	if succeeded {
		outcome = "success"
	}
	m.outcomes.WithLabelValues(group, outcome).Inc()
	m.outcomeDuration.WithLabelValues(group).Observe(duration.Seconds())
}
