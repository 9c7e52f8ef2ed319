package metrics

import "time"

// UploadMetrics is the set of observations the upload core reports. A nil
// UploadMetrics is valid everywhere this interface is accepted; every
// helper function below is a nil-safe no-op.
type UploadMetrics interface {
	// RecordGrant records a Governor.Acquire outcome: the group the grant
	// was resolved against, the bytes requested, and the bytes actually
	// granted.
	RecordGrant(group string, requested, granted int64)

	// RecordReturn records bytes credited back to a bucket via
	// Governor.Return.
	RecordReturn(group string, bytes int64)

	// SetQueueDepth records the current number of not-yet-granted entries
	// in a group.
	SetQueueDepth(group string, depth int)

	// SetUsedSlots records a group's current UsedSlots.
	SetUsedSlots(group string, used int)

	// RecordDispatch records one Scheduler.Schedule launch.
	RecordDispatch(group, strategy string)

	// RecordOutcome records one finished transfer's terminal state.
	RecordOutcome(group string, succeeded bool, duration time.Duration)
}

// NewUploadMetrics returns the registered Prometheus-backed implementation,
// or nil if metrics are not enabled.
func NewUploadMetrics() UploadMetrics {
	if !IsEnabled() || newPrometheusUploadMetrics == nil {
		return nil
	}
	return newPrometheusUploadMetrics()
}

// newPrometheusUploadMetrics is populated by pkg/metrics/prometheus's
// init(), the same indirection the teacher uses for cache/NFS/S3 metrics.
var newPrometheusUploadMetrics func() UploadMetrics

// RegisterUploadMetricsConstructor is called by
// pkg/metrics/prometheus/uploads.go during package initialization.
func RegisterUploadMetricsConstructor(constructor func() UploadMetrics) {
	newPrometheusUploadMetrics = constructor
}

func RecordGrant(m UploadMetrics, group string, requested, granted int64) {
	if m != nil {
		m.RecordGrant(group, requested, granted)
	}
}

func RecordReturn(m UploadMetrics, group string, bytes int64) {
	if m != nil {
		m.RecordReturn(group, bytes)
	}
}

func SetQueueDepth(m UploadMetrics, group string, depth int) {
	if m != nil {
		m.SetQueueDepth(group, depth)
	}
}

func SetUsedSlots(m UploadMetrics, group string, used int) {
	if m != nil {
		m.SetUsedSlots(group, used)
	}
}

func RecordDispatch(m UploadMetrics, group, strategy string) {
	if m != nil {
		m.RecordDispatch(group, strategy)
	}
}

func RecordOutcome(m UploadMetrics, group string, succeeded bool, duration time.Duration) {
	if m != nil {
		m.RecordOutcome(group, succeeded, duration)
	}
}
