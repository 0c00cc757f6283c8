package goIDP

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter. IDs are stable within a process but not
// across versions; exporters label them through MetricName.
type MetricID uint16

const (
	MetricPreEntrySuccess MetricID = iota
	MetricPreEntryDuplicateMail
	MetricPreEntryRateLimited
	MetricEntrySuccess
	MetricEntryFailure
	MetricMailChangeRequested
	MetricMailChangeConfirmed
	MetricSignInSuccess
	MetricSignInFailure
	MetricTokenIssued
	MetricTokenRefreshSuccess
	MetricTokenRefreshFailure
	MetricTokenRevoked
	MetricTokenRevokedAll
	MetricCheckSuccess
	MetricCheckFailure
	MetricAppAuthSuccess
	MetricAppAuthRefused
	MetricCodeIssued
	MetricCodeExchangeSuccess
	MetricCodeExchangeFailure
	MetricVirtualIDCreated
	MetricAccountUpdated
	MetricAccountDeleted
	MetricAccountDeletionPartial
	MetricCheckLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricPreEntrySuccess:        "preentry_success",
	MetricPreEntryDuplicateMail:  "preentry_duplicate_mail",
	MetricPreEntryRateLimited:    "preentry_rate_limited",
	MetricEntrySuccess:           "entry_success",
	MetricEntryFailure:           "entry_failure",
	MetricMailChangeRequested:    "mail_change_requested",
	MetricMailChangeConfirmed:    "mail_change_confirmed",
	MetricSignInSuccess:          "signin_success",
	MetricSignInFailure:          "signin_failure",
	MetricTokenIssued:            "token_issued",
	MetricTokenRefreshSuccess:    "token_refresh_success",
	MetricTokenRefreshFailure:    "token_refresh_failure",
	MetricTokenRevoked:           "token_revoked",
	MetricTokenRevokedAll:        "token_revoked_all",
	MetricCheckSuccess:           "check_success",
	MetricCheckFailure:           "check_failure",
	MetricAppAuthSuccess:         "appauth_success",
	MetricAppAuthRefused:         "appauth_refused",
	MetricCodeIssued:             "code_issued",
	MetricCodeExchangeSuccess:    "code_exchange_success",
	MetricCodeExchangeFailure:    "code_exchange_failure",
	MetricVirtualIDCreated:       "virtual_id_created",
	MetricAccountUpdated:         "account_updated",
	MetricAccountDeleted:         "account_deleted",
	MetricAccountDeletionPartial: "account_deletion_partial",
	MetricCheckLatency:           "check_latency",
}

// MetricName returns the stable snake_case name of a metric id, or "" for an
// out-of-range id.
func MetricName(id MetricID) string {
	if id >= metricIDCount {
		return ""
	}
	return metricNames[id]
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the engine's lock-free counter set. Counters live in
// cache-line-padded slots; the write path is allocation-free. The only
// histogram is Check latency, gated behind EnableLatencyHistograms.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a Check latency sample. Other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricCheckLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricCheckLatency].buckets[i])
		}
		s.Histograms[MetricCheckLatency] = buckets
	}

	return s
}

// Buckets: <=5ms, 10, 25, 50, 100, 250, 500, +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
