package authcore

import "sync/atomic"

// MetricID indexes an engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that issued a token pair.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts bad-credential outcomes.
	MetricLoginFailure
	// MetricLoginLocked counts attempts rejected at the lockout gate.
	MetricLoginLocked
	// MetricLockoutTriggered counts active→locked transitions.
	MetricLockoutTriggered
	// MetricUnusualLocation counts geo-anomaly verdicts.
	MetricUnusualLocation
	// MetricOTPIssued counts issued one-time codes.
	MetricOTPIssued
	// MetricOTPVerified counts successful verifications.
	MetricOTPVerified
	// MetricOTPMismatch counts wrong-code attempts.
	MetricOTPMismatch
	// MetricOTPExpired counts lookups that found no live record.
	MetricOTPExpired
	// MetricOTPExhausted counts records invalidated by the attempt bound.
	MetricOTPExhausted
	// MetricTokenIssued counts issued token pairs.
	MetricTokenIssued
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess
	// MetricRefreshReuse counts rotations rejected on a blacklisted id.
	MetricRefreshReuse
	// MetricTokenRevoked counts explicit revocations.
	MetricTokenRevoked
	// MetricGeoLookupFailed counts degraded geolocation lookups.
	MetricGeoLookupFailed
	// MetricEventDropped counts security events dropped by a full buffer.
	MetricEventDropped

	metricCount
)

// Metrics is a fixed-size set of atomic counters. A nil *Metrics (metrics
// disabled) is safe to use everywhere.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// NewMetrics returns a counter set, or nil when disabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
