package observability

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	nativecommon "pointsvault/native/common"
	"pointsvault/native/partner"
	"pointsvault/native/points"
	"pointsvault/native/stake"
)

// OperationMetrics tracks node operations segmented by outcome.
type OperationMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	rejects  *prometheus.CounterVec
}

// NewOperationMetrics registers a fresh set of collectors with reg.
func NewOperationMetrics(reg prometheus.Registerer) *OperationMetrics {
	m := &OperationMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "points",
			Subsystem: "node",
			Name:      "operations_total",
			Help:      "Total node operations segmented by operation and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "points",
			Subsystem: "node",
			Name:      "operation_duration_seconds",
			Help:      "Latency distribution for node operations including lock wait.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "points",
			Subsystem: "node",
			Name:      "rejections_total",
			Help:      "Count of rejected operations segmented by reason.",
		}, []string{"op", "reason"}),
	}
	reg.MustRegister(m.requests, m.latency, m.rejects)
	return m
}

// Observe implements core.OperationObserver.
func (m *OperationMetrics) Observe(op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	op = strings.TrimSpace(op)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.rejects.WithLabelValues(op, Reason(err)).Inc()
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

var reasons = []struct {
	err    error
	reason string
}{
	{nativecommon.ErrModulePaused, "paused"},
	{nativecommon.ErrUnauthorized, "unauthorized"},
	{points.ErrInsufficientAvailableBalance, "insufficient_balance"},
	{points.ErrInsufficientLockedBalance, "insufficient_locked"},
	{partner.ErrInsufficientDailyQuota, "daily_quota"},
	{partner.ErrLifetimeQuotaExceeded, "lifetime_quota"},
	{partner.ErrPointsTooYoung, "points_too_young"},
	{partner.ErrWithdrawalExceedsLimit, "withdrawal_limit"},
	{partner.ErrWithdrawalPaused, "withdrawal_paused"},
	{stake.ErrNotMature, "not_mature"},
	{stake.ErrEncumbered, "encumbered"},
}

// Reason maps an error to a bounded label value.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "other"
}
