package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── Sampling cycle metrics ─────────────────────────────────────────────

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricewatcher",
		Subsystem: "cycle",
		Name:      "total",
		Help:      "Total number of sampling cycles per chain.",
	}, []string{"chain", "status"})

	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pricewatcher",
		Subsystem: "cycle",
		Name:      "duration_seconds",
		Help:      "Duration of one sampling cycle in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"chain"})

	BackfillPointsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricewatcher",
		Subsystem: "backfill",
		Name:      "points_total",
		Help:      "Total historical points written by backfill per chain.",
	}, []string{"chain"})
)

// ── Notification metrics ───────────────────────────────────────────────

var (
	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricewatcher",
		Subsystem: "notifications",
		Name:      "sent_total",
		Help:      "Total notifications successfully delivered.",
	}, []string{"chain", "kind"})

	NotificationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricewatcher",
		Subsystem: "notifications",
		Name:      "failed_total",
		Help:      "Total notification delivery failures.",
	}, []string{"chain", "kind"})
)

// ── HTTP request metrics ───────────────────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricewatcher",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pricewatcher",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)
