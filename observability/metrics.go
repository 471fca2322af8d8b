package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type marketMetrics struct {
	orders      *prometheus.CounterVec
	bids        *prometheus.CounterVec
	settlements *prometheus.CounterVec
	refunds     *prometheus.CounterVec
}

type rpcMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	marketMetricsOnce sync.Once
	marketRegistry    *marketMetrics

	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics
)

// Market returns the lazily-initialised metrics registry used to record
// trading activity across the sale, marketplace, and auction venues.
func Market() *marketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &marketMetrics{
			orders: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "market",
				Name:      "orders_total",
				Help:      "Total orders created segmented by venue.",
			}, []string{"venue"}),
			bids: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "market",
				Name:      "bids_total",
				Help:      "Total bids accepted segmented by venue.",
			}, []string{"venue"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "market",
				Name:      "settlements_total",
				Help:      "Total orders settled segmented by venue and outcome.",
			}, []string{"venue", "outcome"}),
			refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "market",
				Name:      "refund_withdrawals_total",
				Help:      "Total displaced-bid withdrawals segmented by venue.",
			}, []string{"venue"}),
		}
		prometheus.MustRegister(
			marketRegistry.orders,
			marketRegistry.bids,
			marketRegistry.settlements,
			marketRegistry.refunds,
		)
	})
	return marketRegistry
}

// RecordOrder increments the order counter for a venue.
func (m *marketMetrics) RecordOrder(venue string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(labelOrUnknown(venue)).Inc()
}

// RecordBid increments the bid counter for a venue.
func (m *marketMetrics) RecordBid(venue string) {
	if m == nil {
		return
	}
	m.bids.WithLabelValues(labelOrUnknown(venue)).Inc()
}

// RecordSettlement increments the settlement counter. Outcomes should be
// stable strings such as "filled", "cancelled", or "expired" so dashboards
// remain consistent.
func (m *marketMetrics) RecordSettlement(venue, outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.settlements.WithLabelValues(labelOrUnknown(venue), outcome).Inc()
}

// RecordRefundWithdrawal increments the refund withdrawal counter for a venue.
func (m *marketMetrics) RecordRefundWithdrawal(venue string) {
	if m == nil {
		return
	}
	m.refunds.WithLabelValues(labelOrUnknown(venue)).Inc()
}

// RPC returns the lazily-initialised metrics registry used to record JSON-RPC
// handler activity.
func RPC() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftmarket",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records the outcome of a JSON-RPC request. The status code should
// be the HTTP status that was ultimately written to the response writer.
func (m *rpcMetrics) Observe(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied reason.
func (m *rpcMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

func labelOrUnknown(venue string) string {
	if venue == "" {
		return "unknown"
	}
	return venue
}
