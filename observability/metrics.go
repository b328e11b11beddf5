package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics records API activity against the lending daemon together
// with per-reserve pool state sampled at refresh time.
type LendingMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	refresh  *prometheus.CounterVec

	reserveUtilization *prometheus.GaugeVec
	reserveBorrowRate  *prometheus.GaugeVec
	reserveAvailable   *prometheus.GaugeVec
	reserveBorrowed    *prometheus.GaugeVec
	reserveCumRate     *prometheus.GaugeVec
}

var (
	lendingMetricsOnce sync.Once
	lendingRegistry    *LendingMetrics
)

// Lending returns the lazily-initialised metrics registry for the lending
// service, registering the collectors on the default registerer exactly once.
func Lending() *LendingMetrics {
	lendingMetricsOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendchain",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendchain",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by operation and reason.",
			}, []string{"operation", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lendchain",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendchain",
				Subsystem: "engine",
				Name:      "refresh_total",
				Help:      "Reserve and obligation refresh executions by entity and outcome.",
			}, []string{"entity", "outcome"}),
			reserveUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lendchain",
				Subsystem: "reserve",
				Name:      "utilization_ratio",
				Help:      "Borrowed over total supply per reserve, sampled at refresh.",
			}, []string{"reserve"}),
			reserveBorrowRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lendchain",
				Subsystem: "reserve",
				Name:      "borrow_rate_ratio",
				Help:      "Current annual borrow rate per reserve, sampled at refresh.",
			}, []string{"reserve"}),
			reserveAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lendchain",
				Subsystem: "reserve",
				Name:      "available_tokens",
				Help:      "Liquidity available to borrow per reserve, in token units.",
			}, []string{"reserve"}),
			reserveBorrowed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lendchain",
				Subsystem: "reserve",
				Name:      "borrowed_tokens",
				Help:      "Outstanding borrowed liquidity per reserve, in token units.",
			}, []string{"reserve"}),
			reserveCumRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lendchain",
				Subsystem: "reserve",
				Name:      "cumulative_borrow_rate",
				Help:      "Cumulative borrow rate index per reserve, 1.0 at genesis.",
			}, []string{"reserve"}),
		}
		prometheus.MustRegister(
			lendingRegistry.requests,
			lendingRegistry.errors,
			lendingRegistry.latency,
			lendingRegistry.refresh,
			lendingRegistry.reserveUtilization,
			lendingRegistry.reserveBorrowRate,
			lendingRegistry.reserveAvailable,
			lendingRegistry.reserveBorrowed,
			lendingRegistry.reserveCumRate,
		)
	})
	return lendingRegistry
}

// ObserveRequest records one completed API call.
func (m *LendingMetrics) ObserveRequest(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(operation, reasonLabel(err)).Inc()
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveRefresh records one reserve or obligation refresh.
func (m *LendingMetrics) ObserveRefresh(entity string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.refresh.WithLabelValues(entity, outcome).Inc()
}

// ObserveReserveState publishes one reserve's pool gauges. Ratio arguments
// are plain fractions (1.0 means fully utilised), not WAD integers.
func (m *LendingMetrics) ObserveReserveState(reserve string, utilization, borrowRate, cumulativeRate float64, available uint64, borrowed float64) {
	if m == nil {
		return
	}
	m.reserveUtilization.WithLabelValues(reserve).Set(utilization)
	m.reserveBorrowRate.WithLabelValues(reserve).Set(borrowRate)
	m.reserveCumRate.WithLabelValues(reserve).Set(cumulativeRate)
	m.reserveAvailable.WithLabelValues(reserve).Set(float64(available))
	m.reserveBorrowed.WithLabelValues(reserve).Set(borrowed)
}

func reasonLabel(err error) string {
	msg := err.Error()
	if idx := strings.IndexByte(msg, ':'); idx > 0 {
		msg = msg[idx+1:]
	}
	msg = strings.TrimSpace(msg)
	if len(msg) > 40 {
		msg = msg[:40]
	}
	return strings.ReplaceAll(msg, " ", "_")
}
