package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	marketplaceMetricsOnce sync.Once
	marketplaceRegistry    *MarketplaceMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record HTTP
// API activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hgigs",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by route, method and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hgigs",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by route, method and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "hgigs",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hgigs",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected due to throttling policies.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an API request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" so dashboards and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// MarketplaceMetrics tracks ledger activity derived from emitted events and
// rejected mutations.
type MarketplaceMetrics struct {
	gigs        prometheus.Counter
	transitions *prometheus.CounterVec
	custody     *prometheus.GaugeVec
	fees        *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	paused      prometheus.Gauge
}

// Marketplace returns the singleton marketplace metrics registry.
func Marketplace() *MarketplaceMetrics {
	marketplaceMetricsOnce.Do(func() {
		marketplaceRegistry = &MarketplaceMetrics{
			gigs: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "hgigs",
				Subsystem: "marketplace",
				Name:      "gigs_created_total",
				Help:      "Count of gigs listed.",
			}),
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hgigs",
				Subsystem: "marketplace",
				Name:      "order_transitions_total",
				Help:      "Count of order state transitions segmented by transition.",
			}, []string{"transition"}),
			custody: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "hgigs",
				Subsystem: "marketplace",
				Name:      "custody_base_units",
				Help:      "Funds currently held in escrow, in base units, per asset.",
			}, []string{"asset"}),
			fees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hgigs",
				Subsystem: "marketplace",
				Name:      "platform_fees_base_units_total",
				Help:      "Platform fees collected on release, in base units, per asset.",
			}, []string{"asset"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hgigs",
				Subsystem: "marketplace",
				Name:      "rejected_mutations_total",
				Help:      "Count of rejected mutations segmented by error code.",
			}, []string{"code"}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "hgigs",
				Subsystem: "marketplace",
				Name:      "paused",
				Help:      "Set to 1 while mutations are halted.",
			}),
		}
		prometheus.MustRegister(
			marketplaceRegistry.gigs,
			marketplaceRegistry.transitions,
			marketplaceRegistry.custody,
			marketplaceRegistry.fees,
			marketplaceRegistry.rejections,
			marketplaceRegistry.paused,
		)
	})
	return marketplaceRegistry
}

// RecordRejection counts a mutation refused with the given error code.
func (m *MarketplaceMetrics) RecordRejection(code string) {
	if m == nil {
		return
	}
	code = strings.TrimSpace(code)
	if code == "" {
		code = "UNKNOWN"
	}
	m.rejections.WithLabelValues(code).Inc()
}

// SetCustody overwrites the custody gauge, used at boot to seed it from state.
func (m *MarketplaceMetrics) SetCustody(asset string, amount float64) {
	if m == nil {
		return
	}
	m.custody.WithLabelValues(asset).Set(amount)
}

// SetPaused mirrors the pause flag.
func (m *MarketplaceMetrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}
