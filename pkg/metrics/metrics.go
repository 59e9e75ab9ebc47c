package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	OrdersCreated        *prometheus.CounterVec
	PaymentsVerified     *prometheus.CounterVec
	EntitlementDenials   *prometheus.CounterVec
	ReconciliationRuns   *prometheus.CounterVec
	StaleOrdersSwept     prometheus.Counter
	SubscriptionsApplied *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		OrdersCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_orders_created_total",
				Help: "Total number of gateway orders opened",
			},
			[]string{"kind"}, // subscription, catalog
		),
		PaymentsVerified: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_verified_total",
				Help: "Total number of payment verification attempts",
			},
			[]string{"kind", "result"}, // applied, replay, rejected
		),
		EntitlementDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitlement_denials_total",
				Help: "Total number of plan-limit denials",
			},
			[]string{"resource"}, // customer, invoice
		),
		ReconciliationRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconciliation_runs_total",
				Help: "Total number of subscription reconciliation attempts",
			},
			[]string{"result"}, // ok, error
		),
		StaleOrdersSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stale_orders_swept_total",
			Help: "Total number of abandoned orders marked failed",
		}),
		SubscriptionsApplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscriptions_applied_total",
				Help: "Total number of verified payments applied to subscriptions",
			},
			[]string{"plan"},
		),
	}
}

// Middleware records request counts and latency per route
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			method := c.Request().Method
			path := c.Path()
			code := strconv.Itoa(status)

			m.HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path, code).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
