package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeCanceled = "canceled"
)

type CheckoutMetrics struct {
	SessionsCreated *prometheus.CounterVec
	Redirects       *prometheus.CounterVec
	Confirmations   *prometheus.CounterVec
	CartResets      prometheus.Counter
	RequestLatency  *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the storefront collectors on reg.
func New(reg *prometheus.Registry) *CheckoutMetrics {
	m := &CheckoutMetrics{
		SessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "checkout",
			Name:      "sessions_total",
			Help:      "Checkout session creation attempts by outcome.",
		}, []string{"outcome"}),
		Redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "checkout",
			Name:      "redirects_total",
			Help:      "Hand-offs to the payment gateway by outcome.",
		}, []string{"outcome"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "checkout",
			Name:      "confirmations_total",
			Help:      "Confirmation fetches by outcome and reason.",
		}, []string{"outcome", "reason"}),
		CartResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "resets_total",
			Help:      "Cart resets after a confirmed payment.",
		}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "api",
			Name:      "request_duration_ms",
			Help:      "Restaurant API latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"endpoint"}),
		gatherer: reg,
	}

	reg.MustRegister(m.SessionsCreated, m.Redirects, m.Confirmations, m.CartResets, m.RequestLatency)
	return m
}

// NewNop returns metrics bound to a throwaway registry.
func NewNop() *CheckoutMetrics {
	return New(prometheus.NewRegistry())
}

func (m *CheckoutMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
