package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics regroupe les métriques Prometheus de l'API
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	OrdersCreatedTotal  prometheus.Counter
	PaymentEventsTotal  *prometheus.CounterVec
	ProductCacheLookups *prometheus.CounterVec

	registry *prometheus.Registry
}

// New crée et enregistre toutes les métriques dans registry
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storefront_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		OrdersCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storefront_orders_created_total",
				Help: "Total number of orders created",
			},
		),
		PaymentEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_payment_events_total",
				Help: "Total number of payment gateway events received",
			},
			[]string{"type"},
		),
		ProductCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_product_cache_lookups_total",
				Help: "Product list cache lookups",
			},
			[]string{"result"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OrdersCreatedTotal,
		m.PaymentEventsTotal,
		m.ProductCacheLookups,
	)
	return m
}

// Nop retourne des métriques enregistrées dans un registre jetable (tests)
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler expose le registre pour GET /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OrderCreated() {
	if m != nil {
		m.OrdersCreatedTotal.Inc()
	}
}

func (m *Metrics) PaymentEvent(eventType string) {
	if m != nil {
		m.PaymentEventsTotal.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ProductCacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.ProductCacheLookups.WithLabelValues("miss").Inc()
	}
}
