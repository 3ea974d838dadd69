package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway counters on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	Sessions           prometheus.Gauge
	OrdersAccepted     prometheus.Counter
	OrdersFailed       prometheus.Counter
	IDsAllocated       prometheus.Counter
	ForwardDelivered   prometheus.Counter
	ForwardRejected    prometheus.Counter
	ForwardUnreachable prometheus.Counter
	ArchiveDropped     prometheus.Counter
}

// NewMetrics allocates and registers the gateway metric set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_sessions",
			Help: "Currently connected sessions.",
		}),
		OrdersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_orders_accepted_total",
			Help: "Orders written to the store and acknowledged.",
		}),
		OrdersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_orders_failed_total",
			Help: "Events acknowledged with a failure result.",
		}),
		IDsAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_ids_allocated_total",
			Help: "Identifiers allocated from the store counter.",
		}),
		ForwardDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_forward_delivered_total",
			Help: "Orders delivered downstream.",
		}),
		ForwardRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_forward_rejected_total",
			Help: "Downstream deliveries answered with a non-2xx status.",
		}),
		ForwardUnreachable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_forward_unreachable_total",
			Help: "Downstream deliveries that failed at the transport.",
		}),
		ArchiveDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_archive_dropped_total",
			Help: "Accepted orders dropped from the archive queue on overflow.",
		}),
	}
	reg.MustRegister(
		m.Sessions,
		m.OrdersAccepted,
		m.OrdersFailed,
		m.IDsAllocated,
		m.ForwardDelivered,
		m.ForwardRejected,
		m.ForwardUnreachable,
		m.ArchiveDropped,
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
