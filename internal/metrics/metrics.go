// Package metrics exposes Prometheus collectors for the relay.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsrelay"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Relay holds the collectors for connections, broadcasts and news intake.
// A nil *Relay is valid and records nothing.
type Relay struct {
	ActiveConnections prometheus.Gauge
	Broadcasts        prometheus.Counter
	Deliveries        prometheus.Counter
	DeliveryFailures  prometheus.Counter
	Evictions         prometheus.Counter
	NewsRequests      *prometheus.CounterVec
}

// NewRelay creates and registers relay metrics on the given registerer.
func NewRelay(reg prometheus.Registerer) *Relay {
	m := &Relay{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of connections eligible for broadcast delivery.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total number of broadcast passes.",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total number of messages delivered to individual connections.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Total number of failed per-connection deliveries.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Total number of connections evicted after a failed or skipped delivery.",
		}),
		NewsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "news_requests_total",
			Help:      "Total number of news publish requests by response code.",
		}, []string{"code"}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.Broadcasts,
		m.Deliveries,
		m.DeliveryFailures,
		m.Evictions,
		m.NewsRequests,
	)
	return m
}

// SetActiveConnections records the current registry size.
func (m *Relay) SetActiveConnections(n int) {
	if m == nil {
		return
	}
	m.ActiveConnections.Set(float64(n))
}

// ObserveBroadcast records one broadcast pass.
func (m *Relay) ObserveBroadcast(delivered, failed, evicted int) {
	if m == nil {
		return
	}
	m.Broadcasts.Inc()
	m.Deliveries.Add(float64(delivered))
	m.DeliveryFailures.Add(float64(failed))
	m.Evictions.Add(float64(evicted))
}

// ObserveNewsRequest records the status code of a news request.
func (m *Relay) ObserveNewsRequest(code int) {
	if m == nil {
		return
	}
	m.NewsRequests.WithLabelValues(strconv.Itoa(code)).Inc()
}
