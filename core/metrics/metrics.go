package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tiffinbot"

// Registry bundles the collectors exported by the bot. A nil *Registry is
// valid and records nothing, so callers never need to guard.
type Registry struct {
	reg *prometheus.Registry

	updates         *prometheus.CounterVec
	handled         *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	sends           *prometheus.CounterVec
	polls           *prometheus.CounterVec
	orders          *prometheus.CounterVec
	archived        *prometheus.CounterVec
}

// New creates a registry with process and Go runtime collectors attached.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "updates_total",
			Help:      "Telegram updates received, by kind.",
		}, []string{"kind"}),
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "handled_total",
			Help:      "Handled updates, by handler and status.",
		}, []string{"handler", "status"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "handler_duration_seconds",
			Help:      "Time spent routing one update.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		}, []string{"handler"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "sends_total",
			Help:      "Outbound replies, by outcome.",
		}, []string{"outcome"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "transitions_total",
			Help:      "Poll lifecycle transitions, by event.",
		}, []string{"event"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "orders_total",
			Help:      "Order mutations, by outcome.",
		}, []string{"outcome"}),
		archived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "writes_total",
			Help:      "Closed poll archive writes, by status.",
		}, []string{"status"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.updates, r.handled, r.handlerDuration, r.sends, r.polls, r.orders, r.archived,
	)
	return r
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}

// Update counts one received update of the given kind (message, edited, other).
func (r *Registry) Update(kind string) {
	if r == nil {
		return
	}
	r.updates.WithLabelValues(kind).Inc()
}

// Handled records the outcome and latency of one routed update.
func (r *Registry) Handled(handler, status string, seconds float64) {
	if r == nil {
		return
	}
	r.handled.WithLabelValues(handler, status).Inc()
	r.handlerDuration.WithLabelValues(handler).Observe(seconds)
}

// Send counts one reply attempt; outcome is "ok" or "fail".
func (r *Registry) Send(outcome string) {
	if r == nil {
		return
	}
	r.sends.WithLabelValues(outcome).Inc()
}

// PollEvent counts a lifecycle transition: open, close, expire.
func (r *Registry) PollEvent(event string) {
	if r == nil {
		return
	}
	r.polls.WithLabelValues(event).Inc()
}

// OrderEvent counts an order mutation: stored, replaced, cancelled, ignored.
func (r *Registry) OrderEvent(outcome string) {
	if r == nil {
		return
	}
	r.orders.WithLabelValues(outcome).Inc()
}

// Archived counts an archive write; status is "ok" or "fail".
func (r *Registry) Archived(status string) {
	if r == nil {
		return
	}
	r.archived.WithLabelValues(status).Inc()
}
