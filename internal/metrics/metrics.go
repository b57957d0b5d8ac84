package metrics

import (
	"net/http"
	"strconv"
	"time"

	"parley/internal/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple servers never share
// collectors.
type Metrics struct {
	registry *prometheus.Registry

	messagesSent    prometheus.Counter
	attachments     prometheus.Counter
	eventsDelivered *prometheus.CounterVec
	subscribers     prometheus.Gauge
	outboxPublished prometheus.Counter
	outboxFailed    prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	socketClients   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parley_messages_sent_total",
			Help: "Messages committed by the message store.",
		}),
		attachments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parley_attachments_stored_total",
			Help: "Attachments stored with committed messages.",
		}),
		eventsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_events_delivered_total",
			Help: "Change events fanned out to local subscriptions, by entity.",
		}, []string{"entity"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parley_event_subscribers",
			Help: "Open change event subscriptions.",
		}),
		outboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parley_outbox_published_total",
			Help: "Outbox events published.",
		}),
		outboxFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parley_outbox_failed_total",
			Help: "Outbox publish attempts that failed.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parley_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		socketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parley_websocket_clients",
			Help: "Connected websocket clients.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesSent,
		m.attachments,
		m.eventsDelivered,
		m.subscribers,
		m.outboxPublished,
		m.outboxFailed,
		m.httpRequests,
		m.httpDuration,
		m.socketClients,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) MessageSent(attachments int) {
	m.messagesSent.Inc()
	m.attachments.Add(float64(attachments))
}

func (m *Metrics) EventDelivered(entity events.Entity, subscribers int) {
	m.eventsDelivered.WithLabelValues(string(entity)).Add(float64(subscribers))
}

func (m *Metrics) SubscribersChanged(count int) {
	m.subscribers.Set(float64(count))
}

func (m *Metrics) OutboxPublished(n int) {
	m.outboxPublished.Add(float64(n))
}

func (m *Metrics) OutboxFailed(n int) {
	m.outboxFailed.Add(float64(n))
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) SocketClients(n int) {
	m.socketClients.Set(float64(n))
}
