package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mtaa"

// Registry holds all application metrics on its own Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsDestroyed *prometheus.CounterVec

	// Notification metrics
	NotificationsPublished *prometheus.CounterVec
	Deliveries             *prometheus.CounterVec
	DeliveriesDropped      *prometheus.CounterVec
	Connections            *prometheus.GaugeVec

	// Rate limiting
	RateLimited *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with all application metrics plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active_total",
			Help:      "Number of sessions currently held by the registry",
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of sessions created",
		}),
		SessionsDestroyed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_destroyed_total",
			Help:      "Total number of sessions removed, by reason",
		}, []string{"reason"}),

		NotificationsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Total number of notifications published, by priority",
		}, []string{"priority"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_deliveries_total",
			Help:      "Total number of notifications queued to a live connection, by channel",
		}, []string{"channel"}),
		DeliveriesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_deliveries_dropped_total",
			Help:      "Notifications dropped because a connection's send queue was full",
		}, []string{"channel"}),
		Connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Live realtime connections, by channel",
		}, []string{"channel"}),

		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_rejected_total",
			Help:      "Requests rejected by a rate limit policy",
		}, []string{"policy"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.SessionsActive,
		r.SessionsCreated,
		r.SessionsDestroyed,
		r.NotificationsPublished,
		r.Deliveries,
		r.DeliveriesDropped,
		r.Connections,
		r.RateLimited,
		r.RequestsTotal,
		r.RequestDuration,
	)

	return r
}

// Handler returns an HTTP handler exposing this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Prometheus returns the underlying registry so other components can
// register their own collectors.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// Session destroy reasons.
const (
	ReasonRevoked   = "revoked"
	ReasonLogoutAll = "logout_all"
	ReasonCapacity  = "capacity"
	ReasonExpired   = "expired"
)

// SetSessionActive sets the active session gauge.
func (r *Registry) SetSessionActive(v float64) { r.SessionsActive.Set(v) }

// IncSessionCreated counts a created session.
func (r *Registry) IncSessionCreated() { r.SessionsCreated.Inc() }

// AddSessionsDestroyed counts n removed sessions.
func (r *Registry) AddSessionsDestroyed(reason string, n int) {
	if n > 0 {
		r.SessionsDestroyed.WithLabelValues(reason).Add(float64(n))
	}
}

// IncNotificationPublished counts a published notification.
func (r *Registry) IncNotificationPublished(priority string) {
	r.NotificationsPublished.WithLabelValues(priority).Inc()
}

// IncDelivery counts a notification queued on channel.
func (r *Registry) IncDelivery(channel string) { r.Deliveries.WithLabelValues(channel).Inc() }

// IncDeliveryDropped counts a notification dropped on channel.
func (r *Registry) IncDeliveryDropped(channel string) {
	r.DeliveriesDropped.WithLabelValues(channel).Inc()
}

// IncConnections increments live connections on channel.
func (r *Registry) IncConnections(channel string) { r.Connections.WithLabelValues(channel).Inc() }

// DecConnections decrements live connections on channel.
func (r *Registry) DecConnections(channel string) { r.Connections.WithLabelValues(channel).Dec() }

// IncRateLimited counts a request rejected by policy.
func (r *Registry) IncRateLimited(policy string) { r.RateLimited.WithLabelValues(policy).Inc() }

// RecordRequest counts a finished HTTP request.
func (r *Registry) RecordRequest(method, route, status string) {
	r.RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// ObserveRequestDuration records a request latency in seconds.
func (r *Registry) ObserveRequestDuration(method, route string, seconds float64) {
	r.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}
