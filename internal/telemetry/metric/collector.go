package metric

import "github.com/prometheus/client_golang/prometheus"

// StatsFunc reports point-in-time counts read at scrape time.
type StatsFunc func() (sessions, users, connections int)

// Collector exposes counts owned by other components without keeping
// duplicated gauges in sync.
type Collector struct {
	stats StatsFunc

	sessionsDesc    *prometheus.Desc
	usersDesc       *prometheus.Desc
	connectionsDesc *prometheus.Desc
}

// NewCollector creates a collector backed by stats.
func NewCollector(stats StatsFunc) *Collector {
	return &Collector{
		stats: stats,
		sessionsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "registry", "sessions"),
			"Sessions held by the registry, stale ones not yet swept included",
			nil, nil,
		),
		usersDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "registry", "users"),
			"Users holding at least one session",
			nil, nil,
		),
		connectionsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "hub", "connections"),
			"Connections registered with the notification hub",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessionsDesc
	ch <- c.usersDesc
	ch <- c.connectionsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	sessions, users, conns := c.stats()
	ch <- prometheus.MustNewConstMetric(c.sessionsDesc, prometheus.GaugeValue, float64(sessions))
	ch <- prometheus.MustNewConstMetric(c.usersDesc, prometheus.GaugeValue, float64(users))
	ch <- prometheus.MustNewConstMetric(c.connectionsDesc, prometheus.GaugeValue, float64(conns))
}
