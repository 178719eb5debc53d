// Package metrics exposes Prometheus collectors for the PubSub pool and
// the message router.
//
// Collectors live on a private registry so several trackers (and tests)
// can coexist in one process. Every method is safe on a nil receiver.
//
// Usage:
//
//	m := metrics.New()
//	acc := m.Account("alice")
//	acc.Reconnect("stale")
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "twitch_tracker"

// Metrics holds every collector, labelled by account.
type Metrics struct {
	registry *prometheus.Registry

	// Connections is the number of PubSub slots. Labels: account
	Connections *prometheus.GaugeVec
	// Topics is the number of assigned topics. Labels: account
	Topics *prometheus.GaugeVec
	// Reconnects counts replaced connections. Labels: account, reason
	Reconnects *prometheus.CounterVec
	// Messages counts routed messages. Labels: account, topic, type
	Messages *prometheus.CounterVec
	// Dropped counts messages that were not routed. Labels: account, cause
	Dropped *prometheus.CounterVec
	// ListenErrors counts rejected LISTEN requests. Labels: account, code
	ListenErrors *prometheus.CounterVec
	// Events counts emitted tracker events. Labels: account, event
	Events *prometheus.CounterVec
	// PointsGained sums earned channel points. Labels: account, streamer, reason
	PointsGained *prometheus.CounterVec
	// Balance is the last known channel points balance. Labels: account, streamer
	Balance *prometheus.GaugeVec
	// Online is 1 while a streamer is live. Labels: account, streamer
	Online *prometheus.GaugeVec
}

// New creates a Metrics instance on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Connections: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pubsub", Name: "connections",
			Help: "Number of PubSub connection slots",
		}, []string{"account"}),
		Topics: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pubsub", Name: "topics",
			Help: "Number of topics assigned to PubSub connections",
		}, []string{"account"}),
		Reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pubsub", Name: "reconnects_total",
			Help: "Total number of PubSub connections replaced",
		}, []string{"account", "reason"}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pubsub", Name: "messages_total",
			Help: "Total number of PubSub messages routed",
		}, []string{"account", "topic", "type"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pubsub", Name: "dropped_total",
			Help: "Total number of PubSub messages dropped before routing",
		}, []string{"account", "cause"}),
		ListenErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pubsub", Name: "listen_errors_total",
			Help: "Total number of LISTEN requests rejected by the server",
		}, []string{"account", "code"}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total",
			Help: "Total number of tracker events emitted",
		}, []string{"account", "event"}),
		PointsGained: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "points_gained_total",
			Help: "Channel points earned, by reason",
		}, []string{"account", "streamer", "reason"}),
		Balance: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "channel_points",
			Help: "Last known channel points balance",
		}, []string{"account", "streamer"}),
		Online: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "streamer_online",
			Help: "1 while the streamer is live",
		}, []string{"account", "streamer"}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Account binds the collectors to one account label.
func (m *Metrics) Account(name string) *Account {
	if m == nil {
		return nil
	}
	return &Account{m: m, name: name}
}

// Account records metrics for a single tracked account.
type Account struct {
	m    *Metrics
	name string
}

func (a *Account) SetConnections(n int) {
	if a == nil {
		return
	}
	a.m.Connections.WithLabelValues(a.name).Set(float64(n))
}

func (a *Account) AddTopics(n int) {
	if a == nil {
		return
	}
	a.m.Topics.WithLabelValues(a.name).Add(float64(n))
}

func (a *Account) Reconnect(reason string) {
	if a == nil {
		return
	}
	a.m.Reconnects.WithLabelValues(a.name, reason).Inc()
}

func (a *Account) Message(topic, msgType string) {
	if a == nil {
		return
	}
	a.m.Messages.WithLabelValues(a.name, topic, msgType).Inc()
}

func (a *Account) Dropped(cause string) {
	if a == nil {
		return
	}
	a.m.Dropped.WithLabelValues(a.name, cause).Inc()
}

func (a *Account) ListenError(code string) {
	if a == nil {
		return
	}
	a.m.ListenErrors.WithLabelValues(a.name, code).Inc()
}

func (a *Account) Event(event string) {
	if a == nil {
		return
	}
	a.m.Events.WithLabelValues(a.name, event).Inc()
}

func (a *Account) PointsGained(streamer, reason string, n int) {
	if a == nil || n <= 0 {
		return
	}
	a.m.PointsGained.WithLabelValues(a.name, streamer, reason).Add(float64(n))
}

func (a *Account) Balance(streamer string, n int) {
	if a == nil {
		return
	}
	a.m.Balance.WithLabelValues(a.name, streamer).Set(float64(n))
}

func (a *Account) Online(streamer string, online bool) {
	if a == nil {
		return
	}
	v := 0.0
	if online {
		v = 1
	}
	a.m.Online.WithLabelValues(a.name, streamer).Set(v)
}
