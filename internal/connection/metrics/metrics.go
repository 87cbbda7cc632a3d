package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"proconnect/internal/connection/models"
)

// Metrics provides observability for the connection module: request volume,
// lifecycle transitions, blocked duplicates, and the live connection count.
type Metrics struct {
	Created          prometheus.Counter
	Transitions      *prometheus.CounterVec
	DuplicateBlocked prometheus.Counter
	Active           prometheus.Gauge
}

// New creates a Metrics instance with all connection module metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proconnect_connections_created_total",
			Help: "Total number of connection requests created",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "proconnect_connection_transitions_total",
			Help: "Total lifecycle transitions by resulting status",
		}, []string{"status"}),
		DuplicateBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proconnect_connection_duplicates_blocked_total",
			Help: "Total connection requests rejected because the pair already had a live record",
		}),
		Active: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "proconnect_connections_active",
			Help: "Live connections (pending plus accepted), refreshed by the stats path",
		}),
	}
}

// IncrementCreated records a successful connection request.
func (m *Metrics) IncrementCreated() {
	m.Created.Inc()
}

// IncrementTransition records a successful transition into status.
func (m *Metrics) IncrementTransition(status models.Status) {
	m.Transitions.WithLabelValues(status.String()).Inc()
}

// IncrementDuplicateBlocked records a create attempt stopped by the
// one-active-connection-per-pair rule.
func (m *Metrics) IncrementDuplicateBlocked() {
	m.DuplicateBlocked.Inc()
}

// SetActive refreshes the live-connection gauge from the stats aggregate.
func (m *Metrics) SetActive(count int64) {
	m.Active.Set(float64(count))
}
