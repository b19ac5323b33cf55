// Package metrics records audit run metrics in Prometheus format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "iamdormant"

// Metrics holds the collectors of an audit run
type Metrics struct {
	Registry *prometheus.Registry

	// UsersTotal is the number of users in the credential report.
	UsersTotal prometheus.Gauge
	// DormantUsers is the number of users classified dormant.
	DormantUsers prometheus.Gauge
	// ExcludedUsers is the number of users skipped by exclusion patterns.
	ExcludedUsers prometheus.Gauge
	// ReportFetchAttempts is the number of retrieval attempts the last report took.
	ReportFetchAttempts prometheus.Gauge
	// Decisions counts policy decisions by reason.
	Decisions *prometheus.CounterVec
	// Deactivations counts deactivation attempts by result.
	Deactivations *prometheus.CounterVec
	// LastRunTimestamp is the unix time of the last completed run.
	LastRunTimestamp prometheus.Gauge
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		UsersTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users_total",
			Help:      "Number of users in the credential report",
		}),
		DormantUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dormant_users",
			Help:      "Number of users classified as dormant",
		}),
		ExcludedUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "excluded_users",
			Help:      "Number of users skipped by exclusion patterns",
		}),
		ReportFetchAttempts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_fetch_attempts",
			Help:      "Number of attempts needed to retrieve the credential report",
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of dormancy decisions by reason",
		}, []string{"reason"}),
		Deactivations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deactivations_total",
			Help:      "Total number of user deactivations by result",
		}, []string{"result"}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed audit run",
		}),
	}
}

// WriteTextfile writes all metrics to path in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
