package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ovn_central"

// Metrics collects what the reconcilers did during one run. The registry is written as a
// node_exporter textfile since every entry point is a one-shot command.
type Metrics struct {
	registry *prometheus.Registry

	TimerChanges     *prometheus.CounterVec
	ElectionTimer    *prometheus.GaugeVec
	ClusterLeader    *prometheus.GaugeVec
	ListenersCreated *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TimerChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "election_timer_change_total",
			Help:      "Number of cluster/change-election-timer requests issued.",
		}, []string{"db"}),
		ElectionTimer: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "election_timer_ms",
			Help:      "Last observed Raft election timer in milliseconds.",
		}, []string{"db"}),
		ClusterLeader: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_leader",
			Help:      "1 when the local database server is the Raft leader.",
		}, []string{"db"}),
		ListenersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_created_total",
			Help:      "Number of connection rows created.",
		}, []string{"db"}),
	}
	m.registry.MustRegister(m.TimerChanges, m.ElectionTimer, m.ClusterLeader, m.ListenersCreated)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveTimerChange(db string, timerMs int) {
	m.TimerChanges.WithLabelValues(db).Inc()
	m.ElectionTimer.WithLabelValues(db).Set(float64(timerMs))
}

func (m *Metrics) ObserveStatus(db string, leader bool, timerMs int) {
	v := 0.0
	if leader {
		v = 1
	}
	m.ClusterLeader.WithLabelValues(db).Set(v)
	m.ElectionTimer.WithLabelValues(db).Set(float64(timerMs))
}

func (m *Metrics) ObserveListenerCreated(db string) {
	m.ListenersCreated.WithLabelValues(db).Inc()
}

// WriteTextfile atomically writes the registry in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return errors.Wrapf(prometheus.WriteToTextfile(path, m.registry), "write metrics to %s", path)
}
