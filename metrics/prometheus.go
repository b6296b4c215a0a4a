package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ragchat"

// Prometheus implements Recorder with prometheus collectors.
type Prometheus struct {
	nodeDuration      *prometheus.HistogramVec
	nodeTotal         *prometheus.CounterVec
	branchTotal       *prometheus.CounterVec
	traversalDuration *prometheus.HistogramVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Duration of graph node executions",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
			},
			[]string{"node"},
		),
		nodeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_executions_total",
				Help:      "Total number of graph node executions",
			},
			[]string{"node", "outcome"},
		),
		branchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "branch_decisions_total",
				Help:      "Total number of conditional edge decisions",
			},
			[]string{"from", "to"},
		),
		traversalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "traversal_duration_seconds",
				Help:      "Duration of complete graph traversals",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"outcome"},
		),
	}

	for _, c := range []prometheus.Collector{p.nodeDuration, p.nodeTotal, p.branchTotal, p.traversalDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveNode(node string, duration time.Duration, err error) {
	p.nodeDuration.WithLabelValues(node).Observe(duration.Seconds())
	p.nodeTotal.WithLabelValues(node, Outcome(err)).Inc()
}

func (p *Prometheus) ObserveBranch(from, to string) {
	p.branchTotal.WithLabelValues(from, to).Inc()
}

func (p *Prometheus) ObserveTraversal(duration time.Duration, err error) {
	p.traversalDuration.WithLabelValues(Outcome(err)).Observe(duration.Seconds())
}
