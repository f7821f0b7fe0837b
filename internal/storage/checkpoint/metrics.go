package checkpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics are the checkpoint pipeline's Prometheus collectors.
type Metrics struct {
	Writes    *prometheus.CounterVec
	Debounced prometheus.Counter
	Coalesced prometheus.Counter
	Duration  prometheus.Histogram
	Bytes     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridboard",
			Subsystem: "checkpoint",
			Name:      "writes_total",
			Help:      "Snapshot writes by result.",
		}, []string{"result"}),
		Debounced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridboard",
			Subsystem: "checkpoint",
			Name:      "debounced_total",
			Help:      "Checkpoint requests that restarted a pending timer.",
		}),
		Coalesced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridboard",
			Subsystem: "checkpoint",
			Name:      "coalesced_total",
			Help:      "Checkpoints folded into a trailing write because one was in flight.",
		}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridboard",
			Subsystem: "checkpoint",
			Name:      "write_duration_seconds",
			Help:      "Time to snapshot and persist the store.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		Bytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridboard",
			Subsystem: "checkpoint",
			Name:      "snapshot_bytes",
			Help:      "Size of the last snapshot written.",
		}),
	}
}
