package balancer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the balancer's Prometheus instruments. A nil *Metrics
// disables observation, so callers without a registry pass nothing.
type Metrics struct {
	imbalanceRatio prometheus.Gauge
	localPoints    prometheus.Gauge
	rebuildsTotal  prometheus.Counter
}

// NewMetrics creates and registers the balancer metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		imbalanceRatio: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dynlb_imbalance_ratio",
			Help: "Current max/min per-worker load ratio; +Inf when a worker is empty",
		}),
		localPoints: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dynlb_local_points",
			Help: "Point count owned by this worker at the last balance step",
		}),
		rebuildsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dynlb_rebuilds_total",
			Help: "Number of partition-tree rebuilds triggered by imbalance drift",
		}),
	}
}

// observeBalance records the outcome of a balance step.
func (m *Metrics) observeBalance(imbalance float64, localPoints int) {
	if m == nil {
		return
	}
	m.imbalanceRatio.Set(imbalance)
	m.localPoints.Set(float64(localPoints))
}

// observeRebuild counts a triggered rebuild.
func (m *Metrics) observeRebuild() {
	if m == nil {
		return
	}
	m.rebuildsTotal.Inc()
}
