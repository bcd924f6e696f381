// Package metrics exposes Prometheus instrumentation for the simulation
// loop and the twin's aggregate health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"twinguard-lab/internal/simulation"
)

// Metrics holds all collectors. It implements simulation.MetricsRecorder.
type Metrics struct {
	ticksTotal   prometheus.Counter
	tickDuration prometheus.Histogram

	nodesByStatus          *prometheus.GaugeVec
	averageHealth          prometheus.Gauge
	averageRisk            prometheus.Gauge
	maxRisk                prometheus.Gauge
	activeThreats          prometheus.Gauge
	activePredictions      prometheus.Gauge
	pendingRecommendations prometheus.Gauge

	predictionsGenerated prometheus.Counter
	threatsExpired       prometheus.Counter
}

// New registers all collectors on the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ticksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "twinguard",
			Name:      "ticks_total",
			Help:      "Simulation ticks executed.",
		}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "twinguard",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one simulation tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		nodesByStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "twinguard",
			Name:      "nodes",
			Help:      "Node count by operational status.",
		}, []string{"status"}),
		averageHealth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "twinguard",
			Name:      "average_health",
			Help:      "Mean node health across the twin.",
		}),
		averageRisk: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "twinguard",
			Name:      "average_risk",
			Help:      "Mean composite risk across the twin.",
		}),
		maxRisk: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "twinguard",
			Name:      "max_risk",
			Help:      "Highest composite risk of any node.",
		}),
		activeThreats: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "twinguard",
			Name:      "active_threats",
			Help:      "Currently active injected threats.",
		}),
		activePredictions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "twinguard",
			Name:      "active_predictions",
			Help:      "Unresolved failure predictions.",
		}),
		pendingRecommendations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "twinguard",
			Name:      "pending_recommendations",
			Help:      "Open mitigation recommendations.",
		}),
		predictionsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "twinguard",
			Name:      "predictions_generated_total",
			Help:      "Failure predictions generated.",
		}),
		threatsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "twinguard",
			Name:      "threats_expired_total",
			Help:      "Injected threats that ran out their window.",
		}),
	}
}

// RecordTick updates all collectors from one tick report
func (m *Metrics) RecordTick(report *simulation.TickReport) {
	m.ticksTotal.Inc()
	m.tickDuration.Observe(report.Duration.Seconds())
	m.predictionsGenerated.Add(float64(len(report.NewPredictions)))
	m.threatsExpired.Add(float64(len(report.ExpiredThreats)))

	state := report.State
	m.nodesByStatus.Reset()
	for status, count := range state.StatusCounts {
		m.nodesByStatus.WithLabelValues(string(status)).Set(float64(count))
	}
	m.averageHealth.Set(state.AverageHealth)
	m.averageRisk.Set(state.AverageRisk)
	m.maxRisk.Set(state.MaxRisk)
	m.activeThreats.Set(float64(state.ActiveThreats))
	m.activePredictions.Set(float64(state.ActivePredictions))
	m.pendingRecommendations.Set(float64(state.PendingRecommendations))
}
