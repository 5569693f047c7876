package training

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes training progress to Prometheus.
type Metrics struct {
	updates           prometheus.Counter
	episodes          prometheus.Counter
	divergences       prometheus.Counter
	meanEpisodeReward prometheus.Gauge
	meanMakespan      prometheus.Gauge
	surrogateLoss     prometheus.Gauge
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		updates: factory.NewCounter(prometheus.CounterOpts{
			Name: "metis_training_updates_total",
			Help: "Number of completed policy updates.",
		}),
		episodes: factory.NewCounter(prometheus.CounterOpts{
			Name: "metis_training_episodes_total",
			Help: "Number of simulated training episodes.",
		}),
		divergences: factory.NewCounter(prometheus.CounterOpts{
			Name: "metis_training_divergences_total",
			Help: "Number of updates aborted because parameters or gradients were not finite.",
		}),
		meanEpisodeReward: factory.NewGauge(prometheus.GaugeOpts{
			Name: "metis_training_mean_episode_reward",
			Help: "Mean undiscounted episode reward of the most recent batch.",
		}),
		meanMakespan: factory.NewGauge(prometheus.GaugeOpts{
			Name: "metis_training_mean_makespan",
			Help: "Mean episode makespan of the most recent batch.",
		}),
		surrogateLoss: factory.NewGauge(prometheus.GaugeOpts{
			Name: "metis_training_surrogate_loss",
			Help: "Mean clipped surrogate loss of the most recent update.",
		}),
	}
}
