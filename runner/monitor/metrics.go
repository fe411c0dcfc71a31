package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the run counters served at /metrics, registered on
// their own registry rather than the process-global one.
type Metrics struct {
	registry *prometheus.Registry

	episodes prometheus.Counter
	steps    prometheus.Counter
	trains   prometheus.Counter
	reward   *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		episodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "srl_episodes_total",
			Help: "Completed episodes.",
		}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "srl_steps_total",
			Help: "Environment steps taken.",
		}),
		trains: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "srl_train_total",
			Help: "Trainer updates that did work.",
		}),
		reward: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "srl_last_episode_reward",
			Help: "Total reward of the latest completed episode.",
		}, []string{"player"}),
	}
	m.registry.MustRegister(m.episodes, m.steps, m.trains, m.reward)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
