package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dvbs2"

// Metrics holds all Prometheus collectors of a run
type Metrics struct {
	registry *prometheus.Registry

	// Lifecycle metrics
	State       prometheus.Gauge
	Transitions *prometheus.CounterVec

	// Pipeline metrics
	Stages        prometheus.Gauge
	SetupFailures *prometheus.CounterVec
	RunInfo       *prometheus.GaugeVec

	// Companion metrics
	CompanionFailures *prometheus.CounterVec

	// Device metrics
	HotplugEvents *prometheus.CounterVec
}

// New registers the collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		State: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "lifecycle_state",
				Help:      "Current lifecycle state, 0 init up to 5 terminated",
			},
		),
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_transitions_total",
				Help:      "Lifecycle transitions by target state",
			},
			[]string{"state"},
		),
		Stages: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pipeline_stages",
				Help:      "Number of blocks in the running pipeline",
			},
		),
		SetupFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_setup_failures_total",
				Help:      "Pipeline setup failures by stage",
			},
			[]string{"stage"},
		),
		RunInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_info",
				Help:      "Configuration of the current run, always 1",
			},
			[]string{"direction", "modcod", "driver"},
		),
		CompanionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "companion_failures_total",
				Help:      "Companion processes that could not be launched",
			},
			[]string{"role"},
		),
		HotplugEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hotplug_events_total",
				Help:      "Supported SDR usb events by driver and action",
			},
			[]string{"driver", "action"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
