// Package metrics exposes the core's Prometheus collectors: how long each
// sub-step's stages take, how many dispatches have run, and how many
// instability events have been caught and reseeded.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds every metric the core records during a run.
type Collectors struct {
	SubStepDuration *prometheus.HistogramVec
	DispatchTotal   *prometheus.CounterVec
	InstabilityTotal prometheus.Counter
	ReseedTotal      prometheus.Counter
	ActiveSpheres    prometheus.Gauge
}

// NewCollectors registers every core metric against the default registry.
// Call once per process; a second Core in the same process should reuse
// the same Collectors rather than calling this again.
func NewCollectors() *Collectors {
	return &Collectors{
		SubStepDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spherecore_substep_duration_seconds",
				Help:    "Duration of one sub-step stage",
				Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
			},
			[]string{"stage"},
		),
		DispatchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spherecore_dispatch_total",
				Help: "Total compute dispatches issued, by stage",
			},
			[]string{"stage"},
		),
		InstabilityTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "spherecore_instability_total",
				Help: "Total instability events (NaN/Inf) detected across all runs",
			},
		),
		ReseedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "spherecore_reseed_total",
				Help: "Total instances reseeded after an instability event",
			},
		),
		ActiveSpheres: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "spherecore_active_spheres",
				Help: "Number of live (non-padding) spheres in the current run",
			},
		),
	}
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
