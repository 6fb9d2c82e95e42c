// Package metrics exposes Prometheus instruments for the refresh cycle and
// image lookups.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles the collectors registered on Registry.
type Metrics struct {
	Registry *prometheus.Registry

	// UpdatesTotal counts full updates by status (success, failure, idle).
	UpdatesTotal *prometheus.CounterVec

	// UpdateDuration observes how long a full update took, image fetches included.
	UpdateDuration prometheus.Histogram

	// ImageLookupsTotal counts image lookups by source (provider, fallback).
	ImageLookupsTotal *prometheus.CounterVec

	// LocationDegraded is 1 when the observer label fell back to "Unknown".
	LocationDegraded prometheus.Gauge
}

// New creates the collectors on a dedicated registry, alongside the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		UpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opposite_clock_updates_total",
			Help: "Total number of board updates by status.",
		}, []string{"status"}),
		UpdateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "opposite_clock_update_duration_seconds",
			Help:    "Duration of a full board update.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ImageLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opposite_clock_image_lookups_total",
			Help: "Total number of city image lookups by source.",
		}, []string{"source"}),
		LocationDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opposite_clock_location_degraded",
			Help: "1 if the observer location label could not be derived.",
		}),
	}

	reg.MustRegister(
		m.UpdatesTotal,
		m.UpdateDuration,
		m.ImageLookupsTotal,
		m.LocationDegraded,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordUpdate records one update outcome and its duration in seconds.
func (m *Metrics) RecordUpdate(status string, seconds float64) {
	if m == nil {
		return
	}
	m.UpdatesTotal.WithLabelValues(status).Inc()
	if status != "idle" {
		m.UpdateDuration.Observe(seconds)
	}
}

// RecordImageLookup counts one image lookup.
func (m *Metrics) RecordImageLookup(source string) {
	if m == nil {
		return
	}
	m.ImageLookupsTotal.WithLabelValues(source).Inc()
}

// SetLocationDegraded sets the degraded gauge.
func (m *Metrics) SetLocationDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.LocationDegraded.Set(1)
		return
	}
	m.LocationDegraded.Set(0)
}
