package scroll

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesLoaded counts merged pages by mode ("append" or "replace").
	PagesLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazyscroll_pages_loaded_total",
			Help: "Total number of pages merged into a live document",
		},
		[]string{"mode"},
	)

	ItemsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lazyscroll_items_inserted_total",
			Help: "Total number of items inserted into containers",
		},
	)

	LoadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lazyscroll_load_failures_total",
			Help: "Total number of page loads abandoned because of fetch or parse errors",
		},
	)

	LoadsCanceled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lazyscroll_loads_canceled_total",
			Help: "Total number of page loads vetoed by a handler",
		},
	)

	LoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lazyscroll_load_duration_seconds",
			Help:    "Duration of a page load from fetch to merged document",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	LoadsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lazyscroll_loads_in_flight",
			Help: "Number of page loads currently in progress",
		},
	)
)
