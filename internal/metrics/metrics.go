// Package metrics holds the Prometheus collectors for conversions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusCompleted      = "completed"
	StatusFailed         = "failed"
	StatusInvalidRequest = "invalid_request"
)

var (
	ConversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gifcut_conversions_total",
		Help: "Total number of conversions, by outcome",
	}, []string{"status"})

	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gifcut_pass_duration_seconds",
		Help:    "Duration of each ffmpeg pass",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"pass"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gifcut_queue_depth",
		Help: "Number of pending conversion jobs",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
