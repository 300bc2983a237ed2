package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rife_jobs_processed_total",
		Help: "Total number of interpolation jobs processed, by status",
	}, []string{"status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rife_job_processing_duration_seconds",
		Help:    "Duration of the interpolation pipeline, by stage",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	OutputFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rife_output_frames_total",
		Help: "Total number of output frames produced, by path (interpolated, passthrough, skipped)",
	}, []string{"path"})

	GateWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rife_gate_wait_seconds",
		Help:    "Time spent waiting for a GPU lane permit",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
	})

	ActiveLanes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rife_active_lanes",
		Help: "Number of GPU lanes currently running inference",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rife_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rife_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
