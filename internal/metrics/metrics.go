// Package metrics exposes Prometheus instrumentation for the transcription
// pipeline and its admission queue.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth is the number of submitted jobs not yet admitted.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voiceflow_queue_depth",
			Help: "Number of jobs waiting for an admission slot",
		},
	)

	// RunningJobs is the number of jobs currently holding an admission slot.
	RunningJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voiceflow_running_jobs",
			Help: "Number of pipelines currently in flight",
		},
	)

	// JobDuration observes wall-clock time per finished job.
	// Labels: status (success/error).
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voiceflow_job_duration_seconds",
			Help:    "End-to-end job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"status"},
	)

	// StageDuration observes per-stage pipeline time.
	// Labels: stage (decode/diarize/transcribe/fuse/summarize).
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voiceflow_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	// StageErrors counts per-stage failures.
	// Labels: stage (decode/diarize/transcribe/fuse/summarize).
	StageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voiceflow_stage_errors_total",
			Help: "Total pipeline stage failures",
		},
		[]string{"stage"},
	)
)

func SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}

func SetRunningJobs(n int64) {
	RunningJobs.Set(float64(n))
}

func ObserveJobDuration(seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	JobDuration.WithLabelValues(status).Observe(seconds)
}

func ObserveStage(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

func RecordStageError(stage string) {
	StageErrors.WithLabelValues(stage).Inc()
}
