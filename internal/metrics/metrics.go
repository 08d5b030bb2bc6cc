package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendloop_api_calls_total",
			Help: "Successful calls to external APIs by service",
		},
		[]string{"service"},
	)

	APIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendloop_api_errors_total",
			Help: "Failed calls to external APIs by category",
		},
		[]string{"category"},
	)

	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendloop_task_runs_total",
			Help: "Scheduled task attempts by task and status",
		},
		[]string{"task", "status"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trendloop_task_duration_seconds",
			Help:    "Scheduled task duration in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"task"},
	)

	PostsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trendloop_posts_published_total",
		Help: "Queue entries copied into the live directory",
	})

	PostsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trendloop_posts_generated_total",
		Help: "Queue entries produced by the batch generator",
	})

	HostUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trendloop_host_usage_percent",
			Help: "Last observed host resource usage",
		},
		[]string{"resource"},
	)
)
