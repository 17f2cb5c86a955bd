package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "导出/打印任务处理次数（按任务类型与结果）。",
		},
		[]string{"task_type", "outcome"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "单次任务耗时（秒），PDF 任务包含浏览器启动。",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"task_type"},
	)

	jobsRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "running",
			Help:      "正在执行的任务数量。",
		},
		[]string{"task_type"},
	)
)

// jobOutcome 区分成功、会重试的失败与不再重试的失败。
func jobOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, asynq.SkipRetry):
		return "dropped"
	default:
		return "error"
	}
}

// AsynqMetricsMiddleware 记录每个任务的耗时与结果。
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			taskType := task.Type()
			running := jobsRunning.WithLabelValues(taskType)
			running.Inc()
			start := time.Now()

			err := next.ProcessTask(ctx, task)

			running.Dec()
			jobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			jobsTotal.WithLabelValues(taskType, jobOutcome(err)).Inc()
			return err
		})
	}
}
