package saga

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LogSink writes every event to a structured logger at debug level, failures
// at warn level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify implements EventSink.
func (s *LogSink) Notify(ctx context.Context, ev Event) {
	level := slog.LevelDebug
	switch ev.Type {
	case EventStepFailed, EventCompensationFailed, EventSagaFailed:
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "saga event",
		slog.String("event", string(ev.Type)),
		slog.String("saga", ev.Saga),
		slog.String("saga_id", ev.SagaID),
		slog.String("step", ev.Step),
		slog.Int("attempt", ev.Attempt),
		slog.String("message", ev.Message),
		slog.Duration("duration", ev.Duration),
	)
}

// MetricsSink records saga runs, step outcomes, step durations and
// compensations as Prometheus metrics.
type MetricsSink struct {
	runs          *prometheus.CounterVec
	steps         *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	compensations *prometheus.CounterVec
}

// NewMetricsSink registers the saga metrics with reg.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	factory := promauto.With(reg)
	return &MetricsSink{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_runs_total",
			Help: "Total number of saga runs by outcome.",
		}, []string{"saga", "outcome"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_steps_total",
			Help: "Total number of saga step outcomes (succeeded, failed, retrying).",
		}, []string{"saga", "step", "outcome"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "saga_step_duration_seconds",
			Help:    "Time spent executing a saga step including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"saga", "step"}),
		compensations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_compensations_total",
			Help: "Total number of compensations by outcome.",
		}, []string{"saga", "step", "outcome"}),
	}
}

// Notify implements EventSink.
func (s *MetricsSink) Notify(_ context.Context, ev Event) {
	switch ev.Type {
	case EventStepSucceeded:
		s.steps.WithLabelValues(ev.Saga, ev.Step, "succeeded").Inc()
		s.stepDuration.WithLabelValues(ev.Saga, ev.Step).Observe(ev.Duration.Seconds())
	case EventStepFailed:
		s.steps.WithLabelValues(ev.Saga, ev.Step, "failed").Inc()
		s.stepDuration.WithLabelValues(ev.Saga, ev.Step).Observe(ev.Duration.Seconds())
	case EventStepRetrying:
		s.steps.WithLabelValues(ev.Saga, ev.Step, "retrying").Inc()
	case EventStepCompensated:
		s.compensations.WithLabelValues(ev.Saga, ev.Step, "succeeded").Inc()
	case EventCompensationFailed:
		s.compensations.WithLabelValues(ev.Saga, ev.Step, "failed").Inc()
	case EventSagaSucceeded:
		s.runs.WithLabelValues(ev.Saga, "succeeded").Inc()
	case EventSagaFailed:
		s.runs.WithLabelValues(ev.Saga, "failed").Inc()
	}
}
