package saga

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/LevelUp/services/mission/internal/saga"

// Engine runs step sequences for one named saga. An Engine holds no per-run
// state and may be shared by concurrent runs; each run owns its context value.
type Engine[C any] struct {
	name   string
	sink   EventSink
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewEngine creates an engine. A nil sink discards events.
func NewEngine[C any](name string, sink EventSink, logger *slog.Logger) *Engine[C] {
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine[C]{
		name:   name,
		sink:   sink,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
}

// Name returns the saga name.
func (e *Engine[C]) Name() string { return e.name }

// Run executes steps in order against sc.
//
// A step whose ShouldInclude returns false when it is reached is skipped
// silently. An included step is attempted up to MaxRetries+1 times, waiting
// RetryDelay between attempts. A mandatory step that keeps failing stops the
// run and every step that succeeded so far is compensated, newest first. An
// optional step that keeps failing is recorded and the run continues.
func (e *Engine[C]) Run(ctx context.Context, sc C, steps []Step[C]) Result[C] {
	sagaID := uuid.New().String()
	started := e.now()

	ctx, span := e.tracer.Start(ctx, "saga "+e.name, trace.WithAttributes(
		attribute.String("saga.name", e.name),
		attribute.String("saga.id", sagaID),
	))
	defer span.End()

	log := e.logger.With(slog.String("saga", e.name), slog.String("saga_id", sagaID))
	res := Result[C]{Context: sc}
	succeeded := make([]Step[C], 0, len(steps))

	for _, step := range steps {
		if !step.ShouldInclude(sc) {
			log.DebugContext(ctx, "saga step skipped", slog.String("step", step.Name()))
			continue
		}

		r := e.runStep(ctx, log, sagaID, step, sc)
		if r.OK() {
			succeeded = append(succeeded, step)
			res.Completed = append(res.Completed, step.Name())
			continue
		}

		if !step.Mandatory() {
			log.WarnContext(ctx, "optional saga step failed, continuing",
				slog.String("step", step.Name()),
				slog.String("reason", r.Message()),
			)
			res.OptionalFailures = append(res.OptionalFailures, step.Name())
			continue
		}

		log.ErrorContext(ctx, "mandatory saga step failed",
			slog.String("step", step.Name()),
			slog.String("reason", r.Message()),
			slog.Int("steps_to_compensate", len(succeeded)),
		)
		res.FailedStep = step.Name()
		res.Message = r.Message()
		res.CompensationFailures = e.compensate(ctx, log, sagaID, succeeded, sc)

		span.SetStatus(codes.Error, r.Message())
		span.SetAttributes(attribute.String("saga.failed_step", step.Name()))
		e.emit(ctx, Event{
			Type:      EventSagaFailed,
			SagaID:    sagaID,
			Saga:      e.name,
			Step:      step.Name(),
			Mandatory: true,
			Message:   r.Message(),
			Duration:  e.now().Sub(started),
		})
		return res
	}

	res.Success = true
	res.Message = fmt.Sprintf("%s completed", e.name)
	log.InfoContext(ctx, "saga completed",
		slog.Int("completed_steps", len(res.Completed)),
		slog.Int("optional_failures", len(res.OptionalFailures)),
		slog.Duration("duration", e.now().Sub(started)),
	)
	e.emit(ctx, Event{
		Type:     EventSagaSucceeded,
		SagaID:   sagaID,
		Saga:     e.name,
		Message:  res.Message,
		Duration: e.now().Sub(started),
	})
	return res
}

// runStep attempts a step until it succeeds or its retries are exhausted.
func (e *Engine[C]) runStep(ctx context.Context, log *slog.Logger, sagaID string, step Step[C], sc C) StepResult {
	maxAttempts := step.MaxRetries() + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	first := e.now()
	base := Event{SagaID: sagaID, Saga: e.name, Step: step.Name(), Mandatory: step.Mandatory()}

	var r StepResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ev := base
		ev.Type = EventStepStarted
		ev.Attempt = attempt
		e.emit(ctx, ev)

		r = e.attempt(ctx, step, sc, attempt)
		if r.OK() {
			ev.Type = EventStepSucceeded
			ev.Message = r.Message()
			ev.Duration = e.now().Sub(first)
			e.emit(ctx, ev)
			return r
		}
		if attempt == maxAttempts {
			break
		}

		log.WarnContext(ctx, "saga step failed, retrying",
			slog.String("step", step.Name()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.String("reason", r.Message()),
		)
		ev.Type = EventStepRetrying
		ev.Message = r.Message()
		e.emit(ctx, ev)

		if err := wait(ctx, step.RetryDelay()); err != nil {
			log.WarnContext(ctx, "saga step retry abandoned",
				slog.String("step", step.Name()),
				slog.String("error", err.Error()),
			)
			break
		}
	}

	e.emit(ctx, Event{
		Type:      EventStepFailed,
		SagaID:    sagaID,
		Saga:      e.name,
		Step:      step.Name(),
		Mandatory: step.Mandatory(),
		Message:   r.Message(),
		Duration:  e.now().Sub(first),
	})
	return r
}

// attempt runs Execute once inside its own span. A panic counts as a failure.
func (e *Engine[C]) attempt(ctx context.Context, step Step[C], sc C, n int) StepResult {
	ctx, span := e.tracer.Start(ctx, "saga step "+step.Name(), trace.WithAttributes(
		attribute.String("saga.step", step.Name()),
		attribute.Int("saga.attempt", n),
		attribute.Bool("saga.mandatory", step.Mandatory()),
	))
	defer span.End()

	r := invoke(ctx, step.Execute, sc)
	if !r.OK() {
		span.SetStatus(codes.Error, r.Message())
	}
	return r
}

// compensate undoes succeeded steps in reverse order. Failures are logged and
// collected but never stop the remaining compensations. Compensation ignores
// cancellation of the caller's context.
func (e *Engine[C]) compensate(ctx context.Context, log *slog.Logger, sagaID string, succeeded []Step[C], sc C) []string {
	if len(succeeded) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	log.InfoContext(ctx, "compensating saga", slog.Int("steps", len(succeeded)))

	var failed []string
	for i := len(succeeded) - 1; i >= 0; i-- {
		step := succeeded[i]
		started := e.now()
		r := invoke(ctx, step.Compensate, sc)

		ev := Event{
			SagaID:    sagaID,
			Saga:      e.name,
			Step:      step.Name(),
			Mandatory: step.Mandatory(),
			Message:   r.Message(),
			Duration:  e.now().Sub(started),
		}
		if r.OK() {
			ev.Type = EventStepCompensated
		} else {
			ev.Type = EventCompensationFailed
			failed = append(failed, step.Name())
			log.ErrorContext(ctx, "saga compensation failed",
				slog.String("step", step.Name()),
				slog.String("reason", r.Message()),
			)
		}
		e.emit(ctx, ev)
	}
	return failed
}

func (e *Engine[C]) emit(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = e.now().UTC()
	}
	e.sink.Notify(ctx, ev)
}

func invoke[C any](ctx context.Context, fn func(context.Context, C) StepResult, sc C) (r StepResult) {
	defer func() {
		if p := recover(); p != nil {
			r = Failuref("panic: %v", p)
		}
	}()
	return fn(ctx, sc)
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
