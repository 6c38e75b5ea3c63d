package saga

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiSink_FansOutAndSkipsNil(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	sink := MultiSink{a, nil, b}

	sink.Notify(context.Background(), Event{Type: EventStepStarted, Step: "x"})

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestNopSink(t *testing.T) {
	assert.NotPanics(t, func() {
		NopSink{}.Notify(context.Background(), Event{Type: EventSagaFailed})
	})
}

func TestLogSink_LevelsByEventType(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	sink := NewLogSink(logger)

	sink.Notify(context.Background(), Event{Type: EventStepStarted, Saga: "s", Step: "a"})
	assert.Zero(t, buf.Len())

	sink.Notify(context.Background(), Event{Type: EventStepFailed, Saga: "s", Step: "a", Message: "nope"})
	require.NotZero(t, buf.Len())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "step_failed", entry["event"])
	assert.Equal(t, "nope", entry["message"])
}

func TestMetricsSink_RecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewMetricsSink(reg)
	ctx := context.Background()

	sink.Notify(ctx, Event{Type: EventStepSucceeded, Saga: "s", Step: "a", Duration: 10 * time.Millisecond})
	sink.Notify(ctx, Event{Type: EventStepRetrying, Saga: "s", Step: "b"})
	sink.Notify(ctx, Event{Type: EventStepFailed, Saga: "s", Step: "b"})
	sink.Notify(ctx, Event{Type: EventStepCompensated, Saga: "s", Step: "a"})
	sink.Notify(ctx, Event{Type: EventCompensationFailed, Saga: "s", Step: "a"})
	sink.Notify(ctx, Event{Type: EventSagaFailed, Saga: "s"})
	sink.Notify(ctx, Event{Type: EventSagaSucceeded, Saga: "s"})
	sink.Notify(ctx, Event{Type: EventStepStarted, Saga: "s", Step: "a"})

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.steps.WithLabelValues("s", "a", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.steps.WithLabelValues("s", "b", "retrying")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.steps.WithLabelValues("s", "b", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.compensations.WithLabelValues("s", "a", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.compensations.WithLabelValues("s", "a", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("s", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("s", "succeeded")))
	assert.Equal(t, 2, testutil.CollectAndCount(sink.stepDuration))
}

func TestMetricsSink_WiredIntoEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetricsSink(reg)
	log := &callLog{}
	a, b := newStep(log, "a"), newStep(log, "b")
	b.outcomes = []bool{false}
	engine := NewEngine[*runState]("wired", metrics, newTestLogger())

	engine.Run(context.Background(), &runState{}, asSteps(a, b))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("wired", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.compensations.WithLabelValues("wired", "a", "succeeded")))
}
