package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestNewEvent_Fields(t *testing.T) {
	type completedData struct {
		ExecutionID string `json:"execution_id"`
		ExpEarned   int    `json:"exp_earned"`
	}

	data := completedData{ExecutionID: "exec-1", ExpEarned: 30}
	event, err := NewEvent("mission.completed", "exec-1", "mission_execution", "mission-service", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "mission.completed", event.EventType)
	assert.Equal(t, "exec-1", event.AggregateID)
	assert.Equal(t, "mission_execution", event.AggregateType)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var decoded completedData
	require.NoError(t, event.UnmarshalData(&decoded))
	assert.Equal(t, data, decoded)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("test.event", "agg-1", "test", "test-service", make(chan int))
	require.Error(t, err)
}

func TestBuildMessage_HeadersAndKey(t *testing.T) {
	event, err := NewEvent("saga.step_failed", "saga-1", "saga", "mission-service", map[string]string{"step": "grant_user_experience"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	msg, err := buildMessage(context.Background(), "levelup.mission.saga", event)
	require.NoError(t, err)

	assert.Equal(t, "levelup.mission.saga", msg.Topic)
	assert.Equal(t, []byte("saga-1"), msg.Key)

	carrier := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "saga.step_failed", carrier.Get("event_type"))
	assert.Equal(t, "mission-service", carrier.Get("source"))
	assert.Equal(t, "corr-1", carrier.Get("correlation_id"))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestBuildMessage_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	event, err := NewEvent("mission.completed", "exec-1", "mission_execution", "mission-service", nil)
	require.NoError(t, err)

	msg, err := buildMessage(ctx, "levelup.mission.completed", event)
	require.NoError(t, err)

	carrier := NewHeaderCarrier(&msg.Headers)
	assert.Contains(t, carrier.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestHeaderCarrier_SetOverwritesAndKeys(t *testing.T) {
	headers := []kafka.Header{{Key: "a", Value: []byte("1")}}
	carrier := NewHeaderCarrier(&headers)

	carrier.Set("a", "2")
	carrier.Set("b", "3")

	assert.Equal(t, "2", carrier.Get("a"))
	assert.Equal(t, "3", carrier.Get("b"))
	assert.Equal(t, "", carrier.Get("missing"))
	assert.ElementsMatch(t, []string{"a", "b"}, carrier.Keys())
	assert.Len(t, headers, 2)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}
