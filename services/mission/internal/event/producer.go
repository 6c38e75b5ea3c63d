package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/LevelUp/pkg/kafka"
	"github.com/utafrali/LevelUp/pkg/logger"
	"github.com/utafrali/LevelUp/services/mission/internal/domain"
	"github.com/utafrali/LevelUp/services/mission/internal/saga"
)

// Kafka topic constants for mission events.
const (
	TopicMissionCompleted = "levelup.mission.completed"
	TopicMissionSaga      = "levelup.mission.saga"
)

// Aggregate type constants.
const (
	AggregateTypeMission = "mission"
	AggregateTypeSaga    = "saga"
)

// SourceMissionService identifies events originating from the mission service.
const SourceMissionService = "mission-service"

// Publisher is the subset of pkgkafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes mission domain events and saga lifecycle events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the mission service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishMissionCompleted publishes a mission.completed event.
func (p *Producer) PublishMissionCompleted(ctx context.Context, c *domain.MissionCompletion) error {
	event, err := pkgkafka.NewEvent("mission.completed", c.MissionID, AggregateTypeMission, SourceMissionService, c)
	if err != nil {
		return fmt.Errorf("create mission.completed event: %w", err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx)).WithMetadata("user_id", c.UserID)

	if err := p.kafka.Publish(ctx, TopicMissionCompleted, event); err != nil {
		return fmt.Errorf("publish mission.completed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published mission.completed event",
		slog.String("mission_id", c.MissionID),
		slog.String("user_id", c.UserID),
		slog.Bool("pinned", c.Pinned),
	)

	return nil
}

// Notify implements saga.EventSink by publishing the lifecycle event keyed by
// saga run id. Publish failures are logged only.
func (p *Producer) Notify(ctx context.Context, ev saga.Event) {
	event, err := pkgkafka.NewEvent("saga."+string(ev.Type), ev.SagaID, AggregateTypeSaga, SourceMissionService, ev)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to create saga event",
			slog.String("saga_id", ev.SagaID),
			slog.String("error", err.Error()),
		)
		return
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, TopicMissionSaga, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish saga event",
			slog.String("saga_id", ev.SagaID),
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}
