package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	apperrors "github.com/utafrali/LevelUp/pkg/errors"
	"github.com/utafrali/LevelUp/services/mission/internal/domain"
	"github.com/utafrali/LevelUp/services/mission/internal/saga"
)

// Saga names.
const (
	SagaCompleteRegular = "complete_regular_mission"
	SagaCompletePinned  = "complete_pinned_mission"
)

// MaxNoteLength is the maximum number of characters in a completion note.
const MaxNoteLength = 500

// ErrCodeCompletionFailed is the error code returned when a completion saga fails.
const ErrCodeCompletionFailed = "MISSION_COMPLETION_FAILED"

// Locker serializes completions of the same item.
type Locker interface {
	Acquire(ctx context.Context, key string) (string, error)
	Release(ctx context.Context, key, token string) error
}

// Publisher announces finished completions.
type Publisher interface {
	PublishMissionCompleted(ctx context.Context, c *domain.MissionCompletion) error
}

// Service runs the mission completion sagas.
type Service struct {
	steps     Steps
	regular   *saga.Engine[*Context]
	pinned    *saga.Engine[*Context]
	locker    Locker
	publisher Publisher
	logger    *slog.Logger
}

// NewService creates a completion service. locker and publisher may be nil.
func NewService(steps Steps, sink saga.EventSink, locker Locker, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{
		steps:     steps,
		regular:   saga.NewEngine[*Context](SagaCompleteRegular, sink, logger),
		pinned:    saga.NewEngine[*Context](SagaCompletePinned, sink, logger),
		locker:    locker,
		publisher: publisher,
		logger:    logger,
	}
}

// ExecutionResponse is returned after a regular execution is completed.
type ExecutionResponse struct {
	ExecutionID    string     `json:"execution_id"`
	MissionID      string     `json:"mission_id"`
	MissionTitle   string     `json:"mission_title"`
	ParticipantID  string     `json:"participant_id"`
	ExecutionDate  time.Time  `json:"execution_date"`
	Status         string     `json:"status"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Note           string     `json:"note,omitempty"`
	ExpEarned      int        `json:"exp_earned"`
	TotalExp       int        `json:"total_exp"`
	Level          int        `json:"level"`
	LeveledUp      bool       `json:"leveled_up"`
	Progress       int        `json:"progress"`
	GuildExpEarned int        `json:"guild_exp_earned,omitempty"`
	FeedEntryID    string     `json:"feed_entry_id,omitempty"`
}

// PinnedInstanceResponse is returned after a pinned daily instance is completed.
type PinnedInstanceResponse struct {
	InstanceID       string     `json:"instance_id"`
	MissionID        string     `json:"mission_id"`
	MissionTitle     string     `json:"mission_title"`
	InstanceDate     time.Time  `json:"instance_date"`
	Status           string     `json:"status"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Note             string     `json:"note,omitempty"`
	ExpEarned        int        `json:"exp_earned"`
	TotalExp         int        `json:"total_exp"`
	Level            int        `json:"level"`
	LeveledUp        bool       `json:"leveled_up"`
	FeedEntryID      string     `json:"feed_entry_id,omitempty"`
	NextInstanceID   string     `json:"next_instance_id,omitempty"`
	NextInstanceDate *time.Time `json:"next_instance_date,omitempty"`
}

// CompleteRegular completes a regular mission execution for userID.
func (s *Service) CompleteRegular(ctx context.Context, executionID, userID, note string) (*ExecutionResponse, error) {
	if err := validateRequest(executionID, userID, note); err != nil {
		return nil, err
	}

	c := NewRegularContext(executionID, userID, note)
	if err := s.run(ctx, s.regular, "execution:"+executionID, c, s.steps.Regular()); err != nil {
		return nil, err
	}

	return toExecutionResponse(c), nil
}

// CompletePinned completes today's instance of a pinned mission for userID
// and schedules the next one.
func (s *Service) CompletePinned(ctx context.Context, instanceID, userID, note string) (*PinnedInstanceResponse, error) {
	if err := validateRequest(instanceID, userID, note); err != nil {
		return nil, err
	}

	c := NewPinnedContext(instanceID, userID, note)
	if err := s.run(ctx, s.pinned, "instance:"+instanceID, c, s.steps.Pinned()); err != nil {
		return nil, err
	}

	return toPinnedInstanceResponse(c), nil
}

func validateRequest(id, userID, note string) error {
	if userID == "" {
		return apperrors.InvalidInput("user id is required")
	}
	if id == "" {
		return apperrors.InvalidInput("id is required")
	}
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return apperrors.InvalidInput(fmt.Sprintf("note must be at most %d characters", MaxNoteLength))
	}
	return nil
}

func (s *Service) run(ctx context.Context, engine *saga.Engine[*Context], lockKey string, c *Context, steps []saga.Step[*Context]) error {
	if s.locker != nil {
		token, err := s.locker.Acquire(ctx, lockKey)
		switch {
		case errors.Is(err, apperrors.ErrConflict):
			return err
		case err != nil:
			// Without the lock the guarded completion update rejects a second completion.
			s.logger.WarnContext(ctx, "completion lock unavailable, continuing without it",
				slog.String("key", lockKey),
				slog.String("error", err.Error()),
			)
		default:
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
					s.logger.WarnContext(ctx, "failed to release completion lock",
						slog.String("key", lockKey),
						slog.String("error", err.Error()),
					)
				}
			}()
		}
	}

	res := engine.Run(ctx, c, steps)
	if !res.Success {
		s.logger.WarnContext(ctx, "mission completion failed",
			slog.String("saga", engine.Name()),
			slog.String("reference_id", c.ReferenceID()),
			slog.String("failed_step", res.FailedStep),
			slog.String("reason", res.Message),
		)
		return apperrors.Unprocessable(ErrCodeCompletionFailed, res.Message)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishMissionCompleted(ctx, toMissionCompletion(c)); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish mission.completed event",
				slog.String("reference_id", c.ReferenceID()),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "mission completed",
		slog.String("saga", engine.Name()),
		slog.String("reference_id", c.ReferenceID()),
		slog.String("user_id", c.UserID),
		slog.Int("exp_earned", c.ExpEarned),
		slog.Any("optional_failures", res.OptionalFailures),
	)
	return nil
}

// The response mappers only read fields already on the context.

func toExecutionResponse(c *Context) *ExecutionResponse {
	resp := &ExecutionResponse{
		ExecutionID:    c.ExecutionID,
		MissionTitle:   c.MissionTitle,
		ExecutionDate:  c.InstanceDate,
		ExpEarned:      c.ExpEarned,
		LeveledUp:      c.LeveledUp,
		GuildExpEarned: c.GuildExpEarned,
		FeedEntryID:    c.FeedEntryID,
	}
	if c.Execution != nil {
		resp.Status = c.Execution.Status
		resp.CompletedAt = c.Execution.CompletedAt
		resp.Note = c.Execution.Note
	}
	if c.Mission != nil {
		resp.MissionID = c.Mission.ID
	}
	if c.Participant != nil {
		resp.ParticipantID = c.Participant.ID
		resp.Progress = c.Participant.Progress
	}
	if c.UserExperience != nil {
		resp.TotalExp = c.UserExperience.TotalExp
		resp.Level = c.UserExperience.Level
	}
	return resp
}

func toPinnedInstanceResponse(c *Context) *PinnedInstanceResponse {
	resp := &PinnedInstanceResponse{
		InstanceID:   c.InstanceID,
		MissionTitle: c.MissionTitle,
		InstanceDate: c.InstanceDate,
		ExpEarned:    c.ExpEarned,
		LeveledUp:    c.LeveledUp,
		FeedEntryID:  c.FeedEntryID,
	}
	if c.Instance != nil {
		resp.Status = c.Instance.Status
		resp.CompletedAt = c.Instance.CompletedAt
		resp.Note = c.Instance.Note
	}
	if c.Mission != nil {
		resp.MissionID = c.Mission.ID
	}
	if c.UserExperience != nil {
		resp.TotalExp = c.UserExperience.TotalExp
		resp.Level = c.UserExperience.Level
	}
	if c.NextInstance != nil {
		resp.NextInstanceID = c.NextInstance.ID
		date := c.NextInstance.InstanceDate
		resp.NextInstanceDate = &date
	}
	return resp
}

func toMissionCompletion(c *Context) *domain.MissionCompletion {
	mc := &domain.MissionCompletion{
		UserID:         c.UserID,
		MissionTitle:   c.MissionTitle,
		ReferenceID:    c.ReferenceID(),
		Pinned:         c.IsPinned(),
		ExpEarned:      c.ExpEarned,
		GuildExpEarned: c.GuildExpEarned,
		LeveledUp:      c.LeveledUp,
		CompletedAt:    c.CompletedAt,
	}
	if c.Mission != nil {
		mc.MissionID = c.Mission.ID
	}
	if c.Participant != nil {
		mc.ParticipantID = c.Participant.ID
	}
	if c.IsGuildMission() {
		mc.GuildID = *c.Mission.GuildID
	}
	if c.UserExperience != nil {
		mc.TotalExp = c.UserExperience.TotalExp
		mc.Level = c.UserExperience.Level
	}
	return mc
}
