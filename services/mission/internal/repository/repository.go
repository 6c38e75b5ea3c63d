package repository

import (
	"context"

	"github.com/utafrali/LevelUp/services/mission/internal/domain"
)

// MissionRepository defines read access to missions.
type MissionRepository interface {
	// GetByID retrieves a mission by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Mission, error)
}

// ParticipantRepository defines persistence operations for mission participants.
type ParticipantRepository interface {
	// GetByID retrieves a participant by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Participant, error)

	// UpdateProgress persists status, progress and completed count.
	UpdateProgress(ctx context.Context, p *domain.Participant) error
}

// ExecutionRepository defines persistence operations for regular mission executions.
type ExecutionRepository interface {
	// GetByID retrieves an execution by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Execution, error)

	// MarkCompleted persists a completion only while the stored execution is
	// still PENDING or IN_PROGRESS. It returns apperrors.ErrConflict otherwise.
	MarkCompleted(ctx context.Context, e *domain.Execution) error

	// UpdateCompletion persists status, completed_at, exp_earned and note
	// unconditionally. Used to restore a previous state.
	UpdateCompletion(ctx context.Context, e *domain.Execution) error

	// CountByParticipant returns how many executions of a participant are
	// completed and how many exist in total.
	CountByParticipant(ctx context.Context, participantID string) (completed, total int, err error)
}

// DailyInstanceRepository defines persistence operations for pinned mission instances.
type DailyInstanceRepository interface {
	// GetByID retrieves a daily instance by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.DailyInstance, error)

	// MarkCompleted persists a completion only while the stored instance is
	// still open. It returns apperrors.ErrConflict otherwise.
	MarkCompleted(ctx context.Context, d *domain.DailyInstance) error

	// UpdateCompletion persists status, completed_at, exp_earned and note
	// unconditionally. Used to restore a previous state.
	UpdateCompletion(ctx context.Context, d *domain.DailyInstance) error

	// Create inserts a new instance. It returns apperrors.ErrConflict when an
	// instance already exists for the participant and date.
	Create(ctx context.Context, d *domain.DailyInstance) error

	// Delete removes an instance.
	Delete(ctx context.Context, id string) error
}

// ExperienceRepository defines atomic experience adjustments.
type ExperienceRepository interface {
	// AddUserExp adds delta (possibly negative) to the user's total and returns the result.
	AddUserExp(ctx context.Context, userID string, delta int) (*domain.Experience, error)

	// AddGuildExp adds delta (possibly negative) to the guild's total and returns the result.
	AddGuildExp(ctx context.Context, guildID string, delta int) (*domain.Experience, error)
}

// UserStatsRepository defines persistence operations for aggregate user statistics.
type UserStatsRepository interface {
	// Get returns the stats of a user or apperrors.ErrNotFound.
	Get(ctx context.Context, userID string) (*domain.UserStats, error)

	// Upsert creates or replaces the stats row of a user.
	Upsert(ctx context.Context, s *domain.UserStats) error

	// Delete removes the stats row of a user.
	Delete(ctx context.Context, userID string) error
}
