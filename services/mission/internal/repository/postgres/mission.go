package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/LevelUp/pkg/database"
	apperrors "github.com/utafrali/LevelUp/pkg/errors"
	"github.com/utafrali/LevelUp/services/mission/internal/domain"
)

// MissionRepository implements repository.MissionRepository and
// repository.ParticipantRepository using PostgreSQL.
type MissionRepository struct {
	pool database.DBTX
}

// NewMissionRepository creates a new PostgreSQL-backed mission repository.
func NewMissionRepository(pool database.DBTX) *MissionRepository {
	return &MissionRepository{pool: pool}
}

// GetByID retrieves a mission by its unique identifier.
func (r *MissionRepository) GetByID(ctx context.Context, id string) (_ *domain.Mission, err error) {
	query := `
		SELECT id, title, description, type, status, creator_id, guild_id,
		       exp_per_completion, guild_exp_per_completion, is_pinned, created_at, updated_at
		FROM missions
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetMission", query)
	defer func() { end(err) }()

	var m domain.Mission
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.Title,
		&m.Description,
		&m.Type,
		&m.Status,
		&m.CreatorID,
		&m.GuildID,
		&m.ExpPerCompletion,
		&m.GuildExpPerCompletion,
		&m.IsPinned,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get mission by id: %w", err)
	}

	return &m, nil
}

// ParticipantRepository implements repository.ParticipantRepository.
type ParticipantRepository struct {
	pool database.DBTX
}

// NewParticipantRepository creates a new PostgreSQL-backed participant repository.
func NewParticipantRepository(pool database.DBTX) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// GetByID retrieves a participant by its unique identifier.
func (r *ParticipantRepository) GetByID(ctx context.Context, id string) (_ *domain.Participant, err error) {
	query := `
		SELECT id, mission_id, user_id, status, progress, completed_count, joined_at, updated_at
		FROM mission_participants
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetParticipant", query)
	defer func() { end(err) }()

	var p domain.Participant
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.MissionID,
		&p.UserID,
		&p.Status,
		&p.Progress,
		&p.CompletedCount,
		&p.JoinedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get participant by id: %w", err)
	}

	return &p, nil
}

// UpdateProgress persists status, progress and completed count.
func (r *ParticipantRepository) UpdateProgress(ctx context.Context, p *domain.Participant) (err error) {
	query := `
		UPDATE mission_participants
		SET status = $2, progress = $3, completed_count = $4, updated_at = NOW()
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateParticipantProgress", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, p.ID, p.Status, p.Progress, p.CompletedCount)
	if err != nil {
		return fmt.Errorf("update participant progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
