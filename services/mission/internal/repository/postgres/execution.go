package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/LevelUp/pkg/database"
	apperrors "github.com/utafrali/LevelUp/pkg/errors"
	"github.com/utafrali/LevelUp/services/mission/internal/domain"
)

// ExecutionRepository implements repository.ExecutionRepository using PostgreSQL.
type ExecutionRepository struct {
	pool database.DBTX
}

// NewExecutionRepository creates a new PostgreSQL-backed execution repository.
func NewExecutionRepository(pool database.DBTX) *ExecutionRepository {
	return &ExecutionRepository{pool: pool}
}

// GetByID retrieves an execution by its unique identifier.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (_ *domain.Execution, err error) {
	query := `
		SELECT id, participant_id, mission_id, user_id, execution_date, status,
		       started_at, completed_at, exp_earned, note, created_at, updated_at
		FROM mission_executions
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetExecution", query)
	defer func() { end(err) }()

	var e domain.Execution
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.ParticipantID,
		&e.MissionID,
		&e.UserID,
		&e.ExecutionDate,
		&e.Status,
		&e.StartedAt,
		&e.CompletedAt,
		&e.ExpEarned,
		&e.Note,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get execution by id: %w", err)
	}

	return &e, nil
}

// MarkCompleted writes the completion only if the row is still open, so two
// concurrent completions of one execution cannot both succeed.
func (r *ExecutionRepository) MarkCompleted(ctx context.Context, e *domain.Execution) (err error) {
	query := `
		UPDATE mission_executions
		SET status = $2, completed_at = $3, exp_earned = $4, note = $5, updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'IN_PROGRESS')`

	ctx, end := database.TraceQuery(ctx, "MarkExecutionCompleted", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, e.ID, e.Status, e.CompletedAt, e.ExpEarned, e.Note)
	if err != nil {
		return fmt.Errorf("mark execution completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}

	return nil
}

// UpdateCompletion persists status, completed_at, exp_earned and note.
func (r *ExecutionRepository) UpdateCompletion(ctx context.Context, e *domain.Execution) (err error) {
	query := `
		UPDATE mission_executions
		SET status = $2, completed_at = $3, exp_earned = $4, note = $5, updated_at = NOW()
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateExecutionCompletion", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, e.ID, e.Status, e.CompletedAt, e.ExpEarned, e.Note)
	if err != nil {
		return fmt.Errorf("update execution completion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// CountByParticipant returns completed and total execution counts for a participant.
func (r *ExecutionRepository) CountByParticipant(ctx context.Context, participantID string) (completed, total int, err error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE status = 'COMPLETED'), COUNT(*)
		FROM mission_executions
		WHERE participant_id = $1`

	ctx, end := database.TraceQuery(ctx, "CountExecutions", query)
	defer func() { end(err) }()

	if err = r.pool.QueryRow(ctx, query, participantID).Scan(&completed, &total); err != nil {
		return 0, 0, fmt.Errorf("count executions by participant: %w", err)
	}

	return completed, total, nil
}

// DailyInstanceRepository implements repository.DailyInstanceRepository using PostgreSQL.
type DailyInstanceRepository struct {
	pool database.DBTX
}

// NewDailyInstanceRepository creates a new PostgreSQL-backed daily instance repository.
func NewDailyInstanceRepository(pool database.DBTX) *DailyInstanceRepository {
	return &DailyInstanceRepository{pool: pool}
}

// GetByID retrieves a daily instance by its unique identifier.
func (r *DailyInstanceRepository) GetByID(ctx context.Context, id string) (_ *domain.DailyInstance, err error) {
	query := `
		SELECT id, participant_id, mission_id, user_id, mission_title, instance_date, status,
		       completed_at, exp_earned, note, created_at, updated_at
		FROM daily_mission_instances
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetDailyInstance", query)
	defer func() { end(err) }()

	var d domain.DailyInstance
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.ParticipantID,
		&d.MissionID,
		&d.UserID,
		&d.MissionTitle,
		&d.InstanceDate,
		&d.Status,
		&d.CompletedAt,
		&d.ExpEarned,
		&d.Note,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get daily instance by id: %w", err)
	}

	return &d, nil
}

// MarkCompleted writes the completion only if the instance is still open.
func (r *DailyInstanceRepository) MarkCompleted(ctx context.Context, d *domain.DailyInstance) (err error) {
	query := `
		UPDATE daily_mission_instances
		SET status = $2, completed_at = $3, exp_earned = $4, note = $5, updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'IN_PROGRESS')`

	ctx, end := database.TraceQuery(ctx, "MarkDailyInstanceCompleted", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, d.ID, d.Status, d.CompletedAt, d.ExpEarned, d.Note)
	if err != nil {
		return fmt.Errorf("mark daily instance completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}

	return nil
}

// UpdateCompletion persists status, completed_at, exp_earned and note.
func (r *DailyInstanceRepository) UpdateCompletion(ctx context.Context, d *domain.DailyInstance) (err error) {
	query := `
		UPDATE daily_mission_instances
		SET status = $2, completed_at = $3, exp_earned = $4, note = $5, updated_at = NOW()
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateDailyInstanceCompletion", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, d.ID, d.Status, d.CompletedAt, d.ExpEarned, d.Note)
	if err != nil {
		return fmt.Errorf("update daily instance completion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Create inserts a new daily instance.
func (r *DailyInstanceRepository) Create(ctx context.Context, d *domain.DailyInstance) (err error) {
	query := `
		INSERT INTO daily_mission_instances
			(id, participant_id, mission_id, user_id, mission_title, instance_date, status, exp_earned, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	ctx, end := database.TraceQuery(ctx, "CreateDailyInstance", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		d.ID,
		d.ParticipantID,
		d.MissionID,
		d.UserID,
		d.MissionTitle,
		d.InstanceDate,
		d.Status,
		d.ExpEarned,
		d.Note,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("create daily instance: %w", err)
	}

	return nil
}

// Delete removes a daily instance. Deleting a missing instance is not an error.
func (r *DailyInstanceRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM daily_mission_instances WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteDailyInstance", query)
	defer func() { end(err) }()

	if _, err = r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete daily instance: %w", err)
	}

	return nil
}
