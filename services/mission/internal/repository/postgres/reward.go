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

// ExperienceRepository implements repository.ExperienceRepository using PostgreSQL.
type ExperienceRepository struct {
	pool database.DBTX
}

// NewExperienceRepository creates a new PostgreSQL-backed experience repository.
func NewExperienceRepository(pool database.DBTX) *ExperienceRepository {
	return &ExperienceRepository{pool: pool}
}

// AddUserExp adds delta to the user's experience, creating the row if needed.
// Totals never drop below zero.
func (r *ExperienceRepository) AddUserExp(ctx context.Context, userID string, delta int) (*domain.Experience, error) {
	query := `
		INSERT INTO user_experience (user_id, total_exp, updated_at)
		VALUES ($1, GREATEST($2, 0), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			total_exp = GREATEST(user_experience.total_exp + $2, 0),
			updated_at = NOW()
		RETURNING user_id, total_exp, updated_at`

	return r.add(ctx, "AddUserExp", query, userID, delta)
}

// AddGuildExp adds delta to the guild's experience, creating the row if needed.
func (r *ExperienceRepository) AddGuildExp(ctx context.Context, guildID string, delta int) (*domain.Experience, error) {
	query := `
		INSERT INTO guild_experience (guild_id, total_exp, updated_at)
		VALUES ($1, GREATEST($2, 0), NOW())
		ON CONFLICT (guild_id) DO UPDATE SET
			total_exp = GREATEST(guild_experience.total_exp + $2, 0),
			updated_at = NOW()
		RETURNING guild_id, total_exp, updated_at`

	return r.add(ctx, "AddGuildExp", query, guildID, delta)
}

func (r *ExperienceRepository) add(ctx context.Context, op, query, ownerID string, delta int) (_ *domain.Experience, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var exp domain.Experience
	if err = r.pool.QueryRow(ctx, query, ownerID, delta).Scan(&exp.OwnerID, &exp.TotalExp, &exp.UpdatedAt); err != nil {
		return nil, fmt.Errorf("add experience: %w", err)
	}
	exp.Level = domain.LevelFor(exp.TotalExp)

	return &exp, nil
}

// UserStatsRepository implements repository.UserStatsRepository using PostgreSQL.
type UserStatsRepository struct {
	pool database.DBTX
}

// NewUserStatsRepository creates a new PostgreSQL-backed user stats repository.
func NewUserStatsRepository(pool database.DBTX) *UserStatsRepository {
	return &UserStatsRepository{pool: pool}
}

// Get returns the stats of a user.
func (r *UserStatsRepository) Get(ctx context.Context, userID string) (_ *domain.UserStats, err error) {
	query := `
		SELECT user_id, total_completions, pinned_completions, guild_completions,
		       current_streak, longest_streak, last_completion_date, updated_at
		FROM user_stats
		WHERE user_id = $1`

	ctx, end := database.TraceQuery(ctx, "GetUserStats", query)
	defer func() { end(err) }()

	var s domain.UserStats
	err = r.pool.QueryRow(ctx, query, userID).Scan(
		&s.UserID,
		&s.TotalCompletions,
		&s.PinnedCompletions,
		&s.GuildCompletions,
		&s.CurrentStreak,
		&s.LongestStreak,
		&s.LastCompletionDate,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get user stats: %w", err)
	}

	return &s, nil
}

// Upsert creates or replaces the stats row of a user.
func (r *UserStatsRepository) Upsert(ctx context.Context, s *domain.UserStats) (err error) {
	query := `
		INSERT INTO user_stats (user_id, total_completions, pinned_completions, guild_completions,
		                        current_streak, longest_streak, last_completion_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			total_completions = EXCLUDED.total_completions,
			pinned_completions = EXCLUDED.pinned_completions,
			guild_completions = EXCLUDED.guild_completions,
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_completion_date = EXCLUDED.last_completion_date,
			updated_at = EXCLUDED.updated_at`

	ctx, end := database.TraceQuery(ctx, "UpsertUserStats", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		s.UserID,
		s.TotalCompletions,
		s.PinnedCompletions,
		s.GuildCompletions,
		s.CurrentStreak,
		s.LongestStreak,
		s.LastCompletionDate,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user stats: %w", err)
	}

	return nil
}

// Delete removes the stats row of a user.
func (r *UserStatsRepository) Delete(ctx context.Context, userID string) (err error) {
	query := `DELETE FROM user_stats WHERE user_id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteUserStats", query)
	defer func() { end(err) }()

	if _, err = r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("delete user stats: %w", err)
	}

	return nil
}
