package domain

import (
	"time"
)

// Mission type constants.
const (
	MissionTypePersonal = "PERSONAL"
	MissionTypeGuild    = "GUILD"
)

// Mission status constants.
const (
	MissionStatusOpen      = "OPEN"
	MissionStatusActive    = "IN_PROGRESS"
	MissionStatusCompleted = "COMPLETED"
	MissionStatusCancelled = "CANCELLED"
)

// Participant status constants.
const (
	ParticipantStatusActive    = "ACTIVE"
	ParticipantStatusCompleted = "COMPLETED"
	ParticipantStatusWithdrawn = "WITHDRAWN"
)

// Mission is a habit a user (or a guild) commits to. Pinned missions recur
// daily and are tracked through DailyInstance records instead of executions.
type Mission struct {
	ID                    string    `json:"id"`
	Title                 string    `json:"title"`
	Description           string    `json:"description,omitempty"`
	Type                  string    `json:"type"`
	Status                string    `json:"status"`
	CreatorID             string    `json:"creator_id"`
	GuildID               *string   `json:"guild_id,omitempty"`
	ExpPerCompletion      int       `json:"exp_per_completion"`
	GuildExpPerCompletion int       `json:"guild_exp_per_completion"`
	IsPinned              bool      `json:"is_pinned"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// IsGuildMission reports whether completions also reward the owning guild.
func (m *Mission) IsGuildMission() bool {
	return m.Type == MissionTypeGuild && m.GuildID != nil && *m.GuildID != ""
}

// GuildReward returns the guild experience granted per completion, falling
// back to the personal reward when no guild-specific value is configured.
func (m *Mission) GuildReward() int {
	if m.GuildExpPerCompletion > 0 {
		return m.GuildExpPerCompletion
	}
	return m.ExpPerCompletion
}

// Participant links a user to a mission and tracks overall progress.
type Participant struct {
	ID             string    `json:"id"`
	MissionID      string    `json:"mission_id"`
	UserID         string    `json:"user_id"`
	Status         string    `json:"status"`
	Progress       int       `json:"progress"`
	CompletedCount int       `json:"completed_count"`
	JoinedAt       time.Time `json:"joined_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProgressSnapshot captures the mutable participant fields so they can be restored.
type ProgressSnapshot struct {
	Status         string
	Progress       int
	CompletedCount int
}

// Snapshot returns the current progress fields.
func (p *Participant) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{Status: p.Status, Progress: p.Progress, CompletedCount: p.CompletedCount}
}

// Restore resets progress fields to a previously taken snapshot.
func (p *Participant) Restore(s ProgressSnapshot) {
	p.Status = s.Status
	p.Progress = s.Progress
	p.CompletedCount = s.CompletedCount
}

// ApplyProgress sets the completion count and derives the percentage from the
// total number of scheduled executions. Reaching 100% completes the participant.
func (p *Participant) ApplyProgress(completed, total int) {
	p.CompletedCount = completed
	if total <= 0 {
		p.Progress = 0
		return
	}
	progress := completed * 100 / total
	if progress > 100 {
		progress = 100
	}
	p.Progress = progress
	if progress == 100 {
		p.Status = ParticipantStatusCompleted
	}
}
