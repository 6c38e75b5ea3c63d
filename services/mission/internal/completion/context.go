// Package completion finalizes mission executions and pinned daily instances
// through the saga engine.
package completion

import (
	"time"

	"github.com/utafrali/LevelUp/services/mission/internal/domain"
)

// Context is the state shared by the steps of one completion run. It is
// created per run and never shared between runs.
type Context struct {
	UserID string
	Note   string

	// Exactly one of ExecutionID and InstanceID is set.
	ExecutionID string
	InstanceID  string

	// Populated by the load steps.
	Mission     *domain.Mission
	Participant *domain.Participant
	Execution   *domain.Execution
	Instance    *domain.DailyInstance

	MissionTitle string
	InstanceDate time.Time
	CompletedAt  time.Time

	// ExpEarned is the reward decided when the execution or instance is completed.
	ExpEarned       int
	UserExperience  *domain.Experience
	LeveledUp       bool
	GuildExpEarned  int
	GuildExperience *domain.Experience
	Stats           *domain.UserStats
	FeedEntryID     string
	NextInstance    *domain.DailyInstance

	completionSnapshot *domain.CompletionSnapshot
	progressSnapshot   *domain.ProgressSnapshot
	statsBefore        *domain.UserStats
	statsSaved         bool
	userExpGranted     int
	guildExpGranted    int
	nextInstanceOwned  bool
}

// NewRegularContext creates the context for completing a regular execution.
func NewRegularContext(executionID, userID, note string) *Context {
	return &Context{ExecutionID: executionID, UserID: userID, Note: note}
}

// NewPinnedContext creates the context for completing a pinned daily instance.
func NewPinnedContext(instanceID, userID, note string) *Context {
	return &Context{InstanceID: instanceID, UserID: userID, Note: note}
}

// IsPinned reports whether this run completes a pinned daily instance.
func (c *Context) IsPinned() bool {
	return c.Instance != nil || c.InstanceID != ""
}

// IsGuildMission reports whether the loaded mission rewards a guild. It is
// false until the mission has been loaded.
func (c *Context) IsGuildMission() bool {
	return c.Mission != nil && c.Mission.IsGuildMission()
}

// ReferenceID returns the id of the execution or instance being completed.
func (c *Context) ReferenceID() string {
	if c.IsPinned() {
		return c.InstanceID
	}
	return c.ExecutionID
}

func (c *Context) loaded() bool {
	return c.Mission != nil && c.Participant != nil
}
