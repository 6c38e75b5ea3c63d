package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/utafrali/LevelUp/pkg/errors"
	"github.com/utafrali/LevelUp/services/mission/internal/domain"
	"github.com/utafrali/LevelUp/services/mission/internal/repository"
	"github.com/utafrali/LevelUp/services/mission/internal/saga"
)

// Step names.
const (
	StepLoadMissionData           = "LoadMissionData"
	StepLoadPinnedMissionData     = "LoadPinnedMissionData"
	StepCompleteExecution         = "CompleteExecution"
	StepCompletePinnedInstance    = "CompletePinnedInstance"
	StepGrantUserExperience       = "GrantUserExperience"
	StepGrantGuildExperience      = "GrantGuildExperience"
	StepUpdateParticipantProgress = "UpdateParticipantProgress"
	StepUpdateUserStats           = "UpdateUserStats"
	StepCreateFeedFromMission     = "CreateFeedFromMission"
	StepCreateNextPinnedInstance  = "CreateNextPinnedInstance"
)

// FeedPublisher creates and removes activity feed entries.
type FeedPublisher interface {
	CreateEntry(ctx context.Context, entry domain.FeedEntry) (string, error)
	DeleteEntry(ctx context.Context, id string) error
}

// failure logs err and returns a failed result with a message safe to show
// to the caller.
func failure(ctx context.Context, log *slog.Logger, step, message string, err error) saga.StepResult {
	log.WarnContext(ctx, "completion step error",
		slog.String("step", step),
		slog.String("error", err.Error()),
	)
	return saga.Failure(message)
}

var errNotLoaded = saga.Failure("mission data has not been loaded")

// LoadMissionData loads the execution, its participant and mission.
type LoadMissionData struct {
	saga.Base[*Context]
	executions   repository.ExecutionRepository
	participants repository.ParticipantRepository
	missions     repository.MissionRepository
	logger       *slog.Logger
}

// Execute implements saga.Step.
func (s *LoadMissionData) Execute(ctx context.Context, c *Context) saga.StepResult {
	exec, err := s.executions.GetByID(ctx, c.ExecutionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return saga.Failuref("execution %s not found", c.ExecutionID)
		}
		return failure(ctx, s.logger, s.Name(), "could not load execution", err)
	}
	if exec.UserID != c.UserID {
		return saga.Failure("execution does not belong to the user")
	}

	participant, mission, res := loadParticipantAndMission(ctx, s.logger, s.Name(), s.participants, s.missions, exec.ParticipantID, exec.MissionID)
	if !res.OK() {
		return res
	}

	c.Execution = exec
	c.Participant = participant
	c.Mission = mission
	c.MissionTitle = mission.Title
	c.InstanceDate = exec.ExecutionDate
	return saga.Success("mission data loaded")
}

// LoadPinnedMissionData loads the daily instance, its participant and mission.
type LoadPinnedMissionData struct {
	saga.Base[*Context]
	instances    repository.DailyInstanceRepository
	participants repository.ParticipantRepository
	missions     repository.MissionRepository
	logger       *slog.Logger
}

// Execute implements saga.Step.
func (s *LoadPinnedMissionData) Execute(ctx context.Context, c *Context) saga.StepResult {
	inst, err := s.instances.GetByID(ctx, c.InstanceID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return saga.Failuref("daily instance %s not found", c.InstanceID)
		}
		return failure(ctx, s.logger, s.Name(), "could not load daily instance", err)
	}
	if inst.UserID != c.UserID {
		return saga.Failure("daily instance does not belong to the user")
	}

	participant, mission, res := loadParticipantAndMission(ctx, s.logger, s.Name(), s.participants, s.missions, inst.ParticipantID, inst.MissionID)
	if !res.OK() {
		return res
	}
	if !mission.IsPinned {
		return saga.Failure("mission is not pinned")
	}

	c.Instance = inst
	c.Participant = participant
	c.Mission = mission
	c.MissionTitle = inst.MissionTitle
	if c.MissionTitle == "" {
		c.MissionTitle = mission.Title
	}
	c.InstanceDate = inst.InstanceDate
	return saga.Success("pinned mission data loaded")
}

func loadParticipantAndMission(
	ctx context.Context,
	log *slog.Logger,
	step string,
	participants repository.ParticipantRepository,
	missions repository.MissionRepository,
	participantID, missionID string,
) (*domain.Participant, *domain.Mission, saga.StepResult) {
	participant, err := participants.GetByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, saga.Failure("mission participant not found")
		}
		return nil, nil, failure(ctx, log, step, "could not load mission participant", err)
	}
	mission, err := missions.GetByID(ctx, missionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, saga.Failure("mission not found")
		}
		return nil, nil, failure(ctx, log, step, "could not load mission", err)
	}
	return participant, mission, saga.Success("")
}

// CompleteExecution marks the execution completed and decides the reward.
type CompleteExecution struct {
	saga.Base[*Context]
	executions repository.ExecutionRepository
	now        func() time.Time
	logger     *slog.Logger
}

// Execute implements saga.Step.
func (s *CompleteExecution) Execute(ctx context.Context, c *Context) saga.StepResult {
	if c.Execution == nil || !c.loaded() {
		return errNotLoaded
	}
	snap := c.Execution.Snapshot()
	now := s.now().UTC()
	exp := c.Mission.ExpPerCompletion

	if err := c.Execution.Complete(now, c.Note, exp); err != nil {
		return saga.Failure("execution is not in a completable state")
	}
	if err := s.executions.MarkCompleted(ctx, c.Execution); err != nil {
		c.Execution.Restore(snap)
		if errors.Is(err, apperrors.ErrConflict) {
			return saga.Failure("execution has already been completed")
		}
		return failure(ctx, s.logger, s.Name(), "could not save execution", err)
	}

	c.completionSnapshot = &snap
	c.CompletedAt = now
	c.ExpEarned = exp
	return saga.Success("execution completed")
}

// Compensate restores the execution to its state before completion.
func (s *CompleteExecution) Compensate(ctx context.Context, c *Context) saga.StepResult {
	if c.Execution == nil || c.completionSnapshot == nil {
		return saga.Success("nothing to compensate")
	}
	c.Execution.Restore(*c.completionSnapshot)
	if err := s.executions.UpdateCompletion(ctx, c.Execution); err != nil {
		return saga.Failuref("restore execution %s: %v", c.Execution.ID, err)
	}
	c.completionSnapshot = nil
	return saga.Success("execution restored")
}

// CompletePinnedInstance marks today's pinned instance completed.
type CompletePinnedInstance struct {
	saga.Base[*Context]
	instances repository.DailyInstanceRepository
	now       func() time.Time
	logger    *slog.Logger
}

// Execute implements saga.Step.
func (s *CompletePinnedInstance) Execute(ctx context.Context, c *Context) saga.StepResult {
	if c.Instance == nil || !c.loaded() {
		return errNotLoaded
	}
	snap := c.Instance.Snapshot()
	now := s.now().UTC()
	exp := c.Mission.ExpPerCompletion

	if err := c.Instance.Complete(now, c.Note, exp); err != nil {
		return saga.Failure("daily instance is not in a completable state")
	}
	if err := s.instances.MarkCompleted(ctx, c.Instance); err != nil {
		c.Instance.Restore(snap)
		if errors.Is(err, apperrors.ErrConflict) {
			return saga.Failure("daily instance has already been completed")
		}
		return failure(ctx, s.logger, s.Name(), "could not save daily instance", err)
	}

	c.completionSnapshot = &snap
	c.CompletedAt = now
	c.ExpEarned = exp
	return saga.Success("daily instance completed")
}

// Compensate restores the instance to its state before completion.
func (s *CompletePinnedInstance) Compensate(ctx context.Context, c *Context) saga.StepResult {
	if c.Instance == nil || c.completionSnapshot == nil {
		return saga.Success("nothing to compensate")
	}
	c.Instance.Restore(*c.completionSnapshot)
	if err := s.instances.UpdateCompletion(ctx, c.Instance); err != nil {
		return saga.Failuref("restore daily instance %s: %v", c.Instance.ID, err)
	}
	c.completionSnapshot = nil
	return saga.Success("daily instance restored")
}

// GrantUserExperience adds the earned experience to the user.
type GrantUserExperience struct {
	saga.Base[*Context]
	experience repository.ExperienceRepository
	logger     *slog.Logger
}

// Execute implements saga.Step.
func (s *GrantUserExperience) Execute(ctx context.Context, c *Context) saga.StepResult {
	if !c.loaded() {
		return errNotLoaded
	}
	exp, err := s.experience.AddUserExp(ctx, c.UserID, c.ExpEarned)
	if err != nil {
		return failure(ctx, s.logger, s.Name(), "could not grant experience", err)
	}

	c.userExpGranted = c.ExpEarned
	c.UserExperience = exp
	c.LeveledUp = domain.LevelFor(exp.TotalExp-c.ExpEarned) < exp.Level
	return saga.Successf("granted %d experience", c.ExpEarned)
}

// Compensate takes the granted experience back.
func (s *GrantUserExperience) Compensate(ctx context.Context, c *Context) saga.StepResult {
	if c.userExpGranted == 0 {
		return saga.Success("nothing to compensate")
	}
	if _, err := s.experience.AddUserExp(ctx, c.UserID, -c.userExpGranted); err != nil {
		return saga.Failuref("revoke %d experience from user %s: %v", c.userExpGranted, c.UserID, err)
	}
	c.userExpGranted = 0
	return saga.Success("experience revoked")
}

// GrantGuildExperience rewards the mission's guild. It only runs for guild missions.
type GrantGuildExperience struct {
	saga.Base[*Context]
	experience repository.ExperienceRepository
	logger     *slog.Logger
}

// ShouldInclude implements saga.Step.
func (s *GrantGuildExperience) ShouldInclude(c *Context) bool {
	return c.IsGuildMission()
}

// Execute implements saga.Step.
func (s *GrantGuildExperience) Execute(ctx context.Context, c *Context) saga.StepResult {
	if !c.IsGuildMission() {
		return saga.Failure("mission is not a guild mission")
	}
	amount := c.Mission.GuildReward()
	exp, err := s.experience.AddGuildExp(ctx, *c.Mission.GuildID, amount)
	if err != nil {
		return failure(ctx, s.logger, s.Name(), "could not grant guild experience", err)
	}

	c.guildExpGranted = amount
	c.GuildExpEarned = amount
	c.GuildExperience = exp
	return saga.Successf("granted %d guild experience", amount)
}

// Compensate takes the guild reward back.
func (s *GrantGuildExperience) Compensate(ctx context.Context, c *Context) saga.StepResult {
	if c.guildExpGranted == 0 || !c.IsGuildMission() {
		return saga.Success("nothing to compensate")
	}
	if _, err := s.experience.AddGuildExp(ctx, *c.Mission.GuildID, -c.guildExpGranted); err != nil {
		return saga.Failuref("revoke guild experience: %v", err)
	}
	c.guildExpGranted = 0
	c.GuildExpEarned = 0
	return saga.Success("guild experience revoked")
}

// UpdateParticipantProgress recomputes the participant's progress percentage.
type UpdateParticipantProgress struct {
	saga.Base[*Context]
	executions   repository.ExecutionRepository
	participants repository.ParticipantRepository
	logger       *slog.Logger
}

// Execute implements saga.Step.
func (s *UpdateParticipantProgress) Execute(ctx context.Context, c *Context) saga.StepResult {
	if !c.loaded() {
		return errNotLoaded
	}
	completed, total, err := s.executions.CountByParticipant(ctx, c.Participant.ID)
	if err != nil {
		return failure(ctx, s.logger, s.Name(), "could not count executions", err)
	}

	snap := c.Participant.Snapshot()
	c.Participant.ApplyProgress(completed, total)
	if err := s.participants.UpdateProgress(ctx, c.Participant); err != nil {
		c.Participant.Restore(snap)
		return failure(ctx, s.logger, s.Name(), "could not save participant progress", err)
	}

	c.progressSnapshot = &snap
	return saga.Successf("progress at %d%%", c.Participant.Progress)
}

// Compensate restores the previous progress.
func (s *UpdateParticipantProgress) Compensate(ctx context.Context, c *Context) saga.StepResult {
	if c.progressSnapshot == nil || c.Participant == nil {
		return saga.Success("nothing to compensate")
	}
	c.Participant.Restore(*c.progressSnapshot)
	if err := s.participants.UpdateProgress(ctx, c.Participant); err != nil {
		return saga.Failuref("restore participant progress: %v", err)
	}
	c.progressSnapshot = nil
	return saga.Success("participant progress restored")
}

// UpdateUserStats folds the completion into the user's aggregate stats.
type UpdateUserStats struct {
	saga.Base[*Context]
	stats  repository.UserStatsRepository
	now    func() time.Time
	logger *slog.Logger
}

// Execute implements saga.Step.
func (s *UpdateUserStats) Execute(ctx context.Context, c *Context) saga.StepResult {
	if !c.loaded() {
		return errNotLoaded
	}
	before, err := s.stats.Get(ctx, c.UserID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return failure(ctx, s.logger, s.Name(), "could not load user stats", err)
	}

	updated := &domain.UserStats{UserID: c.UserID}
	if before != nil {
		cp := *before
		updated = &cp
	}
	day := c.CompletedAt
	if day.IsZero() {
		day = s.now()
	}
	updated.Apply(domain.StatsIncrement{Pinned: c.IsPinned(), Guild: c.IsGuildMission(), Date: day}, s.now().UTC())

	if err := s.stats.Upsert(ctx, updated); err != nil {
		return failure(ctx, s.logger, s.Name(), "could not save user stats", err)
	}

	c.statsBefore = before
	c.statsSaved = true
	c.Stats = updated
	return saga.Success("user stats updated")
}

// Compensate restores the previous stats row, or removes it if there was none.
func (s *UpdateUserStats) Compensate(ctx context.Context, c *Context) saga.StepResult {
	if !c.statsSaved {
		return saga.Success("nothing to compensate")
	}
	var err error
	if c.statsBefore == nil {
		err = s.stats.Delete(ctx, c.UserID)
	} else {
		err = s.stats.Upsert(ctx, c.statsBefore)
	}
	if err != nil {
		return saga.Failuref("restore user stats: %v", err)
	}
	c.statsSaved = false
	c.Stats = c.statsBefore
	return saga.Success("user stats restored")
}

// CreateFeedFromMission announces the completion in the activity feed.
type CreateFeedFromMission struct {
	saga.Base[*Context]
	feed FeedPublisher
	now  func() time.Time
}

// Execute implements saga.Step.
func (s *CreateFeedFromMission) Execute(ctx context.Context, c *Context) saga.StepResult {
	if !c.loaded() {
		return errNotLoaded
	}
	entry := domain.FeedEntry{
		UserID:       c.UserID,
		ActivityType: domain.ActivityMissionCompleted,
		ReferenceID:  c.ReferenceID(),
		Title:        fmt.Sprintf("Completed %q", c.MissionTitle),
		Content:      c.Note,
		ExpEarned:    c.ExpEarned,
		CreatedAt:    s.now().UTC(),
	}
	id, err := s.feed.CreateEntry(ctx, entry)
	if err != nil {
		return saga.Failuref("could not create feed entry: %v", err)
	}
	c.FeedEntryID = id
	return saga.Success("feed entry created")
}

// Compensate deletes the feed entry.
func (s *CreateFeedFromMission) Compensate(ctx context.Context, c *Context) saga.StepResult {
	if c.FeedEntryID == "" {
		return saga.Success("nothing to compensate")
	}
	if err := s.feed.DeleteEntry(ctx, c.FeedEntryID); err != nil {
		return saga.Failuref("delete feed entry %s: %v", c.FeedEntryID, err)
	}
	c.FeedEntryID = ""
	return saga.Success("feed entry deleted")
}

// CreateNextPinnedInstance schedules tomorrow's instance of a pinned mission.
type CreateNextPinnedInstance struct {
	saga.Base[*Context]
	instances repository.DailyInstanceRepository
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

// Execute implements saga.Step.
func (s *CreateNextPinnedInstance) Execute(ctx context.Context, c *Context) saga.StepResult {
	if c.Instance == nil {
		return errNotLoaded
	}
	next := c.Instance.NextDay(s.now().UTC())
	next.ID = s.newID()

	err := s.instances.Create(ctx, next)
	switch {
	case errors.Is(err, apperrors.ErrConflict):
		return saga.Success("next instance already scheduled")
	case err != nil:
		return failure(ctx, s.logger, s.Name(), "could not schedule next daily instance", err)
	}

	c.NextInstance = next
	c.nextInstanceOwned = true
	return saga.Success("next instance scheduled")
}

// Compensate removes the instance this run created.
func (s *CreateNextPinnedInstance) Compensate(ctx context.Context, c *Context) saga.StepResult {
	if c.NextInstance == nil || !c.nextInstanceOwned {
		return saga.Success("nothing to compensate")
	}
	if err := s.instances.Delete(ctx, c.NextInstance.ID); err != nil {
		return saga.Failuref("delete daily instance %s: %v", c.NextInstance.ID, err)
	}
	c.NextInstance = nil
	c.nextInstanceOwned = false
	return saga.Success("next instance removed")
}
