package completion

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/LevelUp/services/mission/internal/repository"
	"github.com/utafrali/LevelUp/services/mission/internal/saga"
)

// RetryPolicy configures step retries. Store-backed steps share one policy,
// the feed step has its own since it calls a remote service. Experience
// grants are plain additions and never retried.
type RetryPolicy struct {
	StepRetries int
	StepDelay   time.Duration
	FeedRetries int
	FeedDelay   time.Duration
}

// Deps holds the collaborators the concrete steps need.
type Deps struct {
	Missions     repository.MissionRepository
	Participants repository.ParticipantRepository
	Executions   repository.ExecutionRepository
	Instances    repository.DailyInstanceRepository
	Experience   repository.ExperienceRepository
	Stats        repository.UserStatsRepository
	Feed         FeedPublisher
	Logger       *slog.Logger

	// Now and NewID default to time.Now and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// Steps holds one implementation per completion step. Fields are exported so
// tests can substitute individual steps.
type Steps struct {
	LoadMissionData           saga.Step[*Context]
	LoadPinnedMissionData     saga.Step[*Context]
	CompleteExecution         saga.Step[*Context]
	CompletePinnedInstance    saga.Step[*Context]
	GrantUserExperience       saga.Step[*Context]
	UpdateParticipantProgress saga.Step[*Context]
	GrantGuildExperience      saga.Step[*Context]
	UpdateUserStats           saga.Step[*Context]
	CreateFeedFromMission     saga.Step[*Context]
	CreateNextPinnedInstance  saga.Step[*Context]
}

// NewSteps builds the concrete steps.
func NewSteps(d Deps, p RetryPolicy) Steps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.NewID == nil {
		d.NewID = func() string { return uuid.New().String() }
	}
	mandatory := func(name string) saga.Base[*Context] {
		return saga.Base[*Context]{StepName: name, Retries: p.StepRetries, Delay: p.StepDelay}
	}

	return Steps{
		LoadMissionData: &LoadMissionData{
			Base:         mandatory(StepLoadMissionData),
			executions:   d.Executions,
			participants: d.Participants,
			missions:     d.Missions,
			logger:       d.Logger,
		},
		LoadPinnedMissionData: &LoadPinnedMissionData{
			Base:         mandatory(StepLoadPinnedMissionData),
			instances:    d.Instances,
			participants: d.Participants,
			missions:     d.Missions,
			logger:       d.Logger,
		},
		CompleteExecution: &CompleteExecution{
			Base:       mandatory(StepCompleteExecution),
			executions: d.Executions,
			now:        d.Now,
			logger:     d.Logger,
		},
		CompletePinnedInstance: &CompletePinnedInstance{
			Base:      mandatory(StepCompletePinnedInstance),
			instances: d.Instances,
			now:       d.Now,
			logger:    d.Logger,
		},
		GrantUserExperience: &GrantUserExperience{
			Base:       saga.Base[*Context]{StepName: StepGrantUserExperience},
			experience: d.Experience,
			logger:     d.Logger,
		},
		UpdateParticipantProgress: &UpdateParticipantProgress{
			Base:         mandatory(StepUpdateParticipantProgress),
			executions:   d.Executions,
			participants: d.Participants,
			logger:       d.Logger,
		},
		GrantGuildExperience: &GrantGuildExperience{
			Base:       saga.Base[*Context]{StepName: StepGrantGuildExperience},
			experience: d.Experience,
			logger:     d.Logger,
		},
		UpdateUserStats: &UpdateUserStats{
			Base: saga.Base[*Context]{
				StepName: StepUpdateUserStats,
				Optional: true,
				Retries:  p.StepRetries,
				Delay:    p.StepDelay,
			},
			stats:  d.Stats,
			now:    d.Now,
			logger: d.Logger,
		},
		CreateFeedFromMission: &CreateFeedFromMission{
			Base: saga.Base[*Context]{
				StepName: StepCreateFeedFromMission,
				Optional: true,
				Retries:  p.FeedRetries,
				Delay:    p.FeedDelay,
			},
			feed: d.Feed,
			now:  d.Now,
		},
		CreateNextPinnedInstance: &CreateNextPinnedInstance{
			Base:      mandatory(StepCreateNextPinnedInstance),
			instances: d.Instances,
			now:       d.Now,
			newID:     d.NewID,
			logger:    d.Logger,
		},
	}
}

// Regular returns the sequence for completing a regular execution.
func (s Steps) Regular() []saga.Step[*Context] {
	return []saga.Step[*Context]{
		s.LoadMissionData,
		s.CompleteExecution,
		s.GrantUserExperience,
		s.UpdateParticipantProgress,
		s.GrantGuildExperience,
		s.UpdateUserStats,
		s.CreateFeedFromMission,
	}
}

// Pinned returns the sequence for completing a pinned daily instance.
// Rolling over to the next day comes last so it only happens once today's
// instance is done.
func (s Steps) Pinned() []saga.Step[*Context] {
	return []saga.Step[*Context]{
		s.LoadPinnedMissionData,
		s.CompletePinnedInstance,
		s.GrantUserExperience,
		s.UpdateUserStats,
		s.CreateFeedFromMission,
		s.CreateNextPinnedInstance,
	}
}
