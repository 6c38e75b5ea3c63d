package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// ============================================================================
// Mission Tests
// ============================================================================

func TestIsGuildMission(t *testing.T) {
	tests := []struct {
		name    string
		mission Mission
		want    bool
	}{
		{"personal", Mission{Type: MissionTypePersonal}, false},
		{"guild without id", Mission{Type: MissionTypeGuild}, false},
		{"guild with empty id", Mission{Type: MissionTypeGuild, GuildID: strPtr("")}, false},
		{"guild with id", Mission{Type: MissionTypeGuild, GuildID: strPtr("g-1")}, true},
		{"personal with stray guild id", Mission{Type: MissionTypePersonal, GuildID: strPtr("g-1")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mission.IsGuildMission())
		})
	}
}

func TestGuildReward_FallsBackToPersonalReward(t *testing.T) {
	m := Mission{ExpPerCompletion: 20}
	assert.Equal(t, 20, m.GuildReward())

	m.GuildExpPerCompletion = 35
	assert.Equal(t, 35, m.GuildReward())
}

// ============================================================================
// Participant Tests
// ============================================================================

func TestApplyProgress(t *testing.T) {
	p := &Participant{Status: ParticipantStatusActive}

	p.ApplyProgress(3, 10)
	assert.Equal(t, 30, p.Progress)
	assert.Equal(t, 3, p.CompletedCount)
	assert.Equal(t, ParticipantStatusActive, p.Status)

	p.ApplyProgress(10, 10)
	assert.Equal(t, 100, p.Progress)
	assert.Equal(t, ParticipantStatusCompleted, p.Status)
}

func TestApplyProgress_ClampsAndHandlesZeroTotal(t *testing.T) {
	p := &Participant{Status: ParticipantStatusActive}

	p.ApplyProgress(12, 10)
	assert.Equal(t, 100, p.Progress)

	p = &Participant{Status: ParticipantStatusActive}
	p.ApplyProgress(2, 0)
	assert.Equal(t, 0, p.Progress)
	assert.Equal(t, 2, p.CompletedCount)
}

func TestParticipantSnapshotRestore(t *testing.T) {
	p := &Participant{Status: ParticipantStatusActive, Progress: 40, CompletedCount: 4}
	snap := p.Snapshot()

	p.ApplyProgress(10, 10)
	p.Restore(snap)

	assert.Equal(t, ParticipantStatusActive, p.Status)
	assert.Equal(t, 40, p.Progress)
	assert.Equal(t, 4, p.CompletedCount)
}

// ============================================================================
// Execution / DailyInstance Tests
// ============================================================================

func TestExecutionComplete(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	for _, status := range []string{ExecutionStatusPending, ExecutionStatusInProgress} {
		e := &Execution{ID: "e-1", Status: status}
		require.NoError(t, e.Complete(now, "done", 25))
		assert.Equal(t, ExecutionStatusCompleted, e.Status)
		require.NotNil(t, e.CompletedAt)
		assert.Equal(t, now, *e.CompletedAt)
		assert.Equal(t, 25, e.ExpEarned)
		assert.Equal(t, "done", e.Note)
	}
}

func TestExecutionComplete_RejectsFinalStatuses(t *testing.T) {
	for _, status := range []string{ExecutionStatusCompleted, ExecutionStatusMissed} {
		e := &Execution{ID: "e-1", Status: status}
		err := e.Complete(time.Now(), "", 10)
		assert.Error(t, err)
		assert.Equal(t, status, e.Status)
	}
}

func TestExecutionSnapshotRestore(t *testing.T) {
	e := &Execution{ID: "e-1", Status: ExecutionStatusPending}
	snap := e.Snapshot()

	require.NoError(t, e.Complete(time.Now(), "note", 10))
	e.Restore(snap)

	assert.Equal(t, ExecutionStatusPending, e.Status)
	assert.Nil(t, e.CompletedAt)
	assert.Zero(t, e.ExpEarned)
	assert.Empty(t, e.Note)
}

func TestDailyInstanceComplete(t *testing.T) {
	d := &DailyInstance{ID: "d-1", Status: ExecutionStatusPending}
	require.NoError(t, d.Complete(time.Now(), "ok", 15))
	assert.Equal(t, ExecutionStatusCompleted, d.Status)

	assert.Error(t, d.Complete(time.Now(), "again", 15))
}

func TestDailyInstanceNextDay(t *testing.T) {
	now := time.Date(2026, 1, 31, 23, 30, 0, 0, time.UTC)
	d := &DailyInstance{
		ID:            "d-1",
		ParticipantID: "p-1",
		MissionID:     "m-1",
		UserID:        "u-1",
		MissionTitle:  "Read",
		InstanceDate:  time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC),
		Status:        ExecutionStatusCompleted,
	}

	next := d.NextDay(now)

	assert.Empty(t, next.ID)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), next.InstanceDate)
	assert.Equal(t, ExecutionStatusPending, next.Status)
	assert.Equal(t, "p-1", next.ParticipantID)
	assert.Equal(t, "m-1", next.MissionID)
	assert.Equal(t, "u-1", next.UserID)
	assert.Equal(t, "Read", next.MissionTitle)
	assert.Nil(t, next.CompletedAt)
}

// ============================================================================
// Level Tests
// ============================================================================

func TestLevelFor(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
		{449, 3},
		{450, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.total), "total=%d", tt.total)
	}
}

func TestExpForLevel_InverseOfLevelFor(t *testing.T) {
	for level := 1; level <= 20; level++ {
		threshold := ExpForLevel(level)
		assert.Equal(t, level, LevelFor(threshold))
		if threshold > 0 {
			assert.Equal(t, level-1, LevelFor(threshold-1))
		}
	}
}

// ============================================================================
// UserStats Tests
// ============================================================================

func TestUserStatsApply_Streaks(t *testing.T) {
	now := time.Now()
	day1 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := &UserStats{UserID: "u-1"}

	s.Apply(StatsIncrement{Date: day1}, now)
	assert.Equal(t, 1, s.CurrentStreak)

	s.Apply(StatsIncrement{Date: day1.Add(3 * time.Hour), Pinned: true}, now)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 2, s.TotalCompletions)
	assert.Equal(t, 1, s.PinnedCompletions)

	s.Apply(StatsIncrement{Date: day1.AddDate(0, 0, 1), Guild: true}, now)
	assert.Equal(t, 2, s.CurrentStreak)
	assert.Equal(t, 2, s.LongestStreak)
	assert.Equal(t, 1, s.GuildCompletions)

	s.Apply(StatsIncrement{Date: day1.AddDate(0, 0, 5)}, now)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 2, s.LongestStreak)
	assert.Equal(t, 4, s.TotalCompletions)
}
