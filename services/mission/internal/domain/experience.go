package domain

import "time"

const (
	baseLevelExp      = 100
	levelExpIncrement = 50
)

// Experience is the accumulated experience of a user or guild.
type Experience struct {
	OwnerID   string    `json:"owner_id"`
	TotalExp  int       `json:"total_exp"`
	Level     int       `json:"level"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LevelFor returns the level reached with total experience. Level 1 starts at
// zero; reaching the next level costs 100 and every further level costs 50
// more than the previous one.
func LevelFor(total int) int {
	level := 1
	cost := baseLevelExp
	for total >= cost {
		total -= cost
		level++
		cost += levelExpIncrement
	}
	return level
}

// ExpForLevel returns the total experience needed to reach level.
func ExpForLevel(level int) int {
	total := 0
	cost := baseLevelExp
	for l := 1; l < level; l++ {
		total += cost
		cost += levelExpIncrement
	}
	return total
}

// UserStats holds aggregate completion counters for a user.
type UserStats struct {
	UserID             string     `json:"user_id"`
	TotalCompletions   int        `json:"total_completions"`
	PinnedCompletions  int        `json:"pinned_completions"`
	GuildCompletions   int        `json:"guild_completions"`
	CurrentStreak      int        `json:"current_streak"`
	LongestStreak      int        `json:"longest_streak"`
	LastCompletionDate *time.Time `json:"last_completion_date,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// StatsIncrement describes a single completion to fold into UserStats.
type StatsIncrement struct {
	Pinned bool
	Guild  bool
	Date   time.Time
}

// Apply folds one completion into the stats. Completing on consecutive days
// extends the streak, a second completion on the same day leaves it alone and
// a gap resets it to one.
func (s *UserStats) Apply(inc StatsIncrement, now time.Time) {
	s.TotalCompletions++
	if inc.Pinned {
		s.PinnedCompletions++
	}
	if inc.Guild {
		s.GuildCompletions++
	}

	day := TruncateDay(inc.Date)
	switch {
	case s.LastCompletionDate == nil:
		s.CurrentStreak = 1
	case TruncateDay(*s.LastCompletionDate).Equal(day):
		if s.CurrentStreak == 0 {
			s.CurrentStreak = 1
		}
	case TruncateDay(*s.LastCompletionDate).AddDate(0, 0, 1).Equal(day):
		s.CurrentStreak++
	default:
		s.CurrentStreak = 1
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastCompletionDate = &day
	s.UpdatedAt = now
}

// FeedEntry is an activity-feed post announcing a completion.
type FeedEntry struct {
	ID           string    `json:"id,omitempty"`
	UserID       string    `json:"user_id"`
	ActivityType string    `json:"activity_type"`
	ReferenceID  string    `json:"reference_id"`
	Title        string    `json:"title"`
	Content      string    `json:"content,omitempty"`
	ExpEarned    int       `json:"exp_earned"`
	CreatedAt    time.Time `json:"created_at"`
}

// ActivityMissionCompleted is the feed activity type for mission completions.
const ActivityMissionCompleted = "MISSION_COMPLETED"

// MissionCompletion summarizes a finished completion for downstream consumers.
type MissionCompletion struct {
	UserID         string    `json:"user_id"`
	MissionID      string    `json:"mission_id"`
	MissionTitle   string    `json:"mission_title"`
	ParticipantID  string    `json:"participant_id"`
	ReferenceID    string    `json:"reference_id"`
	Pinned         bool      `json:"pinned"`
	GuildID        string    `json:"guild_id,omitempty"`
	ExpEarned      int       `json:"exp_earned"`
	GuildExpEarned int       `json:"guild_exp_earned,omitempty"`
	TotalExp       int       `json:"total_exp"`
	Level          int       `json:"level"`
	LeveledUp      bool      `json:"leveled_up"`
	CompletedAt    time.Time `json:"completed_at"`
}
