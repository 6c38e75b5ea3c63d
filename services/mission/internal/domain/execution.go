package domain

import (
	"fmt"
	"time"
)

// Execution and daily instance status constants.
const (
	ExecutionStatusPending    = "PENDING"
	ExecutionStatusInProgress = "IN_PROGRESS"
	ExecutionStatusCompleted  = "COMPLETED"
	ExecutionStatusMissed     = "MISSED"
)

// Execution is one scheduled occurrence of a regular (non pinned) mission.
type Execution struct {
	ID            string     `json:"id"`
	ParticipantID string     `json:"participant_id"`
	MissionID     string     `json:"mission_id"`
	UserID        string     `json:"user_id"`
	ExecutionDate time.Time  `json:"execution_date"`
	Status        string     `json:"status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ExpEarned     int        `json:"exp_earned"`
	Note          string     `json:"note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CompletionSnapshot captures the fields Complete changes.
type CompletionSnapshot struct {
	Status      string
	CompletedAt *time.Time
	ExpEarned   int
	Note        string
}

// Completable reports whether the occurrence can still be completed.
func completable(status string) bool {
	return status == ExecutionStatusPending || status == ExecutionStatusInProgress
}

// Snapshot returns the completion fields as they are now.
func (e *Execution) Snapshot() CompletionSnapshot {
	return CompletionSnapshot{Status: e.Status, CompletedAt: e.CompletedAt, ExpEarned: e.ExpEarned, Note: e.Note}
}

// Restore resets the completion fields.
func (e *Execution) Restore(s CompletionSnapshot) {
	e.Status = s.Status
	e.CompletedAt = s.CompletedAt
	e.ExpEarned = s.ExpEarned
	e.Note = s.Note
}

// Complete marks the execution as completed at now with the given note and reward.
func (e *Execution) Complete(now time.Time, note string, exp int) error {
	if !completable(e.Status) {
		return fmt.Errorf("execution %s cannot be completed from status %s", e.ID, e.Status)
	}
	e.Status = ExecutionStatusCompleted
	e.CompletedAt = &now
	e.ExpEarned = exp
	e.Note = note
	return nil
}

// DailyInstance is one day of a pinned mission.
type DailyInstance struct {
	ID            string     `json:"id"`
	ParticipantID string     `json:"participant_id"`
	MissionID     string     `json:"mission_id"`
	UserID        string     `json:"user_id"`
	MissionTitle  string     `json:"mission_title"`
	InstanceDate  time.Time  `json:"instance_date"`
	Status        string     `json:"status"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ExpEarned     int        `json:"exp_earned"`
	Note          string     `json:"note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Snapshot returns the completion fields as they are now.
func (d *DailyInstance) Snapshot() CompletionSnapshot {
	return CompletionSnapshot{Status: d.Status, CompletedAt: d.CompletedAt, ExpEarned: d.ExpEarned, Note: d.Note}
}

// Restore resets the completion fields.
func (d *DailyInstance) Restore(s CompletionSnapshot) {
	d.Status = s.Status
	d.CompletedAt = s.CompletedAt
	d.ExpEarned = s.ExpEarned
	d.Note = s.Note
}

// Complete marks the instance as completed.
func (d *DailyInstance) Complete(now time.Time, note string, exp int) error {
	if !completable(d.Status) {
		return fmt.Errorf("daily instance %s cannot be completed from status %s", d.ID, d.Status)
	}
	d.Status = ExecutionStatusCompleted
	d.CompletedAt = &now
	d.ExpEarned = exp
	d.Note = note
	return nil
}

// NextDay builds the pending instance for the following calendar day. The
// caller assigns the ID.
func (d *DailyInstance) NextDay(now time.Time) *DailyInstance {
	return &DailyInstance{
		ParticipantID: d.ParticipantID,
		MissionID:     d.MissionID,
		UserID:        d.UserID,
		MissionTitle:  d.MissionTitle,
		InstanceDate:  TruncateDay(d.InstanceDate).AddDate(0, 0, 1),
		Status:        ExecutionStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// TruncateDay drops the time of day, keeping the date in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
