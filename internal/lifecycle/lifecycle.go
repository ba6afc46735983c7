// Package lifecycle implements the task state machine and SLA deadline
// math as pure functions over task snapshots. Mutations are
// copy-on-write: a rejected operation returns the input unchanged
// alongside the error, so callers never see partial updates.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"washline/internal/domain"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrMissingReason     = errors.New("cancellation reason required")
	ErrAlreadyTerminal   = errors.New("task already terminal")
)

const (
	DefaultMaxHeadwayMinutes              = 45
	DefaultEmergencyResponseTargetMinutes = 10

	// DefaultHorizon bounds the live dispatch working set: tasks created
	// further than this past "now" are not in view.
	DefaultHorizon = 6 * time.Hour

	warnWindow = 30 * time.Minute
)

// Deadline derives the SLA deadline for a task created at createdAt.
// Computed once at creation and never recomputed. A nil sla falls back
// to the package defaults.
func Deadline(priority domain.Priority, createdAt time.Time, sla *domain.SLAConfig) time.Time {
	headway := DefaultMaxHeadwayMinutes
	emergency := DefaultEmergencyResponseTargetMinutes
	if sla != nil {
		if sla.MaxHeadwayMinutes > 0 {
			headway = sla.MaxHeadwayMinutes
		}
		if sla.EmergencyResponseTargetMinutes > 0 {
			emergency = sla.EmergencyResponseTargetMinutes
		}
	}
	if priority == domain.PriorityEmergency {
		return createdAt.Add(time.Duration(emergency) * time.Minute)
	}
	return createdAt.Add(time.Duration(headway) * time.Minute)
}

// Assign moves an unassigned task to assigned under crewID.
func Assign(t domain.Task, crewID string) (domain.Task, error) {
	if t.State != domain.TaskUnassigned {
		return t, fmt.Errorf("%w: assign requires unassigned, task %s is %s", ErrInvalidTransition, t.ID, t.State)
	}
	t.AssignedCrewID = &crewID
	t.State = domain.TaskAssigned
	return t, nil
}

// Reassign replaces the crew on an assigned or in_progress task. State
// is preserved: work already started is not reset to assigned.
func Reassign(t domain.Task, crewID string) (domain.Task, error) {
	if t.AssignedCrewID == nil || (t.State != domain.TaskAssigned && t.State != domain.TaskInProgress) {
		return t, fmt.Errorf("%w: reassign requires an assigned or in_progress task with a crew, task %s is %s", ErrInvalidTransition, t.ID, t.State)
	}
	t.AssignedCrewID = &crewID
	return t, nil
}

// Unassign pulls the crew off a task and forces it back to unassigned,
// even from in_progress. The stale crew reference is cleared.
func Unassign(t domain.Task) (domain.Task, error) {
	if t.AssignedCrewID == nil {
		return t, fmt.Errorf("%w: task %s has no crew to unassign", ErrInvalidTransition, t.ID)
	}
	if t.State.Terminal() {
		return t, fmt.Errorf("%w: task %s", ErrAlreadyTerminal, t.ID)
	}
	t.AssignedCrewID = nil
	t.State = domain.TaskUnassigned
	return t, nil
}

// Start moves an assigned task to in_progress and stamps StartedAt once.
func Start(t domain.Task, now time.Time) (domain.Task, error) {
	if t.State != domain.TaskAssigned {
		return t, fmt.Errorf("%w: start requires assigned, task %s is %s", ErrInvalidTransition, t.ID, t.State)
	}
	t.State = domain.TaskInProgress
	if t.StartedAt == nil {
		t.StartedAt = &now
	}
	return t, nil
}

// Complete moves an in_progress task to completed.
func Complete(t domain.Task, now time.Time) (domain.Task, error) {
	if t.State != domain.TaskInProgress {
		return t, fmt.Errorf("%w: complete requires in_progress, task %s is %s", ErrInvalidTransition, t.ID, t.State)
	}
	t.State = domain.TaskCompleted
	t.CompletedAt = &now
	return t, nil
}

// Cancel terminates any non-terminal task with a dispatcher-supplied
// reason.
func Cancel(t domain.Task, reason string, now time.Time) (domain.Task, error) {
	if reason == "" {
		return t, fmt.Errorf("%w: task %s", ErrMissingReason, t.ID)
	}
	if t.State.Terminal() {
		return t, fmt.Errorf("%w: task %s is %s", ErrAlreadyTerminal, t.ID, t.State)
	}
	t.State = domain.TaskCancelled
	t.CancelledAt = &now
	t.CancellationReason = reason
	return t, nil
}

// IsOverdue reports whether a non-terminal task is past its SLA
// deadline. Overdue is a derived view, never a stored state: terminal
// tasks are never overdue.
func IsOverdue(t domain.Task, now time.Time) bool {
	if t.SLADeadline == nil || t.State.Terminal() {
		return false
	}
	return now.After(*t.SLADeadline)
}

// Bucket classifies countdown urgency for display.
type Bucket string

const (
	BucketNone    Bucket = "none"
	BucketNormal  Bucket = "normal"
	BucketWarning Bucket = "warning"
	BucketOverdue Bucket = "overdue"
)

// Countdown renders the deadline countdown text and its urgency bucket.
func Countdown(t domain.Task, now time.Time) (string, Bucket) {
	if t.SLADeadline == nil || t.State.Terminal() {
		return "", BucketNone
	}
	remaining := t.SLADeadline.Sub(now)
	if remaining < 0 {
		return fmt.Sprintf("Overdue by %dm", int((-remaining).Minutes())), BucketOverdue
	}
	if remaining < warnWindow {
		return fmt.Sprintf("%dm remaining", int(remaining.Minutes())), BucketWarning
	}
	return humanize.Time(*t.SLADeadline), BucketNormal
}

// InHorizon applies the working-set window: a task is in view for live
// dispatch only if it was created no further than horizon past now.
// A non-positive horizon uses the default.
func InHorizon(t domain.Task, now time.Time, horizon time.Duration) bool {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return !t.CreatedAt.After(now.Add(horizon))
}
