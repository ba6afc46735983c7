package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"washline/internal/domain"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTask(state domain.TaskState, priority domain.Priority) domain.Task {
	deadline := Deadline(priority, base, nil)
	return domain.Task{
		ID:          "t1",
		Type:        domain.TaskRoutineCleaning,
		WashroomID:  "w1",
		Priority:    priority,
		State:       state,
		CreatedAt:   base,
		SLADeadline: &deadline,
	}
}

func TestDeadlineByPriority(t *testing.T) {
	normal := Deadline(domain.PriorityNormal, base, nil)
	assert.Equal(t, base.Add(45*time.Minute), normal)

	high := Deadline(domain.PriorityHigh, base, nil)
	assert.Equal(t, base.Add(45*time.Minute), high)

	emergency := Deadline(domain.PriorityEmergency, base, nil)
	assert.Equal(t, base.Add(10*time.Minute), emergency)
}

func TestDeadlineWashroomOverride(t *testing.T) {
	sla := &domain.SLAConfig{MaxHeadwayMinutes: 30, EmergencyResponseTargetMinutes: 5}
	assert.Equal(t, base.Add(30*time.Minute), Deadline(domain.PriorityNormal, base, sla))
	assert.Equal(t, base.Add(5*time.Minute), Deadline(domain.PriorityEmergency, base, sla))
}

func TestAssignUnassignRoundtrip(t *testing.T) {
	orig := newTask(domain.TaskUnassigned, domain.PriorityNormal)

	assigned, err := Assign(orig, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskAssigned, assigned.State)
	require.NotNil(t, assigned.AssignedCrewID)
	assert.Equal(t, "c1", *assigned.AssignedCrewID)

	back, err := Unassign(assigned)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskUnassigned, back.State)
	assert.Nil(t, back.AssignedCrewID)
	// Everything except the assignment fields matches the original.
	assert.Equal(t, orig, back)
}

func TestAssignRequiresUnassigned(t *testing.T) {
	for _, state := range []domain.TaskState{domain.TaskAssigned, domain.TaskInProgress, domain.TaskCompleted, domain.TaskCancelled} {
		in := newTask(state, domain.PriorityNormal)
		out, err := Assign(in, "c1")
		assert.ErrorIs(t, err, ErrInvalidTransition, "state %s", state)
		assert.Equal(t, in, out, "rejected assign must not mutate")
	}
}

func TestReassignPreservesState(t *testing.T) {
	crew := "c1"
	in := newTask(domain.TaskInProgress, domain.PriorityNormal)
	in.AssignedCrewID = &crew

	out, err := Reassign(in, "c2")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskInProgress, out.State)
	assert.Equal(t, "c2", *out.AssignedCrewID)
}

func TestReassignNeedsCrew(t *testing.T) {
	in := newTask(domain.TaskUnassigned, domain.PriorityNormal)
	_, err := Reassign(in, "c2")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUnassignFromInProgress(t *testing.T) {
	crew := "c1"
	started := base.Add(5 * time.Minute)
	in := newTask(domain.TaskInProgress, domain.PriorityNormal)
	in.AssignedCrewID = &crew
	in.StartedAt = &started

	out, err := Unassign(in)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskUnassigned, out.State)
	assert.Nil(t, out.AssignedCrewID)
	// StartedAt is history, not assignment state.
	assert.Equal(t, &started, out.StartedAt)
}

func TestUnassignTerminal(t *testing.T) {
	crew := "c1"
	in := newTask(domain.TaskCompleted, domain.PriorityNormal)
	in.AssignedCrewID = &crew
	_, err := Unassign(in)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestStartStampsStartedAtOnce(t *testing.T) {
	crew := "c1"
	in := newTask(domain.TaskAssigned, domain.PriorityNormal)
	in.AssignedCrewID = &crew

	now := base.Add(3 * time.Minute)
	out, err := Start(in, now)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskInProgress, out.State)
	require.NotNil(t, out.StartedAt)
	assert.Equal(t, now, *out.StartedAt)

	// A later start after unassign/reassign keeps the original stamp.
	again, err := Unassign(out)
	require.NoError(t, err)
	again, err = Assign(again, "c2")
	require.NoError(t, err)
	again, err = Start(again, now.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, now, *again.StartedAt)
}

func TestCompleteRequiresInProgress(t *testing.T) {
	in := newTask(domain.TaskAssigned, domain.PriorityNormal)
	_, err := Complete(in, base)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	crew := "c1"
	in.State = domain.TaskInProgress
	in.AssignedCrewID = &crew
	out, err := Complete(in, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, out.State)
	require.NotNil(t, out.CompletedAt)
}

func TestCancelRequiresReason(t *testing.T) {
	in := newTask(domain.TaskAssigned, domain.PriorityNormal)
	out, err := Cancel(in, "", base)
	assert.ErrorIs(t, err, ErrMissingReason)
	assert.Equal(t, in, out, "task state unchanged after rejected cancel")
}

func TestCancelTerminalReportsAlreadyTerminal(t *testing.T) {
	in := newTask(domain.TaskCancelled, domain.PriorityNormal)
	_, err := Cancel(in, "duplicate", base)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestCancelMissingReasonWinsOverTerminal(t *testing.T) {
	in := newTask(domain.TaskCompleted, domain.PriorityNormal)
	_, err := Cancel(in, "", base)
	assert.ErrorIs(t, err, ErrMissingReason)
}

func TestCancelFromAnyNonTerminal(t *testing.T) {
	for _, state := range []domain.TaskState{domain.TaskUnassigned, domain.TaskAssigned, domain.TaskInProgress} {
		in := newTask(state, domain.PriorityNormal)
		out, err := Cancel(in, "spill resolved elsewhere", base)
		require.NoError(t, err, "state %s", state)
		assert.Equal(t, domain.TaskCancelled, out.State)
		assert.Equal(t, "spill resolved elsewhere", out.CancellationReason)
	}
}

func TestIsOverdue(t *testing.T) {
	in := newTask(domain.TaskUnassigned, domain.PriorityNormal)
	assert.False(t, IsOverdue(in, base.Add(44*time.Minute)))
	assert.False(t, IsOverdue(in, base.Add(45*time.Minute)), "deadline instant itself is not overdue")
	assert.True(t, IsOverdue(in, base.Add(46*time.Minute)))
}

func TestTerminalNeverOverdue(t *testing.T) {
	late := base.Add(3 * time.Hour)
	for _, state := range []domain.TaskState{domain.TaskCompleted, domain.TaskCancelled} {
		in := newTask(state, domain.PriorityEmergency)
		assert.False(t, IsOverdue(in, late), "state %s", state)
	}
}

func TestNoDeadlineNeverOverdue(t *testing.T) {
	in := newTask(domain.TaskUnassigned, domain.PriorityNormal)
	in.SLADeadline = nil
	assert.False(t, IsOverdue(in, base.Add(10*time.Hour)))
}

func TestCountdownOverdueText(t *testing.T) {
	in := newTask(domain.TaskUnassigned, domain.PriorityEmergency)
	// Emergency deadline is creation + 10m; at T+11m it reads overdue by 1m.
	text, bucket := Countdown(in, base.Add(11*time.Minute))
	assert.Equal(t, "Overdue by 1m", text)
	assert.Equal(t, BucketOverdue, bucket)
}

func TestCountdownWarningWindow(t *testing.T) {
	in := newTask(domain.TaskUnassigned, domain.PriorityNormal)
	text, bucket := Countdown(in, base.Add(25*time.Minute))
	assert.Equal(t, "20m remaining", text)
	assert.Equal(t, BucketWarning, bucket)
}

func TestCountdownTerminalEmpty(t *testing.T) {
	in := newTask(domain.TaskCompleted, domain.PriorityNormal)
	text, bucket := Countdown(in, base)
	assert.Empty(t, text)
	assert.Equal(t, BucketNone, bucket)
}

func TestInHorizon(t *testing.T) {
	now := base
	in := newTask(domain.TaskUnassigned, domain.PriorityNormal)

	in.CreatedAt = now.Add(5 * time.Hour)
	assert.True(t, InHorizon(in, now, 6*time.Hour))

	in.CreatedAt = now.Add(7 * time.Hour)
	assert.False(t, InHorizon(in, now, 6*time.Hour))

	// Past-created tasks are always in view.
	in.CreatedAt = now.Add(-30 * time.Hour)
	assert.True(t, InHorizon(in, now, 6*time.Hour))
}
