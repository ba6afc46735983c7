// Package engine wires the pure dispatch cores (lifecycle, shift,
// fairness, listview) to the SQLite store and the audit log. Every
// mutating operation runs in one transaction, appends an audit event
// with before/after snapshots, and returns the updated record for the
// caller to display.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"washline/internal/config"
	"washline/internal/domain"
	"washline/internal/events"
	"washline/internal/fairness"
	"washline/internal/lifecycle"
	"washline/internal/listview"
	"washline/internal/repo"
	"washline/internal/shift"
)

var (
	// ErrUnknownReference is a crew or washroom id that does not resolve.
	ErrUnknownReference = errors.New("unknown reference")
	// ErrCrewHasOpenTasks guards the cross-entity invariant: a crew member
	// cannot leave the working pool while holding non-terminal tasks.
	ErrCrewHasOpenTasks = errors.New("crew still holds open tasks")
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) horizon() time.Duration {
	if e.Config != nil && e.Config.Dispatch.HorizonHours > 0 {
		return time.Duration(e.Config.Dispatch.HorizonHours) * time.Hour
	}
	return lifecycle.DefaultHorizon
}

// CreateWashroom registers a serviced location, optionally with an SLA
// override.
func (e Engine) CreateWashroom(ctx context.Context, w domain.Washroom, actorID string) (domain.Washroom, error) {
	if w.ID == "" {
		return w, errors.New("washroom id required")
	}
	if w.Name == "" {
		w.Name = w.ID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return w, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertWashroom(ctx, tx, w); err != nil {
		return w, err
	}
	if err := e.Events.Append(ctx, tx, "washroom.created", "washroom", w.ID, actorID, nil, w, nil); err != nil {
		return w, err
	}
	return w, tx.Commit()
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID         string
	Type       domain.TaskType
	WashroomID string
	Priority   domain.Priority
	ActorID    string
}

// CreateTask creates an unassigned task and derives its SLA deadline
// once, from the washroom's SLA override or the configured defaults.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Type == "" {
		opts.Type = domain.TaskRoutineCleaning
	}
	if !opts.Type.Valid() {
		return domain.Task{}, fmt.Errorf("invalid task type %q", opts.Type)
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityNormal
	}
	if !opts.Priority.Valid() {
		return domain.Task{}, fmt.Errorf("invalid priority %q", opts.Priority)
	}
	if opts.WashroomID == "" {
		return domain.Task{}, errors.New("washroom is required")
	}
	washroom, err := e.Repo.GetWashroom(ctx, opts.WashroomID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Task{}, fmt.Errorf("%w: washroom %s", ErrUnknownReference, opts.WashroomID)
		}
		return domain.Task{}, err
	}
	now := e.now().UTC()
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	sla := e.Config.SLAFor(&washroom)
	deadline := lifecycle.Deadline(opts.Priority, now, &sla)
	t := domain.Task{
		ID:          id,
		Type:        opts.Type,
		WashroomID:  opts.WashroomID,
		Priority:    opts.Priority,
		State:       domain.TaskUnassigned,
		CreatedAt:   now,
		SLADeadline: &deadline,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.created", "task", t.ID, opts.ActorID, nil, t, events.Details{
		"priority": t.Priority,
		"washroom": t.WashroomID,
	}); err != nil {
		return t, err
	}
	return t, tx.Commit()
}

// mutateTask loads a task, applies a pure transition, persists the
// result and audits it. A rejected transition leaves the stored record
// untouched.
func (e Engine) mutateTask(ctx context.Context, taskID, action, actorID string, details events.Details, apply func(domain.Task) (domain.Task, error)) (domain.Task, error) {
	before, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return before, err
	}
	after, err := apply(before)
	if err != nil {
		return before, err
	}
	crewUpdates, err := e.currentTaskUpdates(ctx, before, after)
	if err != nil {
		return before, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return before, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, after); err != nil {
		return before, err
	}
	for _, c := range crewUpdates {
		if err := e.Repo.UpdateCrew(ctx, tx, c); err != nil {
			return before, err
		}
	}
	if err := e.Events.Append(ctx, tx, action, "task", after.ID, actorID, before, after, details); err != nil {
		return before, err
	}
	if err := tx.Commit(); err != nil {
		return before, err
	}
	return after, nil
}

// workingCrew is the crew member actively working a task, set only
// while the task is in_progress.
func workingCrew(t domain.Task) *string {
	if t.State == domain.TaskInProgress {
		return t.AssignedCrewID
	}
	return nil
}

// currentTaskUpdates computes the crew rows whose CurrentTaskID pointer
// changes when a task moves from before to after: the previous worker
// releases it, the new worker picks it up.
func (e Engine) currentTaskUpdates(ctx context.Context, before, after domain.Task) ([]domain.Crew, error) {
	var updates []domain.Crew
	prev := workingCrew(before)
	next := workingCrew(after)
	if prev != nil && (next == nil || *next != *prev) {
		c, err := e.Repo.GetCrew(ctx, *prev)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		if err == nil && c.CurrentTaskID != nil && *c.CurrentTaskID == before.ID {
			c.CurrentTaskID = nil
			updates = append(updates, c)
		}
	}
	if next != nil && (prev == nil || *prev != *next) {
		c, err := e.Repo.GetCrew(ctx, *next)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return updates, nil
			}
			return nil, err
		}
		id := after.ID
		c.CurrentTaskID = &id
		updates = append(updates, c)
	}
	return updates, nil
}

func (e Engine) resolveCrew(ctx context.Context, crewID string) (domain.Crew, error) {
	c, err := e.Repo.GetCrew(ctx, crewID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return c, fmt.Errorf("%w: crew %s", ErrUnknownReference, crewID)
		}
		return c, err
	}
	return c, nil
}

// AssignTask dispatches an unassigned task to a crew member.
func (e Engine) AssignTask(ctx context.Context, taskID, crewID, actorID string) (domain.Task, error) {
	if _, err := e.resolveCrew(ctx, crewID); err != nil {
		return domain.Task{}, err
	}
	return e.mutateTask(ctx, taskID, "task.assigned", actorID, events.Details{"crew": crewID}, func(t domain.Task) (domain.Task, error) {
		return lifecycle.Assign(t, crewID)
	})
}

// ReassignTask hands an already-dispatched task to a different crew
// member without resetting its state.
func (e Engine) ReassignTask(ctx context.Context, taskID, crewID, actorID string) (domain.Task, error) {
	if _, err := e.resolveCrew(ctx, crewID); err != nil {
		return domain.Task{}, err
	}
	return e.mutateTask(ctx, taskID, "task.reassigned", actorID, events.Details{"crew": crewID}, func(t domain.Task) (domain.Task, error) {
		return lifecycle.Reassign(t, crewID)
	})
}

// UnassignTask pulls the crew off a task, reverting it to unassigned.
func (e Engine) UnassignTask(ctx context.Context, taskID, actorID string) (domain.Task, error) {
	return e.mutateTask(ctx, taskID, "task.unassigned", actorID, nil, lifecycle.Unassign)
}

// StartTask marks an assigned task as being worked.
func (e Engine) StartTask(ctx context.Context, taskID, actorID string) (domain.Task, error) {
	now := e.now().UTC()
	return e.mutateTask(ctx, taskID, "task.started", actorID, nil, func(t domain.Task) (domain.Task, error) {
		return lifecycle.Start(t, now)
	})
}

// CompleteTask finishes an in_progress task.
func (e Engine) CompleteTask(ctx context.Context, taskID, actorID string) (domain.Task, error) {
	now := e.now().UTC()
	return e.mutateTask(ctx, taskID, "task.completed", actorID, nil, func(t domain.Task) (domain.Task, error) {
		return lifecycle.Complete(t, now)
	})
}

// CancelTask terminates a non-terminal task with a dispatcher reason.
func (e Engine) CancelTask(ctx context.Context, taskID, reason, actorID string) (domain.Task, error) {
	now := e.now().UTC()
	return e.mutateTask(ctx, taskID, "task.cancelled", actorID, events.Details{"reason": reason}, func(t domain.Task) (domain.Task, error) {
		return lifecycle.Cancel(t, reason, now)
	})
}

// ChangeTaskPriority is the explicit priority-change action. The SLA
// deadline derived at creation is deliberately left untouched.
func (e Engine) ChangeTaskPriority(ctx context.Context, taskID string, priority domain.Priority, actorID string) (domain.Task, error) {
	if !priority.Valid() {
		return domain.Task{}, fmt.Errorf("invalid priority %q", priority)
	}
	return e.mutateTask(ctx, taskID, "task.priority_changed", actorID, events.Details{"priority": priority}, func(t domain.Task) (domain.Task, error) {
		if t.State.Terminal() {
			return t, fmt.Errorf("%w: task %s is %s", lifecycle.ErrAlreadyTerminal, t.ID, t.State)
		}
		t.Priority = priority
		return t, nil
	})
}

// DeleteTask removes a task from the working set. Tasks are never
// removed implicitly.
func (e Engine) DeleteTask(ctx context.Context, taskID, actorID string) error {
	before, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	crewUpdates, err := e.currentTaskUpdates(ctx, before, domain.Task{})
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteTask(ctx, tx, taskID); err != nil {
		return err
	}
	for _, c := range crewUpdates {
		if err := e.Repo.UpdateCrew(ctx, tx, c); err != nil {
			return err
		}
	}
	if err := e.Events.Append(ctx, tx, "task.deleted", "task", taskID, actorID, before, nil, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// CrewCreateOptions are parameters for rostering a crew member.
type CrewCreateOptions struct {
	ID         string
	Name       string
	Role       string
	ShiftStart time.Time
	ShiftEnd   time.Time
	ActorID    string
}

// CreateCrew rosters a crew member at shift-schedule time.
func (e Engine) CreateCrew(ctx context.Context, opts CrewCreateOptions) (domain.Crew, error) {
	if opts.Name == "" {
		return domain.Crew{}, errors.New("name is required")
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	c := domain.Crew{ID: id, Name: opts.Name, Role: opts.Role}
	c, err := shift.UpdateWindow(c, domain.ShiftWindow{Start: opts.ShiftStart, End: opts.ShiftEnd})
	if err != nil {
		return c, err
	}
	now := e.now().UTC()
	if shift.InWindow(c.Shift, now) {
		c.Status = domain.CrewOnShift
	} else {
		c.Status = domain.CrewOffShift
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCrew(ctx, tx, c); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, "crew.created", "crew", c.ID, opts.ActorID, nil, c, nil); err != nil {
		return c, err
	}
	return c, tx.Commit()
}

// SetCrewStatus applies a dispatcher status change. Moving to off_shift
// or unavailable while the crew member still holds non-terminal tasks
// is rejected unless force is set, in which case those tasks are
// unassigned first (each unassignment audited).
func (e Engine) SetCrewStatus(ctx context.Context, crewID string, status domain.CrewStatus, reason, actorID string, force bool) (domain.Crew, error) {
	before, err := e.Repo.GetCrew(ctx, crewID)
	if err != nil {
		return before, err
	}
	after, err := shift.ChangeStatus(before, status, reason)
	if err != nil {
		return before, err
	}
	var orphaned []domain.Task
	if status == domain.CrewOffShift || status == domain.CrewUnavailable {
		open, err := e.Repo.ListOpenTasksByCrew(ctx, crewID)
		if err != nil {
			return before, err
		}
		if len(open) > 0 && !force {
			return before, fmt.Errorf("%w: crew %s has %d open tasks", ErrCrewHasOpenTasks, crewID, len(open))
		}
		orphaned = open
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return before, err
	}
	defer tx.Rollback()
	for _, t := range orphaned {
		freed, err := lifecycle.Unassign(t)
		if err != nil {
			return before, err
		}
		if after.CurrentTaskID != nil && *after.CurrentTaskID == t.ID {
			after.CurrentTaskID = nil
		}
		if err := e.Repo.UpdateTask(ctx, tx, freed); err != nil {
			return before, err
		}
		if err := e.Events.Append(ctx, tx, "task.unassigned", "task", t.ID, actorID, t, freed, events.Details{"cause": "crew status change"}); err != nil {
			return before, err
		}
	}
	if err := e.Repo.UpdateCrew(ctx, tx, after); err != nil {
		return before, err
	}
	details := events.Details{"status": status}
	if reason != "" {
		details["reason"] = reason
	}
	if err := e.Events.Append(ctx, tx, "crew.status_changed", "crew", crewID, actorID, before, after, details); err != nil {
		return before, err
	}
	if err := tx.Commit(); err != nil {
		return before, err
	}
	return after, nil
}

// mutateCrew mirrors mutateTask for crew records.
func (e Engine) mutateCrew(ctx context.Context, crewID, action, actorID string, details events.Details, apply func(domain.Crew) (domain.Crew, error)) (domain.Crew, error) {
	before, err := e.Repo.GetCrew(ctx, crewID)
	if err != nil {
		return before, err
	}
	after, err := apply(before)
	if err != nil {
		return before, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return before, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateCrew(ctx, tx, after); err != nil {
		return before, err
	}
	if err := e.Events.Append(ctx, tx, action, "crew", crewID, actorID, before, after, details); err != nil {
		return before, err
	}
	if err := tx.Commit(); err != nil {
		return before, err
	}
	return after, nil
}

// UpdateCrewShift replaces the scheduled window. LastBreakEnd is never
// touched by a shift edit.
func (e Engine) UpdateCrewShift(ctx context.Context, crewID string, window domain.ShiftWindow, actorID string) (domain.Crew, error) {
	return e.mutateCrew(ctx, crewID, "crew.shift_updated", actorID, nil, func(c domain.Crew) (domain.Crew, error) {
		return shift.UpdateWindow(c, window)
	})
}

// StartCrewBreak puts a workable crew member on break.
func (e Engine) StartCrewBreak(ctx context.Context, crewID, actorID string) (domain.Crew, error) {
	now := e.now().UTC()
	return e.mutateCrew(ctx, crewID, "crew.break_started", actorID, nil, func(c domain.Crew) (domain.Crew, error) {
		return shift.StartBreak(c, now)
	})
}

// FinishCrewBreak ends a break and stamps LastBreakEnd.
func (e Engine) FinishCrewBreak(ctx context.Context, crewID, actorID string) (domain.Crew, error) {
	now := e.now().UTC()
	return e.mutateCrew(ctx, crewID, "crew.break_finished", actorID, nil, func(c domain.Crew) (domain.Crew, error) {
		return shift.FinishBreak(c, now)
	})
}

// RecordWalkingDistance adds externally measured meters to the crew's
// running total; the analyzer reads it as the fallback distance metric.
func (e Engine) RecordWalkingDistance(ctx context.Context, crewID string, meters float64, actorID string) (domain.Crew, error) {
	if meters < 0 {
		return domain.Crew{}, errors.New("meters must be non-negative")
	}
	return e.mutateCrew(ctx, crewID, "crew.distance_recorded", actorID, events.Details{"meters": meters}, func(c domain.Crew) (domain.Crew, error) {
		c.WalkingDistanceMeters += meters
		return c, nil
	})
}

// ImportAssignments stores one optimizer output batch. Assignment rows
// may reference tasks the store has never seen; the analyzer falls back
// to the id-naming convention for those.
func (e Engine) ImportAssignments(ctx context.Context, batchID string, assignments []domain.Assignment, actorID string) (string, error) {
	if len(assignments) == 0 {
		return "", errors.New("empty assignment batch")
	}
	if batchID == "" {
		batchID = uuid.New().String()
	}
	for _, a := range assignments {
		if a.TaskID == "" || a.CrewID == "" {
			return "", errors.New("assignment rows need task_id and crew_id")
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	if err := e.Repo.ReplaceBatch(ctx, tx, batchID, assignments); err != nil {
		return "", err
	}
	if err := e.Events.Append(ctx, tx, "assignments.imported", "assignment_batch", batchID, actorID, nil, nil, events.Details{
		"count": len(assignments),
	}); err != nil {
		return "", err
	}
	return batchID, tx.Commit()
}

// BoardRow is one dispatch-board line: the task plus its derived
// display fields.
type BoardRow struct {
	Task         domain.Task      `json:"task"`
	WashroomName string           `json:"washroom_name"`
	CrewName     string           `json:"crew_name,omitempty"`
	Overdue      bool             `json:"overdue"`
	Countdown    string           `json:"countdown,omitempty"`
	Bucket       lifecycle.Bucket `json:"bucket"`
}

// DispatchBoard assembles the filtered, sorted live task view.
func (e Engine) DispatchBoard(ctx context.Context, filter listview.Filter, order listview.Order) ([]BoardRow, error) {
	now := e.now().UTC()
	lctx, err := e.listContext(ctx, now)
	if err != nil {
		return nil, err
	}
	tasks, err := e.Repo.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	visible := listview.Apply(tasks, filter, lctx)
	visible = listview.SortTasks(visible, order, lctx)
	rows := make([]BoardRow, 0, len(visible))
	for _, t := range visible {
		text, bucket := lifecycle.Countdown(t, now)
		row := BoardRow{
			Task:         t,
			WashroomName: t.WashroomID,
			Overdue:      lifecycle.IsOverdue(t, now),
			Countdown:    text,
			Bucket:       bucket,
		}
		if w, ok := lctx.Washrooms[t.WashroomID]; ok {
			row.WashroomName = w.Name
		}
		if crewID := t.ActiveCrewID(); crewID != "" {
			row.CrewName = crewID
			if name, ok := lctx.CrewNames[crewID]; ok {
				row.CrewName = name
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (e Engine) listContext(ctx context.Context, now time.Time) (listview.Context, error) {
	washrooms, err := e.Repo.ListWashrooms(ctx)
	if err != nil {
		return listview.Context{}, err
	}
	crew, err := e.Repo.ListCrew(ctx)
	if err != nil {
		return listview.Context{}, err
	}
	lctx := listview.Context{
		Washrooms: make(map[string]domain.Washroom, len(washrooms)),
		CrewNames: make(map[string]string, len(crew)),
		Now:       now,
		Horizon:   e.horizon(),
	}
	for _, w := range washrooms {
		lctx.Washrooms[w.ID] = w
	}
	for _, c := range crew {
		lctx.CrewNames[c.ID] = c.Name
	}
	return lctx, nil
}

// BreakBoard returns crew ranked by break urgency; crew outside the
// break policy (off shift, on break, unavailable) are excluded.
func (e Engine) BreakBoard(ctx context.Context) ([]shift.BreakStatus, error) {
	now := e.now().UTC()
	crew, err := e.Repo.ListCrew(ctx)
	if err != nil {
		return nil, err
	}
	var statuses []shift.BreakStatus
	for _, c := range crew {
		bs := shift.EvaluateBreak(c, now, e.Config.Breaks)
		if bs.Eligible {
			statuses = append(statuses, bs)
		}
	}
	return shift.RankByBreakUrgency(statuses), nil
}

// FairnessReport runs one analysis cycle over the latest optimizer
// batch when one exists, else over raw task records.
func (e Engine) FairnessReport(ctx context.Context) (fairness.Report, error) {
	now := e.now().UTC()
	crew, err := e.Repo.ListCrew(ctx)
	if err != nil {
		return fairness.Report{}, err
	}
	tasks, err := e.Repo.ListTasks(ctx)
	if err != nil {
		return fairness.Report{}, err
	}
	var assignments []domain.Assignment
	batchID, err := e.Repo.LatestBatchID(ctx)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fairness.Report{}, err
	}
	if err == nil {
		assignments, err = e.Repo.ListBatch(ctx, batchID)
		if err != nil {
			return fairness.Report{}, err
		}
	}
	return fairness.Analyze(fairness.Input{
		Crew:        crew,
		Tasks:       tasks,
		Assignments: assignments,
		Now:         now,
		Thresholds:  e.Config.Fairness,
	}), nil
}
