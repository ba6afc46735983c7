package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"washline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- washrooms ---

func (r Repo) InsertWashroom(ctx context.Context, tx *sql.Tx, w domain.Washroom) error {
	var slaJSON any
	if w.SLA != nil {
		data, err := json.Marshal(w.SLA)
		if err != nil {
			return err
		}
		slaJSON = string(data)
	}
	_, err := exec(ctx, r.DB, tx, `INSERT INTO washrooms(id,name,terminal,sla_json) VALUES (?,?,?,?)`,
		w.ID, w.Name, w.Terminal, slaJSON)
	return err
}

func (r Repo) GetWashroom(ctx context.Context, id string) (domain.Washroom, error) {
	return scanWashroom(r.DB.QueryRowContext(ctx, `SELECT id,name,terminal,sla_json FROM washrooms WHERE id=?`, id))
}

func (r Repo) ListWashrooms(ctx context.Context) ([]domain.Washroom, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,terminal,sla_json FROM washrooms ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Washroom
	for rows.Next() {
		var w domain.Washroom
		var slaJSON sql.NullString
		if err := rows.Scan(&w.ID, &w.Name, &w.Terminal, &slaJSON); err != nil {
			return nil, err
		}
		if slaJSON.Valid && slaJSON.String != "" {
			var sla domain.SLAConfig
			if err := json.Unmarshal([]byte(slaJSON.String), &sla); err == nil {
				w.SLA = &sla
			}
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func scanWashroom(row *sql.Row) (domain.Washroom, error) {
	var w domain.Washroom
	var slaJSON sql.NullString
	err := row.Scan(&w.ID, &w.Name, &w.Terminal, &slaJSON)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	if slaJSON.Valid && slaJSON.String != "" {
		var sla domain.SLAConfig
		if err := json.Unmarshal([]byte(slaJSON.String), &sla); err == nil {
			w.SLA = &sla
		}
	}
	return w, nil
}

// --- tasks ---

const taskColumns = `id,type,washroom_id,priority,state,assigned_crew_id,created_at,sla_deadline,started_at,completed_at,cancelled_at,cancellation_reason`

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := exec(ctx, r.DB, tx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, string(t.Type), t.WashroomID, string(t.Priority), string(t.State),
		nullableStringPtr(t.AssignedCrewID), fmtTime(t.CreatedAt), fmtTimePtr(t.SLADeadline),
		fmtTimePtr(t.StartedAt), fmtTimePtr(t.CompletedAt), fmtTimePtr(t.CancelledAt),
		nullableString(t.CancellationReason))
	return err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := exec(ctx, r.DB, tx, `UPDATE tasks SET type=?,washroom_id=?,priority=?,state=?,assigned_crew_id=?,sla_deadline=?,started_at=?,completed_at=?,cancelled_at=?,cancellation_reason=? WHERE id=?`,
		string(t.Type), t.WashroomID, string(t.Priority), string(t.State),
		nullableStringPtr(t.AssignedCrewID), fmtTimePtr(t.SLADeadline),
		fmtTimePtr(t.StartedAt), fmtTimePtr(t.CompletedAt), fmtTimePtr(t.CancelledAt),
		nullableString(t.CancellationReason), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := exec(ctx, r.DB, tx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	if err != nil {
		return domain.Task{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Task{}, err
		}
		return domain.Task{}, ErrNotFound
	}
	return scanTask(rows)
}

func (r Repo) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ListOpenTasksByCrew returns the crew member's non-terminal tasks; the
// engine uses it for the off-shift guard.
func (r Repo) ListOpenTasksByCrew(ctx context.Context, crewID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks
WHERE assigned_crew_id=? AND state IN ('assigned','in_progress') ORDER BY created_at ASC`, crewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func scanTask(rows *sql.Rows) (domain.Task, error) {
	var t domain.Task
	var typ, priority, state, createdAt string
	var crewID, deadline, startedAt, completedAt, cancelledAt, reason sql.NullString
	if err := rows.Scan(&t.ID, &typ, &t.WashroomID, &priority, &state, &crewID,
		&createdAt, &deadline, &startedAt, &completedAt, &cancelledAt, &reason); err != nil {
		return t, err
	}
	t.Type = domain.TaskType(typ)
	t.Priority = domain.Priority(priority)
	t.State = domain.TaskState(state)
	if crewID.Valid {
		t.AssignedCrewID = &crewID.String
	}
	t.CreatedAt = parseTime(createdAt)
	t.SLADeadline = parseTimePtr(deadline)
	t.StartedAt = parseTimePtr(startedAt)
	t.CompletedAt = parseTimePtr(completedAt)
	t.CancelledAt = parseTimePtr(cancelledAt)
	if reason.Valid {
		t.CancellationReason = reason.String
	}
	return t, nil
}

// --- crew ---

const crewColumns = `id,name,role,shift_start,shift_end,status,status_reason,current_task_id,last_break_end,walking_distance_m`

func (r Repo) InsertCrew(ctx context.Context, tx *sql.Tx, c domain.Crew) error {
	_, err := exec(ctx, r.DB, tx, `INSERT INTO crew(`+crewColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, c.Role, fmtTime(c.Shift.Start), fmtTime(c.Shift.End), string(c.Status),
		nullableString(c.StatusReason), nullableStringPtr(c.CurrentTaskID),
		fmtTimePtr(c.LastBreakEnd), c.WalkingDistanceMeters)
	return err
}

func (r Repo) UpdateCrew(ctx context.Context, tx *sql.Tx, c domain.Crew) error {
	res, err := exec(ctx, r.DB, tx, `UPDATE crew SET name=?,role=?,shift_start=?,shift_end=?,status=?,status_reason=?,current_task_id=?,last_break_end=?,walking_distance_m=? WHERE id=?`,
		c.Name, c.Role, fmtTime(c.Shift.Start), fmtTime(c.Shift.End), string(c.Status),
		nullableString(c.StatusReason), nullableStringPtr(c.CurrentTaskID),
		fmtTimePtr(c.LastBreakEnd), c.WalkingDistanceMeters, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetCrew(ctx context.Context, id string) (domain.Crew, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+crewColumns+` FROM crew WHERE id=?`, id)
	if err != nil {
		return domain.Crew{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Crew{}, err
		}
		return domain.Crew{}, ErrNotFound
	}
	return scanCrew(rows)
}

func (r Repo) ListCrew(ctx context.Context) ([]domain.Crew, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+crewColumns+` FROM crew ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Crew
	for rows.Next() {
		c, err := scanCrew(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func scanCrew(rows *sql.Rows) (domain.Crew, error) {
	var c domain.Crew
	var shiftStart, shiftEnd, status string
	var reason, taskID, lastBreak sql.NullString
	if err := rows.Scan(&c.ID, &c.Name, &c.Role, &shiftStart, &shiftEnd, &status,
		&reason, &taskID, &lastBreak, &c.WalkingDistanceMeters); err != nil {
		return c, err
	}
	c.Shift = domain.ShiftWindow{Start: parseTime(shiftStart), End: parseTime(shiftEnd)}
	c.Status = domain.CrewStatus(status)
	if reason.Valid {
		c.StatusReason = reason.String
	}
	if taskID.Valid {
		c.CurrentTaskID = &taskID.String
	}
	c.LastBreakEnd = parseTimePtr(lastBreak)
	return c, nil
}

// --- audit log ---

func (r Repo) ListAuditEvents(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,actor_id,action,entity_kind,entity_id,before_json,after_json,details_json
FROM audit_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		var ts string
		var entityID, before, after, details sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.ActorID, &e.Action, &e.EntityKind, &entityID, &before, &after, &details); err != nil {
			return nil, err
		}
		e.TS = parseTime(ts)
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if before.Valid {
			e.Before = before.String
		}
		if after.Valid {
			e.After = after.String
		}
		if details.Valid {
			e.Details = details.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- helpers ---

func exec(ctx context.Context, db *sql.DB, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableStringPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
