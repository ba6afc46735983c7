package server

import (
	"time"

	"washline/internal/domain"
	"washline/internal/engine"
	"washline/internal/fairness"
	"washline/internal/shift"
)

// Request payloads

type CreateWashroomRequest struct {
	ID       string            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Terminal string            `json:"terminal,omitempty"`
	SLA      *domain.SLAConfig `json:"sla,omitempty"`
}

type CreateTaskRequest struct {
	ID         *string `json:"id,omitempty"`
	Type       string  `json:"type,omitempty" enum:"routine_cleaning,emergency_cleaning,inspection,consumable_refill"`
	WashroomID string  `json:"washroom_id"`
	Priority   string  `json:"priority,omitempty" enum:"normal,high,emergency"`
}

type AssignTaskRequest struct {
	CrewID string `json:"crew_id"`
}

type CancelTaskRequest struct {
	Reason string `json:"reason"`
}

type ChangePriorityRequest struct {
	Priority string `json:"priority" enum:"normal,high,emergency"`
}

type CreateCrewRequest struct {
	ID         *string `json:"id,omitempty"`
	Name       string  `json:"name"`
	Role       string  `json:"role,omitempty"`
	ShiftStart string  `json:"shift_start" format:"date-time"`
	ShiftEnd   string  `json:"shift_end" format:"date-time"`
}

type SetCrewStatusRequest struct {
	Status string `json:"status" enum:"off_shift,on_shift,on_break,available,busy,unavailable"`
	Reason string `json:"reason,omitempty"`
	Force  bool   `json:"force,omitempty"`
}

type UpdateShiftRequest struct {
	ShiftStart string `json:"shift_start" format:"date-time"`
	ShiftEnd   string `json:"shift_end" format:"date-time"`
}

type RecordDistanceRequest struct {
	Meters float64 `json:"meters"`
}

type ImportAssignmentsRequest struct {
	BatchID     string              `json:"batch_id,omitempty"`
	Assignments []domain.Assignment `json:"assignments"`
}

// Response payloads

type TaskResponse struct {
	ID                 string  `json:"id"`
	Type               string  `json:"type" enum:"routine_cleaning,emergency_cleaning,inspection,consumable_refill"`
	TypeTitle          string  `json:"type_title"`
	WashroomID         string  `json:"washroom_id"`
	Priority           string  `json:"priority" enum:"normal,high,emergency"`
	State              string  `json:"state" enum:"unassigned,assigned,in_progress,completed,cancelled"`
	AssignedCrewID     *string `json:"assigned_crew_id,omitempty"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
	SLADeadline        *string `json:"sla_deadline,omitempty" format:"date-time"`
	StartedAt          *string `json:"started_at,omitempty" format:"date-time"`
	CompletedAt        *string `json:"completed_at,omitempty" format:"date-time"`
	CancelledAt        *string `json:"cancelled_at,omitempty" format:"date-time"`
	CancellationReason string  `json:"cancellation_reason,omitempty"`
}

type CrewResponse struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	Role                  string  `json:"role,omitempty"`
	ShiftStart            string  `json:"shift_start" format:"date-time"`
	ShiftEnd              string  `json:"shift_end" format:"date-time"`
	Status                string  `json:"status" enum:"off_shift,on_shift,on_break,available,busy,unavailable"`
	EffectiveStatus       string  `json:"effective_status" enum:"off_shift,on_shift,on_break,available,busy,unavailable"`
	StatusReason          string  `json:"status_reason,omitempty"`
	CurrentTaskID         *string `json:"current_task_id,omitempty"`
	LastBreakEnd          *string `json:"last_break_end,omitempty" format:"date-time"`
	WalkingDistanceMeters float64 `json:"walking_distance_meters"`
}

type BoardRowResponse struct {
	Task         TaskResponse `json:"task"`
	WashroomName string       `json:"washroom_name"`
	CrewName     string       `json:"crew_name,omitempty"`
	Overdue      bool         `json:"overdue"`
	Countdown    string       `json:"countdown,omitempty"`
	Bucket       string       `json:"bucket" enum:"none,normal,warning,overdue"`
}

type BreakStatusResponse struct {
	CrewID            string `json:"crew_id"`
	Name              string `json:"name"`
	MinutesSinceBreak int    `json:"minutes_since_break"`
	NextBreakDue      string `json:"next_break_due" format:"date-time"`
	Overdue           bool   `json:"overdue"`
	NeedsBreakSoon    bool   `json:"needs_break_soon"`
}

type FairnessResponse struct {
	Metrics []fairness.CrewMetrics `json:"metrics"`
	Issues  []string               `json:"issues"`
}

type AuditEventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	ActorID    string `json:"actor_id"`
	Action     string `json:"action"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Before     string `json:"before_json,omitempty"`
	After      string `json:"after_json,omitempty"`
	Details    string `json:"details_json,omitempty"`
}

// Converters

func toTaskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:                 t.ID,
		Type:               string(t.Type),
		TypeTitle:          t.Type.Title(),
		WashroomID:         t.WashroomID,
		Priority:           string(t.Priority),
		State:              string(t.State),
		AssignedCrewID:     t.AssignedCrewID,
		CreatedAt:          fmtTime(t.CreatedAt),
		SLADeadline:        fmtTimePtr(t.SLADeadline),
		StartedAt:          fmtTimePtr(t.StartedAt),
		CompletedAt:        fmtTimePtr(t.CompletedAt),
		CancelledAt:        fmtTimePtr(t.CancelledAt),
		CancellationReason: t.CancellationReason,
	}
}

func toCrewResponse(c domain.Crew, now time.Time) CrewResponse {
	return CrewResponse{
		ID:                    c.ID,
		Name:                  c.Name,
		Role:                  c.Role,
		ShiftStart:            fmtTime(c.Shift.Start),
		ShiftEnd:              fmtTime(c.Shift.End),
		Status:                string(c.Status),
		EffectiveStatus:       string(shift.EffectiveStatus(c, now)),
		StatusReason:          c.StatusReason,
		CurrentTaskID:         c.CurrentTaskID,
		LastBreakEnd:          fmtTimePtr(c.LastBreakEnd),
		WalkingDistanceMeters: c.WalkingDistanceMeters,
	}
}

func toBoardRowResponse(row engine.BoardRow) BoardRowResponse {
	return BoardRowResponse{
		Task:         toTaskResponse(row.Task),
		WashroomName: row.WashroomName,
		CrewName:     row.CrewName,
		Overdue:      row.Overdue,
		Countdown:    row.Countdown,
		Bucket:       string(row.Bucket),
	}
}

func toBreakStatusResponse(bs shift.BreakStatus) BreakStatusResponse {
	return BreakStatusResponse{
		CrewID:            bs.CrewID,
		Name:              bs.Name,
		MinutesSinceBreak: bs.MinutesSinceBreak,
		NextBreakDue:      fmtTime(bs.NextBreakDue),
		Overdue:           bs.Overdue,
		NeedsBreakSoon:    bs.NeedsBreakSoon,
	}
}

func toAuditEventResponse(e domain.AuditEvent) AuditEventResponse {
	return AuditEventResponse{
		ID:         e.ID,
		TS:         fmtTime(e.TS),
		ActorID:    e.ActorID,
		Action:     e.Action,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Before:     e.Before,
		After:      e.After,
		Details:    e.Details,
	}
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtTime(*t)
	return &s
}
