package domain

import "time"

type TaskType string

const (
	TaskRoutineCleaning   TaskType = "routine_cleaning"
	TaskEmergencyCleaning TaskType = "emergency_cleaning"
	TaskInspection        TaskType = "inspection"
	TaskConsumableRefill  TaskType = "consumable_refill"
)

// Title returns the display name used by list surfaces; type filtering
// and locale-aware sorting operate on this, not the raw value.
func (t TaskType) Title() string {
	switch t {
	case TaskRoutineCleaning:
		return "Routine Cleaning"
	case TaskEmergencyCleaning:
		return "Emergency Cleaning"
	case TaskInspection:
		return "Inspection"
	case TaskConsumableRefill:
		return "Consumable Refill"
	}
	return string(t)
}

func (t TaskType) Valid() bool {
	switch t {
	case TaskRoutineCleaning, TaskEmergencyCleaning, TaskInspection, TaskConsumableRefill:
		return true
	}
	return false
}

type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityHigh      Priority = "high"
	PriorityEmergency Priority = "emergency"
)

// Rank orders priorities for sorting; lower ranks sort first ascending.
func (p Priority) Rank() int {
	switch p {
	case PriorityEmergency:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	}
	return 3
}

func (p Priority) Valid() bool {
	return p == PriorityNormal || p == PriorityHigh || p == PriorityEmergency
}

type TaskState string

const (
	TaskUnassigned TaskState = "unassigned"
	TaskAssigned   TaskState = "assigned"
	TaskInProgress TaskState = "in_progress"
	TaskCompleted  TaskState = "completed"
	TaskCancelled  TaskState = "cancelled"
)

func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}

type CrewStatus string

const (
	CrewOffShift    CrewStatus = "off_shift"
	CrewOnShift     CrewStatus = "on_shift"
	CrewOnBreak     CrewStatus = "on_break"
	CrewAvailable   CrewStatus = "available"
	CrewBusy        CrewStatus = "busy"
	CrewUnavailable CrewStatus = "unavailable"
)

func (s CrewStatus) Valid() bool {
	switch s {
	case CrewOffShift, CrewOnShift, CrewOnBreak, CrewAvailable, CrewBusy, CrewUnavailable:
		return true
	}
	return false
}

// Workable reports whether a crew member in this status is eligible for
// break-policy evaluation and new assignments.
func (s CrewStatus) Workable() bool {
	return s == CrewOnShift || s == CrewAvailable || s == CrewBusy
}

// Task is a unit of cleaning or inspection work at one washroom.
type Task struct {
	ID                 string     `json:"id"`
	Type               TaskType   `json:"type" enum:"routine_cleaning,emergency_cleaning,inspection,consumable_refill"`
	WashroomID         string     `json:"washroom_id"`
	Priority           Priority   `json:"priority" enum:"normal,high,emergency"`
	State              TaskState  `json:"state" enum:"unassigned,assigned,in_progress,completed,cancelled"`
	AssignedCrewID     *string    `json:"assigned_crew_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	SLADeadline        *time.Time `json:"sla_deadline,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
}

// ActiveCrewID masks stale assignment references: cancelled and
// unassigned tasks may retain an old crew id that readers must ignore.
func (t Task) ActiveCrewID() string {
	switch t.State {
	case TaskAssigned, TaskInProgress, TaskCompleted:
		if t.AssignedCrewID != nil {
			return *t.AssignedCrewID
		}
	}
	return ""
}

// ShiftWindow is a scheduled working window. End may fall on the next
// calendar day relative to Start (overnight shift).
type ShiftWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overnight reports whether the window crosses midnight.
func (w ShiftWindow) Overnight() bool {
	sy, sm, sd := w.Start.Date()
	ey, em, ed := w.End.Date()
	return sy != ey || sm != em || sd != ed
}

// Crew is a person performing tasks during a shift.
type Crew struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Role         string      `json:"role"`
	Shift        ShiftWindow `json:"shift"`
	Status       CrewStatus  `json:"status" enum:"off_shift,on_shift,on_break,available,busy,unavailable"`
	StatusReason string      `json:"status_reason,omitempty"`
	// CurrentTaskID points at the task the crew member is actively
	// working; set while that task is in_progress, nil otherwise.
	CurrentTaskID         *string    `json:"current_task_id,omitempty"`
	LastBreakEnd          *time.Time `json:"last_break_end,omitempty"`
	WalkingDistanceMeters float64    `json:"walking_distance_meters"`
}

// SLAConfig is the pair of service-level targets a washroom may override.
type SLAConfig struct {
	MaxHeadwayMinutes              int `json:"max_headway_minutes" yaml:"max_headway_minutes"`
	EmergencyResponseTargetMinutes int `json:"emergency_response_target_minutes" yaml:"emergency_response_target_minutes"`
}

// Washroom is a serviced location. SLA, when set, overrides the
// configured defaults for tasks created against it.
type Washroom struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Terminal string     `json:"terminal"`
	SLA      *SLAConfig `json:"sla,omitempty"`
}

// Assignment is one optimizer-produced task-to-crew pairing.
type Assignment struct {
	TaskID            string  `json:"task_id"`
	CrewID            string  `json:"crew_id"`
	TravelTimeMinutes float64 `json:"travel_time_minutes"`
	BatchID           string  `json:"batch_id,omitempty"`
}

// AuditEvent is one append-only record of a state-changing operation.
type AuditEvent struct {
	ID         int64     `json:"id"`
	TS         time.Time `json:"ts"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id"`
	Before     string    `json:"before_json,omitempty"`
	After      string    `json:"after_json,omitempty"`
	Details    string    `json:"details_json,omitempty"`
}
