// Package washlinesdk is a minimal Washline HTTP API client.
package washlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a Washline API server.
type Client struct {
	BaseURL    string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model.
type Task struct {
	ID                 string  `json:"id"`
	Type               string  `json:"type"`
	TypeTitle          string  `json:"type_title"`
	WashroomID         string  `json:"washroom_id"`
	Priority           string  `json:"priority"`
	State              string  `json:"state"`
	AssignedCrewID     *string `json:"assigned_crew_id,omitempty"`
	CreatedAt          string  `json:"created_at"`
	SLADeadline        *string `json:"sla_deadline,omitempty"`
	StartedAt          *string `json:"started_at,omitempty"`
	CompletedAt        *string `json:"completed_at,omitempty"`
	CancelledAt        *string `json:"cancelled_at,omitempty"`
	CancellationReason string  `json:"cancellation_reason,omitempty"`
}

// Crew represents a crew member with derived effective status.
type Crew struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	Role                  string  `json:"role,omitempty"`
	ShiftStart            string  `json:"shift_start"`
	ShiftEnd              string  `json:"shift_end"`
	Status                string  `json:"status"`
	EffectiveStatus       string  `json:"effective_status"`
	StatusReason          string  `json:"status_reason,omitempty"`
	CurrentTaskID         *string `json:"current_task_id,omitempty"`
	LastBreakEnd          *string `json:"last_break_end,omitempty"`
	WalkingDistanceMeters float64 `json:"walking_distance_meters"`
}

// Washroom represents a serviced location.
type Washroom struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Terminal string     `json:"terminal,omitempty"`
	SLA      *SLAConfig `json:"sla,omitempty"`
}

// SLAConfig is a washroom-level SLA override.
type SLAConfig struct {
	MaxHeadwayMinutes              int `json:"max_headway_minutes"`
	EmergencyResponseTargetMinutes int `json:"emergency_response_target_minutes"`
}

// BoardRow is one dispatch-board line.
type BoardRow struct {
	Task         Task   `json:"task"`
	WashroomName string `json:"washroom_name"`
	CrewName     string `json:"crew_name,omitempty"`
	Overdue      bool   `json:"overdue"`
	Countdown    string `json:"countdown,omitempty"`
	Bucket       string `json:"bucket"`
}

// BreakStatus is one break-board line.
type BreakStatus struct {
	CrewID            string `json:"crew_id"`
	Name              string `json:"name"`
	MinutesSinceBreak int    `json:"minutes_since_break"`
	NextBreakDue      string `json:"next_break_due"`
	Overdue           bool   `json:"overdue"`
	NeedsBreakSoon    bool   `json:"needs_break_soon"`
}

// CrewMetrics is the per-crew fairness rollup.
type CrewMetrics struct {
	CrewID                string  `json:"crew_id"`
	Name                  string  `json:"name"`
	TotalTasks            int     `json:"total_tasks"`
	EmergencyTasks        int     `json:"emergency_tasks"`
	RoutineTasks          int     `json:"routine_tasks"`
	EmergencyRatio        float64 `json:"emergency_ratio"`
	WalkingDistanceMeters float64 `json:"walking_distance_meters"`
}

// FairnessReport is one analysis cycle's output.
type FairnessReport struct {
	Metrics []CrewMetrics `json:"metrics"`
	Issues  []string      `json:"issues"`
}

// Assignment is one optimizer output row.
type Assignment struct {
	TaskID            string  `json:"task_id"`
	CrewID            string  `json:"crew_id"`
	TravelTimeMinutes float64 `json:"travel_time_minutes"`
}

// AuditEvent is one audit log entry.
type AuditEvent struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	ActorID    string `json:"actor_id"`
	Action     string `json:"action"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Before     string `json:"before_json,omitempty"`
	After      string `json:"after_json,omitempty"`
	Details    string `json:"details_json,omitempty"`
}

// BoardFilter narrows the dispatch board listing.
type BoardFilter struct {
	Types     []string
	Washrooms []string
	Priority  []string
	State     []string
	Crew      []string
	Terminal  []string
	Query     string
	All       bool
	Sort      string
	Dir       string
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateWashroom registers a serviced location.
func (c *Client) CreateWashroom(ctx context.Context, w Washroom) (Washroom, error) {
	var resp Washroom
	err := c.do(ctx, http.MethodPost, "washrooms", w, &resp)
	return resp, err
}

// ListWashrooms lists registered locations.
func (c *Client) ListWashrooms(ctx context.Context) ([]Washroom, error) {
	var resp []Washroom
	err := c.do(ctx, http.MethodGet, "washrooms", nil, &resp)
	return resp, err
}

// CreateTask creates a cleaning task.
func (c *Client) CreateTask(ctx context.Context, washroomID, taskType, priority string) (Task, error) {
	body := map[string]any{"washroom_id": washroomID}
	if taskType != "" {
		body["type"] = taskType
	}
	if priority != "" {
		body["priority"] = priority
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, taskPath(id, ""), nil, &resp)
	return resp, err
}

// AssignTask dispatches a task to a crew member.
func (c *Client) AssignTask(ctx context.Context, taskID, crewID string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "assign"), map[string]any{"crew_id": crewID}, &resp)
	return resp, err
}

// ReassignTask hands a task to another crew member.
func (c *Client) ReassignTask(ctx context.Context, taskID, crewID string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "reassign"), map[string]any{"crew_id": crewID}, &resp)
	return resp, err
}

// UnassignTask pulls the crew off a task.
func (c *Client) UnassignTask(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "unassign"), nil, &resp)
	return resp, err
}

// StartTask marks a task as being worked.
func (c *Client) StartTask(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "start"), nil, &resp)
	return resp, err
}

// CompleteTask finishes a task.
func (c *Client) CompleteTask(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "complete"), nil, &resp)
	return resp, err
}

// CancelTask cancels a task with a reason.
func (c *Client) CancelTask(ctx context.Context, taskID, reason string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "cancel"), map[string]any{"reason": reason}, &resp)
	return resp, err
}

// ChangeTaskPriority sets a task's priority.
func (c *Client) ChangeTaskPriority(ctx context.Context, taskID, priority string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(taskID, "priority"), map[string]any{"priority": priority}, &resp)
	return resp, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, taskPath(taskID, ""), nil, nil)
}

// CreateCrew rosters a crew member. Shift times are RFC3339.
func (c *Client) CreateCrew(ctx context.Context, name, role, shiftStart, shiftEnd string) (Crew, error) {
	body := map[string]any{
		"name":        name,
		"shift_start": shiftStart,
		"shift_end":   shiftEnd,
	}
	if role != "" {
		body["role"] = role
	}
	var resp Crew
	err := c.do(ctx, http.MethodPost, "crew", body, &resp)
	return resp, err
}

// ListCrew lists crew members.
func (c *Client) ListCrew(ctx context.Context) ([]Crew, error) {
	var resp []Crew
	err := c.do(ctx, http.MethodGet, "crew", nil, &resp)
	return resp, err
}

// SetCrewStatus changes a crew member's status.
func (c *Client) SetCrewStatus(ctx context.Context, crewID, status, reason string, force bool) (Crew, error) {
	body := map[string]any{"status": status}
	if reason != "" {
		body["reason"] = reason
	}
	if force {
		body["force"] = true
	}
	var resp Crew
	err := c.do(ctx, http.MethodPost, crewPath(crewID, "status"), body, &resp)
	return resp, err
}

// UpdateCrewShift replaces the shift window. Times are RFC3339.
func (c *Client) UpdateCrewShift(ctx context.Context, crewID, shiftStart, shiftEnd string) (Crew, error) {
	body := map[string]any{"shift_start": shiftStart, "shift_end": shiftEnd}
	var resp Crew
	err := c.do(ctx, http.MethodPost, crewPath(crewID, "shift"), body, &resp)
	return resp, err
}

// StartBreak puts a crew member on break.
func (c *Client) StartBreak(ctx context.Context, crewID string) (Crew, error) {
	var resp Crew
	err := c.do(ctx, http.MethodPost, crewPath(crewID, "break/start"), nil, &resp)
	return resp, err
}

// FinishBreak ends a break.
func (c *Client) FinishBreak(ctx context.Context, crewID string) (Crew, error) {
	var resp Crew
	err := c.do(ctx, http.MethodPost, crewPath(crewID, "break/finish"), nil, &resp)
	return resp, err
}

// RecordDistance adds walked meters to a crew member's running total.
func (c *Client) RecordDistance(ctx context.Context, crewID string, meters float64) (Crew, error) {
	var resp Crew
	err := c.do(ctx, http.MethodPost, crewPath(crewID, "distance"), map[string]any{"meters": meters}, &resp)
	return resp, err
}

// Board fetches the dispatch board, filtered and sorted.
func (c *Client) Board(ctx context.Context, f BoardFilter) ([]BoardRow, error) {
	q := url.Values{}
	setCSV := func(key string, vals []string) {
		if len(vals) > 0 {
			q.Set(key, strings.Join(vals, ","))
		}
	}
	setCSV("type", f.Types)
	setCSV("washroom", f.Washrooms)
	setCSV("priority", f.Priority)
	setCSV("state", f.State)
	setCSV("crew", f.Crew)
	setCSV("terminal", f.Terminal)
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.All {
		q.Set("all", "true")
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
	}
	if f.Dir != "" {
		q.Set("dir", f.Dir)
	}
	endpoint := "board"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp []BoardRow
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Breaks fetches crew ranked by break urgency.
func (c *Client) Breaks(ctx context.Context) ([]BreakStatus, error) {
	var resp []BreakStatus
	err := c.do(ctx, http.MethodGet, "breaks", nil, &resp)
	return resp, err
}

// Fairness fetches the workload fairness report.
func (c *Client) Fairness(ctx context.Context) (FairnessReport, error) {
	var resp FairnessReport
	err := c.do(ctx, http.MethodGet, "fairness", nil, &resp)
	return resp, err
}

// ImportAssignments uploads one optimizer batch and returns its id.
func (c *Client) ImportAssignments(ctx context.Context, batchID string, assignments []Assignment) (string, error) {
	body := map[string]any{"assignments": assignments}
	if batchID != "" {
		body["batch_id"] = batchID
	}
	var resp struct {
		BatchID string `json:"batch_id"`
	}
	err := c.do(ctx, http.MethodPost, "assignments", body, &resp)
	return resp.BatchID, err
}

// Log fetches recent audit events.
func (c *Client) Log(ctx context.Context, limit int) ([]AuditEvent, error) {
	endpoint := "log"
	if limit > 0 {
		endpoint = fmt.Sprintf("log?limit=%d", limit)
	}
	var resp []AuditEvent
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func taskPath(id, action string) string {
	p := "tasks/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func crewPath(id, action string) string {
	p := "crew/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	reqURL := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
