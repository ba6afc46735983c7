package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	gocache "github.com/patrickmn/go-cache"

	"washline/internal/domain"
	"washline/internal/engine"
	"washline/internal/lifecycle"
	"washline/internal/listview"
	"washline/internal/mw"
	"washline/internal/repo"
	"washline/internal/shift"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	CacheTTL time.Duration
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"assign requires unassigned"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Washline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the error envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors read as 400 bad_request.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	store := gocache.New(ttl, 2*ttl)
	router.Use(mw.Cache(store, ttl, basePath+"/fairness", basePath+"/breaks"))

	hcfg := huma.DefaultConfig("Washline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerWashrooms(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerCrew(group, cfg.Engine)
	registerBoards(group, cfg.Engine)
	registerFairness(group, cfg.Engine)
	registerLog(group, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps the dispatch error taxonomy onto HTTP statuses. A
// rejected mutation has already left the stored record untouched; here
// we only name the reason for the UI layer.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, lifecycle.ErrMissingReason), errors.Is(err, shift.ErrReasonRequired):
		return newAPIError(http.StatusBadRequest, "missing_reason", err.Error(), nil)
	case errors.Is(err, lifecycle.ErrAlreadyTerminal):
		return newAPIError(http.StatusConflict, "already_terminal", err.Error(), nil)
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.Is(err, engine.ErrCrewHasOpenTasks):
		return newAPIError(http.StatusConflict, "crew_has_open_tasks", err.Error(), nil)
	case errors.Is(err, engine.ErrUnknownReference):
		return newAPIError(http.StatusNotFound, "unknown_reference", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, shift.ErrInvalidStatus), errors.Is(err, shift.ErrInvalidWindow):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "required") || strings.Contains(strings.ToLower(msg), "invalid") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// ActorHeader carries the dispatcher identity into the audit trail.
type ActorHeader struct {
	ActorID string `header:"X-Actor-Id"`
}

func (a ActorHeader) actor() string {
	if a.ActorID == "" {
		return "dispatcher"
	}
	return a.ActorID
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerWashrooms(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-washroom",
		Method:        http.MethodPost,
		Path:          "/washrooms",
		Summary:       "Register washroom",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ActorHeader
		Body CreateWashroomRequest
	}) (*struct {
		Body domain.Washroom `json:"body"`
	}, error) {
		w, err := e.CreateWashroom(ctx, domain.Washroom{
			ID:       input.Body.ID,
			Name:     input.Body.Name,
			Terminal: input.Body.Terminal,
			SLA:      input.Body.SLA,
		}, input.actor())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Washroom `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-washrooms",
		Method:      http.MethodGet,
		Path:        "/washrooms",
		Summary:     "List washrooms",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Washroom `json:"body"`
	}, error) {
		items, err := e.Repo.ListWashrooms(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Washroom `json:"body"`
		}{Body: items}, nil
	})
}

type TaskPath struct {
	TaskID string `path:"task_id"`
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ActorHeader
		Body CreateTaskRequest
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		opts := engine.TaskCreateOptions{
			Type:       domain.TaskType(input.Body.Type),
			WashroomID: input.Body.WashroomID,
			Priority:   domain.Priority(input.Body.Priority),
			ActorID:    input.actor(),
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		t, err := e.CreateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: toTaskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
	}, func(ctx context.Context, input *TaskPath) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: toTaskResponse(t)}, nil
	})

	respond := func(t domain.Task, err error) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: toTaskResponse(t)}, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "assign-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/assign",
		Summary:     "Assign task to crew",
	}, func(ctx context.Context, input *struct {
		TaskPath
		ActorHeader
		Body AssignTaskRequest
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.AssignTask(ctx, input.TaskID, input.Body.CrewID, input.actor())
		return respond(t, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "reassign-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/reassign",
		Summary:     "Reassign task to another crew",
	}, func(ctx context.Context, input *struct {
		TaskPath
		ActorHeader
		Body AssignTaskRequest
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.ReassignTask(ctx, input.TaskID, input.Body.CrewID, input.actor())
		return respond(t, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "unassign-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/unassign",
		Summary:     "Pull crew off task",
	}, func(ctx context.Context, input *struct {
		TaskPath
		ActorHeader
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.UnassignTask(ctx, input.TaskID, input.actor())
		return respond(t, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/start",
		Summary:     "Start work on task",
	}, func(ctx context.Context, input *struct {
		TaskPath
		ActorHeader
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.StartTask(ctx, input.TaskID, input.actor())
		return respond(t, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/complete",
		Summary:     "Complete task",
	}, func(ctx context.Context, input *struct {
		TaskPath
		ActorHeader
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.CompleteTask(ctx, input.TaskID, input.actor())
		return respond(t, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/cancel",
		Summary:     "Cancel task",
	}, func(ctx context.Context, input *struct {
		TaskPath
		ActorHeader
		Body CancelTaskRequest
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.CancelTask(ctx, input.TaskID, input.Body.Reason, input.actor())
		return respond(t, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-task-priority",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/priority",
		Summary:     "Change task priority",
	}, func(ctx context.Context, input *struct {
		TaskPath
		ActorHeader
		Body ChangePriorityRequest
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.ChangeTaskPriority(ctx, input.TaskID, domain.Priority(input.Body.Priority), input.actor())
		return respond(t, err)
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{task_id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		TaskPath
		ActorHeader
	}) (*struct{}, error) {
		if err := e.DeleteTask(ctx, input.TaskID, input.actor()); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

type CrewPath struct {
	CrewID string `path:"crew_id"`
}

func registerCrew(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-crew",
		Method:        http.MethodPost,
		Path:          "/crew",
		Summary:       "Roster crew member",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ActorHeader
		Body CreateCrewRequest
	}) (*struct {
		Body CrewResponse `json:"body"`
	}, error) {
		start, err := time.Parse(time.RFC3339, input.Body.ShiftStart)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid shift_start", nil)
		}
		end, err := time.Parse(time.RFC3339, input.Body.ShiftEnd)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid shift_end", nil)
		}
		opts := engine.CrewCreateOptions{
			Name:       input.Body.Name,
			Role:       input.Body.Role,
			ShiftStart: start,
			ShiftEnd:   end,
			ActorID:    input.actor(),
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		c, err := e.CreateCrew(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CrewResponse `json:"body"`
		}{Body: toCrewResponse(c, e.Now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-crew",
		Method:      http.MethodGet,
		Path:        "/crew",
		Summary:     "List crew with effective status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []CrewResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListCrew(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		now := e.Now()
		res := make([]CrewResponse, 0, len(items))
		for _, c := range items {
			res = append(res, toCrewResponse(c, now))
		}
		return &struct {
			Body []CrewResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-crew",
		Method:      http.MethodGet,
		Path:        "/crew/{crew_id}",
		Summary:     "Get crew member",
	}, func(ctx context.Context, input *CrewPath) (*struct {
		Body CrewResponse `json:"body"`
	}, error) {
		c, err := e.Repo.GetCrew(ctx, input.CrewID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CrewResponse `json:"body"`
		}{Body: toCrewResponse(c, e.Now())}, nil
	})

	respond := func(c domain.Crew, now time.Time, err error) (*struct {
		Body CrewResponse `json:"body"`
	}, error) {
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CrewResponse `json:"body"`
		}{Body: toCrewResponse(c, now)}, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "set-crew-status",
		Method:      http.MethodPost,
		Path:        "/crew/{crew_id}/status",
		Summary:     "Change crew status",
	}, func(ctx context.Context, input *struct {
		CrewPath
		ActorHeader
		Body SetCrewStatusRequest
	}) (*struct {
		Body CrewResponse `json:"body"`
	}, error) {
		c, err := e.SetCrewStatus(ctx, input.CrewID, domain.CrewStatus(input.Body.Status), input.Body.Reason, input.actor(), input.Body.Force)
		return respond(c, e.Now(), err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-crew-shift",
		Method:      http.MethodPost,
		Path:        "/crew/{crew_id}/shift",
		Summary:     "Update crew shift window",
	}, func(ctx context.Context, input *struct {
		CrewPath
		ActorHeader
		Body UpdateShiftRequest
	}) (*struct {
		Body CrewResponse `json:"body"`
	}, error) {
		start, err := time.Parse(time.RFC3339, input.Body.ShiftStart)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid shift_start", nil)
		}
		end, err := time.Parse(time.RFC3339, input.Body.ShiftEnd)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid shift_end", nil)
		}
		c, err := e.UpdateCrewShift(ctx, input.CrewID, domain.ShiftWindow{Start: start, End: end}, input.actor())
		return respond(c, e.Now(), err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-crew-break",
		Method:      http.MethodPost,
		Path:        "/crew/{crew_id}/break/start",
		Summary:     "Start break",
	}, func(ctx context.Context, input *struct {
		CrewPath
		ActorHeader
	}) (*struct {
		Body CrewResponse `json:"body"`
	}, error) {
		c, err := e.StartCrewBreak(ctx, input.CrewID, input.actor())
		return respond(c, e.Now(), err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "finish-crew-break",
		Method:      http.MethodPost,
		Path:        "/crew/{crew_id}/break/finish",
		Summary:     "Finish break",
	}, func(ctx context.Context, input *struct {
		CrewPath
		ActorHeader
	}) (*struct {
		Body CrewResponse `json:"body"`
	}, error) {
		c, err := e.FinishCrewBreak(ctx, input.CrewID, input.actor())
		return respond(c, e.Now(), err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-crew-distance",
		Method:      http.MethodPost,
		Path:        "/crew/{crew_id}/distance",
		Summary:     "Record walked distance",
	}, func(ctx context.Context, input *struct {
		CrewPath
		ActorHeader
		Body RecordDistanceRequest
	}) (*struct {
		Body CrewResponse `json:"body"`
	}, error) {
		c, err := e.RecordWalkingDistance(ctx, input.CrewID, input.Body.Meters, input.actor())
		return respond(c, e.Now(), err)
	})
}

// boardQuery maps query facets onto the filter/sort pipeline. List
// facets are comma-separated; empty means no constraint.
type boardQuery struct {
	Types     string `query:"type" doc:"Comma-separated type display titles"`
	Washrooms string `query:"washroom" doc:"Comma-separated washroom ids"`
	Priority  string `query:"priority" doc:"Comma-separated priorities"`
	State     string `query:"state" doc:"Comma-separated states"`
	Crew      string `query:"crew" doc:"Comma-separated crew ids"`
	Terminal  string `query:"terminal" doc:"Comma-separated terminals"`
	Query     string `query:"q" doc:"Case-insensitive id substring"`
	All       bool   `query:"all" doc:"Ignore the dispatch time horizon"`
	Sort      string `query:"sort" doc:"Sort field: sla, priority, washroom, crew, type, state, created, id"`
	Dir       string `query:"dir" doc:"Sort direction: asc or desc"`
}

func splitFacet(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (q boardQuery) filter() listview.Filter {
	f := listview.Filter{
		TypeTitles:  splitFacet(q.Types),
		WashroomIDs: splitFacet(q.Washrooms),
		CrewIDs:     splitFacet(q.Crew),
		Terminals:   splitFacet(q.Terminal),
		IDQuery:     q.Query,
		SkipHorizon: q.All,
	}
	for _, p := range splitFacet(q.Priority) {
		f.Priorities = append(f.Priorities, domain.Priority(p))
	}
	for _, s := range splitFacet(q.State) {
		f.States = append(f.States, domain.TaskState(s))
	}
	return f
}

func (q boardQuery) order() listview.Order {
	o := listview.Order{Field: listview.SortField(q.Sort), Dir: listview.Direction(q.Dir)}
	if o.Field == "" {
		o.Field = listview.SortSLA
	}
	if o.Dir == "" {
		o.Dir = listview.Asc
	}
	return o
}

func registerBoards(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dispatch-board",
		Method:      http.MethodGet,
		Path:        "/board",
		Summary:     "Live dispatch board",
	}, func(ctx context.Context, input *boardQuery) (*struct {
		Body []BoardRowResponse `json:"body"`
	}, error) {
		rows, err := e.DispatchBoard(ctx, input.filter(), input.order())
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]BoardRowResponse, 0, len(rows))
		for _, row := range rows {
			res = append(res, toBoardRowResponse(row))
		}
		return &struct {
			Body []BoardRowResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "break-board",
		Method:      http.MethodGet,
		Path:        "/breaks",
		Summary:     "Crew ranked by break urgency",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []BreakStatusResponse `json:"body"`
	}, error) {
		statuses, err := e.BreakBoard(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]BreakStatusResponse, 0, len(statuses))
		for _, bs := range statuses {
			res = append(res, toBreakStatusResponse(bs))
		}
		return &struct {
			Body []BreakStatusResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerFairness(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "fairness-report",
		Method:      http.MethodGet,
		Path:        "/fairness",
		Summary:     "Workload fairness report",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body FairnessResponse `json:"body"`
	}, error) {
		report, err := e.FairnessReport(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FairnessResponse `json:"body"`
		}{Body: FairnessResponse{Metrics: report.Metrics, Issues: report.Issues}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "import-assignments",
		Method:        http.MethodPost,
		Path:          "/assignments",
		Summary:       "Import optimizer assignment batch",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ActorHeader
		Body ImportAssignmentsRequest
	}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		batchID, err := e.ImportAssignments(ctx, input.Body.BatchID, input.Body.Assignments, input.actor())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{"batch_id": batchID, "count": len(input.Body.Assignments)}}, nil
	})
}

func registerLog(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "audit-log",
		Method:      http.MethodGet,
		Path:        "/log",
		Summary:     "Audit log tail",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body []AuditEventResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListAuditEvents(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]AuditEventResponse, 0, len(items))
		for _, ev := range items {
			res = append(res, toAuditEventResponse(ev))
		}
		return &struct {
			Body []AuditEventResponse `json:"body"`
		}{Body: res}, nil
	})
}
