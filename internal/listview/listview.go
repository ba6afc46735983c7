// Package listview is the generic two-stage filter/sort pipeline every
// list surface applies to the task working set: AND-combined facet
// predicates, then one field comparator with a direction. Sorting is
// stable so equal keys keep encounter order.
package listview

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"washline/internal/domain"
	"washline/internal/lifecycle"
)

// Context resolves references to display names and carries the clock
// for the horizon rule.
type Context struct {
	Washrooms map[string]domain.Washroom
	CrewNames map[string]string
	Now       time.Time
	Horizon   time.Duration
}

func (c Context) washroomName(id string) string {
	if w, ok := c.Washrooms[id]; ok && w.Name != "" {
		return w.Name
	}
	// Unresolvable reference: fall back to the raw id for display.
	return id
}

func (c Context) crewName(id string) string {
	if n, ok := c.CrewNames[id]; ok && n != "" {
		return n
	}
	return id
}

func (c Context) terminal(washroomID string) string {
	if w, ok := c.Washrooms[washroomID]; ok {
		return w.Terminal
	}
	return ""
}

// Filter is one set of active facets. An empty facet is no constraint,
// not "match nothing"; a task passes iff it satisfies every active
// facet.
type Filter struct {
	TypeTitles  []string           `json:"type_titles,omitempty"`
	WashroomIDs []string           `json:"washroom_ids,omitempty"`
	Priorities  []domain.Priority  `json:"priorities,omitempty"`
	States      []domain.TaskState `json:"states,omitempty"`
	CrewIDs     []string           `json:"crew_ids,omitempty"`
	Terminals   []string           `json:"terminals,omitempty"`
	IDQuery     string             `json:"id_query,omitempty"`
	SkipHorizon bool               `json:"skip_horizon,omitempty"`
}

// Match evaluates the AND of all active facets plus the time-horizon
// windowing rule, which runs before any user facet.
func (f Filter) Match(t domain.Task, ctx Context) bool {
	if !f.SkipHorizon && !lifecycle.InHorizon(t, ctx.Now, ctx.Horizon) {
		return false
	}
	if !contains(f.TypeTitles, t.Type.Title()) {
		return false
	}
	if !contains(f.WashroomIDs, t.WashroomID) {
		return false
	}
	if !contains(f.Priorities, t.Priority) {
		return false
	}
	if !contains(f.States, t.State) {
		return false
	}
	if !contains(f.CrewIDs, t.ActiveCrewID()) {
		return false
	}
	if !contains(f.Terminals, ctx.terminal(t.WashroomID)) {
		return false
	}
	if f.IDQuery != "" && !strings.Contains(strings.ToLower(t.ID), strings.ToLower(f.IDQuery)) {
		return false
	}
	return true
}

// Apply filters tasks, preserving encounter order.
func Apply(tasks []domain.Task, f Filter, ctx Context) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t, ctx) {
			out = append(out, t)
		}
	}
	return out
}

func contains[T comparable](facet []T, v T) bool {
	if len(facet) == 0 {
		return true
	}
	for _, f := range facet {
		if f == v {
			return true
		}
	}
	return false
}

type SortField string

const (
	SortSLA      SortField = "sla"
	SortPriority SortField = "priority"
	SortWashroom SortField = "washroom"
	SortCrew     SortField = "crew"
	SortType     SortField = "type"
	SortState    SortField = "state"
	SortCreated  SortField = "created"
	SortID       SortField = "id"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// sortCycle is the fixed order the "next sort" control advances
// through.
var sortCycle = []SortField{SortSLA, SortPriority, SortWashroom, SortCrew, SortType, SortState, SortCreated, SortID}

// Order is the single active sort applied by every list surface.
type Order struct {
	Field SortField `json:"field" enum:"sla,priority,washroom,crew,type,state,created,id"`
	Dir   Direction `json:"dir" enum:"asc,desc"`
}

// Next advances to the following sort field as one combined operation;
// wrapping past the end of the field list flips the direction.
func (o Order) Next() Order {
	idx := 0
	for i, f := range sortCycle {
		if f == o.Field {
			idx = i
			break
		}
	}
	idx++
	if idx >= len(sortCycle) {
		idx = 0
		if o.Dir == Desc {
			o.Dir = Asc
		} else {
			o.Dir = Desc
		}
	}
	o.Field = sortCycle[idx]
	return o
}

// newCollator builds a fresh collator for one sort. Collators reuse
// internal buffers between comparisons and are not safe for concurrent
// use, so none is ever shared across calls.
func newCollator() *collate.Collator {
	return collate.New(language.English, collate.Loose)
}

// SortTasks returns tasks ordered by o. The sort is stable; direction
// is applied by negating the comparator.
func SortTasks(tasks []domain.Task, o Order, ctx Context) []domain.Task {
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	cmp := comparator(o.Field, ctx)
	if cmp == nil {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if o.Dir == Desc {
			c = -c
		}
		return c < 0
	})
	return out
}

func comparator(field SortField, ctx Context) func(a, b domain.Task) int {
	switch field {
	case SortSLA:
		// Missing deadlines sort as +infinity, last in ascending order.
		return func(a, b domain.Task) int {
			switch {
			case a.SLADeadline == nil && b.SLADeadline == nil:
				return 0
			case a.SLADeadline == nil:
				return 1
			case b.SLADeadline == nil:
				return -1
			}
			return a.SLADeadline.Compare(*b.SLADeadline)
		}
	case SortPriority:
		return func(a, b domain.Task) int {
			return a.Priority.Rank() - b.Priority.Rank()
		}
	case SortWashroom:
		col := newCollator()
		return func(a, b domain.Task) int {
			return col.CompareString(ctx.washroomName(a.WashroomID), ctx.washroomName(b.WashroomID))
		}
	case SortCrew:
		col := newCollator()
		return func(a, b domain.Task) int {
			return col.CompareString(ctx.crewName(a.ActiveCrewID()), ctx.crewName(b.ActiveCrewID()))
		}
	case SortType:
		col := newCollator()
		return func(a, b domain.Task) int {
			return col.CompareString(a.Type.Title(), b.Type.Title())
		}
	case SortState:
		col := newCollator()
		return func(a, b domain.Task) int {
			return col.CompareString(string(a.State), string(b.State))
		}
	case SortCreated:
		return func(a, b domain.Task) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	case SortID:
		return func(a, b domain.Task) int {
			return strings.Compare(a.ID, b.ID)
		}
	}
	return nil
}
