package listview

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"washline/internal/domain"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testContext() Context {
	return Context{
		Washrooms: map[string]domain.Washroom{
			"w1": {ID: "w1", Name: "Arrivals East", Terminal: "T1"},
			"w2": {ID: "w2", Name: "Baggage South", Terminal: "T2"},
		},
		CrewNames: map[string]string{"c1": "Amira", "c2": "Bo"},
		Now:       now,
		Horizon:   6 * time.Hour,
	}
}

func task(id string, mods ...func(*domain.Task)) domain.Task {
	t := domain.Task{
		ID:         id,
		Type:       domain.TaskRoutineCleaning,
		WashroomID: "w1",
		Priority:   domain.PriorityNormal,
		State:      domain.TaskUnassigned,
		CreatedAt:  now.Add(-time.Hour),
	}
	for _, mod := range mods {
		mod(&t)
	}
	return t
}

func withCrew(crewID string, state domain.TaskState) func(*domain.Task) {
	return func(t *domain.Task) {
		t.AssignedCrewID = &crewID
		t.State = state
	}
}

func ids(tasks []domain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestEmptyFilterMatchesAll(t *testing.T) {
	ctx := testContext()
	tasks := []domain.Task{task("a"), task("b")}
	assert.Len(t, Apply(tasks, Filter{}, ctx), 2)
}

func TestHorizonWindowing(t *testing.T) {
	ctx := testContext()
	future := task("future", func(t *domain.Task) { t.CreatedAt = now.Add(7 * time.Hour) })
	near := task("near", func(t *domain.Task) { t.CreatedAt = now.Add(5 * time.Hour) })

	visible := Apply([]domain.Task{future, near}, Filter{}, ctx)
	assert.Equal(t, []string{"near"}, ids(visible))

	all := Apply([]domain.Task{future, near}, Filter{SkipHorizon: true}, ctx)
	assert.Len(t, all, 2)
}

func TestFacetsANDTogether(t *testing.T) {
	ctx := testContext()
	tasks := []domain.Task{
		task("a", withCrew("c1", domain.TaskAssigned)),
		task("b", withCrew("c1", domain.TaskAssigned), func(t *domain.Task) { t.Priority = domain.PriorityEmergency }),
		task("c", withCrew("c2", domain.TaskAssigned), func(t *domain.Task) { t.Priority = domain.PriorityEmergency }),
	}
	f := Filter{
		CrewIDs:    []string{"c1"},
		Priorities: []domain.Priority{domain.PriorityEmergency},
	}
	assert.Equal(t, []string{"b"}, ids(Apply(tasks, f, ctx)))
}

func TestFacetValuesORWithin(t *testing.T) {
	ctx := testContext()
	tasks := []domain.Task{
		task("a"),
		task("b", func(t *domain.Task) { t.Priority = domain.PriorityHigh }),
		task("c", func(t *domain.Task) { t.Priority = domain.PriorityEmergency }),
	}
	f := Filter{Priorities: []domain.Priority{domain.PriorityHigh, domain.PriorityEmergency}}
	assert.Equal(t, []string{"b", "c"}, ids(Apply(tasks, f, ctx)))
}

func TestTypeFilterUsesDisplayTitles(t *testing.T) {
	ctx := testContext()
	tasks := []domain.Task{
		task("a"),
		task("b", func(t *domain.Task) { t.Type = domain.TaskInspection }),
	}
	f := Filter{TypeTitles: []string{"Inspection"}}
	assert.Equal(t, []string{"b"}, ids(Apply(tasks, f, ctx)))

	// The raw enum value is not a display title.
	assert.Empty(t, Apply(tasks, Filter{TypeTitles: []string{"inspection"}}, ctx))
}

func TestCrewFilterIgnoresStaleReferences(t *testing.T) {
	ctx := testContext()
	cancelled := task("a", withCrew("c1", domain.TaskCancelled))
	live := task("b", withCrew("c1", domain.TaskInProgress))

	got := Apply([]domain.Task{cancelled, live}, Filter{CrewIDs: []string{"c1"}}, ctx)
	assert.Equal(t, []string{"b"}, ids(got))
}

func TestTerminalFilter(t *testing.T) {
	ctx := testContext()
	tasks := []domain.Task{
		task("a"),
		task("b", func(t *domain.Task) { t.WashroomID = "w2" }),
	}
	assert.Equal(t, []string{"b"}, ids(Apply(tasks, Filter{Terminals: []string{"T2"}}, ctx)))
}

func TestIDQueryCaseInsensitive(t *testing.T) {
	ctx := testContext()
	tasks := []domain.Task{
		task("TASK-Alpha-1"),
		task("task-beta-2"),
	}
	assert.Equal(t, []string{"TASK-Alpha-1"}, ids(Apply(tasks, Filter{IDQuery: "alpha"}, ctx)))
}

func TestApplyIdempotent(t *testing.T) {
	ctx := testContext()
	tasks := []domain.Task{
		task("a"),
		task("b", func(t *domain.Task) { t.Priority = domain.PriorityHigh }),
		task("c"),
	}
	f := Filter{Priorities: []domain.Priority{domain.PriorityNormal}}
	once := Apply(tasks, f, ctx)
	twice := Apply(once, f, ctx)
	assert.Equal(t, once, twice)
}

func TestSortBySLAMissingDeadlinesLast(t *testing.T) {
	ctx := testContext()
	early := now.Add(10 * time.Minute)
	late := now.Add(40 * time.Minute)
	tasks := []domain.Task{
		task("none"),
		task("late", func(t *domain.Task) { t.SLADeadline = &late }),
		task("early", func(t *domain.Task) { t.SLADeadline = &early }),
	}
	got := SortTasks(tasks, Order{Field: SortSLA, Dir: Asc}, ctx)
	assert.Equal(t, []string{"early", "late", "none"}, ids(got))
}

func TestSortByPriority(t *testing.T) {
	ctx := testContext()
	tasks := []domain.Task{
		task("n"),
		task("e", func(t *domain.Task) { t.Priority = domain.PriorityEmergency }),
		task("h", func(t *domain.Task) { t.Priority = domain.PriorityHigh }),
	}
	asc := SortTasks(tasks, Order{Field: SortPriority, Dir: Asc}, ctx)
	assert.Equal(t, []string{"e", "h", "n"}, ids(asc))

	desc := SortTasks(tasks, Order{Field: SortPriority, Dir: Desc}, ctx)
	assert.Equal(t, []string{"n", "h", "e"}, ids(desc))
}

func TestSortStableOnTies(t *testing.T) {
	ctx := testContext()
	// All same priority: encounter order must survive the sort.
	tasks := []domain.Task{task("z"), task("a"), task("m")}
	got := SortTasks(tasks, Order{Field: SortPriority, Dir: Asc}, ctx)
	assert.Equal(t, []string{"z", "a", "m"}, ids(got))
}

func TestSortIdempotent(t *testing.T) {
	ctx := testContext()
	tasks := []domain.Task{
		task("b", func(t *domain.Task) { t.Priority = domain.PriorityHigh }),
		task("a"),
		task("c", func(t *domain.Task) { t.Priority = domain.PriorityEmergency }),
	}
	o := Order{Field: SortPriority, Dir: Asc}
	once := SortTasks(tasks, o, ctx)
	twice := SortTasks(once, o, ctx)
	assert.Equal(t, once, twice)
}

func TestSortByWashroomName(t *testing.T) {
	ctx := testContext()
	tasks := []domain.Task{
		task("b", func(t *domain.Task) { t.WashroomID = "w2" }),
		task("a"),
	}
	got := SortTasks(tasks, Order{Field: SortWashroom, Dir: Asc}, ctx)
	// Arrivals East before Baggage South.
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestSortByCrewNameUnassignedFirst(t *testing.T) {
	ctx := testContext()
	tasks := []domain.Task{
		task("bo", withCrew("c2", domain.TaskAssigned)),
		task("amira", withCrew("c1", domain.TaskAssigned)),
		task("free"),
	}
	got := SortTasks(tasks, Order{Field: SortCrew, Dir: Asc}, ctx)
	// Unassigned resolves to the empty name and collates first.
	assert.Equal(t, []string{"free", "amira", "bo"}, ids(got))
}

func TestSortTasksConcurrent(t *testing.T) {
	ctx := testContext()
	tasks := []domain.Task{
		task("b", func(t *domain.Task) { t.WashroomID = "w2" }),
		task("a"),
		task("d", withCrew("c2", domain.TaskAssigned)),
		task("c", withCrew("c1", domain.TaskAssigned)),
	}
	o := Order{Field: SortWashroom, Dir: Asc}
	want := ids(SortTasks(tasks, o, ctx))

	// Board requests sort the same working set from parallel handlers.
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.Equal(t, want, ids(SortTasks(tasks, o, ctx)))
			}
		}()
	}
	wg.Wait()
}

func TestSortDoesNotMutateInput(t *testing.T) {
	ctx := testContext()
	tasks := []domain.Task{task("z"), task("a")}
	_ = SortTasks(tasks, Order{Field: SortID, Dir: Asc}, ctx)
	assert.Equal(t, []string{"z", "a"}, ids(tasks))
}

func TestOrderNextCyclesAndFlips(t *testing.T) {
	o := Order{Field: SortSLA, Dir: Asc}
	o = o.Next()
	assert.Equal(t, SortPriority, o.Field)
	assert.Equal(t, Asc, o.Dir)

	// Walk to the end of the cycle; wrapping flips direction.
	o = Order{Field: SortID, Dir: Asc}.Next()
	assert.Equal(t, SortSLA, o.Field)
	assert.Equal(t, Desc, o.Dir)

	o = Order{Field: SortID, Dir: Desc}.Next()
	require.Equal(t, SortSLA, o.Field)
	assert.Equal(t, Asc, o.Dir)
}
