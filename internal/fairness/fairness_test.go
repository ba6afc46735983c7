package fairness

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"washline/internal/domain"
)

var now = time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

func crewMember(id, name string) domain.Crew {
	return domain.Crew{
		ID:     id,
		Name:   name,
		Shift:  domain.ShiftWindow{Start: now.Add(-6 * time.Hour), End: now.Add(2 * time.Hour)},
		Status: domain.CrewOnShift,
	}
}

func rosterOf(n int) []domain.Crew {
	crew := make([]domain.Crew, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("c%d", i+1)
		crew = append(crew, crewMember(id, "Crew "+id))
	}
	return crew
}

func batchFor(counts map[string]int) []domain.Assignment {
	var out []domain.Assignment
	for crewID, n := range counts {
		for i := 0; i < n; i++ {
			out = append(out, domain.Assignment{
				TaskID:            fmt.Sprintf("%s-task-%d", crewID, i),
				CrewID:            crewID,
				TravelTimeMinutes: 2,
			})
		}
	}
	return out
}

func TestIsEmergencySignals(t *testing.T) {
	assert.True(t, IsEmergency(&domain.Task{ID: "t1", Priority: domain.PriorityEmergency}, ""))
	assert.True(t, IsEmergency(&domain.Task{ID: "t2", Type: domain.TaskEmergencyCleaning}, ""))
	assert.False(t, IsEmergency(&domain.Task{ID: "t3", Priority: domain.PriorityNormal, Type: domain.TaskInspection}, ""))

	// Bare assignment rows fall back to the id-naming convention.
	assert.True(t, IsEmergency(nil, "EMERGENCY-7"))
	assert.True(t, IsEmergency(nil, "task-emergency-b2"))
	assert.False(t, IsEmergency(nil, "routine-42"))

	// The convention also applies to full records via their id.
	assert.True(t, IsEmergency(&domain.Task{ID: "emergency-spill-4", Priority: domain.PriorityNormal}, ""))
}

func TestAnalyzeOverloadedDistribution(t *testing.T) {
	crew := rosterOf(4)
	report := Analyze(Input{
		Crew:        crew,
		Assignments: batchFor(map[string]int{"c1": 10, "c2": 1, "c3": 1}),
		Now:         now,
	})

	require.Len(t, report.Metrics, 4)
	byID := map[string]CrewMetrics{}
	for _, m := range report.Metrics {
		byID[m.CrewID] = m
	}
	assert.Equal(t, 10, byID["c1"].TotalTasks)
	assert.Equal(t, 0, byID["c4"].TotalTasks)

	// [10,1,1,0]: avg 3, busiest 10 > 1.5*3 and quietest 0 < 0.5*3.
	require.Len(t, report.Issues, 2)
	assert.Contains(t, report.Issues[0], "Crew c1 carries 10 tasks")
	assert.Contains(t, report.Issues[1], "uneven task distribution")
}

func TestAnalyzeEmergencySkew(t *testing.T) {
	crew := rosterOf(3)
	assignments := []domain.Assignment{
		{TaskID: "emergency-1", CrewID: "c1"},
		{TaskID: "emergency-2", CrewID: "c1"},
		{TaskID: "emergency-3", CrewID: "c1"},
		{TaskID: "routine-1", CrewID: "c2"},
		{TaskID: "routine-2", CrewID: "c2"},
		{TaskID: "routine-3", CrewID: "c3"},
		{TaskID: "routine-4", CrewID: "c3"},
	}
	report := Analyze(Input{Crew: crew, Assignments: assignments, Now: now})

	// c1 holds 3 of 3 emergencies against an average of 1.
	require.NotEmpty(t, report.Issues)
	assert.Contains(t, report.Issues[0], "Crew c1 handles 100% of all emergency tasks (3 of 3)")
}

func TestAnalyzeBalancedNoIssues(t *testing.T) {
	crew := rosterOf(3)
	report := Analyze(Input{
		Crew:        crew,
		Assignments: batchFor(map[string]int{"c1": 3, "c2": 3, "c3": 3}),
		Now:         now,
	})
	assert.Empty(t, report.Issues)
}

func TestAnalyzeWalkingFromTravelMinutes(t *testing.T) {
	crew := rosterOf(1)
	report := Analyze(Input{
		Crew: crew,
		Assignments: []domain.Assignment{
			{TaskID: "t1", CrewID: "c1", TravelTimeMinutes: 4},
			{TaskID: "t2", CrewID: "c1", TravelTimeMinutes: 6},
		},
		Now: now,
	})
	require.Len(t, report.Metrics, 1)
	assert.InDelta(t, 10*83, report.Metrics[0].WalkingDistanceMeters, 0.001)
}

func TestAnalyzeFallbackUsesTaskRecords(t *testing.T) {
	crew := rosterOf(2)
	crew[0].WalkingDistanceMeters = 1200
	c1, c2 := "c1", "c2"
	tasks := []domain.Task{
		{ID: "t1", State: domain.TaskAssigned, AssignedCrewID: &c1, Priority: domain.PriorityEmergency, CreatedAt: now.Add(-time.Hour)},
		{ID: "t2", State: domain.TaskInProgress, AssignedCrewID: &c1, Priority: domain.PriorityNormal, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "t3", State: domain.TaskCompleted, AssignedCrewID: &c2, Priority: domain.PriorityNormal, CreatedAt: now.Add(-time.Hour)},
		// Cancelled tasks keep a stale crew id the analyzer must ignore.
		{ID: "t4", State: domain.TaskCancelled, AssignedCrewID: &c2, CreatedAt: now.Add(-time.Hour)},
		// Yesterday's work does not count toward today's service day.
		{ID: "t5", State: domain.TaskCompleted, AssignedCrewID: &c2, CreatedAt: now.Add(-30 * time.Hour)},
	}

	report := Analyze(Input{Crew: crew, Tasks: tasks, Now: now})
	require.Len(t, report.Metrics, 2)
	byID := map[string]CrewMetrics{}
	for _, m := range report.Metrics {
		byID[m.CrewID] = m
	}
	assert.Equal(t, 2, byID["c1"].TotalTasks)
	assert.Equal(t, 1, byID["c1"].EmergencyTasks)
	assert.InDelta(t, 1200, byID["c1"].WalkingDistanceMeters, 0.001)
	assert.Equal(t, 1, byID["c2"].TotalTasks)
}

func TestAnalyzeBatchWinsOverTasks(t *testing.T) {
	crew := rosterOf(2)
	c2 := "c2"
	tasks := []domain.Task{
		{ID: "t1", State: domain.TaskAssigned, AssignedCrewID: &c2, CreatedAt: now},
	}
	report := Analyze(Input{
		Crew:        crew,
		Tasks:       tasks,
		Assignments: []domain.Assignment{{TaskID: "t1", CrewID: "c1"}},
		Now:         now,
	})
	byID := map[string]CrewMetrics{}
	for _, m := range report.Metrics {
		byID[m.CrewID] = m
	}
	// With a batch present it is the source for every crew member.
	assert.Equal(t, 1, byID["c1"].TotalTasks)
	assert.Equal(t, 0, byID["c2"].TotalTasks)
}

func TestAnalyzeDegenerateInputs(t *testing.T) {
	assert.Empty(t, Analyze(Input{Now: now}).Metrics)
	assert.Empty(t, Analyze(Input{Now: now}).Issues)

	report := Analyze(Input{Crew: rosterOf(3), Now: now})
	assert.Len(t, report.Metrics, 3)
	assert.Empty(t, report.Issues, "idle roster is not skewed")
}

func TestThresholdOverrides(t *testing.T) {
	crew := rosterOf(2)
	report := Analyze(Input{
		Crew:        crew,
		Assignments: batchFor(map[string]int{"c1": 3, "c2": 1}),
		Now:         now,
		Thresholds:  Thresholds{Overload: 10, Spread: 0.01},
	})
	assert.Empty(t, report.Issues, "relaxed thresholds suppress the overload issue")
}
