// Package fairness aggregates per-crew workload and flags skewed task
// distribution. The analysis is advisory: it produces metrics and issue
// strings, never errors, and is recomputed from scratch each cycle.
package fairness

import (
	"fmt"
	"math"
	"strings"
	"time"

	"washline/internal/domain"
)

// MetersPerTravelMinute converts optimizer travel minutes to walked
// meters, approximating a 5 km/h walking speed.
const MetersPerTravelMinute = 83

// Thresholds tune the skew checks; zero values fall back to defaults.
type Thresholds struct {
	EmergencySkew float64 `yaml:"emergency_skew"`
	Overload      float64 `yaml:"overload"`
	Spread        float64 `yaml:"spread"`
}

func (t Thresholds) withDefaults() Thresholds {
	if t.EmergencySkew <= 0 {
		t.EmergencySkew = 1.7
	}
	if t.Overload <= 0 {
		t.Overload = 1.5
	}
	if t.Spread <= 0 {
		t.Spread = 0.5
	}
	return t
}

// CrewMetrics is the per-crew workload rollup.
type CrewMetrics struct {
	CrewID                string  `json:"crew_id"`
	Name                  string  `json:"name"`
	TotalTasks            int     `json:"total_tasks"`
	EmergencyTasks        int     `json:"emergency_tasks"`
	RoutineTasks          int     `json:"routine_tasks"`
	EmergencyRatio        float64 `json:"emergency_ratio"`
	WalkingDistanceMeters float64 `json:"walking_distance_meters"`
}

// Report is one analysis cycle's output.
type Report struct {
	Metrics []CrewMetrics `json:"metrics"`
	Issues  []string      `json:"issues"`
}

// Input is a snapshot for one analysis cycle. When Assignments is
// non-empty the optimizer output is the workload source for every crew
// member; otherwise raw task records are used as a fallback. Tasks also
// serve to resolve assignment ids to full records either way.
type Input struct {
	Crew        []domain.Crew
	Tasks       []domain.Task
	Assignments []domain.Assignment
	Now         time.Time
	Thresholds  Thresholds
}

// IsEmergency applies both emergency signals OR-combined: the
// authoritative priority/type fields when a full task record is at
// hand, and the optimizer's EMERGENCY id-naming convention as a
// fallback for bare assignment rows.
func IsEmergency(t *domain.Task, taskID string) bool {
	if t != nil {
		if t.Priority == domain.PriorityEmergency || t.Type == domain.TaskEmergencyCleaning {
			return true
		}
		taskID = t.ID
	}
	return strings.Contains(strings.ToLower(taskID), "emergency")
}

// Analyze computes per-crew metrics and runs the three independent skew
// checks. It never fails; degenerate inputs produce zero metrics and no
// issues.
func Analyze(in Input) Report {
	th := in.Thresholds.withDefaults()
	byID := make(map[string]*domain.Task, len(in.Tasks))
	for i := range in.Tasks {
		byID[in.Tasks[i].ID] = &in.Tasks[i]
	}

	metrics := make([]CrewMetrics, 0, len(in.Crew))
	for _, c := range in.Crew {
		m := CrewMetrics{CrewID: c.ID, Name: c.Name}
		if len(in.Assignments) > 0 {
			for _, a := range in.Assignments {
				if a.CrewID != c.ID {
					continue
				}
				m.TotalTasks++
				if IsEmergency(byID[a.TaskID], a.TaskID) {
					m.EmergencyTasks++
				}
				m.WalkingDistanceMeters += a.TravelTimeMinutes * MetersPerTravelMinute
			}
		} else {
			dayStart := serviceDayStart(c, in.Now)
			for i := range in.Tasks {
				t := &in.Tasks[i]
				if t.ActiveCrewID() != c.ID || t.CreatedAt.Before(dayStart) {
					continue
				}
				m.TotalTasks++
				if IsEmergency(t, t.ID) {
					m.EmergencyTasks++
				}
			}
			m.WalkingDistanceMeters = c.WalkingDistanceMeters
		}
		m.RoutineTasks = m.TotalTasks - m.EmergencyTasks
		if m.TotalTasks > 0 {
			m.EmergencyRatio = float64(m.EmergencyTasks) / float64(m.TotalTasks)
		}
		metrics = append(metrics, m)
	}

	return Report{Metrics: metrics, Issues: detectSkew(metrics, th)}
}

// serviceDayStart anchors the fallback source's window: only tasks
// created since the start of the crew's shift day count.
func serviceDayStart(c domain.Crew, now time.Time) time.Time {
	anchor := c.Shift.Start
	if anchor.IsZero() {
		anchor = now
	}
	y, m, d := anchor.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, anchor.Location())
}

func detectSkew(metrics []CrewMetrics, th Thresholds) []string {
	if len(metrics) == 0 {
		return nil
	}
	crewCount := float64(len(metrics))
	totalTasks, totalEmergencies := 0, 0
	maxT, minT, maxE := -1, math.MaxInt, -1
	var maxTCrew, maxECrew CrewMetrics
	for _, m := range metrics {
		totalTasks += m.TotalTasks
		totalEmergencies += m.EmergencyTasks
		if m.TotalTasks > maxT {
			maxT = m.TotalTasks
			maxTCrew = m
		}
		if m.TotalTasks < minT {
			minT = m.TotalTasks
		}
		if m.EmergencyTasks > maxE {
			maxE = m.EmergencyTasks
			maxECrew = m
		}
	}

	var issues []string
	avgE := float64(totalEmergencies) / crewCount
	if totalEmergencies > 0 && float64(maxE) > th.EmergencySkew*avgE {
		pct := float64(maxE) / float64(totalEmergencies) * 100
		issues = append(issues, fmt.Sprintf("%s handles %.0f%% of all emergency tasks (%d of %d)",
			maxECrew.Name, pct, maxE, totalEmergencies))
	}
	avgT := float64(totalTasks) / crewCount
	overloaded := float64(maxT) > th.Overload*avgT
	if overloaded {
		issues = append(issues, fmt.Sprintf("%s carries %d tasks against a crew average of %d",
			maxTCrew.Name, maxT, int(math.Round(avgT))))
	}
	if overloaded && float64(minT) < th.Spread*avgT {
		issues = append(issues, fmt.Sprintf("uneven task distribution: busiest crew has %d tasks while quietest has %d",
			maxT, minT))
	}
	return issues
}
