// Package shift tracks crew shift-window membership and break policy.
// Everything here is a pure function over crew snapshots; the engine
// layer owns persistence and the cross-entity guard against taking a
// crew member off shift while they still hold live tasks.
package shift

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"washline/internal/domain"
)

var (
	ErrReasonRequired = errors.New("status reason required")
	ErrInvalidStatus  = errors.New("invalid crew status")
	ErrInvalidWindow  = errors.New("shift end must be after start")
)

const (
	MaxWorkMinutesBeforeBreak = 240
	BreakDurationMinutes      = 15
)

// Policy carries the break thresholds; zero values fall back to the
// package constants.
type Policy struct {
	MaxWorkMinutes       int `yaml:"max_work_minutes_before_break"`
	BreakDurationMinutes int `yaml:"break_duration_minutes"`
}

func (p Policy) maxWork() int {
	if p.MaxWorkMinutes > 0 {
		return p.MaxWorkMinutes
	}
	return MaxWorkMinutesBeforeBreak
}

// InWindow reports active shift membership at now. Windows are compared
// on clock time so a stored shift applies to the current service day;
// an overnight window (end on the following calendar day) wraps past
// midnight.
func InWindow(w domain.ShiftWindow, now time.Time) bool {
	start := minuteOfDay(w.Start)
	end := minuteOfDay(w.End)
	cur := minuteOfDay(now)
	if w.Overnight() {
		return cur >= start || cur < end
	}
	return cur >= start && cur < end
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// EffectiveStatus resolves the status scheduling must trust. Outside the
// shift window a stale working status reads as off_shift; an explicit
// unavailable hold survives the window edge. Inside the window a stale
// off_shift is corrected to on_shift.
func EffectiveStatus(c domain.Crew, now time.Time) domain.CrewStatus {
	if !InWindow(c.Shift, now) {
		if c.Status == domain.CrewUnavailable {
			return domain.CrewUnavailable
		}
		return domain.CrewOffShift
	}
	if c.Status == domain.CrewOffShift {
		return domain.CrewOnShift
	}
	return c.Status
}

// BreakStatus is the derived break-policy view for one crew member.
type BreakStatus struct {
	CrewID            string    `json:"crew_id"`
	Name              string    `json:"name"`
	MinutesSinceBreak int       `json:"minutes_since_break"`
	NextBreakDue      time.Time `json:"next_break_due"`
	Overdue           bool      `json:"overdue"`
	NeedsBreakSoon    bool      `json:"needs_break_soon"`
	Eligible          bool      `json:"eligible"`
}

// EvaluateBreak computes break urgency for one crew member. Only
// workable statuses (on_shift, available, busy) are evaluated; on_break,
// unavailable and off_shift are excluded. The work anchor is the last
// completed break, or shift start if the crew has not had one.
func EvaluateBreak(c domain.Crew, now time.Time, p Policy) BreakStatus {
	bs := BreakStatus{CrewID: c.ID, Name: c.Name}
	if !EffectiveStatus(c, now).Workable() {
		return bs
	}
	anchor := c.Shift.Start
	if c.LastBreakEnd != nil {
		anchor = *c.LastBreakEnd
	}
	maxWork := p.maxWork()
	bs.Eligible = true
	bs.MinutesSinceBreak = int(now.Sub(anchor).Minutes())
	bs.NextBreakDue = anchor.Add(time.Duration(maxWork) * time.Minute)
	bs.Overdue = bs.MinutesSinceBreak > maxWork
	bs.NeedsBreakSoon = !bs.Overdue && float64(bs.MinutesSinceBreak) > 0.8*float64(maxWork)
	return bs
}

// RankByBreakUrgency orders break statuses for display: overdue first,
// then needs-break-soon, then minutes since last break descending.
// Equal entries retain their original order.
func RankByBreakUrgency(statuses []BreakStatus) []BreakStatus {
	ranked := make([]BreakStatus, len(statuses))
	copy(ranked, statuses)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Overdue != b.Overdue {
			return a.Overdue
		}
		if a.NeedsBreakSoon != b.NeedsBreakSoon {
			return a.NeedsBreakSoon
		}
		return a.MinutesSinceBreak > b.MinutesSinceBreak
	})
	return ranked
}

// ChangeStatus applies a dispatcher status change. Moving to unavailable
// requires a reason; moving away from unavailable changes nothing but
// the status itself.
func ChangeStatus(c domain.Crew, to domain.CrewStatus, reason string) (domain.Crew, error) {
	if !to.Valid() {
		return c, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if to == domain.CrewUnavailable && reason == "" {
		return c, fmt.Errorf("%w: unavailable needs a dispatcher reason", ErrReasonRequired)
	}
	c.Status = to
	if to == domain.CrewUnavailable {
		c.StatusReason = reason
	}
	return c, nil
}

// StartBreak moves a workable crew member onto break.
func StartBreak(c domain.Crew, now time.Time) (domain.Crew, error) {
	if !EffectiveStatus(c, now).Workable() {
		return c, fmt.Errorf("%w: cannot start break from %s", ErrInvalidStatus, c.Status)
	}
	c.Status = domain.CrewOnBreak
	return c, nil
}

// FinishBreak ends a break, stamping LastBreakEnd and returning the
// crew member to available.
func FinishBreak(c domain.Crew, now time.Time) (domain.Crew, error) {
	if c.Status != domain.CrewOnBreak {
		return c, fmt.Errorf("%w: finish break requires on_break, crew %s is %s", ErrInvalidStatus, c.ID, c.Status)
	}
	c.Status = domain.CrewAvailable
	c.LastBreakEnd = &now
	return c, nil
}

// UpdateWindow replaces the shift window. Editing the window never
// retroactively changes LastBreakEnd.
func UpdateWindow(c domain.Crew, w domain.ShiftWindow) (domain.Crew, error) {
	end := w.End
	if !end.After(w.Start) {
		// Day rollover: callers may supply clock times on one date.
		end = end.Add(24 * time.Hour)
	}
	if !end.After(w.Start) {
		return c, ErrInvalidWindow
	}
	c.Shift = domain.ShiftWindow{Start: w.Start, End: end}
	return c, nil
}
