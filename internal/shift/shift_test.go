package shift

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"washline/internal/domain"
)

func day(hour, min int) time.Time {
	return time.Date(2024, 3, 1, hour, min, 0, 0, time.UTC)
}

func dayShift() domain.ShiftWindow {
	return domain.ShiftWindow{Start: day(8, 0), End: day(16, 0)}
}

func nightShift() domain.ShiftWindow {
	// 22:00 to 06:00 the next day.
	return domain.ShiftWindow{Start: day(22, 0), End: day(6, 0).Add(24 * time.Hour)}
}

func crewOn(w domain.ShiftWindow, status domain.CrewStatus) domain.Crew {
	return domain.Crew{ID: "c1", Name: "Amira", Shift: w, Status: status}
}

func TestInWindowDayShift(t *testing.T) {
	w := dayShift()
	assert.True(t, InWindow(w, day(8, 0)), "start inclusive")
	assert.True(t, InWindow(w, day(12, 0)))
	assert.False(t, InWindow(w, day(16, 0)), "end exclusive")
	assert.False(t, InWindow(w, day(7, 59)))
}

func TestInWindowOvernight(t *testing.T) {
	w := nightShift()
	assert.True(t, InWindow(w, day(23, 30)))
	assert.True(t, InWindow(w, day(2, 0)))
	assert.False(t, InWindow(w, day(7, 0)))
	assert.False(t, InWindow(w, day(21, 59)))
}

func TestEffectiveStatusOutsideWindow(t *testing.T) {
	c := crewOn(dayShift(), domain.CrewBusy)
	assert.Equal(t, domain.CrewOffShift, EffectiveStatus(c, day(18, 0)))

	// Unavailable is a dispatcher hold and survives the window edge.
	c.Status = domain.CrewUnavailable
	assert.Equal(t, domain.CrewUnavailable, EffectiveStatus(c, day(18, 0)))
}

func TestEffectiveStatusInsideWindow(t *testing.T) {
	c := crewOn(dayShift(), domain.CrewOffShift)
	assert.Equal(t, domain.CrewOnShift, EffectiveStatus(c, day(10, 0)))

	c.Status = domain.CrewBusy
	assert.Equal(t, domain.CrewBusy, EffectiveStatus(c, day(10, 0)))
}

func TestEvaluateBreakFromShiftStart(t *testing.T) {
	c := crewOn(dayShift(), domain.CrewOnShift)
	bs := EvaluateBreak(c, day(10, 0), Policy{})
	require.True(t, bs.Eligible)
	assert.Equal(t, 120, bs.MinutesSinceBreak)
	assert.Equal(t, day(12, 0), bs.NextBreakDue)
	assert.False(t, bs.Overdue)
	assert.False(t, bs.NeedsBreakSoon)
}

func TestEvaluateBreakOverdueAt241Minutes(t *testing.T) {
	c := crewOn(dayShift(), domain.CrewOnShift)
	at240 := EvaluateBreak(c, day(12, 0), Policy{})
	assert.False(t, at240.Overdue, "exactly 240 minutes is not yet overdue")
	assert.True(t, at240.NeedsBreakSoon)

	at241 := EvaluateBreak(c, day(12, 1), Policy{})
	assert.True(t, at241.Overdue)
	assert.False(t, at241.NeedsBreakSoon, "overdue supersedes needs-soon")
}

func TestEvaluateBreakNeedsSoonThreshold(t *testing.T) {
	c := crewOn(dayShift(), domain.CrewOnShift)
	// 0.8 * 240 = 192 minutes; strictly greater trips the flag.
	assert.False(t, EvaluateBreak(c, day(11, 12), Policy{}).NeedsBreakSoon)
	assert.True(t, EvaluateBreak(c, day(11, 13), Policy{}).NeedsBreakSoon)
}

func TestEvaluateBreakAnchorsOnLastBreak(t *testing.T) {
	c := crewOn(dayShift(), domain.CrewAvailable)
	lastBreak := day(11, 0)
	c.LastBreakEnd = &lastBreak

	bs := EvaluateBreak(c, day(12, 0), Policy{})
	assert.Equal(t, 60, bs.MinutesSinceBreak)
	assert.Equal(t, day(15, 0), bs.NextBreakDue)
}

func TestEvaluateBreakExcludesNonWorkable(t *testing.T) {
	for _, status := range []domain.CrewStatus{domain.CrewOnBreak, domain.CrewUnavailable} {
		c := crewOn(dayShift(), status)
		bs := EvaluateBreak(c, day(13, 0), Policy{})
		assert.False(t, bs.Eligible, "status %s", status)
	}
	// Outside the window the effective status is off_shift.
	c := crewOn(dayShift(), domain.CrewOnShift)
	assert.False(t, EvaluateBreak(c, day(20, 0), Policy{}).Eligible)
}

func TestEvaluateBreakCustomPolicy(t *testing.T) {
	c := crewOn(dayShift(), domain.CrewOnShift)
	p := Policy{MaxWorkMinutes: 60}
	bs := EvaluateBreak(c, day(9, 30), p)
	assert.True(t, bs.Overdue)
	assert.Equal(t, day(9, 0), bs.NextBreakDue)
}

func TestRankByBreakUrgency(t *testing.T) {
	statuses := []BreakStatus{
		{CrewID: "fresh", MinutesSinceBreak: 30},
		{CrewID: "overdue", MinutesSinceBreak: 250, Overdue: true},
		{CrewID: "soon", MinutesSinceBreak: 200, NeedsBreakSoon: true},
		{CrewID: "tired", MinutesSinceBreak: 100},
	}
	ranked := RankByBreakUrgency(statuses)
	ids := make([]string, len(ranked))
	for i, bs := range ranked {
		ids[i] = bs.CrewID
	}
	assert.Equal(t, []string{"overdue", "soon", "tired", "fresh"}, ids)
	// Input order untouched.
	assert.Equal(t, "fresh", statuses[0].CrewID)
}

func TestChangeStatusUnavailableNeedsReason(t *testing.T) {
	c := crewOn(dayShift(), domain.CrewAvailable)
	_, err := ChangeStatus(c, domain.CrewUnavailable, "")
	assert.ErrorIs(t, err, ErrReasonRequired)

	out, err := ChangeStatus(c, domain.CrewUnavailable, "injury")
	require.NoError(t, err)
	assert.Equal(t, domain.CrewUnavailable, out.Status)
	assert.Equal(t, "injury", out.StatusReason)
}

func TestChangeStatusRejectsUnknown(t *testing.T) {
	c := crewOn(dayShift(), domain.CrewAvailable)
	_, err := ChangeStatus(c, "napping", "")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStartFinishBreak(t *testing.T) {
	c := crewOn(dayShift(), domain.CrewOnShift)

	onBreak, err := StartBreak(c, day(12, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.CrewOnBreak, onBreak.Status)

	// Starting a break from a break is rejected.
	_, err = StartBreak(onBreak, day(12, 5))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	done, err := FinishBreak(onBreak, day(12, 15))
	require.NoError(t, err)
	assert.Equal(t, domain.CrewAvailable, done.Status)
	require.NotNil(t, done.LastBreakEnd)
	assert.Equal(t, day(12, 15), *done.LastBreakEnd)
}

func TestFinishBreakRequiresOnBreak(t *testing.T) {
	c := crewOn(dayShift(), domain.CrewAvailable)
	_, err := FinishBreak(c, day(12, 0))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateWindowRollsOverClockTimes(t *testing.T) {
	c := crewOn(dayShift(), domain.CrewOnShift)
	// End clock time before start on the same date means overnight.
	out, err := UpdateWindow(c, domain.ShiftWindow{Start: day(22, 0), End: day(6, 0)})
	require.NoError(t, err)
	assert.True(t, out.Shift.Overnight())
	assert.True(t, out.Shift.End.After(out.Shift.Start))
}

func TestUpdateWindowKeepsLastBreak(t *testing.T) {
	c := crewOn(dayShift(), domain.CrewOnShift)
	lastBreak := day(11, 0)
	c.LastBreakEnd = &lastBreak

	out, err := UpdateWindow(c, domain.ShiftWindow{Start: day(9, 0), End: day(17, 0)})
	require.NoError(t, err)
	assert.Equal(t, &lastBreak, out.LastBreakEnd)
}
