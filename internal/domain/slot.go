package domain

import (
	"errors"
	"fmt"
	"time"
)

// MinutesPerDay bounds every time-of-day value in the system.
const MinutesPerDay = 24 * 60

// Interval is a half-open [StartMinute, EndMinute) range within a single day.
type Interval struct {
	StartMinute int
	EndMinute   int
}

// Overlaps applies the half-open interval test: two intervals overlap iff
// a.start < b.end && b.start < a.end. Back-to-back intervals do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.StartMinute < other.EndMinute && other.StartMinute < i.EndMinute
}

// HasOverlap reports whether [start, end) overlaps any of the busy intervals.
func HasOverlap(start, end int, busy []Interval) bool {
	probe := Interval{StartMinute: start, EndMinute: end}
	for _, b := range busy {
		if probe.Overlaps(b) {
			return true
		}
	}
	return false
}

// TimeSlot is a candidate start time computed on demand. It is never stored;
// availability is always recomputed from current appointment rows.
type TimeSlot struct {
	StartMinute int
	Available   bool
}

// ComputeSlots generates candidate start times for one day's operating window
// at a fixed step, marking each candidate unavailable when a booking of
// durationMinutes starting there would overlap a busy interval.
//
// Candidates whose end would pass the closing time are not generated at all.
// A closed day, a missing window, or a non-positive duration or step yields an
// empty result; those are normal outcomes, not errors. Unavailable candidates
// are included so callers can render booked slots next to open ones.
func ComputeSlots(hours BusinessHours, busy []Interval, durationMinutes, stepMinutes int) []TimeSlot {
	if hours.IsClosed {
		return nil
	}
	if durationMinutes <= 0 || stepMinutes <= 0 {
		return nil
	}
	if hours.OpensAtMinute < 0 || hours.ClosesAtMinute > MinutesPerDay {
		return nil
	}
	if hours.OpensAtMinute+durationMinutes > hours.ClosesAtMinute {
		return nil
	}

	slots := make([]TimeSlot, 0, (hours.ClosesAtMinute-hours.OpensAtMinute)/stepMinutes+1)
	for start := hours.OpensAtMinute; start+durationMinutes <= hours.ClosesAtMinute; start += stepMinutes {
		slots = append(slots, TimeSlot{
			StartMinute: start,
			Available:   !HasOverlap(start, start+durationMinutes, busy),
		})
	}
	return slots
}

// BusyIntervals collects the intervals of appointments that still block their
// slot, optionally ignoring one appointment id (used by reschedule so an
// appointment does not conflict with itself).
func BusyIntervals(appts []Appointment, exclude func(Appointment) bool) []Interval {
	out := make([]Interval, 0, len(appts))
	for _, a := range appts {
		if !a.Status.BlocksSlot() {
			continue
		}
		if exclude != nil && exclude(a) {
			continue
		}
		out = append(out, a.Interval())
	}
	return out
}

// ParseClock converts a "HH:MM" wall-clock string to minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, errors.New("clock must be HH:MM")
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as "HH:MM". Minute 1440 renders
// as "24:00" so a closing time at midnight stays representable.
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
