package domain

import (
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("end must be after start")

// CanonicalRange converts a human-facing date range into the half-open
// [start, end) pair the calendar backend expects. Timed ranges pass through
// after validation. All-day ranges are truncated to their calendar days and
// the inclusive last day becomes an exclusive next-day boundary, so a
// single-day all-day event spans exactly [day, day+1).
func CanonicalRange(start, end time.Time, allDay bool) (time.Time, time.Time, error) {
	if !allDay {
		if !end.After(start) {
			return time.Time{}, time.Time{}, ErrInvalidRange
		}
		return start, end, nil
	}

	s := startOfDay(start)
	e := startOfDay(end).AddDate(0, 0, 1)
	if !e.After(s) {
		e = s.AddDate(0, 0, 1)
	}
	return s, e, nil
}

// DisplayRange is the inverse of CanonicalRange: for all-day ranges the
// exclusive end boundary is pulled back one day to the inclusive last day
// shown to the user.
func DisplayRange(start, end time.Time, allDay bool) (time.Time, time.Time) {
	if !allDay {
		return start, end
	}
	return start, end.AddDate(0, 0, -1)
}

// AdjustEndAfterStart implements the paired-field edit policy: when a start
// edit lands at or after the current end, the end shifts forward by a fixed
// offset (one hour timed, one day all-day) instead of rejecting the edit.
func AdjustEndAfterStart(start, end time.Time, allDay bool) time.Time {
	if end.After(start) {
		return end
	}
	if allDay {
		return start.AddDate(0, 0, 1)
	}
	return start.Add(time.Hour)
}

// AdjustStartBeforeEnd is the mirror policy for end edits.
func AdjustStartBeforeEnd(start, end time.Time, allDay bool) time.Time {
	if start.Before(end) {
		return start
	}
	if allDay {
		return end.AddDate(0, 0, -1)
	}
	return end.Add(-time.Hour)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
