package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// maxOccurrencesPerSeries caps expansion so a malformed or unbounded rule
// cannot blow up a listing request.
const maxOccurrencesPerSeries = 1000

// ExpandOccurrences materializes an event's occurrences overlapping the
// half-open window [windowStart, windowEnd). Standalone events yield at most
// one occurrence; recurring events are expanded through their rule with the
// event's own duration. Instance keys are the occurrence start in UnixNano,
// which is stable across expansions of the same series.
func ExpandOccurrences(event AvailabilityEvent, windowStart, windowEnd time.Time) ([]EventOccurrence, error) {
	if !windowEnd.After(windowStart) {
		return nil, errors.New("window_end must be after window_start")
	}

	if !event.IsRecurring() {
		if event.StartTime.Before(windowEnd) && event.EndTime.After(windowStart) {
			return []EventOccurrence{occurrenceOf(event, event.StartTime.UTC(), event.EndTime.UTC(), "")}, nil
		}
		return nil, nil
	}

	opt, err := rrule.StrToROption(strings.TrimPrefix(event.RecurrenceRule, "RRULE:"))
	if err != nil {
		return nil, err
	}
	opt.Dtstart = event.StartTime.UTC()
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, err
	}

	duration := event.EndTime.Sub(event.StartTime)
	if event.AllDay {
		duration = 24 * time.Hour
	}

	// Query a little before the window so occurrences that start earlier but
	// still run into it are not missed.
	starts := rule.Between(windowStart.Add(-duration), windowEnd, true)
	if len(starts) > maxOccurrencesPerSeries {
		starts = starts[:maxOccurrencesPerSeries]
	}

	out := make([]EventOccurrence, 0, len(starts))
	for _, start := range starts {
		occStart := start.UTC()
		var occEnd time.Time
		if event.AllDay {
			day := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, time.UTC)
			occStart = day
			occEnd = day.AddDate(0, 0, 1)
		} else {
			occEnd = occStart.Add(duration)
		}
		if !occStart.Before(windowEnd) || !occEnd.After(windowStart) {
			continue
		}
		key := strconv.FormatInt(occStart.UnixNano(), 10)
		out = append(out, occurrenceOf(event, occStart, occEnd, key))
	}

	return out, nil
}

func occurrenceOf(event AvailabilityEvent, start, end time.Time, instanceKey string) EventOccurrence {
	occ := EventOccurrence{
		ID:             event.ID.String(),
		EvaluatorID:    event.EvaluatorID,
		Title:          event.Title,
		StartTime:      start,
		EndTime:        end,
		AllDay:         event.AllDay,
		Unavailability: event.Unavailability,
		OfficeKeys:     event.OfficeKeys,
	}
	if instanceKey != "" {
		occ.ID = instanceKey
		occ.SeriesID = event.ID.String()
	}
	return occ
}
