package store

import (
	"context"
	"time"

	"praxis/backend/internal/domain"
)

// ExceptionLookahead bounds how far around a listing window exception rows
// are fetched when applying them to expanded occurrences. Exceptions attach
// to base occurrences generated inside the window, so an override that moves
// an occurrence from outside the window into it is not surfaced; widening
// the fetch range alone cannot fix that.
const ExceptionLookahead = 14 * 24 * time.Hour

// ConflictLookahead is how far ahead of a new or updated event occurrences
// are expanded when checking the evaluator's calendar for overlaps.
const ConflictLookahead = 180 * 24 * time.Hour

// EventMutation is the payload an edit or delete submits to the calendar
// store. TargetID is the resolved identity: an event UUID for standalone
// events and whole-series edits, or a series instance key when only one
// occurrence is affected, in which case SeriesID and OccurrenceStart
// identify the occurrence being detached.
type EventMutation struct {
	TargetID        string
	SeriesID        string
	OccurrenceStart time.Time

	Title          string
	StartTime      time.Time
	EndTime        time.Time
	AllDay         bool
	Unavailability bool
	OfficeKeys     []string
	IsRecurring    bool
	RecurrenceRule string
}

type AvailabilityRepository interface {
	Create(ctx context.Context, event domain.AvailabilityEvent) (domain.AvailabilityEvent, error)
	Update(ctx context.Context, evaluatorID string, m EventMutation) error
	Delete(ctx context.Context, evaluatorID string, m EventMutation) error
	ListOccurrences(ctx context.Context, evaluatorID string, windowStart, windowEnd time.Time) ([]domain.EventOccurrence, error)
}
