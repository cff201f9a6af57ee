package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AvailabilityEvent is one calendar entry owned by an evaluator: a block of
// availability or unavailability. A non-empty RecurrenceRule makes the row a
// series master; its occurrences are expanded on read.
type AvailabilityEvent struct {
	bun.BaseModel `bun:"table:availability_events"`

	ID             uuid.UUID `bun:"id,pk,type:uuid"`
	EvaluatorID    string    `bun:"evaluator_id,notnull"`
	Title          string    `bun:"title,notnull"`
	StartTime      time.Time `bun:"start_time,notnull"`
	EndTime        time.Time `bun:"end_time,notnull"`
	AllDay         bool      `bun:"all_day,notnull"`
	Unavailability bool      `bun:"unavailability,notnull"`
	RecurrenceRule string    `bun:"recurrence_rule"`
	OfficeKeys     []string  `bun:"office_keys,array"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

func (e *AvailabilityEvent) IsRecurring() bool {
	return e.RecurrenceRule != ""
}

func (e *AvailabilityEvent) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if e.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			e.ID = id
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		e.UpdatedAt = now
	}
	return nil
}

type AvailabilityExceptionKind string

const (
	AvailabilityExceptionKindSkip     AvailabilityExceptionKind = "skip"
	AvailabilityExceptionKindOverride AvailabilityExceptionKind = "override"
)

// AvailabilityException detaches one occurrence of a series: a skip removes
// it, an override replaces its fields. Exception rows never carry a
// recurrence rule of their own.
type AvailabilityException struct {
	bun.BaseModel `bun:"table:availability_exceptions"`

	ID                 uuid.UUID                 `bun:"id,pk,type:uuid"`
	SeriesID           uuid.UUID                 `bun:"series_id,notnull,type:uuid"`
	OccurrenceStart    time.Time                 `bun:"occurrence_start,notnull"`
	Kind               AvailabilityExceptionKind `bun:"kind,notnull"`
	OverrideStart      *time.Time                `bun:"override_start"`
	OverrideEnd        *time.Time                `bun:"override_end"`
	OverrideTitle      *string                   `bun:"override_title"`
	OverrideOfficeKeys []string                  `bun:"override_office_keys,array"`
	CreatedAt          time.Time                 `bun:"created_at,notnull"`
	UpdatedAt          time.Time                 `bun:"updated_at,notnull"`
}

func (e *AvailabilityException) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if e.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			e.ID = id
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		e.UpdatedAt = now
	}
	return nil
}

// EventOccurrence is the read model handed to the calendar view and to edit
// dialogs. For a standalone event ID is the event UUID and SeriesID is
// empty; for one repetition of a series ID is a per-instance key and
// SeriesID is the series master's UUID.
type EventOccurrence struct {
	ID             string
	SeriesID       string
	EvaluatorID    string
	Title          string
	StartTime      time.Time
	EndTime        time.Time
	AllDay         bool
	Unavailability bool
	OfficeKeys     []string
}
