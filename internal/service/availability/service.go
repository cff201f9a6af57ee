package availability

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"praxis/backend/internal/domain"
	"praxis/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type Service struct {
	repo store.AvailabilityRepository
	log  *slog.Logger
}

func NewService(repo store.AvailabilityRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo: repo,
		log:  log.With(slog.String("component", "service.availability")),
	}
}

type CreateInput struct {
	EvaluatorID    string
	Title          string
	StartTime      time.Time
	EndTime        time.Time
	AllDay         bool
	Unavailability bool
	OfficeKeys     []string
	Recurrence     domain.RecurrenceSpec
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.AvailabilityEvent, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.AvailabilityEvent{}, validationError("title is required")
	}
	if in.EvaluatorID == "" {
		return domain.AvailabilityEvent{}, validationError("evaluator_id is required")
	}

	// The rule is always encoded from the canonical range, never from
	// display values.
	start, end, err := domain.CanonicalRange(in.StartTime.UTC(), in.EndTime.UTC(), in.AllDay)
	if err != nil {
		return domain.AvailabilityEvent{}, err
	}

	rule := s.encodeRule(in.Recurrence)

	return s.repo.Create(ctx, domain.AvailabilityEvent{
		EvaluatorID:    in.EvaluatorID,
		Title:          title,
		StartTime:      start,
		EndTime:        end,
		AllDay:         in.AllDay,
		Unavailability: in.Unavailability,
		OfficeKeys:     in.OfficeKeys,
		RecurrenceRule: rule,
	})
}

type UpdateInput struct {
	EvaluatorID    string
	Occurrence     domain.EventOccurrence
	Scope          domain.EditScope
	Title          string
	StartTime      time.Time
	EndTime        time.Time
	AllDay         bool
	Unavailability bool
	OfficeKeys     []string
	Recurrence     domain.RecurrenceSpec
}

func (s *Service) Update(ctx context.Context, in UpdateInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return validationError("title is required")
	}
	if in.EvaluatorID == "" {
		return validationError("evaluator_id is required")
	}
	if in.Occurrence.ID == "" {
		return validationError("occurrence id is required")
	}

	start, end, err := domain.CanonicalRange(in.StartTime.UTC(), in.EndTime.UTC(), in.AllDay)
	if err != nil {
		return err
	}

	rule := s.encodeRule(in.Recurrence)

	decision, err := domain.ResolveEditScope(in.Occurrence, domain.ActionUpdate, in.Scope, rule)
	if err != nil {
		return err
	}

	m := store.EventMutation{
		TargetID:       decision.TargetID,
		Title:          title,
		StartTime:      start,
		EndTime:        end,
		AllDay:         in.AllDay,
		Unavailability: in.Unavailability,
		OfficeKeys:     in.OfficeKeys,
		IsRecurring:    decision.IsRecurring,
		RecurrenceRule: decision.RecurrenceRule,
	}
	if in.Occurrence.SeriesID != "" && decision.TargetID == in.Occurrence.ID {
		m.SeriesID = in.Occurrence.SeriesID
		m.OccurrenceStart = in.Occurrence.StartTime
	}

	return s.repo.Update(ctx, in.EvaluatorID, m)
}

type DeleteInput struct {
	EvaluatorID string
	Occurrence  domain.EventOccurrence
	Scope       domain.EditScope
}

func (s *Service) Delete(ctx context.Context, in DeleteInput) error {
	if in.EvaluatorID == "" {
		return validationError("evaluator_id is required")
	}
	if in.Occurrence.ID == "" {
		return validationError("occurrence id is required")
	}

	decision, err := domain.ResolveEditScope(in.Occurrence, domain.ActionDelete, in.Scope, "")
	if err != nil {
		return err
	}

	m := store.EventMutation{TargetID: decision.TargetID}
	if in.Occurrence.SeriesID != "" && decision.TargetID == in.Occurrence.ID {
		m.SeriesID = in.Occurrence.SeriesID
		m.OccurrenceStart = in.Occurrence.StartTime
	}

	return s.repo.Delete(ctx, in.EvaluatorID, m)
}

func (s *Service) ListOccurrences(ctx context.Context, evaluatorID string, windowStart, windowEnd time.Time) ([]domain.EventOccurrence, error) {
	if evaluatorID == "" {
		return nil, validationError("evaluator_id is required")
	}

	start := windowStart.UTC()
	end := windowEnd.UTC()
	if !end.After(start) {
		return nil, validationError("window_end must be after window_start")
	}

	return s.repo.ListOccurrences(ctx, evaluatorID, start, end)
}

// encodeRule serializes the form's recurrence spec, logging any soft
// diagnostics. Diagnostics never block a save.
func (s *Service) encodeRule(spec domain.RecurrenceSpec) string {
	rule, diags := domain.EncodeRule(spec)
	for _, d := range diags {
		s.log.Warn("recurrence rule diagnostic", slog.String("detail", d))
	}
	return rule
}
