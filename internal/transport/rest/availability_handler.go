package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"praxis/backend/internal/domain"
	"praxis/backend/internal/service/availability"
	"praxis/backend/internal/store"
)

type availabilityService interface {
	Create(ctx context.Context, in availability.CreateInput) (domain.AvailabilityEvent, error)
	Update(ctx context.Context, in availability.UpdateInput) error
	Delete(ctx context.Context, in availability.DeleteInput) error
	ListOccurrences(ctx context.Context, evaluatorID string, windowStart, windowEnd time.Time) ([]domain.EventOccurrence, error)
}

type AvailabilityHandler struct {
	svc availabilityService
	log *slog.Logger
}

func NewAvailabilityHandler(svc availabilityService, log *slog.Logger) *AvailabilityHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AvailabilityHandler{
		svc: svc,
		log: log.With(slog.String("component", "rest.availability")),
	}
}

func (h *AvailabilityHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/availability", h.handleCreate)
	mux.HandleFunc("GET /v1/availability", h.handleList)
	mux.HandleFunc("PATCH /v1/availability/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /v1/availability/{id}", h.handleDelete)
}

type recurrencePayload struct {
	Frequency  string     `json:"frequency"`
	Interval   int        `json:"interval"`
	ByWeekday  []string   `json:"by_weekday"`
	ByMonthDay int        `json:"by_month_day"`
	Until      *time.Time `json:"until"`
	Count      *int       `json:"count"`
}

func (p *recurrencePayload) toSpec() domain.RecurrenceSpec {
	if p == nil {
		return domain.RecurrenceSpec{Frequency: domain.FrequencyNone, Interval: 1}
	}
	return domain.RecurrenceSpec{
		Frequency:  domain.Frequency(p.Frequency),
		Interval:   p.Interval,
		ByWeekday:  p.ByWeekday,
		ByMonthDay: p.ByMonthDay,
		Until:      p.Until,
		Count:      p.Count,
	}
}

type createRequest struct {
	EvaluatorID    string             `json:"evaluator_id"`
	Title          string             `json:"title"`
	StartTime      time.Time          `json:"start_time"`
	EndTime        time.Time          `json:"end_time"`
	AllDay         bool               `json:"all_day"`
	Unavailability bool               `json:"unavailability"`
	OfficeKeys     []string           `json:"office_keys"`
	Recurrence     *recurrencePayload `json:"recurrence"`
}

type updateRequest struct {
	EvaluatorID     string             `json:"evaluator_id"`
	Scope           string             `json:"scope"`
	SeriesID        string             `json:"series_id"`
	OccurrenceStart *time.Time         `json:"occurrence_start"`
	Title           string             `json:"title"`
	StartTime       time.Time          `json:"start_time"`
	EndTime         time.Time          `json:"end_time"`
	AllDay          bool               `json:"all_day"`
	Unavailability  bool               `json:"unavailability"`
	OfficeKeys      []string           `json:"office_keys"`
	Recurrence      *recurrencePayload `json:"recurrence"`
}

type eventResponse struct {
	ID             string    `json:"id"`
	EvaluatorID    string    `json:"evaluator_id"`
	Title          string    `json:"title"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	AllDay         bool      `json:"all_day"`
	Unavailability bool      `json:"unavailability"`
	OfficeKeys     []string  `json:"office_keys"`
	RecurrenceRule string    `json:"recurrence_rule,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type occurrenceResponse struct {
	ID             string    `json:"id"`
	SeriesID       string    `json:"series_id,omitempty"`
	EvaluatorID    string    `json:"evaluator_id"`
	Title          string    `json:"title"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	AllDay         bool      `json:"all_day"`
	Unavailability bool      `json:"unavailability"`
	OfficeKeys     []string  `json:"office_keys,omitempty"`
}

func (h *AvailabilityHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "create"))

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request body", slog.Any("err", err))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := h.svc.Create(r.Context(), availability.CreateInput{
		EvaluatorID:    req.EvaluatorID,
		Title:          req.Title,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		AllDay:         req.AllDay,
		Unavailability: req.Unavailability,
		OfficeKeys:     req.OfficeKeys,
		Recurrence:     req.Recurrence.toSpec(),
	})
	if err != nil {
		h.writeServiceError(w, log, err)
		return
	}

	log.Info("availability event created",
		slog.String("event_id", event.ID.String()),
		slog.String("evaluator_id", event.EvaluatorID),
		slog.Bool("recurring", event.IsRecurring()),
	)
	writeJSON(w, http.StatusCreated, toEventResponse(event))
}

func (h *AvailabilityHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "update"))

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request body", slog.Any("err", err))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	occ := domain.EventOccurrence{
		ID:       r.PathValue("id"),
		SeriesID: req.SeriesID,
	}
	if req.OccurrenceStart != nil {
		occ.StartTime = *req.OccurrenceStart
	}

	err := h.svc.Update(r.Context(), availability.UpdateInput{
		EvaluatorID:    req.EvaluatorID,
		Occurrence:     occ,
		Scope:          domain.EditScope(req.Scope),
		Title:          req.Title,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		AllDay:         req.AllDay,
		Unavailability: req.Unavailability,
		OfficeKeys:     req.OfficeKeys,
		Recurrence:     req.Recurrence.toSpec(),
	})
	if err != nil {
		h.writeServiceError(w, log, err)
		return
	}

	log.Info("availability event updated",
		slog.String("target_id", occ.ID),
		slog.String("scope", req.Scope),
		slog.String("evaluator_id", req.EvaluatorID),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AvailabilityHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "delete"))

	q := r.URL.Query()
	occ := domain.EventOccurrence{
		ID:       r.PathValue("id"),
		SeriesID: q.Get("series_id"),
	}
	if v := q.Get("occurrence_start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			log.Warn("invalid occurrence_start", slog.String("value", v))
			writeError(w, http.StatusBadRequest, "occurrence_start must be RFC 3339")
			return
		}
		occ.StartTime = t
	}

	err := h.svc.Delete(r.Context(), availability.DeleteInput{
		EvaluatorID: q.Get("evaluator_id"),
		Occurrence:  occ,
		Scope:       domain.EditScope(q.Get("scope")),
	})
	if err != nil {
		h.writeServiceError(w, log, err)
		return
	}

	log.Info("availability event deleted",
		slog.String("target_id", occ.ID),
		slog.String("scope", q.Get("scope")),
		slog.String("evaluator_id", q.Get("evaluator_id")),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AvailabilityHandler) handleList(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "list"))

	q := r.URL.Query()
	windowStart, err := time.Parse(time.RFC3339, q.Get("window_start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "window_start must be RFC 3339")
		return
	}
	windowEnd, err := time.Parse(time.RFC3339, q.Get("window_end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "window_end must be RFC 3339")
		return
	}

	occs, err := h.svc.ListOccurrences(r.Context(), q.Get("evaluator_id"), windowStart, windowEnd)
	if err != nil {
		h.writeServiceError(w, log, err)
		return
	}

	out := make([]occurrenceResponse, 0, len(occs))
	for _, o := range occs {
		out = append(out, occurrenceResponse{
			ID:             o.ID,
			SeriesID:       o.SeriesID,
			EvaluatorID:    o.EvaluatorID,
			Title:          o.Title,
			StartTime:      o.StartTime,
			EndTime:        o.EndTime,
			AllDay:         o.AllDay,
			Unavailability: o.Unavailability,
			OfficeKeys:     o.OfficeKeys,
		})
	}

	log.Debug("occurrences listed",
		slog.String("evaluator_id", q.Get("evaluator_id")),
		slog.Int("count", len(out)),
	)
	writeJSON(w, http.StatusOK, map[string]any{"occurrences": out})
}

func (h *AvailabilityHandler) writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	var vErr *availability.ValidationError
	switch {
	case errors.Is(err, domain.ErrInvalidRange):
		log.Warn("invalid range", slog.Any("err", err))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err))
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info("target not found", slog.Any("err", err))
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, store.ErrConflict):
		log.Info("conflict", slog.Any("err", err))
		writeError(w, http.StatusConflict, "conflicting event")
	case errors.Is(err, domain.ErrInvalidScope):
		// Contract violation: the form should not offer "all" for a
		// standalone event.
		log.Error("invalid edit scope", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		log.Error("request failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toEventResponse(e domain.AvailabilityEvent) eventResponse {
	return eventResponse{
		ID:             e.ID.String(),
		EvaluatorID:    e.EvaluatorID,
		Title:          e.Title,
		StartTime:      e.StartTime,
		EndTime:        e.EndTime,
		AllDay:         e.AllDay,
		Unavailability: e.Unavailability,
		OfficeKeys:     e.OfficeKeys,
		RecurrenceRule: e.RecurrenceRule,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
