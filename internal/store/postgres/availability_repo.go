package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"praxis/backend/internal/domain"
	"praxis/backend/internal/store"
)

type AvailabilityRepo struct {
	db *bun.DB
}

func NewAvailabilityRepo(db *bun.DB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

type calendarTx struct {
	tx bun.Tx
}

func (r *AvailabilityRepo) Create(ctx context.Context, event domain.AvailabilityEvent) (domain.AvailabilityEvent, error) {
	var out domain.AvailabilityEvent
	err := r.InEvaluatorTransaction(ctx, event.EvaluatorID, func(ctx context.Context, tx store.CalendarTx) error {
		if err := ensureNoCalendarConflicts(ctx, tx, event); err != nil {
			return err
		}
		e, err := tx.CreateEvent(ctx, event)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return domain.AvailabilityEvent{}, err
	}
	return out, nil
}

func (r *AvailabilityRepo) Update(ctx context.Context, evaluatorID string, m store.EventMutation) error {
	return r.InEvaluatorTransaction(ctx, evaluatorID, func(ctx context.Context, tx store.CalendarTx) error {
		if isInstanceMutation(m) {
			return upsertInstanceOverride(ctx, tx, evaluatorID, m)
		}
		eventID, err := uuid.Parse(m.TargetID)
		if err != nil {
			return store.ErrNotFound
		}
		candidate := domain.AvailabilityEvent{
			ID:             eventID,
			EvaluatorID:    evaluatorID,
			StartTime:      m.StartTime,
			EndTime:        m.EndTime,
			AllDay:         m.AllDay,
			Unavailability: m.Unavailability,
			RecurrenceRule: m.RecurrenceRule,
		}
		if err := ensureNoCalendarConflicts(ctx, tx, candidate); err != nil {
			return err
		}
		return tx.UpdateEvent(ctx, evaluatorID, eventID, m)
	})
}

func (r *AvailabilityRepo) Delete(ctx context.Context, evaluatorID string, m store.EventMutation) error {
	return r.InEvaluatorTransaction(ctx, evaluatorID, func(ctx context.Context, tx store.CalendarTx) error {
		if isInstanceMutation(m) {
			return upsertInstanceSkip(ctx, tx, evaluatorID, m)
		}
		eventID, err := uuid.Parse(m.TargetID)
		if err != nil {
			return store.ErrNotFound
		}
		return tx.DeleteEvent(ctx, evaluatorID, eventID)
	})
}

func (r *AvailabilityRepo) ListOccurrences(ctx context.Context, evaluatorID string, windowStart, windowEnd time.Time) ([]domain.EventOccurrence, error) {
	var rows []domain.AvailabilityEvent
	err := r.db.NewSelect().
		Model(&rows).
		Where("evaluator_id = ?", evaluatorID).
		Where("start_time < ?", windowEnd).
		Where("(end_time > ? OR recurrence_rule <> '')", windowStart).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.EventOccurrence, 0, len(rows))
	exWindowStart := windowStart.Add(-store.ExceptionLookahead)
	exWindowEnd := windowEnd.Add(store.ExceptionLookahead)

	for _, event := range rows {
		occs, err := domain.ExpandOccurrences(event, windowStart, windowEnd)
		if err != nil {
			return nil, err
		}
		if len(occs) == 0 {
			continue
		}

		if event.IsRecurring() {
			var exRows []domain.AvailabilityException
			err = r.db.NewSelect().
				Model(&exRows).
				Where("series_id = ?", event.ID).
				Where("occurrence_start >= ?", exWindowStart).
				Where("occurrence_start < ?", exWindowEnd).
				Scan(ctx)
			if err != nil {
				return nil, err
			}
			occs = applyExceptions(occs, exRows, windowStart, windowEnd)
		}

		out = append(out, occs...)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})

	return out, nil
}

func (r *AvailabilityRepo) InEvaluatorTransaction(ctx context.Context, evaluatorID string, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockEvaluatorCalendar(ctx, tx, evaluatorID); err != nil {
			return err
		}
		return fn(ctx, calendarTx{tx: tx})
	})
}

func lockEvaluatorCalendar(ctx context.Context, tx bun.Tx, evaluatorID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", evaluatorID).Exec(ctx)
	return err
}

type timeSpan struct {
	Start time.Time
	End   time.Time
}

// ensureNoCalendarConflicts expands the new or updated event over the
// conflict lookahead and rejects it when any occurrence overlaps the
// evaluator's existing calendar, or another occurrence of the event itself.
// It runs under the per-evaluator advisory lock, so concurrent submits
// cannot slip past each other. Unavailability blocks overlay availability
// freely; only events of the same kind conflict.
func ensureNoCalendarConflicts(ctx context.Context, tx store.CalendarTx, event domain.AvailabilityEvent) error {
	windowStart := event.StartTime.UTC()
	windowEnd := windowStart.Add(store.ConflictLookahead)

	newOccs, err := domain.ExpandOccurrences(event, windowStart, windowEnd)
	if err != nil {
		return err
	}
	if len(newOccs) == 0 {
		return nil
	}
	sort.Slice(newOccs, func(i, j int) bool {
		return newOccs[i].StartTime.Before(newOccs[j].StartTime)
	})
	windowEnd = newOccs[len(newOccs)-1].EndTime.UTC()

	for i := 1; i < len(newOccs); i++ {
		if newOccs[i-1].EndTime.After(newOccs[i].StartTime) {
			return store.ErrConflict
		}
	}

	rows, err := tx.ListEvents(ctx, event.EvaluatorID, windowStart, windowEnd)
	if err != nil {
		return err
	}

	exWindowStart := windowStart.Add(-store.ExceptionLookahead)
	exWindowEnd := windowEnd.Add(store.ExceptionLookahead)

	var existing []timeSpan
	for _, row := range rows {
		if row.ID == event.ID {
			continue
		}
		if row.Unavailability != event.Unavailability {
			continue
		}

		occs, err := domain.ExpandOccurrences(row, windowStart, windowEnd)
		if err != nil {
			return err
		}
		if len(occs) == 0 {
			continue
		}
		if row.IsRecurring() {
			exRows, err := tx.ListExceptions(ctx, row.ID, exWindowStart, exWindowEnd)
			if err != nil {
				return err
			}
			occs = applyExceptions(occs, exRows, windowStart, windowEnd)
		}
		for _, o := range occs {
			existing = append(existing, timeSpan{Start: o.StartTime.UTC(), End: o.EndTime.UTC()})
		}
	}

	for _, n := range newOccs {
		ns := n.StartTime.UTC()
		ne := n.EndTime.UTC()
		for _, e := range existing {
			if ns.Before(e.End) && ne.After(e.Start) {
				return store.ErrConflict
			}
		}
	}

	return nil
}

// isInstanceMutation reports whether the mutation targets a single
// occurrence of a series rather than an event row.
func isInstanceMutation(m store.EventMutation) bool {
	return m.SeriesID != "" && m.SeriesID != m.TargetID
}

// instanceTarget recovers the series identity and occurrence start from an
// instance-level mutation. The instance key doubles as the occurrence start
// in UnixNano when the caller did not supply one.
func instanceTarget(m store.EventMutation) (uuid.UUID, time.Time, error) {
	seriesID, err := uuid.Parse(m.SeriesID)
	if err != nil {
		return uuid.Nil, time.Time{}, store.ErrNotFound
	}
	occStart := m.OccurrenceStart
	if occStart.IsZero() {
		ns, err := strconv.ParseInt(m.TargetID, 10, 64)
		if err != nil {
			return uuid.Nil, time.Time{}, store.ErrNotFound
		}
		occStart = time.Unix(0, ns)
	}
	return seriesID, occStart.UTC(), nil
}

func upsertInstanceOverride(ctx context.Context, tx store.CalendarTx, evaluatorID string, m store.EventMutation) error {
	seriesID, occStart, err := instanceTarget(m)
	if err != nil {
		return err
	}
	// Ownership check: the series must exist and belong to the evaluator.
	if _, err := tx.GetEvent(ctx, evaluatorID, seriesID); err != nil {
		return err
	}

	ex := domain.AvailabilityException{
		SeriesID:        seriesID,
		OccurrenceStart: occStart,
		Kind:            domain.AvailabilityExceptionKindOverride,
		OverrideStart:   &m.StartTime,
		OverrideEnd:     &m.EndTime,
	}
	if m.Title != "" {
		ex.OverrideTitle = &m.Title
	}
	if len(m.OfficeKeys) > 0 {
		ex.OverrideOfficeKeys = m.OfficeKeys
	}

	_, err = tx.UpsertException(ctx, ex)
	return err
}

func upsertInstanceSkip(ctx context.Context, tx store.CalendarTx, evaluatorID string, m store.EventMutation) error {
	seriesID, occStart, err := instanceTarget(m)
	if err != nil {
		return err
	}
	if _, err := tx.GetEvent(ctx, evaluatorID, seriesID); err != nil {
		return err
	}

	_, err = tx.UpsertException(ctx, domain.AvailabilityException{
		SeriesID:        seriesID,
		OccurrenceStart: occStart,
		Kind:            domain.AvailabilityExceptionKindSkip,
	})
	return err
}

func (r calendarTx) CreateEvent(ctx context.Context, event domain.AvailabilityEvent) (domain.AvailabilityEvent, error) {
	m := event
	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.AvailabilityEvent{}, store.ErrConflict
		}
		return domain.AvailabilityEvent{}, err
	}
	event.ID = m.ID
	event.CreatedAt = m.CreatedAt
	event.UpdatedAt = m.UpdatedAt
	return event, nil
}

func (r calendarTx) GetEvent(ctx context.Context, evaluatorID string, eventID uuid.UUID) (domain.AvailabilityEvent, error) {
	var row domain.AvailabilityEvent
	err := r.tx.NewSelect().
		Model(&row).
		Where("evaluator_id = ?", evaluatorID).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AvailabilityEvent{}, store.ErrNotFound
		}
		return domain.AvailabilityEvent{}, err
	}
	return row, nil
}

func (r calendarTx) UpdateEvent(ctx context.Context, evaluatorID string, eventID uuid.UUID, m store.EventMutation) error {
	res, err := r.tx.NewUpdate().
		Model((*domain.AvailabilityEvent)(nil)).
		Set("title = ?", m.Title).
		Set("start_time = ?", m.StartTime).
		Set("end_time = ?", m.EndTime).
		Set("all_day = ?", m.AllDay).
		Set("unavailability = ?", m.Unavailability).
		Set("office_keys = ?", pgdialect.Array(m.OfficeKeys)).
		Set("recurrence_rule = ?", m.RecurrenceRule).
		Set("updated_at = ?", time.Now().UTC()).
		Where("evaluator_id = ?", evaluatorID).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r calendarTx) DeleteEvent(ctx context.Context, evaluatorID string, eventID uuid.UUID) error {
	res, err := r.tx.NewDelete().
		Model((*domain.AvailabilityEvent)(nil)).
		Where("evaluator_id = ?", evaluatorID).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	// A deleted series takes its detached occurrences with it.
	_, err = r.tx.NewDelete().
		Model((*domain.AvailabilityException)(nil)).
		Where("series_id = ?", eventID).
		Exec(ctx)
	return err
}

func (r calendarTx) ListEvents(ctx context.Context, evaluatorID string, windowStart, windowEnd time.Time) ([]domain.AvailabilityEvent, error) {
	var rows []domain.AvailabilityEvent
	err := r.tx.NewSelect().
		Model(&rows).
		Where("evaluator_id = ?", evaluatorID).
		Where("start_time < ?", windowEnd).
		Where("(end_time > ? OR recurrence_rule <> '')", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r calendarTx) UpsertException(ctx context.Context, ex domain.AvailabilityException) (domain.AvailabilityException, error) {
	m := ex
	_, err := r.tx.NewInsert().
		Model(&m).
		On("CONFLICT (series_id, occurrence_start) DO UPDATE").
		Set("kind = EXCLUDED.kind").
		Set("override_start = EXCLUDED.override_start").
		Set("override_end = EXCLUDED.override_end").
		Set("override_title = EXCLUDED.override_title").
		Set("override_office_keys = EXCLUDED.override_office_keys").
		Exec(ctx)
	if err != nil {
		return domain.AvailabilityException{}, err
	}
	return m, nil
}

func (r calendarTx) ListExceptions(ctx context.Context, seriesID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.AvailabilityException, error) {
	var rows []domain.AvailabilityException
	err := r.tx.NewSelect().
		Model(&rows).
		Where("series_id = ?", seriesID).
		Where("occurrence_start >= ?", windowStart).
		Where("occurrence_start < ?", windowEnd).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func applyExceptions(occs []domain.EventOccurrence, exs []domain.AvailabilityException, windowStart, windowEnd time.Time) []domain.EventOccurrence {
	if len(exs) == 0 {
		return occs
	}

	byOccurrenceStart := make(map[int64]domain.AvailabilityException, len(exs))
	for _, e := range exs {
		byOccurrenceStart[e.OccurrenceStart.UTC().UnixNano()] = e
	}

	out := make([]domain.EventOccurrence, 0, len(occs))
	for _, o := range occs {
		ex, ok := byOccurrenceStart[o.StartTime.UTC().UnixNano()]
		if !ok {
			out = append(out, o)
			continue
		}

		if ex.Kind == domain.AvailabilityExceptionKindSkip {
			continue
		}

		start := o.StartTime
		end := o.EndTime
		title := o.Title
		officeKeys := o.OfficeKeys

		if ex.OverrideStart != nil {
			start = ex.OverrideStart.UTC()
		}
		if ex.OverrideEnd != nil {
			end = ex.OverrideEnd.UTC()
		}
		if ex.OverrideTitle != nil {
			title = *ex.OverrideTitle
		}
		if len(ex.OverrideOfficeKeys) > 0 {
			officeKeys = ex.OverrideOfficeKeys
		}

		if start.Before(windowEnd) && end.After(windowStart) {
			out = append(out, domain.EventOccurrence{
				ID:             o.ID,
				SeriesID:       o.SeriesID,
				EvaluatorID:    o.EvaluatorID,
				Title:          title,
				StartTime:      start,
				EndTime:        end,
				AllDay:         o.AllDay,
				Unavailability: o.Unavailability,
				OfficeKeys:     officeKeys,
			})
		}
	}

	return out
}
