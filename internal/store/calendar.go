package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"praxis/backend/internal/domain"
)

// CalendarTx is the per-transaction surface of the availability store. The
// repository runs every mutation through one of these under an advisory
// lock on the evaluator's calendar.
type CalendarTx interface {
	CreateEvent(ctx context.Context, event domain.AvailabilityEvent) (domain.AvailabilityEvent, error)
	GetEvent(ctx context.Context, evaluatorID string, eventID uuid.UUID) (domain.AvailabilityEvent, error)
	UpdateEvent(ctx context.Context, evaluatorID string, eventID uuid.UUID, m EventMutation) error
	DeleteEvent(ctx context.Context, evaluatorID string, eventID uuid.UUID) error
	ListEvents(ctx context.Context, evaluatorID string, windowStart, windowEnd time.Time) ([]domain.AvailabilityEvent, error)

	UpsertException(ctx context.Context, ex domain.AvailabilityException) (domain.AvailabilityException, error)
	ListExceptions(ctx context.Context, seriesID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.AvailabilityException, error)
}
