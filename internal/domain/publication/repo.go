package publication

import (
	"context"
	"time"
)

// Repository persists publication records and their audit events.
type Repository interface {
	// NextDailySequence atomically increments and returns the
	// publication counter for the given calendar day. Two concurrent
	// publishers never receive the same value.
	NextDailySequence(ctx context.Context, day time.Time) (int, error)

	Insert(ctx context.Context, rec *PublicationRecord) error
	GetByCode(ctx context.Context, code string) (*PublicationRecord, error)
	ListByConsultant(ctx context.Context, consultantID string, limit, offset int) ([]*PublicationRecord, int, error)

	InsertEvent(ctx context.Context, ev *AuditEvent) error
	ListEvents(ctx context.Context, code string, limit, offset int) ([]*AuditEvent, int, error)
}
