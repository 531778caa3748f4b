package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/orbitacademy/subscription-service/internal/domain"
)

// SubscriberChange carries the full post-transition field set for a
// conditional write. The store bumps Version itself; callers only name the
// version they read.
type SubscriberChange struct {
	Status         domain.SubscriptionStatus
	SubscriptionID *string
	Plan           *string
	SubscribedAt   *time.Time
	LastEventAt    *time.Time
	UpdatedAt      time.Time
}

// UpsertPendingParams describes an account row created ahead of checkout.
type UpsertPendingParams struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Now          time.Time
}

// SubscriberRepository is the persistence contract for subscriber rows.
// CompareAndSet is the only mutation primitive the reconciliation engine uses:
// it must be atomic (a single conditional statement, never read-then-write) so
// concurrent webhook deliveries for one subscriber cannot interleave.
type SubscriberRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.Subscriber, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (domain.Subscriber, error)
	// UpsertPending returns the existing row for email or creates one with
	// status none. Existing rows are never modified.
	UpsertPending(ctx context.Context, params UpsertPendingParams) (domain.Subscriber, error)
	// Create inserts a webhook-originated subscriber row. A unique-email race
	// surfaces as domain.ErrConflict so the engine can reload and retry.
	Create(ctx context.Context, sub domain.Subscriber) error
	// CompareAndSet applies change iff the stored version equals
	// expectedVersion, returning domain.ErrVersionConflict otherwise.
	CompareAndSet(ctx context.Context, subscriberID uuid.UUID, expectedVersion int64, change SubscriberChange) error
}

// EventLogRepository records provider event ids and processing outcomes for
// audit. Duplicate event ids are silently absorbed; the log never influences
// reconciliation decisions.
type EventLogRepository interface {
	Record(ctx context.Context, ev domain.CanonicalEvent, outcome string, at time.Time) error
}
