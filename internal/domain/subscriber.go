package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the lifecycle state of a subscriber's plan.
type SubscriptionStatus string

const (
	StatusNone     SubscriptionStatus = "none"
	StatusPending  SubscriptionStatus = "pending"
	StatusActive   SubscriptionStatus = "active"
	StatusFailed   SubscriptionStatus = "failed"
	StatusCanceled SubscriptionStatus = "canceled"
)

// Subscriber is the locally owned subscription record.
// Email is the correlation key until the provider assigns a subscription id;
// the id takes over as primary key for correlation once present.
type Subscriber struct {
	SubscriberID   uuid.UUID
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	SubscriptionID *string
	Plan           *string
	Status         SubscriptionStatus
	SubscribedAt   *time.Time
	LastEventAt    *time.Time
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Apply computes the subscriber state after a canonical event.
// It returns false when the event is stale or a duplicate: the single
// occurred-at comparison against LastEventAt absorbs both re-delivery and
// out-of-order arrival, so no separate dedup table is needed.
//
// Apply is pure; callers persist the result with a compare-and-set keyed on
// Version and re-run Apply on conflict.
func Apply(sub Subscriber, ev CanonicalEvent) (Subscriber, bool) {
	if sub.LastEventAt != nil && !ev.OccurredAt.After(*sub.LastEventAt) {
		return sub, false
	}

	occurred := ev.OccurredAt
	switch ev.Type {
	case EventSubscribed:
		sub.Status = StatusActive
		sub.SubscriptionID = cloneString(ev.SubscriptionID)
		sub.Plan = cloneString(ev.Plan)
		sub.SubscribedAt = &occurred
	case EventRenewed:
		sub.Status = StatusActive
		if sub.SubscriptionID == nil && ev.SubscriptionID != nil {
			sub.SubscriptionID = cloneString(ev.SubscriptionID)
		}
		if sub.Plan == nil && ev.Plan != nil {
			sub.Plan = cloneString(ev.Plan)
		}
	case EventPaymentFailed:
		// Subscription id is retained so a later renewal can recover it.
		sub.Status = StatusFailed
	case EventCanceled:
		sub.Status = StatusCanceled
		sub.SubscriptionID = nil
		sub.Plan = nil
	default:
		return sub, false
	}

	sub.LastEventAt = &occurred
	return sub, true
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
