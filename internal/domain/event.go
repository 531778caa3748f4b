package domain

import "time"

// EventType is the closed set of canonical billing lifecycle events.
// Provider-specific type strings are collapsed into these four by the
// classifier; unrecognized provider types never reach the engine.
type EventType string

const (
	EventSubscribed    EventType = "subscribed"
	EventRenewed       EventType = "renewed"
	EventPaymentFailed EventType = "payment_failed"
	EventCanceled      EventType = "canceled"
)

// CanonicalEvent is the normalized internal form of a provider billing
// notification. EventID is the provider-assigned id, kept for audit
// bookkeeping; ordering decisions use OccurredAt only.
type CanonicalEvent struct {
	EventID        string
	Type           EventType
	Email          string
	SubscriptionID *string
	Plan           *string
	OccurredAt     time.Time
}

// CorrelatesBySubscriptionID reports whether the event carries a provider
// subscription id usable for lookup before falling back to email.
func (e CanonicalEvent) CorrelatesBySubscriptionID() bool {
	return e.SubscriptionID != nil && *e.SubscriptionID != ""
}
