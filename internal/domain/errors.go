package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidSignature rejects a webhook whose signature does not match the
	// shared-secret HMAC over the raw body.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrStaleEvent rejects a webhook whose embedded timestamp falls outside
	// the configured clock-skew tolerance, blocking replay of captured payloads.
	ErrStaleEvent = errors.New("webhook timestamp outside tolerance")
	// ErrMalformedEvent marks a recognized provider event missing required fields.
	ErrMalformedEvent = errors.New("malformed provider event")
	// ErrSubscriberNotFound is raised when a non-creating event cannot be
	// correlated to any subscriber row; callers park the event for retry.
	ErrSubscriberNotFound = errors.New("subscriber not found for event")
	// ErrVersionConflict signals a lost compare-and-set race. The transition is
	// pure, so callers reload and re-apply.
	ErrVersionConflict = errors.New("subscriber version conflict")
	// ErrAlreadyActive blocks checkout initiation for an active subscriber.
	ErrAlreadyActive = errors.New("subscription already active")
	// ErrInvalidPlan rejects plans absent from the configured catalog.
	ErrInvalidPlan = errors.New("plan not in catalog")
	// ErrNoActiveSubscription is returned when cancellation is requested but no
	// provider subscription id is on record.
	ErrNoActiveSubscription = errors.New("no active subscription")
	// ErrProviderUnavailable wraps transient failures of the billing provider API.
	ErrProviderUnavailable = errors.New("billing provider unavailable")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConflict             = errors.New("conflict")
)
