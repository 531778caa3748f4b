package ports

import (
	"context"
	"time"

	"github.com/orbitacademy/subscription-service/internal/domain"
)

// IntentStore holds live checkout intents keyed by (email, plan).
// PutIfAbsent must be atomic: under two concurrent initiations exactly one
// stores its intent and the loser receives the winner's record, which is how
// the single-live-intent invariant is enforced without a lock.
type IntentStore interface {
	// PutIfAbsent stores intent with the given ttl unless a live intent for
	// the same (email, plan) exists. It returns the stored intent and whether
	// this call created it.
	PutIfAbsent(ctx context.Context, intent domain.CheckoutIntent, ttl time.Duration) (domain.CheckoutIntent, bool, error)
	// GetLive returns the unexpired intent for (email, plan), or nil.
	GetLive(ctx context.Context, email, plan string) (*domain.CheckoutIntent, error)
}
