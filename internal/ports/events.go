package ports

import (
	"context"

	"github.com/orbitacademy/subscription-service/internal/domain"
)

// EventParkingLot accepts events whose subscriber row does not exist yet.
// Parked events are retried with backoff to absorb checkout-row creation lag;
// exhausted events are dropped loudly, never silently.
type EventParkingLot interface {
	Park(ctx context.Context, ev domain.CanonicalEvent) error
}
