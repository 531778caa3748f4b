package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/orbitacademy/subscription-service/internal/domain"
)

// ReconcileFunc re-drives a parked event through the engine. Declared as a
// function type so the worker does not depend on the application package.
type ReconcileFunc func(ctx context.Context, ev domain.CanonicalEvent) error

type parkedEvent struct {
	event     domain.CanonicalEvent
	attempts  int
	notBefore time.Time
	firstSeen time.Time
}

// ParkedEventWorker holds events whose subscriber row did not exist at
// delivery time and re-drives them on a timer. Renewals and failures that
// outrun their own checkout completion land here; a few retries absorb the
// row-creation lag, after which the event is dropped loudly.
type ParkedEventWorker struct {
	logger     *slog.Logger
	reconcile  ReconcileFunc
	interval   time.Duration
	backoff    time.Duration
	maxRetries int

	mu     sync.Mutex
	parked map[string]*parkedEvent
}

func NewParkedEventWorker(logger *slog.Logger, reconcile ReconcileFunc, interval, backoff time.Duration, maxRetries int) *ParkedEventWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ParkedEventWorker{
		logger:     logger,
		reconcile:  reconcile,
		interval:   interval,
		backoff:    backoff,
		maxRetries: maxRetries,
		parked:     map[string]*parkedEvent{},
	}
}

// Park stores the event for retry. Re-parking the same provider event id is a
// no-op so a redelivered webhook does not reset the retry budget.
func (w *ParkedEventWorker) Park(_ context.Context, ev domain.CanonicalEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.parked[ev.EventID]; ok {
		return nil
	}
	now := time.Now().UTC()
	w.parked[ev.EventID] = &parkedEvent{
		event:     ev,
		notBefore: now.Add(w.backoff),
		firstSeen: now,
	}
	return nil
}

// Depth reports how many events are currently parked.
func (w *ParkedEventWorker) Depth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.parked)
}

// Run executes the periodic retry loop until context cancellation.
func (w *ParkedEventWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.processOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ParkedEventWorker) processOnce(ctx context.Context) {
	now := time.Now().UTC()

	w.mu.Lock()
	due := make([]*parkedEvent, 0, len(w.parked))
	for _, p := range w.parked {
		if !now.Before(p.notBefore) {
			due = append(due, p)
		}
	}
	w.mu.Unlock()

	for _, p := range due {
		err := w.reconcile(ctx, p.event)
		if err == nil {
			w.logger.InfoContext(ctx, "parked event reconciled",
				"module", "events.parking",
				"layer", "adapter",
				"operation", "retry_parked",
				"outcome", "success",
				"event_id", p.event.EventID,
				"event_type", string(p.event.Type),
				"attempts", p.attempts+1,
			)
			w.remove(p.event.EventID)
			continue
		}
		if !errors.Is(err, domain.ErrSubscriberNotFound) {
			w.logger.ErrorContext(ctx, "parked event failed terminally",
				"module", "events.parking",
				"layer", "adapter",
				"operation", "retry_parked",
				"outcome", "failure",
				"event_id", p.event.EventID,
				"event_type", string(p.event.Type),
				"error", err,
			)
			w.remove(p.event.EventID)
			continue
		}

		w.mu.Lock()
		p.attempts++
		if p.attempts >= w.maxRetries {
			w.logger.ErrorContext(ctx, "parked event dropped after retries",
				"module", "events.parking",
				"layer", "adapter",
				"operation", "retry_parked",
				"outcome", "dropped",
				"event_id", p.event.EventID,
				"event_type", string(p.event.Type),
				"attempts", p.attempts,
				"parked_for", now.Sub(p.firstSeen).String(),
			)
			delete(w.parked, p.event.EventID)
		} else {
			// Exponential backoff between retries.
			p.notBefore = now.Add(w.backoff * (1 << p.attempts))
		}
		w.mu.Unlock()
	}
}

func (w *ParkedEventWorker) remove(eventID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.parked, eventID)
}
