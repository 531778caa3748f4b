package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/orbitacademy/subscription-service/internal/domain"
	"github.com/orbitacademy/subscription-service/internal/ports"
)

// HandleProviderEvent is the webhook entry point: verify the raw bytes, map
// them to a canonical event, then reconcile. Verification failures are
// terminal for the request; the provider will redeliver and redelivery is
// harmless behind the occurred-at gate.
func (s *Service) HandleProviderEvent(ctx context.Context, rawBody []byte, signatureHeader string) (WebhookOutcome, error) {
	if err := s.verifier.Verify(rawBody, signatureHeader, s.nowFn()); err != nil {
		s.logger.Warn("webhook rejected", slog.String("reason", err.Error()))
		return "", err
	}

	ev, class := ClassifyEvent(rawBody)
	switch class {
	case ClassIgnored:
		s.logger.Debug("provider event ignored")
		return OutcomeIgnored, nil
	case ClassMalformed:
		s.logger.Warn("provider event malformed", slog.String("event_id", ev.EventID))
		return "", domain.ErrMalformedEvent
	}

	outcome, err := s.Reconcile(ctx, ev)
	if errors.Is(err, domain.ErrSubscriberNotFound) {
		// The account the event refers to may simply not exist yet; park it
		// so creation lag is absorbed, but still surface not-found upstream.
		s.recordOutcome(ctx, ev, OutcomeParked)
		if s.parkingLot != nil {
			if parkErr := s.parkingLot.Park(ctx, ev); parkErr != nil {
				s.logger.Error("park event failed",
					slog.String("event_id", ev.EventID),
					slog.String("error", parkErr.Error()))
			}
		}
		return OutcomeParked, err
	}
	return outcome, err
}

// Reconcile drives one canonical event to a terminal outcome. The transition
// itself is pure, so the loop is free to reload and re-run it after a lost
// compare-and-set race; the occurred-at gate makes every re-run safe.
func (s *Service) Reconcile(ctx context.Context, ev domain.CanonicalEvent) (WebhookOutcome, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.ReconcileMaxAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleepFn(ctx, s.cfg.ReconcileBackoff*(1<<(attempt-1))); err != nil {
				return "", err
			}
		}

		outcome, err := s.reconcileOnce(ctx, ev)
		if err == nil {
			s.recordOutcome(ctx, ev, outcome)
			s.logger.Info("provider event processed",
				slog.String("event_id", ev.EventID),
				slog.String("event_type", string(ev.Type)),
				slog.String("outcome", string(outcome)))
			return outcome, nil
		}
		if errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrConflict) {
			lastErr = err
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("reconcile %s: %w", ev.EventID, lastErr)
}

func (s *Service) reconcileOnce(ctx context.Context, ev domain.CanonicalEvent) (WebhookOutcome, error) {
	sub, err := s.resolveSubscriber(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if ev.Type == domain.EventSubscribed {
				return s.createFromEvent(ctx, ev)
			}
			return "", domain.ErrSubscriberNotFound
		}
		return "", err
	}

	next, changed := domain.Apply(sub, ev)
	if !changed {
		return OutcomeDuplicate, nil
	}

	now := s.nowFn()
	err = s.subscribers.CompareAndSet(ctx, sub.SubscriberID, sub.Version, ports.SubscriberChange{
		Status:         next.Status,
		SubscriptionID: next.SubscriptionID,
		Plan:           next.Plan,
		SubscribedAt:   next.SubscribedAt,
		LastEventAt:    next.LastEventAt,
		UpdatedAt:      now,
	})
	if err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

// resolveSubscriber looks up by provider subscription id first, then by
// email. A canceled row has its subscription id cleared, so a late event for
// that id only resolves through the email fallback.
func (s *Service) resolveSubscriber(ctx context.Context, ev domain.CanonicalEvent) (domain.Subscriber, error) {
	if ev.CorrelatesBySubscriptionID() {
		sub, err := s.subscribers.GetBySubscriptionID(ctx, *ev.SubscriptionID)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Subscriber{}, err
		}
	}
	if ev.Email == "" {
		return domain.Subscriber{}, domain.ErrNotFound
	}
	return s.subscribers.GetByEmail(ctx, ev.Email)
}

// createFromEvent inserts the row a checkout-completion webhook describes when
// no account exists yet. The webhook is authoritative: losing the unique-email
// race to a concurrent delivery surfaces as ErrConflict and the caller reloads.
func (s *Service) createFromEvent(ctx context.Context, ev domain.CanonicalEvent) (WebhookOutcome, error) {
	now := s.nowFn()
	blank := domain.Subscriber{
		SubscriberID: uuid.New(),
		Email:        ev.Email,
		Status:       domain.StatusNone,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	sub, changed := domain.Apply(blank, ev)
	if !changed {
		return OutcomeDuplicate, nil
	}
	if err := s.subscribers.Create(ctx, sub); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

func (s *Service) recordOutcome(ctx context.Context, ev domain.CanonicalEvent, outcome WebhookOutcome) {
	if s.eventLog == nil {
		return
	}
	if err := s.eventLog.Record(ctx, ev, string(outcome), s.nowFn()); err != nil {
		s.logger.Warn("event audit record failed",
			slog.String("event_id", ev.EventID),
			slog.String("error", err.Error()))
	}
}
