package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/orbitacademy/subscription-service/internal/domain"
	"github.com/orbitacademy/subscription-service/internal/ports"
)

// InitiateCheckout prepares a hosted checkout for (email, plan). The call is
// idempotent inside the intent validity window: a repeat returns the live
// intent's redirect instead of opening a second provider session. Subscription
// state is never advanced here; only the provider's webhook does that.
func (s *Service) InitiateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return CheckoutResponse{}, err
	}

	plan := strings.ToLower(strings.TrimSpace(req.Plan))
	priceID, ok := s.cfg.PlanCatalog[plan]
	if !ok {
		return CheckoutResponse{}, fmt.Errorf("%w: %q", domain.ErrInvalidPlan, plan)
	}

	passwordHash := ""
	if req.Password != "" {
		passwordHash, err = s.hasher.Hash(req.Password)
		if err != nil {
			return CheckoutResponse{}, fmt.Errorf("hash password: %w", err)
		}
	}

	sub, err := s.subscribers.UpsertPending(ctx, ports.UpsertPendingParams{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Now:          s.nowFn(),
	})
	if err != nil {
		return CheckoutResponse{}, err
	}
	if sub.Status == domain.StatusActive {
		return CheckoutResponse{}, domain.ErrAlreadyActive
	}

	if live, err := s.intents.GetLive(ctx, email, plan); err == nil && live != nil {
		return CheckoutResponse{
			SessionID:   live.CheckoutSessionID,
			RedirectURL: live.RedirectURL,
			Reused:      true,
		}, nil
	}

	session, err := s.provider.CreateCheckoutSession(ctx, email, plan, priceID)
	if err != nil {
		return CheckoutResponse{}, err
	}

	now := s.nowFn()
	intent := domain.CheckoutIntent{
		IntentID:          uuid.NewString(),
		Email:             email,
		Plan:              plan,
		CheckoutSessionID: session.SessionID,
		RedirectURL:       session.RedirectURL,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.cfg.IntentValidityWindow),
	}

	// Concurrent initiations race on the store; the loser adopts the winner's
	// session so at most one live intent exists per (email, plan).
	stored, created, err := s.intents.PutIfAbsent(ctx, intent, s.cfg.IntentValidityWindow)
	if err != nil {
		return CheckoutResponse{}, err
	}

	return CheckoutResponse{
		SessionID:   stored.CheckoutSessionID,
		RedirectURL: stored.RedirectURL,
		Reused:      !created,
	}, nil
}

// CancelSubscription asks the provider to end the bearer's subscription at the
// period boundary. The local row is deliberately left alone: the provider's
// subscription.deleted webhook is the authority for the state transition, so
// the cancel path cannot race its own confirmation.
func (s *Service) CancelSubscription(ctx context.Context, jwtToken string) error {
	claims, err := s.tokenSigner.ParseAndValidate(jwtToken)
	if err != nil {
		return domain.ErrUnauthorized
	}

	sub, err := s.subscribers.GetByEmail(ctx, claims.Email)
	if err != nil {
		return err
	}
	if sub.SubscriptionID == nil || *sub.SubscriptionID == "" {
		return domain.ErrNoActiveSubscription
	}

	if err := s.provider.CancelAtPeriodEnd(ctx, *sub.SubscriptionID); err != nil {
		return err
	}

	s.logger.Info("cancellation requested",
		slog.String("email", claims.Email),
		slog.String("subscription_id", *sub.SubscriptionID))
	return nil
}

// AdminUpdateSubscription manually repairs a subscriber's provider linkage.
// The write goes through the same compare-and-set path as webhook transitions
// so it cannot clobber a concurrent delivery.
func (s *Service) AdminUpdateSubscription(ctx context.Context, jwtToken string, req AdminUpdateRequest) (SubscriptionView, error) {
	claims, err := s.tokenSigner.ParseAndValidate(jwtToken)
	if err != nil {
		return SubscriptionView{}, domain.ErrUnauthorized
	}
	if !strings.EqualFold(claims.Role, "admin") {
		return SubscriptionView{}, domain.ErrForbidden
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return SubscriptionView{}, err
	}
	subscriptionID := strings.TrimSpace(req.SubscriptionID)
	plan := strings.ToLower(strings.TrimSpace(req.Plan))
	if subscriptionID == "" || plan == "" {
		return SubscriptionView{}, fmt.Errorf("%w: subscriptionId and plan are required", domain.ErrInvalidInput)
	}

	for attempt := 0; attempt < s.cfg.ReconcileMaxAttempts; attempt++ {
		sub, err := s.subscribers.GetByEmail(ctx, email)
		if err != nil {
			return SubscriptionView{}, err
		}

		now := s.nowFn()
		next := sub
		next.Status = domain.StatusActive
		next.SubscriptionID = &subscriptionID
		next.Plan = &plan
		next.SubscribedAt = &now

		err = s.subscribers.CompareAndSet(ctx, sub.SubscriberID, sub.Version, ports.SubscriberChange{
			Status:         next.Status,
			SubscriptionID: next.SubscriptionID,
			Plan:           next.Plan,
			SubscribedAt:   next.SubscribedAt,
			LastEventAt:    next.LastEventAt,
			UpdatedAt:      now,
		})
		if err == nil {
			next.Version = sub.Version + 1
			s.logger.Info("subscription manually updated",
				slog.String("email", email),
				slog.String("subscription_id", subscriptionID),
				slog.String("plan", plan),
				slog.String("admin", claims.Email))
			return toSubscriptionView(next), nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return SubscriptionView{}, err
		}
		if err := s.sleepFn(ctx, s.cfg.ReconcileBackoff*(1<<attempt)); err != nil {
			return SubscriptionView{}, err
		}
	}
	return SubscriptionView{}, domain.ErrVersionConflict
}
