package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/orbitacademy/subscription-service/internal/domain"
	"github.com/orbitacademy/subscription-service/internal/ports"
)

type Service struct {
	cfg         Config
	subscribers ports.SubscriberRepository
	eventLog    ports.EventLogRepository
	intents     ports.IntentStore
	parkingLot  ports.EventParkingLot
	provider    ports.BillingProvider
	verifier    ports.WebhookVerifier
	hasher      ports.PasswordHasher
	tokenSigner ports.TokenSigner
	logger      *slog.Logger
	nowFn       func() time.Time
	sleepFn     func(ctx context.Context, d time.Duration) error
}

type Dependencies struct {
	Config      Config
	Subscribers ports.SubscriberRepository
	EventLog    ports.EventLogRepository
	Intents     ports.IntentStore
	ParkingLot  ports.EventParkingLot
	Provider    ports.BillingProvider
	Verifier    ports.WebhookVerifier
	Hasher      ports.PasswordHasher
	TokenSigner ports.TokenSigner
	Logger      *slog.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:         deps.Config,
		subscribers: deps.Subscribers,
		eventLog:    deps.EventLog,
		intents:     deps.Intents,
		parkingLot:  deps.ParkingLot,
		provider:    deps.Provider,
		verifier:    deps.Verifier,
		hasher:      deps.Hasher,
		tokenSigner: deps.TokenSigner,
		logger:      logger,
		nowFn:       func() time.Time { return time.Now().UTC() },
		sleepFn:     sleepCtx,
	}
}

func (s *Service) GetSubscription(ctx context.Context, jwtToken string) (SubscriptionView, error) {
	claims, err := s.tokenSigner.ParseAndValidate(jwtToken)
	if err != nil {
		return SubscriptionView{}, domain.ErrUnauthorized
	}

	sub, err := s.subscribers.GetByEmail(ctx, claims.Email)
	if err != nil {
		return SubscriptionView{}, err
	}
	return toSubscriptionView(sub), nil
}

func (s *Service) ValidateToken(token string) (ports.AuthClaims, error) {
	claims, err := s.tokenSigner.ParseAndValidate(token)
	if err != nil {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	return claims, nil
}

func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return trimmed, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
