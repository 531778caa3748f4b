package application

import (
	"time"

	"github.com/orbitacademy/subscription-service/internal/domain"
)

type Config struct {
	// PlanCatalog maps public plan names to provider price identifiers.
	PlanCatalog map[string]string

	IntentValidityWindow time.Duration
	ClockSkewTolerance   time.Duration

	ReconcileMaxAttempts int
	ReconcileBackoff     time.Duration

	TokenTTL time.Duration
}

type CheckoutRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Plan      string `json:"plan"`
}

type CheckoutResponse struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
	Reused      bool   `json:"-"`
}

type SubscriptionView struct {
	Email          string     `json:"email"`
	Status         string     `json:"status"`
	Plan           *string    `json:"plan,omitempty"`
	SubscriptionID *string    `json:"subscriptionId,omitempty"`
	SubscribedAt   *time.Time `json:"subscribedAt,omitempty"`
	LastEventAt    *time.Time `json:"lastEventAt,omitempty"`
}

type AdminUpdateRequest struct {
	Email          string `json:"email"`
	SubscriptionID string `json:"subscriptionId"`
	Plan           string `json:"plan"`
}

// WebhookOutcome is what a provider event attempt resolved to. Outcomes other
// than OutcomeApplied still acknowledge the delivery; the distinction only
// drives logging and the audit trail.
type WebhookOutcome string

const (
	OutcomeApplied   WebhookOutcome = "applied"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeParked    WebhookOutcome = "parked"
)

func toSubscriptionView(sub domain.Subscriber) SubscriptionView {
	return SubscriptionView{
		Email:          sub.Email,
		Status:         string(sub.Status),
		Plan:           sub.Plan,
		SubscriptionID: sub.SubscriptionID,
		SubscribedAt:   sub.SubscribedAt,
		LastEventAt:    sub.LastEventAt,
	}
}
