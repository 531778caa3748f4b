package application

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/orbitacademy/subscription-service/internal/domain"
)

// Classification is the total outcome of mapping a provider payload.
type Classification int

const (
	// ClassOK means the payload mapped to a canonical event for the engine.
	ClassOK Classification = iota
	// ClassIgnored marks an unrecognized provider type. Never an error: the
	// provider may add event types at any time.
	ClassIgnored
	// ClassMalformed marks a recognized type missing required correlation
	// fields. Logged and dropped; retrying a malformed payload cannot help.
	ClassMalformed
)

// providerEnvelope is the wire shape of a provider notification. Only the
// fields needed for correlation are decoded; everything else is opaque.
type providerEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID              string `json:"id"`
			CustomerEmail   string `json:"customer_email"`
			CustomerDetails struct {
				Email string `json:"email"`
			} `json:"customer_details"`
			Subscription string `json:"subscription"`
			Metadata     struct {
				Plan string `json:"plan"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ClassifyEvent maps a verified provider payload to a canonical event.
// The mapping is total: every input lands in exactly one classification, and
// ClassOK is the only one that carries a usable event.
func ClassifyEvent(payload []byte) (domain.CanonicalEvent, Classification) {
	var env providerEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return domain.CanonicalEvent{}, ClassMalformed
	}

	var eventType domain.EventType
	switch env.Type {
	case "checkout.session.completed":
		eventType = domain.EventSubscribed
	case "invoice.paid", "invoice.payment_succeeded":
		eventType = domain.EventRenewed
	case "invoice.payment_failed":
		eventType = domain.EventPaymentFailed
	case "customer.subscription.deleted":
		eventType = domain.EventCanceled
	default:
		return domain.CanonicalEvent{}, ClassIgnored
	}

	email := strings.ToLower(strings.TrimSpace(env.Data.Object.CustomerEmail))
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(env.Data.Object.CustomerDetails.Email))
	}

	subscriptionID := strings.TrimSpace(env.Data.Object.Subscription)
	if subscriptionID == "" && eventType == domain.EventCanceled {
		// For subscription.deleted the payload object is the subscription.
		subscriptionID = strings.TrimSpace(env.Data.Object.ID)
	}

	ev := domain.CanonicalEvent{
		EventID:    env.ID,
		Type:       eventType,
		Email:      email,
		OccurredAt: time.Unix(env.Created, 0).UTC(),
	}
	if subscriptionID != "" {
		ev.SubscriptionID = &subscriptionID
	}
	if plan := strings.TrimSpace(env.Data.Object.Metadata.Plan); plan != "" {
		ev.Plan = &plan
	}

	if env.Created <= 0 {
		return domain.CanonicalEvent{}, ClassMalformed
	}
	switch eventType {
	case domain.EventSubscribed:
		// Checkout completion is the row-creating event and needs both keys.
		if ev.Email == "" || ev.SubscriptionID == nil {
			return domain.CanonicalEvent{}, ClassMalformed
		}
	default:
		if ev.Email == "" && ev.SubscriptionID == nil {
			return domain.CanonicalEvent{}, ClassMalformed
		}
	}

	return ev, ClassOK
}
