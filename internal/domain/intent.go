package domain

import "time"

// CheckoutIntent is a provisional record of a user's intended subscription,
// created before the provider confirms payment. Intents are advisory: their
// absence never blocks a webhook-driven transition.
type CheckoutIntent struct {
	IntentID          string    `json:"intent_id"`
	Email             string    `json:"email"`
	Plan              string    `json:"plan"`
	CheckoutSessionID string    `json:"checkout_session_id"`
	RedirectURL       string    `json:"redirect_url"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// Live reports whether the intent is still inside its validity window.
func (i CheckoutIntent) Live(now time.Time) bool {
	return now.Before(i.ExpiresAt)
}
