package ports

import "context"

// CheckoutSession is the opaque provider handle returned when a hosted
// checkout is created. RedirectURL is handed straight back to the client.
type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

// BillingProvider is the outbound interface to the external payment provider.
// Responses are treated as opaque; local state is only ever mutated by the
// provider's webhooks, never by these calls.
type BillingProvider interface {
	CreateCheckoutSession(ctx context.Context, email, plan, priceID string) (CheckoutSession, error)
	// CancelAtPeriodEnd asks the provider to end the subscription at the
	// current period boundary. The confirming webhook drives the local state.
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
}
