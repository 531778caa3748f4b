package http

import (
	"io"
	"net/http"
)

// maxWebhookBody caps how much of a provider delivery is read. Provider
// payloads are a few KB; anything larger is not a billing event.
const maxWebhookBody = 1 << 20

// providerEvents ingests a signed billing notification. Every rejection here
// is safe: the provider redelivers, and redelivery is idempotent downstream.
func (h *Handler) providerEvents(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unreadable request body")
		return
	}

	signature := r.Header.Get("Webhook-Signature")
	if signature == "" {
		// Accept the provider's native header name as well.
		signature = r.Header.Get("Stripe-Signature")
	}

	_, err = h.service.HandleProviderEvent(r.Context(), rawBody, signature)
	if err != nil {
		writeMappedError(r.Context(), w, "provider_events", err)
		return
	}
	writeReceived(w)
}
