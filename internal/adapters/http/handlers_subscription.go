package http

import (
	"net/http"

	"github.com/orbitacademy/subscription-service/internal/application"
)

func (h *Handler) getSubscription(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	view, err := h.service.GetSubscription(r.Context(), token)
	if err != nil {
		writeMappedError(r.Context(), w, "get_subscription", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"subscription": view})
}

func (h *Handler) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	if err := h.service.CancelSubscription(r.Context(), token); err != nil {
		writeMappedError(r.Context(), w, "cancel_subscription", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"message": "cancellation requested; the subscription ends at the period boundary",
	})
}

func (h *Handler) adminUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	var req application.AdminUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "admin_update_subscription", err)
		return
	}

	view, err := h.service.AdminUpdateSubscription(r.Context(), token, req)
	if err != nil {
		writeMappedError(r.Context(), w, "admin_update_subscription", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"subscription": view})
}
