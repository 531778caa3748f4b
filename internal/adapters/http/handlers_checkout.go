package http

import (
	"net/http"

	"github.com/orbitacademy/subscription-service/internal/application"
)

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req application.CheckoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "checkout", err)
		return
	}

	res, err := h.service.InitiateCheckout(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "checkout", err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"sessionId": res.SessionID,
		"url":       res.RedirectURL,
	})
}
