package http

import (
	"encoding/json"
	"net/http"
)

type apiError struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range data {
		body[k] = v
	}
	writeJSON(w, statusCode, body)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Success: false,
		Code:    code,
		Message: message,
	})
}

// writeReceived acknowledges a webhook delivery. The provider only needs the
// 2xx; the body mirrors its own convention.
func writeReceived(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}
