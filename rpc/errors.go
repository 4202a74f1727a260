package rpc

import (
	"encoding/json"
	"net/http"

	"hgigs/native/marketplace"
	"hgigs/observability"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeEngineError maps a marketplace error onto its HTTP status.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	code := marketplace.Code(err)
	status := statusForCode(code)
	if status == http.StatusInternalServerError {
		s.logger.Error("engine failure", "requestId", RequestIDFrom(r.Context()), "route", r.URL.Path, "error", err)
		writeError(w, status, code, "internal error")
		return
	}
	observability.Marketplace().RecordRejection(code)
	writeError(w, status, code, err.Error())
}

func statusForCode(code string) int {
	switch code {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "UNAUTHORIZED", "SELF_ORDER":
		return http.StatusForbidden
	case "PAUSED":
		return http.StatusLocked
	case "INCORRECT_AMOUNT", "INVALID_INPUT", "INVALID_PRICE", "INVALID_FEE":
		return http.StatusBadRequest
	case "INSUFFICIENT_FUNDS":
		return http.StatusPaymentRequired
	case "NOT_PAUSED", "INACTIVE_GIG", "ALREADY_PAID", "ALREADY_COMPLETED", "ALREADY_RELEASED",
		"NOT_COMPLETED", "NOT_PAID", "ALREADY_INITIALIZED", "NOT_INITIALIZED", "REENTRANT":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
