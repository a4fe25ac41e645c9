package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warp/revenue-engine/ledger"
)

// statusFor maps the ledger error taxonomy onto HTTP status codes.
//
// With legacy set, every domain error other than validation collapses to
// 500, which is what older clients were built against.
func statusFor(err error, legacy bool) int {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case legacy && ledger.IsDomain(err):
		return http.StatusInternalServerError
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case ledger.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrAllocationExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Message: message})
}

// writeDomainError answers with the error's own message. Store failures are
// logged and reported without their internals.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error, legacy bool) {
	status := statusFor(err, legacy)

	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, status, Envelope{Success: false, Message: "Validation failed", Errors: verr.Fields})
		return
	}

	message := err.Error()
	if !ledger.IsDomain(err) {
		h.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "Internal server error"
	}
	writeError(w, status, message)
}
