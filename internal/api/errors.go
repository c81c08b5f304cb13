package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/wifiattend/internal/registry"
)

// Response is the envelope returned by every registry endpoint. Message is
// a string for mutations and errors, and the listing for the list endpoints.
type Response struct {
	Status  string `json:"status"`
	Message any    `json:"message"`
}

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Fixed client-facing messages owned by the HTTP layer.
const (
	msgInvalidJSON     = "invalid JSON body"
	msgInternalError   = "internal server error"
	msgBSSIDInserted   = "BSSID inserted"
	msgBSSIDUpdated    = "BSSID updated with new facilityId"
	msgBSSIDDeleted    = "BSSID deleted"
	msgFacilityDeleted = "Facility and its BSSIDs deleted"
	msgDatabaseDeleted = "Database deleted"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeSuccess writes a success envelope.
func writeSuccess(w http.ResponseWriter, status int, message any) {
	writeJSON(w, status, Response{Status: StatusSuccess, Message: message})
}

// writeError writes an error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Status: StatusError, Message: message})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, message)
}

// writeRegistryError maps a registry error onto an HTTP status and envelope.
// Storage causes are only disclosed when expose_internal_errors is enabled.
func (s *Server) writeRegistryError(w http.ResponseWriter, err error) {
	var regErr *registry.Error
	if !errors.As(err, &regErr) {
		s.logger.Error("unexpected registry error", "error", err)
		writeInternalError(w, msgInternalError)
		return
	}

	switch regErr.Kind {
	case registry.KindValidation:
		writeBadRequest(w, regErr.Message)
	case registry.KindConflict:
		writeError(w, http.StatusConflict, regErr.Message)
	case registry.KindNotFound:
		writeError(w, http.StatusNotFound, regErr.Message)
	default:
		msg := regErr.Message
		if s.cfg.ExposeInternalErrors && regErr.Err != nil {
			msg = regErr.Error()
		}
		writeInternalError(w, msg)
	}
}
