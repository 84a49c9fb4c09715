package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/civinigrani/civigate/services"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response with the given payload
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteBadRequest writes a 400 Bad Request response with error details
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "bad_request",
		Message: message,
		Details: details,
	})
}

// WriteForbidden writes a 403 Forbidden response
func WriteForbidden(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Access forbidden"
	}
	return WriteJSON(w, http.StatusForbidden, ErrorResponse{
		Error:   "forbidden",
		Message: message,
	})
}

// WriteNotFound writes a 404 Not Found response
func WriteNotFound(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Resource not found"
	}
	return WriteJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Message: message,
	})
}

// WriteInternalServerError writes a 500 Internal Server Error response
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Internal server error"
	}
	return WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: message,
	})
}

// WriteDomainError maps a service error to the appropriate HTTP response.
// Unknown error values are reported as internal errors without leaking the
// underlying message.
func WriteDomainError(w http.ResponseWriter, err error) error {
	var de *services.DomainError
	if !errors.As(err, &de) {
		return WriteInternalServerError(w, "")
	}

	switch de.Type {
	case services.ErrorTypeValidation:
		return WriteBadRequest(w, de.Message, de.Details)
	case services.ErrorTypeUnknownIdentity, services.ErrorTypePolicyDenied:
		return WriteForbidden(w, de.Message)
	case services.ErrorTypeUnknownOperation:
		return WriteNotFound(w, de.Message)
	case services.ErrorTypeTokenInvalid:
		return WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   string(de.Type),
			Message: de.Message,
		})
	case services.ErrorTypeUpstreamUnavailable, services.ErrorTypeUpstreamError:
		return WriteJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   string(de.Type),
			Message: de.Message,
		})
	default:
		return WriteInternalServerError(w, "")
	}
}
