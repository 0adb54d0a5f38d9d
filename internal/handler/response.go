package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bazaarlabs/tradepost/internal/domain"
)

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v.
// It returns an error for malformed JSON or unknown fields.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}
	return nil
}

// WriteDomainError maps a domain error to its HTTP status code and writes
// the standard error response.
func WriteDomainError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		WriteError(w, http.StatusBadRequest, "validation_error", ve.Message)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrTradeNotFound),
		errors.Is(err, domain.ErrListingNotFound),
		errors.Is(err, domain.ErrBuyOrderNotFound),
		errors.Is(err, domain.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotParticipant),
		errors.Is(err, domain.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyProcessed),
		errors.Is(err, domain.ErrUserAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientInventory),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrNotSellable):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		WriteError(w, status, "internal_error", "An unexpected error occurred")
		return
	}
	WriteError(w, status, domainErrorCode(err), err.Error())
}

// domainErrorCode returns the sentinel's stable code (the sentinels are
// already snake_case strings).
func domainErrorCode(err error) string {
	for _, sentinel := range []error{
		domain.ErrUserAlreadyExists, domain.ErrUserNotFound,
		domain.ErrTradeNotFound, domain.ErrListingNotFound,
		domain.ErrBuyOrderNotFound, domain.ErrItemNotFound,
		domain.ErrNotParticipant, domain.ErrNotOwner,
		domain.ErrInvalidState, domain.ErrInsufficientInventory,
		domain.ErrInsufficientBalance, domain.ErrAlreadyProcessed,
		domain.ErrNotSellable,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "error"
}
