package httpapi

import (
	"errors"
	"net/http"

	"github.com/buchwerk/fibu/internal/errs"
)

// errorResponse is the standard error payload for the API. Validation
// failures additionally carry the individual field-level messages.
type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

func badRequest(w http.ResponseWriter, msg string) {
	toJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeDomainErr maps domain sentinels onto HTTP statuses and stable codes.
func writeDomainErr(w http.ResponseWriter, err error) {
	var v errs.ValidationErrors
	if errors.As(err, &v) {
		toJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: "validation failed", Code: "validation_error", Details: v,
		})
		return
	}
	switch {
	case errors.Is(err, errs.ErrNotFound):
		toJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Code: "not_found"})
	case errors.Is(err, errs.ErrImmutableEntry):
		toJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "immutable_entry"})
	case errors.Is(err, errs.ErrFiscalYearClosed):
		toJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "fiscal_year_closed"})
	case errors.Is(err, errs.ErrConflict):
		toJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "conflict"})
	case errors.Is(err, errs.ErrForbidden):
		toJSON(w, http.StatusForbidden, errorResponse{Error: err.Error(), Code: "forbidden"})
	case errors.Is(err, errs.ErrInvalid):
		toJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid"})
	case errors.Is(err, errs.ErrUnknownCategory), errors.Is(err, errs.ErrInvalidSectionReference):
		// Broken static table; a correctly deployed system never reaches this.
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: "configuration_error"})
	default:
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
	}
}
