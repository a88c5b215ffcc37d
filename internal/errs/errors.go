package errs

import (
	"errors"
	"strings"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound  = errors.New("not_found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
	// ErrSystemAccount indicates a system account cannot be modified/deactivated
	ErrSystemAccount = errors.New("system_account")
	// ErrImmutableEntry indicates an attempted mutation of a posted journal
	// entry or posted balance sheet (GoBD).
	ErrImmutableEntry = errors.New("immutable_entry")
	// ErrFiscalYearClosed indicates a booking or transition into a closed year.
	ErrFiscalYearClosed = errors.New("fiscal_year_closed")
	// ErrUnknownCategory indicates an account code the static kontenplan does
	// not cover. Configuration error, fatal at startup in a correct deployment.
	ErrUnknownCategory = errors.New("unknown_category")
	// ErrInvalidSectionReference indicates a presentation rule pointing at a
	// section id absent from the Aktiva/Passiva tree. Configuration error.
	ErrInvalidSectionReference = errors.New("invalid_section_reference")
)

// ValidationErrors aggregates human-readable messages from pre-commit
// validation so the caller sees every violation at once.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return "validation failed: " + strings.Join(v, "; ")
}

// Is lets callers match a ValidationErrors value against ErrInvalid.
func (v ValidationErrors) Is(target error) bool { return target == ErrInvalid }

// OrNil returns v as an error, or nil when no messages were collected.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
