package shared

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the actor may not touch the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation marks input that failed validation.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ValidationErrors maps form fields to messages.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match field errors.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Add records a message for field unless one is already present.
func (v ValidationErrors) Add(field, message string) {
	if _, ok := v[field]; ok {
		return
	}
	v[field] = message
}

// Err returns nil when no field failed.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// SafeMessager is implemented by domain errors that carry their own user facing text.
type SafeMessager interface {
	SafeMessage() string
}

// UserSafeMessage converts an error into text that can be shown in the UI.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var safe SafeMessager
	if errors.As(err, &safe) {
		return safe.SafeMessage()
	}
	var fields ValidationErrors
	if errors.As(err, &fields) {
		return "Please correct the highlighted fields"
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found"
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password, or the account is disabled"
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to perform this action"
	case errors.Is(err, ErrDuplicate):
		return "A record with the same key already exists"
	case errors.Is(err, ErrValidation):
		return "The submitted data is invalid"
	case errors.Is(err, ErrCSRFTokenMissing), errors.Is(err, ErrCSRFTokenMismatch):
		return "Your form has expired, please reload the page and try again"
	}
	return "An unexpected error occurred, please contact the administrator"
}

// DomainError pairs a sentinel with user facing text.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string { return e.Code }

// SafeMessage implements SafeMessager.
func (e *DomainError) SafeMessage() string { return e.Message }

// NewDomainError builds a sentinel whose message is safe to display.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}
