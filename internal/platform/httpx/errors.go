package httpx

import (
	"errors"
	"net/http"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// RespondError maps a domain error to its status and a problem+json body.
// Unknown errors become a bare 500 so internals never leak.
func RespondError(w http.ResponseWriter, err error) {
	var fields shared.ValidationErrors
	if errors.As(err, &fields) {
		write(w, "application/problem+json", http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Fields: fields,
		})
		return
	}

	status, title := http.StatusInternalServerError, "Internal Error"
	switch {
	case errors.Is(err, shared.ErrNotFound):
		status, title = http.StatusNotFound, "Not Found"
	case errors.Is(err, shared.ErrForbidden):
		status, title = http.StatusForbidden, "Forbidden"
	case errors.Is(err, shared.ErrDuplicate):
		status, title = http.StatusConflict, "Duplicate"
	case errors.Is(err, shared.ErrValidation):
		status, title = http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, shared.ErrInvalidCredentials):
		status, title = http.StatusUnauthorized, "Unauthorized"
	}
	detail := ""
	if status != http.StatusInternalServerError {
		detail = shared.UserSafeMessage(err)
	}
	Problem(w, status, title, detail)
}
