package app

import (
	"errors"
	"fmt"
	"net/http"

	"mojocode/api/internal/auth"
	"mojocode/api/internal/gitcli"
	"mojocode/api/internal/shell"
	"mojocode/api/internal/store"
	"mojocode/api/internal/workspace"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// mapError turns service errors into the status and body of an error
// response. Unknown errors become a generic 500.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, workspace.ErrInvalidPath):
		return http.StatusBadRequest, "INVALID_PATH", "Invalid project path. Must be a relative path within your workspace.", nil
	case errors.Is(err, workspace.ErrNotFound):
		return http.StatusNotFound, "PROJECT_NOT_FOUND", "Project path does not exist or is not a directory.", nil
	case errors.Is(err, store.ErrInvalidPageID):
		return http.StatusBadRequest, "INVALID_PAGE_ID", "Invalid page_id", nil
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, shell.ErrTimeout):
		return http.StatusGatewayTimeout, "COMMAND_TIMEOUT", "Git command timed out", nil
	case errors.Is(err, gitcli.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid git argument", nil
	case errors.Is(err, gitcli.ErrDiffFailed):
		return http.StatusInternalServerError, "DIFF_FAILED", "Failed to compute repository changes", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
