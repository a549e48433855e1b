package dto

import (
	"net/http"

	"github.com/komono/backend/internal/domain/shared"
)

// Common API error codes not tied to a domain error
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeRateLimited  = "RATE_LIMITED"
)

// HTTPStatusForKind maps a domain error kind onto an HTTP status code.
// Security failures are reported as 401 without detail so callers cannot
// probe signature verification.
func HTTPStatusForKind(kind shared.ErrorKind) int {
	switch kind {
	case shared.ErrorKindValidation:
		return http.StatusBadRequest
	case shared.ErrorKindNotFound:
		return http.StatusNotFound
	case shared.ErrorKindConflict:
		return http.StatusConflict
	case shared.ErrorKindExternal:
		return http.StatusBadGateway
	case shared.ErrorKindSecurity:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// GetHTTPStatus maps a flat error code onto an HTTP status code
func GetHTTPStatus(code string) int {
	switch code {
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
