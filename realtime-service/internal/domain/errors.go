package domain

import "errors"

// Error kinds. Callers wrap them with fmt.Errorf("%w: ...") and test with errors.Is.
var (
	ErrAuth          = errors.New("authentication failed")
	ErrValidation    = errors.New("validation failed")
	ErrForbidden     = errors.New("forbidden")
	ErrStore         = errors.New("store failure")
	ErrTimeout       = errors.New("operation timed out")
	ErrTargetOffline = errors.New("target offline")
	ErrCallNotFound  = errors.New("call not found")
	ErrBusy          = errors.New("participant busy")
)

// Error codes sent to clients.
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeStore         = "STORE_ERROR"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeTargetOffline = "TARGET_OFFLINE"
	ErrCodeBusy          = "BUSY"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// ErrorCode maps an error to the code reported to clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return ErrCodeUnauthorized
	case errors.Is(err, ErrValidation):
		return ErrCodeBadRequest
	case errors.Is(err, ErrForbidden):
		return ErrCodeForbidden
	case errors.Is(err, ErrCallNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrTimeout):
		return ErrCodeTimeout
	case errors.Is(err, ErrStore):
		return ErrCodeStore
	case errors.Is(err, ErrTargetOffline):
		return ErrCodeTargetOffline
	case errors.Is(err, ErrBusy):
		return ErrCodeBusy
	default:
		return ErrCodeInternal
	}
}
