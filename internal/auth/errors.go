package auth

import (
	"errors"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/common"
)

// Sub-causes of an authentication failure. They are logged and counted but
// never rendered, so a caller cannot tell which check failed.
var (
	ErrNoToken           = errors.New("auth: token missing")
	ErrInvalidToken      = errors.New("auth: token invalid")
	ErrPrincipalNotFound = errors.New("auth: principal not found")
	ErrNotAdmin          = errors.New("auth: principal is not an administrator")
)

// Client-facing messages.
const (
	MsgNoToken     = "Not authorized, no token"
	MsgTokenFailed = "Not authorized, token failed"
	MsgNotAdmin    = "Not authorized as admin"
)

// reason maps an error to its metric label.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "no_token"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrPrincipalNotFound):
		return "principal_not_found"
	case errors.Is(err, ErrNotAdmin):
		return "not_admin"
	default:
		return "lookup_error"
	}
}

// unauthorized converts a sub-cause into the uniform 401 response.
func unauthorized(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrNoToken):
		return common.Unauthorized(MsgNoToken, err)
	case errors.Is(err, ErrNotAdmin):
		return common.Unauthorized(MsgNotAdmin, err)
	default:
		return common.Unauthorized(MsgTokenFailed, err)
	}
}
