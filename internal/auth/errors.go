package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/andreasstove999/bnpl-storefront/internal/tokens"
)

var (
	ErrFetch          = errors.New("token fetch failed")
	ErrRefresh        = errors.New("token refresh failed")
	ErrNoRefreshToken = errors.New("no refresh token available")
	ErrNotRefreshable = errors.New("service does not support refresh")
	ErrUnknownService = errors.New("unknown service")
)

const (
	OpFetch   = "fetch"
	OpRefresh = "refresh"
)

// Error describes a failed token request. StatusCode is zero when the
// upstream was never reached.
type Error struct {
	Service    tokens.Service
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s token %s: upstream status %d: %v", e.Service, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s token %s: %v", e.Service, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers match on the operation without unwrapping.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrFetch:
		return e.Op == OpFetch
	case ErrRefresh:
		return e.Op == OpRefresh
	}
	return false
}

// Unauthorized reports whether the upstream rejected the credentials.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
