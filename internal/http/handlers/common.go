package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/andreasstove999/bnpl-storefront/internal/cart"
	"github.com/andreasstove999/bnpl-storefront/internal/checkout"
	"github.com/andreasstove999/bnpl-storefront/internal/clients"
	"github.com/andreasstove999/bnpl-storefront/internal/events"
	"github.com/andreasstove999/bnpl-storefront/internal/middleware"
	"github.com/andreasstove999/bnpl-storefront/internal/otp"
	"github.com/andreasstove999/bnpl-storefront/internal/session"
)

// Common is shared by every handler that works on a session.
type Common struct {
	Sessions *session.Registry
	Events   events.Publisher
	Logger   *zap.Logger
}

// session resolves the X-Session-Id session or answers 401.
func (c Common) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sid := middleware.GetSessionID(r.Context())
	if sid == "" {
		writeSignIn(w, r, "session required")
		return nil, false
	}
	s, ok := c.Sessions.Get(sid)
	if !ok {
		writeSignIn(w, r, "session expired")
		return nil, false
	}
	return s, true
}

// optionalSession returns the request's session when it names a live one.
func (c Common) optionalSession(r *http.Request) *session.Session {
	sid := middleware.GetSessionID(r.Context())
	if sid == "" {
		return nil
	}
	s, _ := c.Sessions.Get(sid)
	return s
}

// user resolves a signed-in session or answers 401.
func (c Common) user(w http.ResponseWriter, r *http.Request) (*session.Session, session.User, bool) {
	s, ok := c.session(w, r)
	if !ok {
		return nil, session.User{}, false
	}
	u, ok := s.User()
	if !ok {
		writeSignIn(w, r, "sign in required")
		return nil, session.User{}, false
	}
	return s, u, true
}

// fail maps err to a response. Upstream auth failures also sign the session
// out so the storefront re-authenticates.
func (c Common) fail(w http.ResponseWriter, r *http.Request, s *session.Session, err error) {
	if errors.Is(err, clients.ErrUnauthorized) {
		if s != nil {
			c.logout(r.Context(), s, events.LogoutReasonUpstream)
		}
		writeSignIn(w, r, "session expired, sign in again")
		return
	}
	if errors.Is(err, checkout.ErrNotAuthenticated) {
		writeSignIn(w, r, err.Error())
		return
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		c.logger().Warn("request failed",
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
	}
	WriteError(w, r, status, err.Error())
}

func (c Common) logout(ctx context.Context, s *session.Session, reason string) {
	u, was := s.Logout()
	if !was {
		return
	}
	c.publishLogout(ctx, events.SessionLogoutPayload{SessionID: s.ID, UserID: u.ID, Reason: reason})
}

func (c Common) publishLogout(ctx context.Context, p events.SessionLogoutPayload) {
	if c.Events == nil {
		return
	}
	meta := events.EnvelopeMetadata{CorrelationID: middleware.GetCorrelationID(ctx)}
	if err := c.Events.PublishSessionLogout(ctx, p, meta); err != nil {
		c.logger().Warn("publish session logout failed", zap.Error(err))
	}
}

func (c Common) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadJSON):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrStepInvalid),
		errors.Is(err, checkout.ErrPayloadType),
		errors.Is(err, cart.ErrQuantityOutOfRange),
		errors.Is(err, cart.ErrEmptyProductID),
		errors.Is(err, otp.ErrInvalidPhone),
		errors.Is(err, otp.ErrInvalidCode),
		errors.Is(err, otp.ErrNoChallenge),
		errors.Is(err, clients.ErrOTPRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrUnknownStep),
		errors.Is(err, cart.ErrUnknownProduct),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, clients.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrStepNotReached),
		errors.Is(err, checkout.ErrLastStep):
		return http.StatusConflict
	case errors.Is(err, otp.ErrCooldownActive),
		errors.Is(err, otp.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
