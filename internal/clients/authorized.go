package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/andreasstove999/bnpl-storefront/internal/auth"
	"github.com/andreasstove999/bnpl-storefront/internal/tokens"
)

var ErrUnauthorized = errors.New("upstream rejected credentials")

// sharedTokenTimeout bounds a coalesced fetch or refresh, which runs
// detached from the caller that started it.
const sharedTokenTimeout = 15 * time.Second

// AuthError is returned when a request could not be authorized. LoggedOut
// reports whether the service token and credentials were cleared.
type AuthError struct {
	Service    tokens.Service
	StatusCode int
	LoggedOut  bool
	Err        error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("%s: unauthorized", e.Service)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: upstream status %d", e.Service, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }

type AuthorizedOptions struct {
	Policy Policy
	// Coalesce runs concurrent fetches and refreshes for the service as one
	// upstream call.
	Coalesce bool
	OnLogout func(ctx context.Context, svc tokens.Service)
	Logger   *zap.Logger
}

// Authorized attaches the service bearer token to every request and applies
// the service's 401 policy.
type Authorized struct {
	client  *Client
	service tokens.Service
	store   *tokens.Store
	fetcher auth.Fetcher
	opts    AuthorizedOptions
	logger  *zap.Logger
	group   singleflight.Group
}

func NewAuthorized(client *Client, store *tokens.Store, fetcher auth.Fetcher, opts AuthorizedOptions) *Authorized {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authorized{
		client:  client,
		service: fetcher.Service(),
		store:   store,
		fetcher: fetcher,
		opts:    opts,
		logger:  logger.With(zap.String("service", string(fetcher.Service()))),
	}
}

func (a *Authorized) Service() tokens.Service { return a.service }

func (a *Authorized) Client() *Client { return a.client }

// Do sends the request with a bearer token. body is buffered so the request
// can be resent once after a refresh.
func (a *Authorized) Do(ctx context.Context, method, path, rawQuery string, body []byte, headers http.Header) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		token, err := a.token(ctx)
		if err != nil {
			if !credentialsRejected(err) {
				return nil, fmt.Errorf("%s: token fetch: %w", a.service, err)
			}
			a.logout(ctx, "token fetch rejected")
			return nil, &AuthError{Service: a.service, LoggedOut: true, Err: err}
		}

		h := http.Header{}
		if headers != nil {
			h = headers.Clone()
		}
		h.Set("Authorization", "Bearer "+token)

		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		resp, err := a.client.Do(ctx, method, path, rawQuery, rdr, h)
		if err != nil {
			return nil, err
		}

		decision := Decide(a.opts.Policy, resp.StatusCode, attempt)
		switch decision {
		case DecisionDeliver:
			return resp, nil
		case DecisionRefreshAndRetry:
			discard(resp)
			a.logger.Debug("upstream returned 401, refreshing", zap.String("path", path))
			if err := a.refresh(ctx, token); err != nil {
				if !credentialsRejected(err) {
					return nil, fmt.Errorf("%s: token refresh: %w", a.service, err)
				}
				a.logout(ctx, "token refresh rejected")
				return nil, &AuthError{Service: a.service, StatusCode: http.StatusUnauthorized, LoggedOut: true, Err: err}
			}
		case DecisionLogout:
			discard(resp)
			a.logout(ctx, "upstream returned 401")
			return nil, &AuthError{Service: a.service, StatusCode: http.StatusUnauthorized, LoggedOut: true}
		default:
			discard(resp)
			a.logger.Warn("upstream returned 401 after retry", zap.String("path", path))
			return nil, &AuthError{Service: a.service, StatusCode: http.StatusUnauthorized}
		}
	}
}

// token returns the cached token or blocks on a fetch.
func (a *Authorized) token(ctx context.Context) (string, error) {
	if tok, ok := a.store.Token(a.service); ok {
		return tok, nil
	}
	if !a.opts.Coalesce {
		rec, err := a.fetcher.Fetch(ctx)
		return rec.Token, err
	}
	v, err := a.shared(ctx, "fetch", func(ctx context.Context) (any, error) {
		if tok, ok := a.store.Token(a.service); ok {
			return tok, nil
		}
		rec, err := a.fetcher.Fetch(ctx)
		return rec.Token, err
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// refresh replaces the rejected token. With coalescing, a token already
// replaced by a concurrent refresh is reused.
func (a *Authorized) refresh(ctx context.Context, rejected string) error {
	rf, ok := a.fetcher.(auth.Refresher)
	if !ok {
		return &auth.Error{Service: a.service, Op: auth.OpRefresh, Err: auth.ErrNotRefreshable}
	}
	if !a.opts.Coalesce {
		_, err := rf.Refresh(ctx)
		return err
	}
	_, err := a.shared(ctx, "refresh", func(ctx context.Context) (any, error) {
		if tok, ok := a.store.Token(a.service); ok && tok != rejected {
			return nil, nil
		}
		_, err := rf.Refresh(ctx)
		return nil, err
	})
	return err
}

// shared runs fn once for every concurrent caller of key. Each caller stops
// waiting when its own ctx ends; fn keeps running for the rest.
func (a *Authorized) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := a.group.DoChan(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedTokenTimeout)
		defer cancel()
		return fn(sctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// credentialsRejected reports whether a token fetch or refresh failed
// because the identity service refused the credentials. Cancellations,
// timeouts, transport errors and 5xx answers leave the session alone.
func credentialsRejected(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, auth.ErrNoRefreshToken) || errors.Is(err, auth.ErrNotRefreshable) {
		return true
	}
	var ae *auth.Error
	if errors.As(err, &ae) {
		return ae.StatusCode >= 400 && ae.StatusCode < 500
	}
	return false
}

func (a *Authorized) logout(ctx context.Context, reason string) {
	ctx = context.WithoutCancel(ctx)
	a.store.Clear(ctx, a.service)
	a.fetcher.Forget()
	a.logger.Info("service logged out", zap.String("reason", reason))
	if a.opts.OnLogout != nil {
		a.opts.OnLogout(ctx, a.service)
	}
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
