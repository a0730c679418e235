// Package auth obtains and refreshes bearer tokens from the upstream
// identity services and writes them through to the token store.
package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/andreasstove999/bnpl-storefront/internal/tokens"
)

// Outbound token request headers.
const (
	HeaderConversationID = "X-Correlation-ConversationID"
	HeaderMessageID      = "X-MessageID"
	HeaderSourceSystem   = "X-Source-System"
)

// DefaultTokenLifetime is used when an upstream gives neither expires_in nor
// a JWT exp claim.
const DefaultTokenLifetime = 5 * time.Minute

// maxErrorBody caps how much of an upstream error body ends up in errors.
const maxErrorBody = 512

type Fetcher interface {
	Service() tokens.Service
	// Fetch obtains a new token and stores it.
	Fetch(ctx context.Context) (tokens.Record, error)
	// Forget drops any credentials held beside the cached token.
	Forget()
}

// Refresher is implemented by fetchers whose service supports refresh.
type Refresher interface {
	Refresh(ctx context.Context) (tokens.Record, error)
}

// Registry resolves fetchers by service.
type Registry struct {
	fetchers map[tokens.Service]Fetcher
}

func NewRegistry(fetchers ...Fetcher) *Registry {
	r := &Registry{fetchers: make(map[tokens.Service]Fetcher, len(fetchers))}
	for _, f := range fetchers {
		r.fetchers[f.Service()] = f
	}
	return r
}

func (r *Registry) Get(svc tokens.Service) (Fetcher, bool) {
	f, ok := r.fetchers[svc]
	return f, ok
}

func (r *Registry) Fetch(ctx context.Context, svc tokens.Service) (tokens.Record, error) {
	f, ok := r.fetchers[svc]
	if !ok {
		return tokens.Record{}, &Error{Service: svc, Op: OpFetch, Err: ErrUnknownService}
	}
	return f.Fetch(ctx)
}

func (r *Registry) Refresh(ctx context.Context, svc tokens.Service) (tokens.Record, error) {
	f, ok := r.fetchers[svc]
	if !ok {
		return tokens.Record{}, &Error{Service: svc, Op: OpRefresh, Err: ErrUnknownService}
	}
	rf, ok := f.(Refresher)
	if !ok {
		return tokens.Record{}, &Error{Service: svc, Op: OpRefresh, Err: ErrNotRefreshable}
	}
	return rf.Refresh(ctx)
}

func (r *Registry) All() []Fetcher {
	out := make([]Fetcher, 0, len(r.fetchers))
	for _, svc := range tokens.Services {
		if f, ok := r.fetchers[svc]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Prefetch fetches a token for every fetcher concurrently and returns the
// first error.
func Prefetch(ctx context.Context, fetchers ...Fetcher) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range fetchers {
		g.Go(func() error {
			_, err := f.Fetch(gctx)
			return err
		})
	}
	return g.Wait()
}

// ProxyURL routes target through a proxy template. "{target}" is replaced by
// the query-escaped target; a template without it is used as a prefix.
func ProxyURL(template, target string) string {
	template = strings.TrimSpace(template)
	if template == "" {
		return target
	}
	if strings.Contains(template, "{target}") {
		return strings.ReplaceAll(template, "{target}", url.QueryEscape(target))
	}
	return template + target
}

// newTokenRequest builds a POST carrying fresh correlation and message ids.
func newTokenRequest(ctx context.Context, target string, body []byte, sourceSystem string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set(HeaderConversationID, uuid.NewString())
	req.Header.Set(HeaderMessageID, uuid.NewString())
	if sourceSystem != "" {
		req.Header.Set(HeaderSourceSystem, sourceSystem)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doTokenRequest sends req and returns the body of a 2xx response. Other
// statuses become an *Error with the body excerpt.
func doTokenRequest(client *http.Client, req *http.Request, svc tokens.Service, op string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Service: svc, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Service: svc, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &Error{Service: svc, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}
	return body, nil
}

// lifetime picks the cache lifetime for access: expiresIn seconds when
// given, else the JWT exp claim, else DefaultTokenLifetime.
func lifetime(access string, expiresIn int64, now time.Time) time.Duration {
	if expiresIn > 0 {
		return time.Duration(expiresIn) * time.Second
	}
	if exp, err := tokens.ExpiryFromJWT(access); err == nil && exp.After(now) {
		return exp.Sub(now)
	}
	return DefaultTokenLifetime
}
