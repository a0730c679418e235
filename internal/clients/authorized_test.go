package clients

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/bnpl-storefront/internal/auth"
	"github.com/andreasstove999/bnpl-storefront/internal/middleware"
	"github.com/andreasstove999/bnpl-storefront/internal/tokens"
)

// stubFetcher hands out tok-1, tok-2, ... and writes them to the store.
type stubFetcher struct {
	svc        tokens.Service
	store      *tokens.Store
	fetches    atomic.Int32
	refreshes  atomic.Int32
	forgets    atomic.Int32
	fetchErr   error
	refreshErr error
	delay      time.Duration
}

func (f *stubFetcher) Service() tokens.Service { return f.svc }

// wait sleeps for delay unless ctx ends first.
func (f *stubFetcher) wait(ctx context.Context) error {
	if f.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *stubFetcher) Fetch(ctx context.Context) (tokens.Record, error) {
	n := f.fetches.Add(1)
	if err := f.wait(ctx); err != nil {
		return tokens.Record{}, err
	}
	if f.fetchErr != nil {
		return tokens.Record{}, f.fetchErr
	}
	return f.store.Set(ctx, f.svc, "tok-"+itoa(n), time.Hour), nil
}

func (f *stubFetcher) Forget() { f.forgets.Add(1) }

type refreshingFetcher struct{ *stubFetcher }

func (f refreshingFetcher) Refresh(ctx context.Context) (tokens.Record, error) {
	n := f.refreshes.Add(1)
	if err := f.wait(ctx); err != nil {
		return tokens.Record{}, err
	}
	if f.refreshErr != nil {
		return tokens.Record{}, f.refreshErr
	}
	return f.store.Set(ctx, f.svc, "refreshed-"+itoa(n), time.Hour), nil
}

func itoa(n int32) string { return strconv.Itoa(int(n)) }

// upstream accepts only the tokens in valid and counts requests.
type upstream struct {
	mu    sync.Mutex
	valid map[string]bool
	hits  atomic.Int32
	seen  []string
}

func newUpstream(t *testing.T, valid ...string) (*upstream, *httptest.Server) {
	t.Helper()
	u := &upstream{valid: map[string]bool{}}
	for _, v := range valid {
		u.valid[v] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		body, _ := io.ReadAll(r.Body)

		u.mu.Lock()
		u.seen = append(u.seen, tok+"|"+string(body))
		ok := u.valid[tok]
		u.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("X-Seen-Correlation", r.Header.Get(middleware.HeaderCorrelationID))
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	t.Cleanup(srv.Close)
	return u, srv
}

func newAuthorized(srv *httptest.Server, store *tokens.Store, f auth.Fetcher, opts AuthorizedOptions) *Authorized {
	return NewAuthorized(NewClient("test", srv.URL, srv.Client()), store, f, opts)
}

func TestAuthorized_AttachesCachedToken(t *testing.T) {
	store := tokens.NewStore()
	store.Set(context.Background(), tokens.ServiceMasoko, "cached", time.Hour)
	u, srv := newUpstream(t, "cached")
	f := &stubFetcher{svc: tokens.ServiceMasoko, store: store}

	a := newAuthorized(srv, store, f, AuthorizedOptions{Policy: PolicyLogout})
	ctx := middleware.WithCorrelationID(context.Background(), "cid-1")
	resp, err := a.Do(ctx, http.MethodGet, "/api/v1/products", "", nil, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cid-1", resp.Header.Get("X-Seen-Correlation"))
	assert.Equal(t, int32(1), u.hits.Load())
	assert.Equal(t, int32(0), f.fetches.Load(), "valid cached token must not trigger a fetch")
}

func TestAuthorized_FetchesWhenMissing(t *testing.T) {
	store := tokens.NewStore()
	_, srv := newUpstream(t, "tok-1")
	f := &stubFetcher{svc: tokens.ServiceMasoko, store: store}

	a := newAuthorized(srv, store, f, AuthorizedOptions{Policy: PolicyLogout})
	resp, err := a.Do(context.Background(), http.MethodGet, "/x", "", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), f.fetches.Load())
}

func TestAuthorized_RejectedFetchLogsOut(t *testing.T) {
	store := tokens.NewStore()
	u, srv := newUpstream(t)
	rejected := &auth.Error{Service: tokens.ServiceMasoko, Op: auth.OpFetch, StatusCode: http.StatusUnauthorized, Err: errors.New("invalid_client")}
	f := &stubFetcher{svc: tokens.ServiceMasoko, store: store, fetchErr: rejected}

	var loggedOut []tokens.Service
	a := newAuthorized(srv, store, f, AuthorizedOptions{
		Policy:   PolicyLogout,
		OnLogout: func(_ context.Context, svc tokens.Service) { loggedOut = append(loggedOut, svc) },
	})
	_, err := a.Do(context.Background(), http.MethodGet, "/x", "", nil, nil)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.True(t, ae.LoggedOut)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(0), u.hits.Load(), "no request is sent without a token")
	assert.Equal(t, []tokens.Service{tokens.ServiceMasoko}, loggedOut)
	assert.Equal(t, int32(1), f.forgets.Load())
}

func TestAuthorized_TransientFetchFailureKeepsCredentials(t *testing.T) {
	cases := map[string]error{
		"unreachable":   &auth.Error{Service: tokens.ServiceMasoko, Op: auth.OpFetch, Err: errors.New("connection refused")},
		"gateway 503":   &auth.Error{Service: tokens.ServiceMasoko, Op: auth.OpFetch, StatusCode: http.StatusServiceUnavailable},
		"deadline":      &auth.Error{Service: tokens.ServiceMasoko, Op: auth.OpFetch, Err: context.DeadlineExceeded},
		"bad response":  errors.New("decode token response: unexpected EOF"),
		"caller cancel": context.Canceled,
	}
	for name, fetchErr := range cases {
		for _, coalesce := range []bool{false, true} {
			t.Run(name+"/coalesce="+strconv.FormatBool(coalesce), func(t *testing.T) {
				store := tokens.NewStore()
				u, srv := newUpstream(t)
				f := &stubFetcher{svc: tokens.ServiceMasoko, store: store, fetchErr: fetchErr}

				var logouts atomic.Int32
				a := newAuthorized(srv, store, f, AuthorizedOptions{
					Policy:   PolicyLogout,
					Coalesce: coalesce,
					OnLogout: func(context.Context, tokens.Service) { logouts.Add(1) },
				})
				_, err := a.Do(context.Background(), http.MethodGet, "/x", "", nil, nil)

				require.Error(t, err)
				assert.ErrorIs(t, err, fetchErr)
				assert.NotErrorIs(t, err, ErrUnauthorized)
				assert.Equal(t, int32(0), u.hits.Load())
				assert.Equal(t, int32(0), logouts.Load())
				assert.Equal(t, int32(0), f.forgets.Load())
			})
		}
	}
}

func TestAuthorized_CallerDeadlineDuringFetchKeepsCredentials(t *testing.T) {
	for _, coalesce := range []bool{false, true} {
		t.Run("coalesce="+strconv.FormatBool(coalesce), func(t *testing.T) {
			store := tokens.NewStore()
			_, srv := newUpstream(t, "tok-1")
			f := &stubFetcher{svc: tokens.ServiceGeneric, store: store, delay: 200 * time.Millisecond}

			var logouts atomic.Int32
			a := newAuthorized(srv, store, f, AuthorizedOptions{
				Policy:   PolicyLogout,
				Coalesce: coalesce,
				OnLogout: func(context.Context, tokens.Service) { logouts.Add(1) },
			})

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err := a.Do(ctx, http.MethodGet, "/user/u-1", "", nil, nil)

			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.NotErrorIs(t, err, ErrUnauthorized)
			assert.Equal(t, int32(0), logouts.Load())
			assert.Equal(t, int32(0), f.forgets.Load())

			if coalesce {
				// The shared fetch finishes for later callers.
				assert.Eventually(t, func() bool { return store.IsValid(tokens.ServiceGeneric) }, time.Second, 5*time.Millisecond)
			}
		})
	}
}

func TestAuthorized_CoalescedFetchOutlivesCancelledCaller(t *testing.T) {
	store := tokens.NewStore()
	_, srv := newUpstream(t, "tok-1")
	f := &stubFetcher{svc: tokens.ServiceMasoko, store: store, delay: 100 * time.Millisecond}

	a := newAuthorized(srv, store, f, AuthorizedOptions{Policy: PolicyLogout, Coalesce: true})

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := a.Do(first, http.MethodGet, "/x", "", nil, nil)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return f.fetches.Load() == 1 }, time.Second, time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		resp, err := a.Do(context.Background(), http.MethodGet, "/x", "", nil, nil)
		if err == nil {
			resp.Body.Close()
		}
		secondErr <- err
	}()
	cancel()

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	assert.NoError(t, <-secondErr, "the waiter that stayed is served by the shared fetch")
	assert.Equal(t, int32(1), f.fetches.Load())
	assert.Equal(t, int32(0), f.forgets.Load())
}

func TestAuthorized_LogoutPolicyClearsToken(t *testing.T) {
	store := tokens.NewStore()
	store.Set(context.Background(), tokens.ServiceGeneric, "stale", time.Hour)
	u, srv := newUpstream(t)
	f := &stubFetcher{svc: tokens.ServiceGeneric, store: store}

	var logouts atomic.Int32
	a := newAuthorized(srv, store, f, AuthorizedOptions{
		Policy:   PolicyLogout,
		OnLogout: func(context.Context, tokens.Service) { logouts.Add(1) },
	})
	_, err := a.Do(context.Background(), http.MethodGet, "/user/1", "", nil, nil)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)
	assert.True(t, ae.LoggedOut)
	assert.Equal(t, int32(1), u.hits.Load(), "logout policy never resends")
	assert.False(t, store.IsValid(tokens.ServiceGeneric))
	assert.Equal(t, int32(1), logouts.Load())
}

func TestAuthorized_RefreshPolicyRetriesOnce(t *testing.T) {
	store := tokens.NewStore()
	store.Set(context.Background(), tokens.ServiceBNPL, "stale", time.Hour)
	u, srv := newUpstream(t, "refreshed-1")
	f := refreshingFetcher{&stubFetcher{svc: tokens.ServiceBNPL, store: store}}

	a := newAuthorized(srv, store, f, AuthorizedOptions{Policy: PolicyRefresh})
	resp, err := a.Do(context.Background(), http.MethodPost, "/v1/loan/eligibility", "", []byte(`{"phoneNumber":"254700000000"}`), nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), u.hits.Load())
	assert.Equal(t, int32(1), f.refreshes.Load())
	assert.Equal(t, []string{
		`stale|{"phoneNumber":"254700000000"}`,
		`refreshed-1|{"phoneNumber":"254700000000"}`,
	}, u.seen, "the body is resent unchanged with the new token")
}

func TestAuthorized_RefreshPolicyGivesUpOnSecond401(t *testing.T) {
	store := tokens.NewStore()
	store.Set(context.Background(), tokens.ServiceBNPL, "stale", time.Hour)
	u, srv := newUpstream(t)
	f := refreshingFetcher{&stubFetcher{svc: tokens.ServiceBNPL, store: store}}

	a := newAuthorized(srv, store, f, AuthorizedOptions{Policy: PolicyRefresh})
	_, err := a.Do(context.Background(), http.MethodGet, "/x", "", nil, nil)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.False(t, ae.LoggedOut)
	assert.Equal(t, int32(2), u.hits.Load(), "no third attempt")
	assert.Equal(t, int32(1), f.refreshes.Load())
	assert.True(t, store.IsValid(tokens.ServiceBNPL), "giving up keeps the refreshed token")
}

func TestAuthorized_RefreshFailureLogsOut(t *testing.T) {
	store := tokens.NewStore()
	store.Set(context.Background(), tokens.ServiceBNPL, "stale", time.Hour)
	u, srv := newUpstream(t)
	refreshErr := &auth.Error{Service: tokens.ServiceBNPL, Op: auth.OpRefresh, StatusCode: http.StatusUnauthorized}
	f := refreshingFetcher{&stubFetcher{svc: tokens.ServiceBNPL, store: store, refreshErr: refreshErr}}

	a := newAuthorized(srv, store, f, AuthorizedOptions{Policy: PolicyRefresh})
	_, err := a.Do(context.Background(), http.MethodGet, "/x", "", nil, nil)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.True(t, ae.LoggedOut)
	assert.ErrorIs(t, err, auth.ErrRefresh)
	assert.Equal(t, int32(1), u.hits.Load())
	assert.False(t, store.IsValid(tokens.ServiceBNPL))
	assert.Equal(t, int32(1), f.forgets.Load())
}

func TestAuthorized_RefreshOutageKeepsCredentials(t *testing.T) {
	store := tokens.NewStore()
	store.Set(context.Background(), tokens.ServiceBNPL, "stale", time.Hour)
	u, srv := newUpstream(t)
	refreshErr := &auth.Error{Service: tokens.ServiceBNPL, Op: auth.OpRefresh, StatusCode: http.StatusBadGateway}
	f := refreshingFetcher{&stubFetcher{svc: tokens.ServiceBNPL, store: store, refreshErr: refreshErr}}

	var logouts atomic.Int32
	a := newAuthorized(srv, store, f, AuthorizedOptions{
		Policy:   PolicyRefresh,
		OnLogout: func(context.Context, tokens.Service) { logouts.Add(1) },
	})
	_, err := a.Do(context.Background(), http.MethodGet, "/x", "", nil, nil)

	assert.ErrorIs(t, err, auth.ErrRefresh)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), u.hits.Load())
	assert.True(t, store.IsValid(tokens.ServiceBNPL), "the next request refreshes again")
	assert.Equal(t, int32(0), logouts.Load())
	assert.Equal(t, int32(0), f.forgets.Load())
}

func TestAuthorized_NonRefresherWithRefreshPolicyLogsOut(t *testing.T) {
	store := tokens.NewStore()
	store.Set(context.Background(), tokens.ServiceMasoko, "stale", time.Hour)
	_, srv := newUpstream(t)
	f := &stubFetcher{svc: tokens.ServiceMasoko, store: store}

	a := newAuthorized(srv, store, f, AuthorizedOptions{Policy: PolicyRefresh})
	_, err := a.Do(context.Background(), http.MethodGet, "/x", "", nil, nil)

	assert.ErrorIs(t, err, auth.ErrNotRefreshable)
	assert.False(t, store.IsValid(tokens.ServiceMasoko))
}

func TestAuthorized_CoalescesConcurrentFetches(t *testing.T) {
	store := tokens.NewStore()
	_, srv := newUpstream(t, "tok-1")
	f := &stubFetcher{svc: tokens.ServiceMasoko, store: store, delay: 50 * time.Millisecond}

	a := newAuthorized(srv, store, f, AuthorizedOptions{Policy: PolicyLogout, Coalesce: true})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := a.Do(context.Background(), http.MethodGet, "/x", "", nil, nil)
			if err == nil {
				resp.Body.Close()
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.fetches.Load())
}

func TestAuthorized_CoalescesConcurrentRefreshes(t *testing.T) {
	store := tokens.NewStore()
	store.Set(context.Background(), tokens.ServiceBNPL, "stale", time.Hour)
	_, srv := newUpstream(t, "refreshed-1")
	f := refreshingFetcher{&stubFetcher{svc: tokens.ServiceBNPL, store: store, delay: 50 * time.Millisecond}}

	a := newAuthorized(srv, store, f, AuthorizedOptions{Policy: PolicyRefresh, Coalesce: true})

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := a.Do(context.Background(), http.MethodGet, "/x", "", nil, nil)
			if err != nil {
				failures.Add(1)
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), failures.Load())
	assert.Equal(t, int32(1), f.refreshes.Load())
}
