package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/andreasstove999/bnpl-storefront/internal/checkout"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegistryCreateGet(t *testing.T) {
	r := NewRegistry()
	s := r.Create()

	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	a := r.Create()
	assert.NotEqual(t, s.ID, a.ID)
	assert.Equal(t, 2, r.Len())

	_, ok = r.Get("missing")
	assert.False(t, ok)

	r.Delete(s.ID)
	_, ok = r.Get(s.ID)
	assert.False(t, ok)
}

func TestRegistryExpiry(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	r := NewRegistry(WithTTL(10*time.Minute), WithClock(c.Now))

	s := r.Create()
	idle := r.Create()

	c.Advance(8 * time.Minute)
	_, ok := r.Get(s.ID)
	require.True(t, ok, "access extends the session")

	c.Advance(8 * time.Minute)
	_, ok = r.Get(s.ID)
	assert.True(t, ok)
	_, ok = r.Get(idle.ID)
	assert.False(t, ok, "idle session expired")

	c.Advance(11 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	assert.Zero(t, r.Len())
}

func TestSessionAuthenticateAndLogout(t *testing.T) {
	r := NewRegistry(WithOTP(6, time.Minute))
	s := r.Create()
	assert.False(t, s.Authenticated())

	_, err := s.Challenge.Request("0712345678")
	require.NoError(t, err)

	s.Authenticate(User{ID: "u1", Phone: "254712345678"})
	u, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)
	assert.Empty(t, s.Challenge.Phone(), "sign-in ends the challenge")

	_, _ = s.Cart.Add("p-1", 1)
	require.NoError(t, s.Checkout.Submit(checkout.StepShipping, checkout.Shipping{
		Terms: checkout.Terms{Accepted: true}, FullName: "A", Phone: "254712345678", Address: "B",
	}))

	prev, was := s.Logout()
	assert.True(t, was)
	assert.Equal(t, "u1", prev.ID)
	assert.False(t, s.Authenticated())
	_, has := s.Checkout.Data(checkout.StepShipping)
	assert.False(t, has, "logout resets checkout")
	assert.Equal(t, 1, s.Cart.Count(), "cart survives logout")

	_, was = s.Logout()
	assert.False(t, was)
}

func TestRegistryLogoutAll(t *testing.T) {
	r := NewRegistry()
	a, b := r.Create(), r.Create()
	a.Authenticate(User{ID: "a"})

	shipping := checkout.Shipping{
		Terms: checkout.Terms{Accepted: true}, FullName: "B", Phone: "254722000000", Address: "C",
	}
	require.NoError(t, a.Checkout.Submit(checkout.StepShipping, shipping))
	require.NoError(t, b.Checkout.Submit(checkout.StepShipping, shipping))
	_, err := b.Checkout.Next()
	require.NoError(t, err)

	assert.Equal(t, 1, r.LogoutAll())
	assert.False(t, a.Authenticated())
	_, aHas := a.Checkout.Data(checkout.StepShipping)
	assert.False(t, aHas)

	assert.Equal(t, 2, b.Checkout.Current(), "anonymous checkout survives a service logout")
	_, bHas := b.Checkout.Data(checkout.StepShipping)
	assert.True(t, bHas)
}

func TestAnonymousLogoutKeepsChallenge(t *testing.T) {
	s := NewRegistry(WithOTP(6, time.Minute)).Create()
	_, err := s.Challenge.Request("0712345678")
	require.NoError(t, err)

	_, was := s.Logout()
	assert.False(t, was)
	assert.Equal(t, "254712345678", s.Challenge.Phone())
}

func TestRunSweeperStops(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	r := NewRegistry(WithTTL(time.Minute), WithClock(c.Now))
	r.Create()
	c.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.RunSweeper(ctx, time.Millisecond)
	}()

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
