// Package session owns the per-customer state of the storefront: cart,
// checkout wizard, pending OTP challenge and the signed-in identity.
package session

import (
	"sync"
	"time"

	"github.com/andreasstove999/bnpl-storefront/internal/cart"
	"github.com/andreasstove999/bnpl-storefront/internal/checkout"
	"github.com/andreasstove999/bnpl-storefront/internal/otp"
)

// User is the customer a session signed in as.
type User struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}

type Session struct {
	ID        string
	CreatedAt time.Time

	Cart      *cart.Cart
	Products  *cart.Syncer
	Checkout  *checkout.Wizard
	Challenge *otp.Challenge

	mu       sync.Mutex
	user     *User
	lastSeen time.Time
}

func newSession(id string, now time.Time, codeLength int, resendCooldown time.Duration) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		Cart:      cart.New(),
		Products:  &cart.Syncer{},
		Checkout:  checkout.NewWizard(),
		Challenge: otp.NewChallenge(codeLength, resendCooldown),
		lastSeen:  now,
	}
}

// Authenticate signs the session in and unlocks checkout steps that need a
// customer.
func (s *Session) Authenticate(u User) {
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	s.Checkout.SetAuthenticated(true)
	s.Challenge.Clear()
}

// User returns the signed-in customer.
func (s *Session) User() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

func (s *Session) Authenticated() bool {
	_, ok := s.User()
	return ok
}

// Logout drops the identity and the checkout it was running. The cart is
// kept so the customer can sign in again and continue. An anonymous session
// is left untouched.
func (s *Session) Logout() (User, bool) {
	s.mu.Lock()
	prev := s.user
	s.user = nil
	s.mu.Unlock()

	if prev == nil {
		return User{}, false
	}
	s.Checkout.Reset()
	s.Checkout.SetAuthenticated(false)
	s.Challenge.Clear()
	return *prev, true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > ttl
}
