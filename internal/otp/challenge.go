package otp

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrCooldownActive  = errors.New("resend cooldown active")
	ErrNoChallenge     = errors.New("no one-time password requested")
	ErrTooManyAttempts = errors.New("too many attempts, request a new code")
)

// MaxAttempts bounds verification tries per sent code.
const MaxAttempts = 5

// Challenge is one session's pending phone sign-in.
type Challenge struct {
	mu       sync.Mutex
	length   int
	phone    string
	attempts int
	cooldown *Cooldown
}

func NewChallenge(codeLength int, resendCooldown time.Duration) *Challenge {
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	return &Challenge{length: codeLength, cooldown: NewCooldown(resendCooldown)}
}

// Request normalizes phone and starts a new challenge. While the cooldown
// runs every request is refused, whatever the number.
func (c *Challenge) Request(phone string) (string, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cooldown.Active() {
		return "", fmt.Errorf("%w: retry in %s", ErrCooldownActive, c.cooldown.Remaining())
	}
	c.phone = normalized
	c.attempts = 0
	c.cooldown.Start()
	return normalized, nil
}

// Verify checks the code format and counts the attempt. It returns the
// phone the code was sent to.
func (c *Challenge) Verify(code string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phone == "" {
		return "", ErrNoChallenge
	}
	if c.attempts >= MaxAttempts {
		return "", ErrTooManyAttempts
	}
	c.attempts++
	if err := ValidateCode(code, c.length); err != nil {
		return "", err
	}
	return c.phone, nil
}

// Phone is the number of the pending challenge.
func (c *Challenge) Phone() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phone
}

func (c *Challenge) Cooldown() *Cooldown { return c.cooldown }

// Clear ends the challenge after a successful sign-in or logout. A running
// cooldown keeps running.
func (c *Challenge) Clear() {
	c.mu.Lock()
	c.phone = ""
	c.attempts = 0
	c.mu.Unlock()
}
