package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry holds live sessions in memory. Sessions idle for longer than the
// TTL are dropped.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl            time.Duration
	codeLength     int
	resendCooldown time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

type Option func(*Registry)

func WithTTL(d time.Duration) Option { return func(r *Registry) { r.ttl = d } }

// WithOTP configures the sign-in challenge of new sessions.
func WithOTP(codeLength int, resendCooldown time.Duration) Option {
	return func(r *Registry) {
		r.codeLength = codeLength
		r.resendCooldown = resendCooldown
	}
}

func WithClock(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

func WithLogger(l *zap.Logger) Option { return func(r *Registry) { r.logger = l } }

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:       make(map[string]*Session),
		ttl:            30 * time.Minute,
		resendCooldown: time.Minute,
		now:            time.Now,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Create() *Session {
	s := newSession(uuid.NewString(), r.now(), r.codeLength, r.resendCooldown)
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns a live session and extends its lifetime.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := r.now()
	if s.expired(now, r.ttl) {
		r.Delete(id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.expired(now, r.ttl) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// LogoutAll signs every session out, as needed when the identity service
// credentials were revoked.
func (r *Registry) LogoutAll() int {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	n := 0
	for _, s := range all {
		if _, was := s.Logout(); was {
			n++
		}
	}
	return n
}

// RunSweeper sweeps every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("expired sessions removed", zap.Int("count", n))
			}
		}
	}
}
