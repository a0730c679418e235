// Package tokens caches upstream bearer tokens per service and optionally
// keeps an encrypted durable copy of them.
package tokens

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Service names a credential scope.
type Service string

const (
	ServiceMasoko  Service = "masoko"
	ServiceBNPL    Service = "bnpl"
	ServiceGeneric Service = "generic"
)

// Services lists every service the storefront holds credentials for.
var Services = []Service{ServiceMasoko, ServiceBNPL, ServiceGeneric}

// DefaultSafetyBuffer is subtracted from upstream lifetimes so tokens are
// refreshed before the upstream rejects them.
const DefaultSafetyBuffer = 30 * time.Second

// persistTimeout bounds durable writes made on behalf of Set and Clear.
const persistTimeout = 5 * time.Second

// Record is a cached token with its absolute expiry.
type Record struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ValidAt reports whether the record holds a token that is still usable at now.
func (r Record) ValidAt(now time.Time) bool {
	return r.Token != "" && !r.ExpiresAt.IsZero() && now.Before(r.ExpiresAt)
}

// Persister is a durable copy of the store. Implementations must treat
// Delete of a missing service as success.
type Persister interface {
	Load(ctx context.Context) (map[Service]Record, error)
	Save(ctx context.Context, svc Service, rec Record) error
	Delete(ctx context.Context, svc Service) error
}

type Store struct {
	mu      sync.RWMutex
	records map[Service]Record

	now       func() time.Time
	buffer    time.Duration
	persister Persister
	logger    *zap.Logger
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSafetyBuffer overrides DefaultSafetyBuffer. Zero disables it.
func WithSafetyBuffer(d time.Duration) Option {
	return func(s *Store) { s.buffer = d }
}

// WithPersister enables write-through to a durable copy.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		records: make(map[Service]Record),
		now:     time.Now,
		buffer:  DefaultSafetyBuffer,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate loads still-valid records from the persister. Failures leave the
// store empty and in-memory only.
func (s *Store) Hydrate(ctx context.Context) {
	if s.persister == nil {
		return
	}
	loaded, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Warn("token hydration failed, continuing in memory", zap.Error(err))
		return
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for svc, rec := range loaded {
		if !rec.ValidAt(now) {
			continue
		}
		s.records[svc] = rec
	}
	s.logger.Debug("tokens hydrated", zap.Int("count", len(s.records)))
}

func (s *Store) IsValid(svc Service) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[svc].ValidAt(s.now())
}

// Token returns the cached token for svc when it is still valid.
func (s *Store) Token(svc Service) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.records[svc]
	if !rec.ValidAt(s.now()) {
		return "", false
	}
	return rec.Token, true
}

// Record returns the raw record for svc, valid or not.
func (s *Store) Record(svc Service) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[svc]
	return rec, ok
}

// Set caches token for svc. The safety buffer is only applied when the
// lifetime is longer than the buffer itself.
func (s *Store) Set(ctx context.Context, svc Service, token string, expiresIn time.Duration) Record {
	lifetime := expiresIn
	if s.buffer > 0 && expiresIn > s.buffer {
		lifetime -= s.buffer
	}
	rec := Record{Token: token, ExpiresAt: s.now().Add(lifetime)}

	s.mu.Lock()
	s.records[svc] = rec
	s.mu.Unlock()

	if s.persister != nil {
		pctx, cancel := context.WithTimeout(ctx, persistTimeout)
		defer cancel()
		if err := s.persister.Save(pctx, svc, rec); err != nil {
			s.logger.Warn("token persist failed", zap.String("service", string(svc)), zap.Error(err))
		}
	}
	return rec
}

// Clear drops the token for svc from memory and from the durable copy.
func (s *Store) Clear(ctx context.Context, svc Service) {
	s.mu.Lock()
	delete(s.records, svc)
	s.mu.Unlock()

	if s.persister != nil {
		pctx, cancel := context.WithTimeout(ctx, persistTimeout)
		defer cancel()
		if err := s.persister.Delete(pctx, svc); err != nil {
			s.logger.Warn("token delete failed", zap.String("service", string(svc)), zap.Error(err))
		}
	}
}

// ClearAll clears every known service plus anything else cached.
func (s *Store) ClearAll(ctx context.Context) {
	seen := make(map[Service]bool, len(Services))
	services := append([]Service(nil), Services...)
	for _, svc := range services {
		seen[svc] = true
	}

	s.mu.RLock()
	for svc := range s.records {
		if !seen[svc] {
			services = append(services, svc)
		}
	}
	s.mu.RUnlock()

	for _, svc := range services {
		s.Clear(ctx, svc)
	}
}
