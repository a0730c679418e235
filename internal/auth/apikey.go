package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/bnpl-storefront/internal/tokens"
)

type APIKeyConfig struct {
	Service       tokens.Service
	BaseURL       string // {bnplGateway}
	APIKey        string
	APISecret     string
	SourceSystem  string
	ProxyTemplate string
}

// APIKey exchanges an API key and secret for a token and supports refresh.
type APIKey struct {
	cfg    APIKeyConfig
	http   *http.Client
	store  *tokens.Store
	logger *zap.Logger
	now    func() time.Time

	mu           sync.Mutex
	refreshToken string
}

func NewAPIKey(cfg APIKeyConfig, httpClient *http.Client, store *tokens.Store, logger *zap.Logger) *APIKey {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &APIKey{cfg: cfg, http: httpClient, store: store, logger: logger, now: time.Now}
}

// tokenEnvelope is the gateway's response wrapper.
type tokenEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int64  `json:"expiresIn"`
	} `json:"data"`
}

func (a *APIKey) Service() tokens.Service { return a.cfg.Service }

func (a *APIKey) Forget() {
	a.mu.Lock()
	a.refreshToken = ""
	a.mu.Unlock()
}

// HasRefreshToken reports whether Refresh can be attempted.
func (a *APIKey) HasRefreshToken() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshToken != ""
}

func (a *APIKey) Fetch(ctx context.Context) (tokens.Record, error) {
	body, err := json.Marshal(map[string]string{
		"apiKey":    a.cfg.APIKey,
		"apiSecret": a.cfg.APISecret,
	})
	if err != nil {
		return tokens.Record{}, &Error{Service: a.cfg.Service, Op: OpFetch, Err: err}
	}
	return a.exchange(ctx, OpFetch, "/v1/auth/token", body)
}

func (a *APIKey) Refresh(ctx context.Context) (tokens.Record, error) {
	a.mu.Lock()
	rt := a.refreshToken
	a.mu.Unlock()
	if rt == "" {
		return tokens.Record{}, &Error{Service: a.cfg.Service, Op: OpRefresh, Err: ErrNoRefreshToken}
	}

	body, err := json.Marshal(map[string]string{"refreshToken": rt})
	if err != nil {
		return tokens.Record{}, &Error{Service: a.cfg.Service, Op: OpRefresh, Err: err}
	}
	return a.exchange(ctx, OpRefresh, "/v1/auth/token/refresh", body)
}

func (a *APIKey) exchange(ctx context.Context, op, path string, body []byte) (tokens.Record, error) {
	req, err := newTokenRequest(ctx, ProxyURL(a.cfg.ProxyTemplate, a.cfg.BaseURL+path), body, a.cfg.SourceSystem)
	if err != nil {
		return tokens.Record{}, &Error{Service: a.cfg.Service, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := doTokenRequest(a.http, req, a.cfg.Service, op)
	if err != nil {
		a.logger.Warn("token request failed", zap.String("service", string(a.cfg.Service)), zap.String("op", op), zap.Error(err))
		return tokens.Record{}, err
	}

	var env tokenEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return tokens.Record{}, &Error{Service: a.cfg.Service, Op: op, Err: err}
	}
	if env.Data == nil || strings.TrimSpace(env.Data.AccessToken) == "" {
		msg := env.Message
		if msg == "" {
			msg = "response carries no accessToken"
		}
		return tokens.Record{}, &Error{Service: a.cfg.Service, Op: op, Err: errors.New(msg)}
	}

	if env.Data.RefreshToken != "" {
		a.mu.Lock()
		a.refreshToken = env.Data.RefreshToken
		a.mu.Unlock()
	}

	rec := a.store.Set(ctx, a.cfg.Service, env.Data.AccessToken, lifetime(env.Data.AccessToken, env.Data.ExpiresIn, a.now()))
	a.logger.Debug("token stored", zap.String("service", string(a.cfg.Service)), zap.String("op", op), zap.Time("expires_at", rec.ExpiresAt))
	return rec, nil
}
