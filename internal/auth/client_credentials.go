package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/bnpl-storefront/internal/tokens"
)

type ClientCredentialsConfig struct {
	Service       tokens.Service
	TokenURL      string // {identityGateway}/token
	ClientID      string
	ClientSecret  string
	SourceSystem  string
	ProxyTemplate string
}

// ClientCredentials runs the OAuth client-credentials grant against the
// identity gateway.
type ClientCredentials struct {
	cfg    ClientCredentialsConfig
	http   *http.Client
	store  *tokens.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewClientCredentials(cfg ClientCredentialsConfig, httpClient *http.Client, store *tokens.Store, logger *zap.Logger) *ClientCredentials {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientCredentials{cfg: cfg, http: httpClient, store: store, logger: logger, now: time.Now}
}

type clientCredentialsResponse struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

func (c *ClientCredentials) Service() tokens.Service { return c.cfg.Service }

// Forget is a no-op: client credentials come from configuration.
func (c *ClientCredentials) Forget() {}

func (c *ClientCredentials) Fetch(ctx context.Context) (tokens.Record, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := newTokenRequest(ctx, ProxyURL(c.cfg.ProxyTemplate, c.cfg.TokenURL), []byte(form.Encode()), c.cfg.SourceSystem)
	if err != nil {
		return tokens.Record{}, &Error{Service: c.cfg.Service, Op: OpFetch, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	body, err := doTokenRequest(c.http, req, c.cfg.Service, OpFetch)
	if err != nil {
		c.logger.Warn("token fetch failed", zap.String("service", string(c.cfg.Service)), zap.Error(err))
		return tokens.Record{}, err
	}

	var out clientCredentialsResponse
	if err := decodeExpiresIn(body, &out); err != nil {
		return tokens.Record{}, &Error{Service: c.cfg.Service, Op: OpFetch, Err: err}
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return tokens.Record{}, &Error{Service: c.cfg.Service, Op: OpFetch, Err: errors.New("response carries no access_token")}
	}

	rec := c.store.Set(ctx, c.cfg.Service, out.AccessToken, lifetime(out.AccessToken, out.ExpiresIn, c.now()))
	c.logger.Debug("token fetched", zap.String("service", string(c.cfg.Service)), zap.Time("expires_at", rec.ExpiresAt))
	return rec, nil
}

// decodeExpiresIn accepts expires_in as either a JSON number or a string;
// the identity gateway has shipped both.
func decodeExpiresIn(body []byte, out *clientCredentialsResponse) error {
	var raw struct {
		AccessToken string          `json:"access_token"`
		TokenType   string          `json:"token_type"`
		ExpiresIn   json.RawMessage `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return err
	}
	out.AccessToken = raw.AccessToken
	out.TokenType = raw.TokenType
	out.ExpiresIn = 0

	v := strings.Trim(strings.TrimSpace(string(raw.ExpiresIn)), `"`)
	if v == "" || v == "null" {
		return nil
	}
	secs, err := json.Number(v).Int64()
	if err != nil {
		return errors.New("expires_in is not an integer")
	}
	out.ExpiresIn = secs
	return nil
}
