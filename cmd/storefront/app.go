package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/bnpl-storefront/internal/auth"
	"github.com/andreasstove999/bnpl-storefront/internal/clients"
	"github.com/andreasstove999/bnpl-storefront/internal/config"
	"github.com/andreasstove999/bnpl-storefront/internal/db"
	"github.com/andreasstove999/bnpl-storefront/internal/events"
	httpapi "github.com/andreasstove999/bnpl-storefront/internal/http"
	"github.com/andreasstove999/bnpl-storefront/internal/layout"
	"github.com/andreasstove999/bnpl-storefront/internal/session"
	"github.com/andreasstove999/bnpl-storefront/internal/tokens"
)

// Summary card placement used when a layout request sends no options.
var stickyDefaults = layout.Options{Top: 96, Bottom: 24, Breakpoint: 1024}

// app holds everything built from the configuration.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	store    *tokens.Store
	fetchers *auth.Registry
	sessions *session.Registry
	events   events.Publisher

	catalog *clients.CatalogClient
	orders  *clients.OrderClient
	users   *clients.UserClient
	bnpl    *clients.BNPLClient
	otp     *clients.AuthClient
	probes  []clients.HealthProbe

	pool *pgxpool.Pool
	amqp *amqp.Connection
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	store, err := a.newTokenStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.store.Hydrate(ctx)

	if err := a.newPublisher(); err != nil {
		a.Close()
		return nil, err
	}

	a.sessions = session.NewRegistry(
		session.WithTTL(cfg.SessionTTL),
		session.WithOTP(cfg.OTPLength, cfg.OTPResendCooldown),
		session.WithLogger(logger),
	)

	shared := &http.Client{Timeout: cfg.UpstreamTimeout}
	a.fetchers = a.newFetchers(shared)
	a.wireClients(shared)
	return a, nil
}

// tokenFetchers returns only what the token command needs; it skips the
// broker and session wiring of newApp.
func tokenFetchers(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	store, err := a.newTokenStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.fetchers = a.newFetchers(&http.Client{Timeout: cfg.UpstreamTimeout})
	return a, nil
}

func (a *app) newTokenStore(ctx context.Context) (*tokens.Store, error) {
	opts := []tokens.Option{
		tokens.WithSafetyBuffer(a.cfg.TokenSafetyBuffer),
		tokens.WithLogger(a.logger),
	}

	switch a.cfg.TokenStore {
	case config.TokenStoreFile:
		sealer, err := tokens.NewSealer(a.cfg.TokenEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("token sealer: %w", err)
		}
		opts = append(opts, tokens.WithPersister(tokens.NewFilePersister(a.cfg.TokenFile, sealer)))
	case config.TokenStorePostgres:
		sealer, err := tokens.NewSealer(a.cfg.TokenEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("token sealer: %w", err)
		}
		if err := db.RunMigrations(a.cfg.DatabaseURL, a.logger); err != nil {
			return nil, err
		}
		pool, err := db.NewPool(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pool = pool
		opts = append(opts, tokens.WithPersister(tokens.NewPostgresPersister(pool, sealer)))
	}

	return tokens.NewStore(opts...), nil
}

func (a *app) newPublisher() error {
	if a.cfg.AMQPURL == "" {
		a.logger.Info("AMQP_URL not set, events are only logged")
		a.events = events.LogPublisher{Logger: a.logger}
		return nil
	}
	conn, err := amqp.Dial(a.cfg.AMQPURL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	a.amqp = conn
	pub, err := events.NewAMQPPublisher(conn)
	if err != nil {
		return err
	}
	a.events = pub
	return nil
}

func (a *app) newFetchers(shared *http.Client) *auth.Registry {
	tokenURL := a.cfg.IdentityGatewayURL + "/token"
	cc := func(svc tokens.Service) auth.Fetcher {
		return auth.NewClientCredentials(auth.ClientCredentialsConfig{
			Service:       svc,
			TokenURL:      tokenURL,
			ClientID:      a.cfg.ClientID,
			ClientSecret:  a.cfg.ClientSecret,
			SourceSystem:  a.cfg.SourceSystem,
			ProxyTemplate: a.cfg.TokenProxyURL,
		}, shared, a.store, a.logger)
	}

	return auth.NewRegistry(
		cc(tokens.ServiceMasoko),
		cc(tokens.ServiceGeneric),
		auth.NewAPIKey(auth.APIKeyConfig{
			Service:       tokens.ServiceBNPL,
			BaseURL:       a.cfg.BNPLGatewayURL,
			APIKey:        a.cfg.BNPLAPIKey,
			APISecret:     a.cfg.BNPLAPISecret,
			SourceSystem:  a.cfg.SourceSystem,
			ProxyTemplate: a.cfg.TokenProxyURL,
		}, shared, a.store, a.logger),
	)
}

func (a *app) wireClients(shared *http.Client) {
	// Base clients
	masokoBase := clients.NewClient("masoko-api", a.cfg.MasokoURL, shared)
	identityBase := clients.NewClient("identity-gateway", a.cfg.IdentityGatewayURL, shared)
	authBase := clients.NewClient("auth-api", a.cfg.AuthURL, shared)
	bnplBase := clients.NewClient("bnpl-gateway", a.cfg.BNPLGatewayURL, shared)

	authorized := func(base *clients.Client, svc tokens.Service, policy clients.Policy) *clients.Authorized {
		f, _ := a.fetchers.Get(svc)
		return clients.NewAuthorized(base, a.store, f, clients.AuthorizedOptions{
			Policy:   policy,
			Coalesce: a.cfg.CoalesceRefresh,
			OnLogout: a.onServiceLogout,
			Logger:   a.logger,
		})
	}

	masoko := authorized(masokoBase, tokens.ServiceMasoko, clients.PolicyLogout)
	generic := authorized(identityBase, tokens.ServiceGeneric, clients.PolicyLogout)
	otp := authorized(authBase, tokens.ServiceGeneric, clients.PolicyLogout)
	bnpl := authorized(bnplBase, tokens.ServiceBNPL, clients.PolicyRefresh)

	// Typed clients
	a.catalog = clients.NewCatalogClient(masoko)
	a.orders = clients.NewOrderClient(masoko)
	a.users = clients.NewUserClient(generic)
	a.otp = clients.NewAuthClient(otp)
	a.bnpl = clients.NewBNPLClient(bnpl)

	a.probes = []clients.HealthProbe{
		{Name: "masoko-api", Client: masokoBase, Path: "/health"},
		{Name: "identity-gateway", Client: identityBase, Path: "/health"},
		{Name: "auth-api", Client: authBase, Path: "/health"},
		{Name: "bnpl-gateway", Client: bnplBase, Path: "/health"},
	}
}

// onServiceLogout runs after a forced logout of a service credential. The
// identity credential backs every customer sign-in, so losing it signs all
// sessions out.
func (a *app) onServiceLogout(ctx context.Context, svc tokens.Service) {
	n := 0
	if svc == tokens.ServiceGeneric {
		n = a.sessions.LogoutAll()
	}
	a.logger.Warn("service credentials logged out", zap.String("service", string(svc)), zap.Int("sessions_signed_out", n))

	payload := events.SessionLogoutPayload{Service: string(svc), Reason: events.LogoutReasonUpstream}
	if err := a.events.PublishSessionLogout(ctx, payload, events.EnvelopeMetadata{}); err != nil {
		a.logger.Warn("publish service logout failed", zap.Error(err))
	}
}

func (a *app) deps() httpapi.Deps {
	return httpapi.Deps{
		Logger:         a.logger,
		Cfg:            a.cfg,
		Sessions:       a.sessions,
		Events:         a.events,
		Catalog:        a.catalog,
		Orders:         a.orders,
		Users:          a.users,
		BNPL:           a.bnpl,
		Auth:           a.otp,
		HealthProbes:   a.probes,
		StickyDefaults: stickyDefaults,
	}
}

func (a *app) Close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Warn("close publisher", zap.Error(err))
		}
	}
	if a.amqp != nil {
		_ = a.amqp.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
