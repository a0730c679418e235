package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/andreasstove999/bnpl-storefront/internal/clients"
	"github.com/andreasstove999/bnpl-storefront/internal/config"
	"github.com/andreasstove999/bnpl-storefront/internal/events"
	"github.com/andreasstove999/bnpl-storefront/internal/http/handlers"
	"github.com/andreasstove999/bnpl-storefront/internal/layout"
	"github.com/andreasstove999/bnpl-storefront/internal/middleware"
	"github.com/andreasstove999/bnpl-storefront/internal/session"
)

type Deps struct {
	Logger *zap.Logger
	Cfg    config.Config

	Sessions *session.Registry
	Events   events.Publisher

	Catalog *clients.CatalogClient
	Orders  *clients.OrderClient
	Users   *clients.UserClient
	BNPL    *clients.BNPLClient
	Auth    *clients.AuthClient

	HealthProbes []clients.HealthProbe

	// StickyDefaults is used when a layout request carries no options.
	StickyDefaults layout.Options
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	common := handlers.Common{Sessions: d.Sessions, Events: d.Events, Logger: logger}

	r := chi.NewRouter()

	// Middlewares (outer -> inner)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.CORS(d.Cfg.CORSAllowOrigins))
	r.Use(middleware.Recover(logger, d.Cfg.ExposeStackTraces))
	r.Use(middleware.RequireSessionForMeRoutes)

	// Health
	health := &handlers.HealthHandler{Probes: d.HealthProbes}
	r.Get("/health", health.Gateway)
	r.Get("/health/upstreams", health.Upstreams)

	// Sessions and sign-in
	sess := handlers.NewSessionHandler(common)
	r.Post("/session", sess.Create)

	auth := handlers.NewAuthHandler(common, d.Auth)
	r.Post("/auth/otp/request", auth.RequestOTP)
	r.Post("/auth/otp/verify", auth.VerifyOTP)
	r.Post("/auth/logout", auth.Logout)

	// Products (catalog)
	cat := handlers.NewCatalogHandler(common, d.Catalog)
	r.Get("/products", cat.ListProducts)
	r.Get("/products/{id}", cat.GetProduct)

	lay := &handlers.LayoutHandler{Defaults: d.StickyDefaults}
	r.Post("/layout/sticky", lay.Sticky)

	r.Route("/me", func(r chi.Router) {
		r.Get("/session", sess.Get)

		c := handlers.NewCartHandler(common, d.Catalog)
		r.Get("/cart", c.GetCartMe)
		r.Post("/cart/items", c.AddItemMe)
		r.Put("/cart/items/{productId}", c.SetQuantityMe)
		r.Delete("/cart/items/{productId}", c.RemoveItemMe)

		co := handlers.NewCheckoutHandler(common, d.Catalog, d.Orders)
		r.Get("/checkout", co.State)
		r.Post("/checkout/steps/{step}", co.SubmitStep)
		r.Post("/checkout/next", co.Next)
		r.Post("/checkout/back", co.Back)
		r.Post("/checkout/reset", co.Reset)
		r.Get("/checkout/summary", co.Summary)

		acc := handlers.NewAccountHandler(common, d.Users, d.Orders, d.BNPL)
		r.Get("/loan-limit", acc.LoanLimit)
		r.Get("/orders", acc.ListOrders)
		r.Get("/profile", acc.GetProfile)
		r.Put("/profile", acc.UpdateProfile)
		r.Put("/profile/address", acc.UpdateAddress)
		r.Put("/profile/notifications", acc.UpdateNotifications)
		r.Delete("/profile", acc.DeleteProfile)
	})

	return r
}
