package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-reservas-api/internal/application/engine"
	"github.com/go-reservas-api/internal/application/preference"
	"github.com/go-reservas-api/internal/application/push"
	"github.com/go-reservas-api/internal/application/weather"
	"github.com/go-reservas-api/internal/config"
	"github.com/go-reservas-api/internal/domain"
	"github.com/go-reservas-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-reservas-api/internal/infrastructure/jwt"
	"github.com/go-reservas-api/internal/transport/http/handler"
	appmiddleware "github.com/go-reservas-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds the wired services and repositories the router exposes.
// Services are built in main so the engine's lifecycle stays there.
type Deps struct {
	UserRepo     *dynamo.UserRepo
	DeliveryRepo *dynamo.DeliveryRepo
	Prefs        *preference.Resolver
	Sender       *push.Service
	Engine       *engine.Engine
	Weather      *weather.Checker
	TestLimiter  *push.RateLimiter
	JWTProvider  *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to the endpoints that cause
	// outbound pushes.
	sendRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	notifH := handler.NewNotificationHandler(deps.Prefs, deps.Sender, deps.UserRepo, deps.DeliveryRepo, deps.TestLimiter)
	engineH := handler.NewEngineHandler(deps.Engine, deps.Sender, deps.UserRepo)
	weatherH := handler.NewWeatherHandler(deps.Weather)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/notifications/token", notifH.RegisterToken)
			r.Delete("/notifications/token", notifH.DeleteToken)
			r.Get("/notifications/preferences", notifH.GetPreferences)
			r.Put("/notifications/preferences", notifH.UpdatePreferences)
			r.Post("/notifications/enable", notifH.Enable)
			r.Post("/notifications/disable", notifH.Disable)
			r.Get("/notifications/status", notifH.Status)
			r.Get("/notifications/history", notifH.History)
			r.With(sendRL.Limit).Post("/notifications/test", notifH.TestSend)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Post("/engine/jobs/{name}", engineH.RunJob)
				r.Get("/engine/stats", engineH.Stats)
				r.Get("/weather/{location}", weatherH.Outlook)
				r.With(sendRL.Limit).Post("/notifications/broadcast/{complexID}", engineH.Broadcast)
			})
		})
	})

	return r
}
