// Package api is the JSON HTTP interface of card-runner: signup and login,
// account deletion, card publishing and browsing, and favorites.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joestump/card-runner/internal/auth"
	"github.com/joestump/card-runner/internal/directory"
	"github.com/joestump/card-runner/internal/store"
	"github.com/joestump/card-runner/internal/validate"
)

// Pinger reports database reachability for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds all dependencies required to build the router.
type Deps struct {
	Logger         *slog.Logger
	DB             Pinger
	Users          *store.UserStore
	Cards          *store.CardStore
	Publisher      *directory.Publisher
	Favorites      *directory.FavoriteManager
	Deletions      *directory.DeletionCoordinator
	Tokens         *auth.TokenIssuer
	Passwords      *auth.Passwords
	Validator      *validate.Validator
	AllowedOrigins []string
}

// NewRouter builds the full HTTP handler: /api routes, /healthz and /metrics.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", auth.TokenHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", healthz(deps.DB))
	r.Handle("/metrics", promhttp.Handler())

	authMW := auth.NewMiddleware(deps.Tokens)
	r.Route("/api", func(r chi.Router) {
		// All API responses are JSON.
		r.Use(jsonContentType)

		registerUserRoutes(r, authMW, &usersAPIHandler{
			users:     deps.Users,
			passwords: deps.Passwords,
			tokens:    deps.Tokens,
			deletions: deps.Deletions,
			validator: deps.Validator,
			logger:    deps.Logger,
		})
		registerCardRoutes(r, authMW, &cardsAPIHandler{
			cards:     deps.Cards,
			publisher: deps.Publisher,
			favorites: deps.Favorites,
			deletions: deps.Deletions,
			validator: deps.Validator,
			logger:    deps.Logger,
		})
	})

	return r
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "database unreachable", "STORE_UNAVAILABLE")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// jsonContentType is a middleware that sets Content-Type: application/json on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
