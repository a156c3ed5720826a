package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/community"
	"github.com/reelsync/backend/internal/middleware"
	"github.com/reelsync/backend/internal/reconcile"
	"github.com/reelsync/backend/pkg/response"
)

// Router holds all handlers and creates the chi router
type Router struct {
	sessions       *reconcile.Manager
	community      *community.Service
	session        *SessionHandler
	auth           *AuthHandler
	googleOAuth    *GoogleOAuthHandler
	watchlist      *WatchlistHandler
	notifications  *NotificationHandler
	recents        *RecentsHandler
	communityPosts *CommunityHandler
	catalog        *CatalogHandler
	health         *HealthHandler
	ws             *WebSocketManager
	allowedOrigins []string
	logger         *zap.Logger
}

// Deps are the services the router exposes
type Deps struct {
	Sessions       *reconcile.Manager
	Community      *community.Service
	Catalog        *CatalogHandler
	GoogleOAuth    *GoogleOAuthHandler
	Health         *HealthHandler
	WebSocket      *WebSocketManager
	AllowedOrigins []string
}

// NewRouter creates a new router
func NewRouter(deps Deps, logger *zap.Logger) *Router {
	return &Router{
		sessions:       deps.Sessions,
		community:      deps.Community,
		session:        NewSessionHandler(deps.Sessions, logger),
		auth:           NewAuthHandler(logger),
		googleOAuth:    deps.GoogleOAuth,
		watchlist:      NewWatchlistHandler(logger),
		notifications:  NewNotificationHandler(logger),
		recents:        NewRecentsHandler(logger),
		communityPosts: NewCommunityHandler(deps.Community, logger),
		catalog:        deps.Catalog,
		health:         deps.Health,
		ws:             deps.WebSocket,
		allowedOrigins: deps.AllowedOrigins,
		logger:         logger,
	}
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	response.TooManyRequests(w, "too many requests, slow down")
}

// Setup configures and returns the chi router
func (rt *Router) Setup() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RecoveryMiddleware(rt.logger))
	r.Use(middleware.LoggingMiddleware(rt.logger))
	r.Use(middleware.CORSMiddleware(rt.allowedOrigins))

	// Health endpoints
	r.Route("/health", func(r chi.Router) {
		r.Get("/", rt.health.Health)
		r.Get("/ready", rt.health.Ready)
		r.Get("/live", rt.health.Live)
	})
	r.Handle("/metrics", promhttp.Handler())

	// Google redirects the popup here
	if rt.googleOAuth != nil {
		r.Get("/auth/google/callback", rt.googleOAuth.GoogleOAuthCallback)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Compress(5))

		// Catalog proxy and community feed need no session
		if rt.catalog != nil {
			r.With(httprate.LimitByIP(120, time.Minute)).Group(func(r chi.Router) {
				r.Get("/movies", rt.catalog.Movies)
				r.Get("/movies/lookup", rt.catalog.Lookup)
				r.Get("/movies/{id}", rt.catalog.Movie)
				r.Get("/suggestions", rt.catalog.Suggestions)
				r.Post("/recommend", rt.catalog.Recommend)
			})
		}
		r.Get("/community/posts", rt.communityPosts.List)

		r.With(httprate.Limit(30, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(rateLimited),
		)).Post("/sessions", rt.session.Create)

		// Session routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionMiddleware(rt.sessions))

			r.Get("/session", rt.session.Get)
			r.Delete("/session", rt.session.Delete)

			r.Route("/auth", func(r chi.Router) {
				r.Use(httprate.Limit(20, time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
					httprate.WithLimitHandler(rateLimited),
				))
				r.Post("/signup", rt.auth.SignUp)
				r.Post("/signin", rt.auth.SignIn)
				r.Post("/signout", rt.auth.SignOut)
				r.Get("/popup", rt.auth.BeginPopup)
				r.Post("/popup/complete", rt.auth.CompletePopup)
			})

			r.Route("/watchlist", func(r chi.Router) {
				r.Get("/", rt.watchlist.List)
				r.Post("/", rt.watchlist.Add)
				r.Get("/{id}", rt.watchlist.Contains)
				r.Delete("/{id}", rt.watchlist.Remove)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", rt.notifications.GetNotifications)
				r.Post("/read-all", rt.notifications.MarkAllRead)
				r.Post("/{id}/read", rt.notifications.MarkRead)
				r.Delete("/{id}", rt.notifications.Dismiss)
			})

			r.Route("/recents", func(r chi.Router) {
				r.Get("/", rt.recents.List)
				r.Post("/", rt.recents.View)
				r.Get("/last", rt.recents.Last)
			})

			r.Post("/community/posts", rt.communityPosts.Create)
		})
	})

	// The live feed stays outside the compressing group; upgrades need the
	// raw connection.
	r.With(middleware.SessionMiddleware(rt.sessions)).Get("/ws", rt.ws.ServeWS(rt.initialEvents))

	return r
}

// initialEvents is the state pushed to a freshly connected live feed
func (rt *Router) initialEvents(s *reconcile.Session) []WSEvent {
	snap := s.Auth().Snapshot()
	return []WSEvent{
		{Type: string(reconcile.EventAuth), Payload: reconcile.AuthState{State: snap.State.String(), Identity: snap.Identity}},
		{Type: string(reconcile.EventWatchlist), Payload: s.Watchlist().List(s.Context())},
		{Type: string(reconcile.EventNotifications), Payload: s.Notifications().List()},
		{Type: "community", Payload: rt.community.List(s.Context())},
	}
}
