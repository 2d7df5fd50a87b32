package httpapi

import (
	"net/http"

	"redish/server/internal/config"
	"redish/server/internal/feeds"
	"redish/server/internal/oauth"
	"redish/server/internal/observability"
	"redish/server/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Deps are the services the HTTP surface drives.
type Deps struct {
	OAuth    *oauth.Service
	Feeds    *feeds.Service
	Sessions *session.Manager
	Metrics  *observability.Metrics
	Logger   *logrus.Logger
}

type Server struct {
	cfg      config.Config
	oauth    *oauth.Service
	feeds    *feeds.Service
	sessions *session.Manager
	metrics  *observability.Metrics
	log      *logrus.Logger
	router   chi.Router
}

func NewServer(cfg config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics()
	}
	s := &Server{
		cfg:      cfg,
		oauth:    deps.OAuth,
		feeds:    deps.Feeds,
		sessions: deps.Sessions,
		metrics:  deps.Metrics,
		log:      deps.Logger,
		router:   chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) corsOptions() cors.Options {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodPost, http.MethodGet, http.MethodOptions, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           600,
		AllowCredentials: true,
	}
	// An empty origin list means "allow all" to rs/cors.
	if s.cfg.ClientOriginWeb != "" {
		opts.AllowedOrigins = []string{s.cfg.ClientOriginWeb}
	} else {
		opts.AllowOriginFunc = func(string) bool { return false }
	}
	return opts
}

func (s *Server) registerRoutes() {
	r := s.router

	r.Use(cors.New(s.corsOptions()).Handler)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.NewStructuredLogger(s.log))
	r.Use(recoverMiddleware)
	r.Use(s.metrics.Middleware)
	r.Use(s.sessionMiddleware)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/sign-up/email", s.handleSignUp)
		r.Post("/sign-in/email", s.handleSignIn)
		r.Post("/sign-out", s.handleSignOut)
		r.Get("/get-session", s.handleGetSession)
	})

	r.Route("/oauth", func(r chi.Router) {
		r.Get("/authorize", s.handleAuthorizeStart)
		r.Post("/authorize", s.handleAuthorizeConsent)
		r.Post("/token", s.handleToken)
		r.Post("/revoke", s.handleRevoke)

		r.Post("/clients", handleNotImplemented)
		r.Get("/clients/{clientID}", s.handleGetClient)
		r.Put("/clients/{clientID}", handleNotImplemented)
		r.Delete("/clients/{clientID}", handleNotImplemented)
	})

	r.Route("/feeds", func(r chi.Router) {
		r.Get("/{feedID}", s.handleGetPublicFeed)

		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/", s.handleCreateFeed)
			r.Get("/", s.handleListFeeds)
			r.Get("/{feedID}/document", s.handleGetFeedDocument)
			r.Post("/{feedID}/items", s.handleAddItem)
		})
	})

	if s.cfg.Development() {
		s.registerReference(r)
	}
}
