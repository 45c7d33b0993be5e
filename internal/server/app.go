package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodtape/internal/mailer"
	"github.com/desertthunder/moodtape/internal/metrics"
	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/push"
	"github.com/desertthunder/moodtape/internal/repositories"
	"github.com/desertthunder/moodtape/internal/services"
	"github.com/desertthunder/moodtape/internal/shared"
	"github.com/desertthunder/moodtape/internal/tasks"
)

const (
	evictionInterval = time.Minute
	shutdownTimeout  = 10 * time.Second
)

// Deps are the collaborators the web service is built from.
type Deps struct {
	Config   *shared.Config
	DB       *sql.DB
	Provider services.IdentityProvider
	Catalog  services.Catalog
	Push     push.Sender
	Mailer   *mailer.Mailer
	Logger   *log.Logger
}

// Server is the moodtape web service.
type Server struct {
	config   *shared.Config
	db       *sql.DB
	logger   *log.Logger
	router   *BasicRouter
	sessions *SessionStore
	limiter  *RateLimiter

	users      *repositories.UserRepository
	identities *repositories.IdentityRepository
	playlists  *repositories.PlaylistRepository
	logs       *repositories.EmotionLogRepository
	subs       *repositories.PushSubscriptionRepository

	provider    services.IdentityProvider
	catalog     services.Catalog
	broadcaster *tasks.PushBroadcaster
	mailer      *mailer.Mailer
}

// New wires the router, middleware and handlers.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil || deps.DB == nil {
		return nil, fmt.Errorf("%w: server needs a config and a database", shared.ErrMissingConfig)
	}
	if deps.Provider == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("%w: server needs an identity provider and a catalog", shared.ErrMissingCredentials)
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	if deps.Push == nil {
		deps.Push = push.NewSender(deps.Config.Push, logger)
	}
	if deps.Mailer == nil {
		deps.Mailer = mailer.New(mailer.NewRecordingDeliverer(logger), deps.Config.Credentials.Resend.From,
			deps.Config.Server.BaseURL, logger)
	}

	s := &Server{
		config:     deps.Config,
		db:         deps.DB,
		logger:     shared.WithLogger(logger, "component", "server"),
		router:     NewBasicRouter(),
		sessions:   NewSessionStore(defaultSessionTTL, deps.Config.Server.SecureCookies),
		users:      repositories.NewUserRepository(deps.DB),
		identities: repositories.NewIdentityRepository(deps.DB),
		playlists:  repositories.NewPlaylistRepository(deps.DB),
		logs:       repositories.NewEmotionLogRepository(deps.DB),
		subs:       repositories.NewPushSubscriptionRepository(deps.DB),
		provider:   deps.Provider,
		catalog:    deps.Catalog,
		mailer:     deps.Mailer,
	}
	s.limiter = NewRateLimiter(deps.Config.RateLimit, s.logger)
	s.broadcaster = tasks.NewPushBroadcaster(deps.Push, s.subs, tasks.BroadcastOpts{NumWorkers: 2}, s.logger)

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(Recoverer(s.logger), RequestLogger(s.logger), s.sessions.Middleware)

	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(s.handleHealth))
	r.Handle(http.MethodGet, "/metrics", metrics.Handler())

	r.Handle(http.MethodGet, "/auth/soundcloud", http.HandlerFunc(s.handleAuthStart))
	r.Handle(http.MethodGet, "/auth/soundcloud/callback", http.HandlerFunc(s.handleAuthCallback))
	r.Handle(http.MethodPost, "/logout", http.HandlerFunc(s.handleLogout))

	r.Handle(http.MethodGet, "/api/me", http.HandlerFunc(s.handleMe), RequireUser)
	r.Handle(http.MethodPatch, "/api/me", http.HandlerFunc(s.handleUpdateMe), RequireUser)

	r.Handle(http.MethodGet, "/api/search", http.HandlerFunc(s.handleSearch), s.limiter.EnforceSearchLimit)
	r.Handle(http.MethodGet, "/api/tracks/{id}/stream", http.HandlerFunc(s.handleStream), s.limiter.EnforceStreamLimit)
	r.Handle(http.MethodGet, "/api/player/embed", http.HandlerFunc(s.handleEmbed))

	r.Handle(http.MethodGet, "/api/emotion_logs", http.HandlerFunc(s.handleListEmotionLogs), RequireUser)
	r.Handle(http.MethodPost, "/api/emotion_logs", http.HandlerFunc(s.handleCreateEmotionLog), RequireUser)
	r.Handle(http.MethodDelete, "/api/emotion_logs/{id}", http.HandlerFunc(s.handleDeleteEmotionLog), RequireUser)

	r.Handle(http.MethodGet, "/api/playlists", http.HandlerFunc(s.handleListPlaylists), RequireUser)
	r.Handle(http.MethodPost, "/api/playlists", http.HandlerFunc(s.handleCreatePlaylist), RequireUser)
	r.Handle(http.MethodPost, "/api/playlists/{id}/tags", http.HandlerFunc(s.handleAddTags), RequireUser)
	r.Handle(http.MethodDelete, "/api/playlists/{id}/tags/{name}", http.HandlerFunc(s.handleRemoveTag), RequireUser)

	r.Handler(newPushRoutes(s))
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return metrics.InstrumentHandler(s.router)
}

// Sessions exposes the session store.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// ListenAndServe serves on the configured address until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.limiter.StartEviction(ctx, evictionInterval)
	go s.sweepSessions(ctx)

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr, "base_url", s.config.Server.BaseURL)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Sweep(); n > 0 {
				s.logger.Debug("expired sessions", "count", n)
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// currentUser loads the signed-in user for the request.
func (s *Server) currentUser(r *http.Request) (*models.User, error) {
	sess, ok := SessionFrom(r.Context())
	if !ok || !sess.Authenticated() {
		return nil, shared.ErrNotAuthenticated
	}
	user, err := s.users.Get(sess.UserID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.ErrNotAuthenticated
	}
	return user, err
}
