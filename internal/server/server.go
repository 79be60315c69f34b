// package server contains the router, middleware & handlers for the qrtune relay
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/qrtune/internal/models"
	"github.com/desertthunder/qrtune/internal/services"
	"github.com/desertthunder/qrtune/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Route binds a method and path to a handler, with optional route-specific middleware.
type Route struct {
	Method     string
	Path       string
	Handler    http.HandlerFunc
	Middleware []Middleware
}

// Handler groups related routes (auth, playback relay, resolver) so they can be registered together.
type Handler interface {
	Routes() []Route // Routes returns the routes this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers every route of a Handler
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// ScanStore records resolved payloads. It is satisfied by [repositories.ScanRepository].
type ScanStore interface {
	Create(scan *models.Scan) error
	Recent(limit int) ([]*models.Scan, error)
}

// Options holds the dependencies of a [Server].
type Options struct {
	Config     *shared.Config
	Authorizer services.Authorizer
	Player     services.Player
	Scans      ScanStore // nil disables /history and scan recording
	Logger     *log.Logger
}

// Server is the HTTP relay: OAuth endpoints, playback relay, link resolver and history.
type Server struct {
	config  *shared.Config
	router  *BasicRouter
	limiter *LoginLimiter
	logger  *log.Logger
}

// New wires the router, middleware stack and handlers.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: server config is required", shared.ErrMissingConfig)
	}
	if opts.Authorizer == nil || opts.Player == nil {
		return nil, fmt.Errorf("%w: authorizer and player are required", shared.ErrInvalidArgument)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	cookies, err := NewCookieJar(opts.Config.Cookies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:  opts.Config,
		router:  NewBasicRouter(),
		limiter: NewLoginLimiter(opts.Config.RateLimit),
		logger:  logger,
	}

	s.router.Use(
		RequestID(),
		Logging(logger),
		Recover(logger),
		CORS(opts.Config.Server.FrontendOrigin),
		SecurityHeaders(),
	)

	s.router.Handle(http.MethodGet, "/health", http.HandlerFunc(health))
	s.router.Handler(NewAuthHandler(opts.Authorizer, cookies, s.limiter, opts.Config.Server.RedirectTarget(), logger))
	s.router.Handler(NewRelayHandler(opts.Player, cookies, logger))
	s.router.Handler(NewResolveHandler(opts.Scans, logger))
	s.router.Handle("", "/", http.HandlerFunc(notFound))

	return s, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe listens on the configured address and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully
// within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.config.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.Server.WriteTimeout,
	}

	go s.limiter.Run(ctx)

	s.logger.Info("relay listening",
		"addr", ln.Addr().String(),
		"frontend", s.config.Server.FrontendOrigin,
		"secure_cookies", s.config.Cookies.Secure,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	s.logger.Info("shutting down", "timeout", timeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found")
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": code}.
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
