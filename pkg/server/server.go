package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/elonfeng/feedrank/internal/feed"
	"github.com/elonfeng/feedrank/internal/metrics"
)

// Config configures the HTTP listener.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server provides the HTTP API.
type Server struct {
	svc     *feed.Service
	metrics *metrics.Metrics
	log     zerolog.Logger
	cfg     Config
	router  *mux.Router
}

// New creates a new HTTP server.
func New(svc *feed.Service, m *metrics.Metrics, log zerolog.Logger, cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		svc:     svc,
		metrics: m,
		log:     log.With().Str("component", "http").Logger(),
		cfg:     cfg,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.requestID, s.accessLog)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/strategies", s.handleStrategies).Methods(http.MethodGet)
	api.HandleFunc("/feed", s.handleFeed).Methods(http.MethodGet)
	api.HandleFunc("/rank", s.handleRank).Methods(http.MethodPost)
	api.HandleFunc("/trends", s.handleTrends).Methods(http.MethodGet)
	api.HandleFunc("/trends/detect", s.handleDetect).Methods(http.MethodPost)
	api.HandleFunc("/market-trends", s.handleMarketTrends).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}/reputation", s.handleReputation).Methods(http.MethodGet)
	api.HandleFunc("/reputation/reconcile", s.handleReconcile).Methods(http.MethodPost)
	api.HandleFunc("/posts/{id:[0-9]+}/reactions", s.handleReaction).Methods(http.MethodPost)

	// Subrouters answer mismatches themselves, so both levels need the JSON handlers.
	for _, router := range []*mux.Router{r, api} {
		router.NotFoundHandler = http.HandlerFunc(notFound)
		router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	}
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
