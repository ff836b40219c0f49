// Package http exposes the ledger engines as a JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"finmate/internal/auth"
	"finmate/internal/cache"
	"finmate/internal/core"
	"finmate/internal/log"
	"finmate/internal/services"

	"github.com/gorilla/mux"
)

// Options tunes the server. Zero values select the defaults.
type Options struct {
	ProjectionCacheSize int
	ProjectionCacheTTL  time.Duration
	// RequestsPerMinute bounds mutating requests per client IP.
	RequestsPerMinute int
	Logger            *log.Logger
}

type Server struct {
	http.Server
	ledger      *services.LedgerService
	auth        auth.Provider
	logger      *log.Logger
	rateLimiter *rateLimiter

	projections *cache.LRUCache[[]core.YearSnapshot]
	caches      *cache.Manager

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run server. Background
// cleanup goroutines start here and stop in Shutdown.
func NewServer(addr string, ledger *services.LedgerService, provider auth.Provider, opts Options) *Server {
	if opts.ProjectionCacheSize <= 0 {
		opts.ProjectionCacheSize = 256
	}
	if opts.ProjectionCacheTTL <= 0 {
		opts.ProjectionCacheTTL = 10 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:      ledger,
		auth:        provider,
		logger:      logger,
		rateLimiter: newRateLimiter(opts.RequestsPerMinute, time.Minute),
		projections: cache.NewLRUCache[[]core.YearSnapshot](opts.ProjectionCacheSize, opts.ProjectionCacheTTL),
		caches:      cache.NewManager(logger),
		started:     time.Now(),
	}
	s.caches.Register(s.projections)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.caches.StartCleanup(opts.ProjectionCacheTTL)
	go s.rateLimiter.startCleanup()
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter().UseEncodedPath()
	r.Use(log.Middleware(s.logger))
	r.Use(securityHeaders)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireOwner)
	api.Use(s.rateLimiter.middleware)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/cashflow", s.handleCashflow).Methods(http.MethodGet)
	api.HandleFunc("/breakdown", s.handleBreakdown).Methods(http.MethodGet)
	api.HandleFunc("/entries", s.handleListEntries).Methods(http.MethodGet)
	api.HandleFunc("/entries", s.handleCreateEntry).Methods(http.MethodPost)
	api.HandleFunc("/entries/{id}", s.handleDeleteEntry).Methods(http.MethodDelete)
	api.HandleFunc("/obligations", s.handleCreateObligation).Methods(http.MethodPost)
	api.HandleFunc("/obligations/{id}", s.handleDeleteObligation).Methods(http.MethodDelete)
	api.HandleFunc("/obligations/{id}", s.handleSetObligationPaid).Methods(http.MethodPatch)
	api.HandleFunc("/forecast", s.handleSetForecast).Methods(http.MethodPut)
	api.HandleFunc("/currency", s.handleSetCurrency).Methods(http.MethodPut)
	api.HandleFunc("/rollover", s.handleRollover).Methods(http.MethodPost)
	api.HandleFunc("/projection", s.handleProjection).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	return r
}

// requireOwner resolves the owner of the request or answers 401.
func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			respondError(w, r, errors.New("no auth provider configured"))
			return
		}
		ownerID, err := s.auth.OwnerID(r)
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Unauthenticated request",
				log.FieldError, err,
				log.FieldErrorType, log.ErrorTypeAuth)
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		ctx := auth.WithOwner(r.Context(), ownerID)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldOwnerID, ownerID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
