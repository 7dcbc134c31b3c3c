package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"spesa/internal/cache"
	"spesa/internal/middleware/ratelimit"
	"spesa/internal/middleware/security"
	"spesa/internal/middleware/trace"
	"spesa/internal/store"

	applog "spesa/internal/log"
)

// Server exposes an ItemStore over a JSON API. ItemStore is single-writer, so
// every handler touching it holds mu.
type Server struct {
	http.Server

	mu    sync.Mutex
	store *store.ItemStore
	now   func() time.Time

	// exports holds rendered documents keyed by store revision.
	exports *cache.LRUCache[[]byte]

	logger      *applog.Logger
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, st *store.ItemStore, logger *applog.Logger) *Server {
	logger = logger.WithComponent(applog.ComponentHTTP)
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		store:       st,
		now:         time.Now,
		exports:     cache.NewLRUCache[[]byte](16, 10*time.Minute),
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:    security.NewDetector(logger),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/items", s.handleListItems)
	mux.HandleFunc("GET /api/items/filtered", s.handleFilteredItems)
	mux.HandleFunc("GET /api/items/{id}", s.handleGetItem)
	mux.HandleFunc("POST /api/items", s.handleCreateItem)
	mux.HandleFunc("PUT /api/items/{id}", s.handleUpdateItem)
	mux.HandleFunc("DELETE /api/items/{id}", s.handleDeleteItem)
	mux.HandleFunc("DELETE /api/items", s.handleClearItems)

	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/summary/chart", s.handleChart)
	mux.HandleFunc("GET /api/summary/export", s.handleExport)

	s.Handler = chain(mux,
		s.rateLimiter.Middleware(s.detector.ClientIP, onRateLimited),
		s.detector.Middleware,
		security.Headers(security.DefaultHeadersConfig()),
		s.tracer.Handler,
	)
	return s
}

// chain applies middleware so that the last one listed runs first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for _, mw := range mws {
		h = mw(h)
	}
	return h
}

func onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
