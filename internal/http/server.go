package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	applog "expenses/internal/log"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
	"expenses/internal/services"
)

// Options tunes the API server. Zero values select defaults.
type Options struct {
	Logger            *applog.Logger
	DefaultLimit      int
	RecentLimit       int
	RequestsPerMinute int
}

type Server struct {
	http.Server
	svc          *services.ExpenseService
	validator    *requestValidator
	limiter      *ratelimit.Limiter
	trace        *trace.Middleware
	defaultLimit int
	recentLimit  int
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc *services.ExpenseService, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 100
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 10
	}

	v, err := newRequestValidator()
	if err != nil {
		return nil, fmt.Errorf("request validator: %w", err)
	}

	rlCfg := ratelimit.DefaultConfig()
	if opts.RequestsPerMinute > 0 {
		rlCfg.RequestsPerMinute = opts.RequestsPerMinute
	}

	s := &Server{
		svc:          svc,
		validator:    v,
		limiter:      ratelimit.NewLimiter(rlCfg),
		trace:        trace.NewMiddleware(opts.Logger, clientIP),
		defaultLimit: opts.DefaultLimit,
		recentLimit:  opts.RecentLimit,
		started:      time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/recent", s.handleRecentExpenses)
	mux.HandleFunc("GET /api/expenses/by-cost", s.handleByCost)
	mux.HandleFunc("GET /api/expenses/over", s.handleOver)
	mux.HandleFunc("GET /api/expenses/month", s.handleByMonth)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("PUT /api/expenses/{id}/tags", s.handleUpdateTags)

	mux.HandleFunc("GET /api/tags", s.handleListTags)
	mux.HandleFunc("GET /api/tags/used", s.handleUsedTags)
	mux.HandleFunc("GET /api/tags/expenses", s.handleTagExpenses)
	mux.HandleFunc("GET /api/tags/{name}/expenses", s.handleSingleTag)

	mux.HandleFunc("GET /api/total", s.handleTotal)
	mux.HandleFunc("GET /api/summary", s.handleSummary)

	headers := security.NewHeadersMiddleware(security.APIHeadersConfig())
	limit := s.limiter.Middleware(clientIP, ratelimit.WritesOnly, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:     "rate limit exceeded, try again later",
			RequestID: trace.GetRequestID(r.Context()),
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.trace.Middleware(headers.Middleware(limit(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics reports request counters gathered by the middleware.
type Metrics struct {
	Trace     trace.Metrics
	RateLimit ratelimit.Metrics
}

func (s *Server) Metrics() Metrics {
	return Metrics{Trace: s.trace.GetMetrics(), RateLimit: s.limiter.GetMetrics()}
}

func (s *Server) limitOr(n int) int {
	if n > 0 {
		return n
	}
	return s.defaultLimit
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
