package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"smartexpense/internal/cache"
	"smartexpense/internal/core"
	"smartexpense/internal/log"
	"smartexpense/internal/middleware/ratelimit"
	"smartexpense/internal/middleware/security"
	"smartexpense/internal/middleware/trace"
	"smartexpense/internal/services"
)

// Expenses is the part of the expense manager the API needs.
type Expenses interface {
	Add(ctx context.Context, f core.Fields) (string, error)
	Update(ctx context.Context, id string, f core.Fields) (bool, error)
	Remove(ctx context.Context, id string) (bool, error)
	Get(id string) (core.Expense, bool)
	Find(q services.Query) []core.Expense
	Len() int
	Total() decimal.Decimal
	MonthlySummary() []core.MonthTotal
	Categories() []string
	Version() uint64
}

// Options tunes the server. The zero value is usable.
type Options struct {
	Logger    *log.Logger
	CacheTTL  time.Duration
	CacheSize int
	RateLimit ratelimit.Config
	Now       func() time.Time
}

type Server struct {
	http.Server
	expenses Expenses
	logger   *log.Logger
	now      func() time.Time

	responses    *cache.LRUCache[[]byte]
	cacheManager *cache.Manager
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, expenses Expenses, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		expenses:  expenses,
		logger:    opts.Logger.WithComponent(log.ComponentHTTP),
		now:       opts.Now,
		responses: cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL),
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
	}

	s.cacheManager = cache.NewManager(s.logger)
	s.cacheManager.Register(s.responses)
	if opts.CacheTTL > 0 {
		s.cacheManager.StartCleanup(context.Background(), opts.CacheTTL)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("GET /api/total", s.handleTotal)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/categories", s.handleCategories)

	s.tracer = trace.NewMiddleware(s.logger, trace.ClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(trace.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, trace.ClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").
			Header("Retry-After", "60").
			Write(w)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(limit(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics returns request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	stats := s.responses.Stats()
	NewJSONResponse().Body(map[string]any{
		"status":   "ready",
		"expenses": s.expenses.Len(),
		"cache": map[string]any{
			"hits":   stats.Hits,
			"misses": stats.Misses,
			"size":   stats.Size,
		},
	}).Write(w)
}
