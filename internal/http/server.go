// Package http serves the JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"kakeibo/internal/auth"
	"kakeibo/internal/log"
	"kakeibo/internal/middleware/ratelimit"
	"kakeibo/internal/middleware/security"
	"kakeibo/internal/middleware/trace"
	"kakeibo/internal/services"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the server. Google is only set in google
// auth mode and adds the login routes.
type Deps struct {
	Ledger    *services.LedgerService
	Reports   *services.ReportService
	Store     Pinger
	Auth      auth.Authenticator
	Google    *auth.GoogleAuth
	Logger    *log.Logger
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	ledger   *services.LedgerService
	reports  *services.ReportService
	store    Pinger
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:   deps.Ledger,
		reports:  deps.Reports,
		store:    deps.Store,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		detector: security.NewDetector(logger),
		tracer:   trace.NewMiddleware(),
		now:      time.Now,
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/me", s.handleMe)

	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleCreateCategory)
	api.HandleFunc("POST /api/categories/defaults", s.handleSeedCategories)
	api.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	api.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	api.HandleFunc("GET /api/transactions", s.handleListTransactions)
	api.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	api.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	api.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	api.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	api.HandleFunc("GET /api/budgets", s.handleListBudgets)
	api.HandleFunc("PUT /api/budgets", s.handleUpsertBudget)
	api.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)

	api.HandleFunc("GET /api/reports/summary", s.handleSummary)
	api.HandleFunc("GET /api/reports/daily", s.handleDaily)
	api.HandleFunc("GET /api/reports/categories", s.handleCategoryBreakdown)
	api.HandleFunc("GET /api/reports/top", s.handleTop)
	api.HandleFunc("GET /api/reports/comparison", s.handleComparison)
	api.HandleFunc("GET /api/reports/budgets", s.handleBudgetProgress)
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if deps.Google != nil {
		mux.HandleFunc("GET /auth/login", deps.Google.Login)
		mux.HandleFunc("GET /auth/callback", deps.Google.Callback)
		mux.HandleFunc("POST /auth/logout", deps.Google.Logout)
	}
	mux.Handle("/api/", deps.Auth.Middleware(api))

	// Outermost first: trace, access log, headers, detection, rate limit,
	// request logger.
	var handler http.Handler = mux
	handler = log.Middleware(logger)(handler)
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.AccessLog(logger, s.detector.ExtractClientIP)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and the limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks that the store answers within two seconds.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// userID is the canonical id the auth middleware put in the context.
func userID(r *http.Request) string {
	u, _ := auth.FromContext(r.Context())
	return u.ID
}
