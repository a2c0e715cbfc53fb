package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/usecase"
	"github.com/secmon-lab/riskcascade/pkg/utils/logging"
	"golang.org/x/time/rate"
)

// AnalysisUseCase is the part of the analysis use case the API exposes
type AnalysisUseCase interface {
	RunAsync(ctx context.Context) error
	GetRun(ctx context.Context, id model.AnalysisRunID) (*model.AnalysisRun, error)
	ListRuns(ctx context.Context, limit int) ([]*model.AnalysisRun, error)
	LatestRun(ctx context.Context) (*model.AnalysisRun, error)
	GetRiskResult(ctx context.Context, runID model.AnalysisRunID, riskID int64) (*usecase.RiskResult, error)
}

var _ AnalysisUseCase = (*usecase.AnalysisUseCase)(nil)

// Default throttling of POST /api/runs: one trigger per ten seconds
const (
	DefaultTriggerInterval = 10 * time.Second
	DefaultTriggerBurst    = 1
)

type Server struct {
	router   *chi.Mux
	analysis AnalysisUseCase
	limiter  *rate.Limiter
	metrics  http.Handler
}

type Options func(*Server)

// WithTriggerLimit throttles analysis triggers to one per interval, with
// the given burst
func WithTriggerLimit(interval time.Duration, burst int) Options {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}
}

// WithMetricsHandler replaces the default Prometheus handler
func WithMetricsHandler(h http.Handler) Options {
	return func(s *Server) {
		s.metrics = h
	}
}

func New(analysis AnalysisUseCase, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:   r,
		analysis: analysis,
		limiter:  rate.NewLimiter(rate.Every(DefaultTriggerInterval), DefaultTriggerBurst),
		metrics:  promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", s.metrics)

	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", s.listRunsHandler)
		r.Post("/", s.triggerRunHandler)
		r.Get("/latest", s.latestRunHandler)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.getRunHandler)
			r.Get("/risks/{riskID}", s.getRiskResultHandler)
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger binds a logger carrying the request ID to the request context
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.Default().With("request_id", middleware.GetReqID(ctx))
		next.ServeHTTP(w, r.WithContext(logging.With(ctx, logger)))
	})
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.From(r.Context()).Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok")) //nolint:errcheck // header already committed
}
