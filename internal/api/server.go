package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/genai-cost-planner/genai-cost-planner/internal/planner"
	"github.com/genai-cost-planner/genai-cost-planner/internal/service/optimizer"
	"github.com/genai-cost-planner/genai-cost-planner/internal/service/sweep"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// PresetStore persists named parameter bundles
type PresetStore interface {
	List(ctx context.Context) ([]*models.Preset, error)
	Get(ctx context.Context, name string) (*models.Preset, error)
	Save(ctx context.Context, preset *models.Preset) error
	Delete(ctx context.Context, name string) error
}

// ProfileStore persists pricing profiles
type ProfileStore interface {
	List(ctx context.Context) ([]*models.PricingProfile, error)
	Get(ctx context.Context, name string) (*models.PricingProfile, error)
	GetOrDefault(ctx context.Context, name string) (*models.PricingProfile, error)
	Save(ctx context.Context, p *models.PricingProfile) error
	Delete(ctx context.Context, name string) error
}

// RunStore records optimizer history
type RunStore interface {
	Record(ctx context.Context, run *models.OptimizationRun) error
	Get(ctx context.Context, id string) (*models.OptimizationRun, error)
	ListRecent(ctx context.Context, limit int) ([]*models.OptimizationRun, error)
}

// KeyVerifier authenticates API keys
type KeyVerifier interface {
	Verify(ctx context.Context, secret string) (*models.APIKey, error)
}

// Server is the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger

	// Services
	evaluator planner.Evaluator
	optimizer *optimizer.Optimizer
	sweeps    *sweep.Service

	// Storage (optional; routes are only registered when set)
	presets  PresetStore
	profiles ProfileStore
	runs     RunStore
	keys     KeyVerifier

	// Configuration
	host            string
	port            int
	allowedOrigins  []string
	bodyLimit       int64
	targets         models.Targets
	optimizeTimeout time.Duration
	rateLimit       *rateLimitConfig
	limiter         *clientLimiter

	// Readiness state (atomic for thread-safe access)
	ready atomic.Bool
}

type rateLimitConfig struct {
	rps   float64
	burst int
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHost sets the server host
func WithHost(host string) Option {
	return func(s *Server) {
		s.host = host
	}
}

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithAllowedOrigins sets the CORS origins; "*" allows any
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithBodyLimit caps request bodies in bytes
func WithBodyLimit(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.bodyLimit = n
		}
	}
}

// WithDefaultTargets sets the SLO and utilization cap used when a request
// omits them
func WithDefaultTargets(t models.Targets) Option {
	return func(s *Server) {
		s.targets = t
	}
}

// WithOptimizeTimeout bounds a single optimizer request
func WithOptimizeTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.optimizeTimeout = d
	}
}

// WithRateLimit enables per-client token-bucket limiting
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.rateLimit = &rateLimitConfig{rps: rps, burst: burst}
	}
}

// WithAuth requires a valid API key on /api/v1 routes
func WithAuth(keys KeyVerifier) Option {
	return func(s *Server) {
		s.keys = keys
	}
}

// WithPresetStore enables the preset routes
func WithPresetStore(store PresetStore) Option {
	return func(s *Server) {
		s.presets = store
	}
}

// WithProfileStore enables the pricing profile routes
func WithProfileStore(store ProfileStore) Option {
	return func(s *Server) {
		s.profiles = store
	}
}

// WithRunStore enables optimizer history
func WithRunStore(store RunStore) Option {
	return func(s *Server) {
		s.runs = store
	}
}

// New creates a new API server. The evaluator is typically a shared
// *planner.Memo so plan, sweep and optimize requests reuse results.
func New(evaluator planner.Evaluator, opt *optimizer.Optimizer, opts ...Option) (*Server, error) {
	s := &Server{
		logger:          slog.Default(),
		evaluator:       evaluator,
		optimizer:       opt,
		host:            "0.0.0.0",
		port:            8080,
		allowedOrigins:  []string{"*"},
		bodyLimit:       1 << 20,
		targets:         models.DefaultTargets(),
		optimizeTimeout: 30 * time.Second,
	}

	for _, o := range opts {
		o(s)
	}

	if s.rateLimit != nil {
		limiter, err := newClientLimiter(s.rateLimit.rps, s.rateLimit.burst, maxTrackedClients)
		if err != nil {
			return nil, err
		}
		s.limiter = limiter
	}

	if s.optimizer == nil {
		s.optimizer = optimizer.New(evaluator, optimizer.WithLogger(s.logger))
	}
	s.sweeps = sweep.New(evaluator, sweep.WithLogger(s.logger))

	s.setupRouter()
	return s, nil
}

// SetReady sets the server readiness state
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	s.logger.Info("server readiness changed", slog.Bool("ready", ready))
}

// IsReady returns whether the server is ready to accept traffic
func (s *Server) IsReady() bool {
	return s.ready.Load()
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(s.requestIDMiddleware())
	router.Use(s.metricsMiddleware())
	router.Use(s.bodySizeLimitMiddleware(s.bodyLimit))
	router.Use(s.loggingMiddleware())
	router.Use(s.recoveryMiddleware())
	router.Use(s.corsMiddleware())

	router.GET("/health", s.handleHealth)
	router.GET("/ready", s.handleReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	if s.limiter != nil {
		v1.Use(s.rateLimitMiddleware())
	}
	if s.keys != nil {
		v1.Use(s.authMiddleware())
	}
	{
		v1.POST("/plan", s.handlePlan)
		v1.POST("/recommend", s.handleRecommend)
		v1.POST("/capacity", s.handleCapacity)
		v1.POST("/optimize", s.handleOptimize)

		v1.POST("/sweeps/batch", s.handleBatchSweep)
		v1.POST("/sweeps/context", s.handleContextSweep)

		if s.runs != nil {
			v1.GET("/optimize/runs", s.handleListRuns)
			v1.GET("/optimize/runs/:id", s.handleGetRun)
		}

		if s.presets != nil {
			v1.GET("/presets", s.handleListPresets)
			v1.GET("/presets/:name", s.handleGetPreset)
			v1.PUT("/presets/:name", s.handleSavePreset)
			v1.DELETE("/presets/:name", s.handleDeletePreset)
		}

		if s.profiles != nil {
			v1.GET("/profiles", s.handleListProfiles)
			v1.GET("/profiles/:name", s.handleGetProfile)
			v1.PUT("/profiles/:name", s.handleSaveProfile)
			v1.DELETE("/profiles/:name", s.handleDeleteProfile)
			v1.POST("/profiles/:name/apply", s.handleApplyProfile)
		}
	}

	s.router = router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.optimizeTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.logger.Info("starting API server", slog.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the Gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
