package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/config"
	"github.com/upb/genai-gateway/handlers"
	"github.com/upb/genai-gateway/internal/observability"
	"github.com/upb/genai-gateway/middleware"
	"github.com/upb/genai-gateway/services/channels"
	"github.com/upb/genai-gateway/services/generation"
	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/services/ratelimit"
	"github.com/upb/genai-gateway/services/tokens"
)

// Version is reported by the health endpoints
var Version = "0.1.0"

// rateLimitCleanupInterval is how often idle client buckets are dropped
const rateLimitCleanupInterval = time.Minute

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics // nil when metrics are disabled

	// Channels and token rotation
	Registry   *providers.Registry
	Tokens     *tokens.Manager
	Engine     *tokens.Engine
	Generation *generation.GenerationService

	// Inbound limiting, nil when disabled
	RateLimiter *ratelimit.RateLimitService

	// Middleware
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware

	// Handlers
	ImageHandler   *handlers.ImageHandler
	ChatHandler    *handlers.ChatHandler
	VideoHandler   *handlers.VideoHandler
	CatalogHandler *handlers.CatalogHandler
	HealthHandler  *handlers.HealthHandler

	stopBackground context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	for _, w := range cfg.Warnings {
		logger.Warn("configuration warning", zap.String("warning", w))
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics()
	}

	// Initialize channel registry
	if err := deps.initChannels(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize channels: %w", err)
	}

	deps.initGeneration(cfg)
	deps.initRateLimiting(ctx, cfg)
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully",
		zap.Int("channels", deps.Registry.Count()))
	return deps, nil
}

// initChannels registers built-in and custom channels
func (d *Dependencies) initChannels(cfg *config.Config) error {
	d.Registry = providers.NewRegistry(d.Logger)

	opts := channels.Options{
		HTTP:   providers.NewHTTPClient(cfg.Channels.UpstreamTimeout),
		Logger: d.Logger,
	}
	if d.Metrics != nil {
		opts.Observer = d.Metrics
	}

	if err := channels.RegisterAll(d.Registry, cfg.Channels, opts); err != nil {
		return err
	}

	if d.Registry.Count() == 0 {
		d.Logger.Warn("no channels registered")
	}
	return nil
}

// initGeneration builds the token manager, retry engine and generation service
func (d *Dependencies) initGeneration(cfg *config.Config) {
	d.Tokens = tokens.NewManager(nil)

	var rotationObserver tokens.Observer
	var errorObserver generation.ErrorObserver
	if d.Metrics != nil {
		rotationObserver = d.Metrics
		errorObserver = d.Metrics
	}

	d.Engine = tokens.NewEngine(d.Tokens, d.Logger, rotationObserver)
	d.Generation = generation.NewGenerationService(d.Registry, d.Engine, cfg.Channels.MaxRetries, errorObserver, d.Logger)
}

// initRateLimiting starts the per-client limiter when enabled
func (d *Dependencies) initRateLimiting(ctx context.Context, cfg *config.Config) {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Logger)

	if !cfg.RateLimit.Enabled {
		d.Logger.Info("inbound rate limiting disabled")
		d.RateLimitMiddleware = middleware.NewRateLimitMiddleware(nil, d.Logger)
		return
	}

	d.RateLimiter = ratelimit.NewRateLimitService(map[ratelimit.Preset]ratelimit.Limit{
		ratelimit.PresetGenerate: {RPS: cfg.RateLimit.Generate.RPS, Burst: cfg.RateLimit.Generate.Burst},
		ratelimit.PresetOptimize: {RPS: cfg.RateLimit.Optimize.RPS, Burst: cfg.RateLimit.Optimize.Burst},
		ratelimit.PresetRead:     {RPS: cfg.RateLimit.Read.RPS, Burst: cfg.RateLimit.Read.Burst},
	}, d.Logger)
	d.RateLimitMiddleware = middleware.NewRateLimitMiddleware(d.RateLimiter, d.Logger)

	bgCtx, cancel := context.WithCancel(ctx)
	d.stopBackground = cancel
	go d.RateLimiter.Run(bgCtx, rateLimitCleanupInterval)
}

func (d *Dependencies) initHandlers() {
	d.ImageHandler = handlers.NewImageHandler(d.Generation, d.Logger)
	d.ChatHandler = handlers.NewChatHandler(d.Generation, d.Logger)
	d.VideoHandler = handlers.NewVideoHandler(d.Generation, generation.DefaultVideoChannel, d.Logger)
	d.CatalogHandler = handlers.NewCatalogHandler(d.Generation, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.Registry, Version, d.Logger)
}

// HTTPObserver returns the request metrics sink, or nil when metrics are disabled
func (d *Dependencies) HTTPObserver() middleware.HTTPObserver {
	if d.Metrics == nil {
		return nil
	}
	return d.Metrics
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	if d.stopBackground != nil {
		d.stopBackground()
	}

	// Sync logger; stderr/stdout sinks return EINVAL on some platforms
	_ = d.Logger.Sync()
	return nil
}
