package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/app"
	"github.com/upb/genai-gateway/config"
	"github.com/upb/genai-gateway/internal/observability"
	"github.com/upb/genai-gateway/routes"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "api-gateway: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.New(ctx)
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address(), err)
	}
	return serve(ctx, deps, ln)
}

// initLogger builds the process logger from the observability settings
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.With(zap.String("environment", cfg.Environment)), nil
}

func newServer(deps *app.Dependencies) *http.Server {
	cfg := deps.Config.Server
	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           routes.SetupRoutes(deps),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

// serve runs the HTTP server on ln until ctx is done, then drains
// in-flight requests within the shutdown timeout
func serve(ctx context.Context, deps *app.Dependencies, ln net.Listener) error {
	srv := newServer(deps)
	logger := deps.Logger

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api-gateway listening",
			zap.String("addr", ln.Addr().String()),
			zap.Int("channels", deps.Registry.Count()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			_ = deps.Close(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	if err := deps.Close(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
