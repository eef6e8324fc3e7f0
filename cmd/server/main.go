// Package main is the entrypoint for the sequencing portal API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ngslab/seqportal/internal/analysis"
	"github.com/ngslab/seqportal/internal/api"
	"github.com/ngslab/seqportal/internal/api/handler"
	mw "github.com/ngslab/seqportal/internal/api/middleware"
	"github.com/ngslab/seqportal/internal/api/response"
	"github.com/ngslab/seqportal/internal/cache"
	"github.com/ngslab/seqportal/internal/config"
	"github.com/ngslab/seqportal/internal/fastq"
	"github.com/ngslab/seqportal/internal/gateway"
	"github.com/ngslab/seqportal/internal/logtail"
	"github.com/ngslab/seqportal/internal/pathguard"
	"github.com/ngslab/seqportal/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "base_paths", len(cfg.Analysis.BasePaths))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create cache: Redis when configured, in-process otherwise
	var c cache.Cache
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		c = redisCache
		slog.Info("redis connected")
	} else {
		c = cache.NewMemoryCache(0)
		slog.Info("using in-process cache")
	}

	// 5. Build the domain services
	logger := slog.Default()
	pgStore := store.NewPostgresStore(pool)
	validator := pathguard.NewValidator(cfg.Analysis.BasePaths, logger)
	scanner := fastq.NewScanner(logger)
	sshGateway := gateway.NewSSHGateway(cfg.Gateway, logger)
	svc := analysis.NewService(pgStore, sshGateway, validator, scanner, c, cfg.Analysis, logger)
	tailer := logtail.NewTailer(cfg.Logs.Dir, logger)

	// 6. Background reaper for jobs stuck in running
	go reapLoop(ctx, svc, cfg.Analysis.ReapInterval)

	// 7. Build router with dependencies
	auth := mw.NewAuth(c, cfg.Session.TTL)
	rateLimit := mw.NewRateLimit(c, 0)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, c),
		LoginHandler:  handler.NewLoginHandler(pgStore, auth),
		LogoutHandler: handler.NewLogoutHandler(auth),

		SamplesHandler:    handler.NewSamplesHandler(svc),
		BrowseHandler:     handler.NewBrowseHandler(svc),
		HistoryHandler:    handler.NewHistoryHandler(svc),
		ReportHandler:     handler.NewReportHandler(validator),
		StartAnalysis:     handler.NewStartAnalysisHandler(svc),
		CancelAnalysis:    handler.NewCancelAnalysisHandler(svc),
		ProgressHandler:   handler.NewProgressHandler(svc),
		JobLogHandler:     handler.NewJobLogHandler(svc),
		RunningJobHandler: handler.NewRunningJobHandler(svc),
		ForceResetHandler: handler.NewForceResetHandler(svc),
		ChangePassword:    handler.NewChangePasswordHandler(pgStore),

		ListUsers:      handler.NewListUsersHandler(pgStore),
		CreateUser:     handler.NewCreateUserHandler(pgStore),
		UpdateUser:     handler.NewUpdateUserHandler(pgStore),
		DeleteUser:     handler.NewDeleteUserHandler(pgStore),
		ListPortalLogs: handler.NewListPortalLogsHandler(tailer),
		PortalLog:      handler.NewPortalLogHandler(tailer),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// reapLoop periodically fails jobs stuck in running far beyond any real
// pipeline runtime.
func reapLoop(ctx context.Context, svc *analysis.Service, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := svc.ReapStuck(ctx); n > 0 {
				slog.Info("reaped stuck jobs", "count", n)
			}
		}
	}
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
