package entrypoint

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/readmirror/readmirror/internal/cache"
	"github.com/readmirror/readmirror/internal/config"
	"github.com/readmirror/readmirror/internal/database"
	"github.com/readmirror/readmirror/internal/database/bookmarks"
	"github.com/readmirror/readmirror/internal/database/syncprogress"
	"github.com/readmirror/readmirror/internal/entities"
	http_controllers "github.com/readmirror/readmirror/internal/http"
	"github.com/readmirror/readmirror/internal/remote"
	"github.com/readmirror/readmirror/internal/retry"
	"github.com/readmirror/readmirror/internal/scheduler"
	"github.com/readmirror/readmirror/internal/syncer"
	"github.com/readmirror/readmirror/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, logger *slog.Logger, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "host", cfg.HTTP.Host, "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server exiting")
}

func Run(cfg *config.Config, version string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting readmirror", "version", version)

	if cfg.Remote.BaseURL == "" {
		logger.Error("REMOTE_BASE_URL is not set")
		os.Exit(1)
	}
	if cfg.Remote.Token == "" {
		logger.Warn("REMOTE_TOKEN is not set, remote calls will be rejected as unauthorized")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("error closing database", "error", err)
		}
	}()

	bookmarkRepo := bookmarks.NewRepository(db.DB)
	progressRepo := syncprogress.NewRepository(db.DB)

	// Remote client and the sync core. All collaborators are constructed
	// here explicitly; nothing is shared through package globals.
	remoteClient := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token)

	bookmarkCache := cache.New[entities.Bookmark](cache.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		MaxMemory:  cfg.Cache.MaxMemory,
		DefaultTTL: cfg.Cache.DefaultTTL,
	})

	retryPolicy := retry.Policy{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		BaseDelay:     cfg.Retry.BaseDelay,
		MaxDelay:      cfg.Retry.MaxDelay,
		BackoffFactor: cfg.Retry.BackoffFactor,
	}

	orchestrator := syncer.New(syncer.Config{
		Remote:          remoteClient,
		Store:           bookmarkRepo,
		Cache:           bookmarkCache,
		Retry:           retryPolicy,
		Logger:          logger,
		ContentTimeout:  cfg.Sync.ContentTimeout,
		SyncConcurrency: cfg.Sync.Concurrency,
	})
	defer orchestrator.Shutdown()

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	var syncScheduler *scheduler.SyncScheduler
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg, logger)
		if err != nil {
			logger.Error("failed to initialize task queue", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Warn("error closing task client", "error", err)
			}
		}()

		taskClient.Register(
			tasks.NewFullSyncQueue(orchestrator, progressRepo, logger),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		// Scheduler rides on the task queue, so it only exists when
		// tasks are enabled.
		syncScheduler = scheduler.NewSyncScheduler(taskClient, progressRepo, scheduler.Config{
			Enabled:  cfg.Sync.Enabled,
			Schedule: cfg.Sync.Schedule,
		}, logger)
		if err := syncScheduler.Start(context.Background()); err != nil {
			logger.Error("failed to start sync scheduler", "error", err)
			os.Exit(1)
		}
	}

	routerCfg := http_controllers.RouterConfig{
		Service:      orchestrator,
		Orchestrator: orchestrator,
		Database:     db,
		Bookmarks:    bookmarkRepo,
		SyncProgress: progressRepo,
		Scheduler:    syncScheduler,
		Version:      version,
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if syncScheduler != nil {
			syncScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, logger, onShutdown)
}
