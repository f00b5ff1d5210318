package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/sheetsync/internal/config"
	http_controllers "github.com/mrlokans/sheetsync/internal/http"
	"github.com/mrlokans/sheetsync/internal/logging"
	"github.com/mrlokans/sheetsync/internal/scheduler"
	"github.com/mrlokans/sheetsync/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop producers of background work before the server goes away
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	logCloser := logging.Setup(cfg.Logging)
	defer logCloser.Close()

	log.Printf("Starting sheetsync v%s", version)

	app, err := Build(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	routerCfg := http_controllers.RouterConfig{
		Version:      version,
		DefaultActor: cfg.Auth.DefaultActor,
		Authorizer:   app.Authorizer,
		Syncer:       app.Orchestrator,
		Configs:      app.Configs,
		Metrics:      app.Metrics,
		Sources:      app.Sources,
		Audit:        app.Audit,
		HealthChecks: map[string]http_controllers.Pinger{"database": app.DB},
	}

	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	var syncScheduler *scheduler.SyncScheduler
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromConfig(cfg.Tasks))
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		var pruner tasks.PayloadPruner
		if app.Payloads != nil {
			pruner = app.Payloads
		}
		taskClient.Register(
			tasks.NewSyncSheetQueue(app.Orchestrator),
			tasks.NewCleanupAuditQueue(app.Audit, pruner),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		taskClient.Start(taskCtx)

		routerCfg.Queue = taskClient
		routerCfg.HealthChecks["tasks"] = taskClient

		if cfg.Scheduler.Enabled {
			syncScheduler = scheduler.NewSyncScheduler(app.Sources, taskClient, app.Status, scheduler.Config{
				SyncSchedule:    cfg.Scheduler.SyncSchedule,
				ReapSchedule:    cfg.Scheduler.ReapSchedule,
				CleanupSchedule: cfg.Audit.CleanupSchedule,
				StaleAfter:      cfg.Sync.StaleAfter,
				RetentionDays:   cfg.Audit.RetentionDays,
			})
			if err := syncScheduler.Start(taskCtx); err != nil {
				log.Fatalf("Failed to start sync scheduler: %v", err)
			}
		}
	} else if cfg.Scheduler.Enabled {
		log.Printf("WARNING: scheduler needs the task queue; set TASKS_ENABLED=true to run scheduled syncs")
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

	Serve(router, cfg, onShutdown)
}
