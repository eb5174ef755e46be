package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aegisauth/aegis/internal/api"
	"github.com/aegisauth/aegis/internal/app"
	"github.com/aegisauth/aegis/internal/app/maintenance"
	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/internal/database"
	"github.com/aegisauth/aegis/internal/jobs"
	"github.com/aegisauth/aegis/internal/policy"
	"github.com/aegisauth/aegis/internal/services"
	"github.com/aegisauth/aegis/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("aegis-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	store, err := policy.NewStore(db)
	if err != nil {
		return fmt.Errorf("initialise policy store: %w", err)
	}

	decisionCache, err := authz.NewCache(cfg.Cache.Size)
	if err != nil {
		return fmt.Errorf("initialise decision cache: %w", err)
	}

	enforcer, err := authz.NewEnforcer(store, decisionCache, cfg.Application.ID, logger.WithModule("authz"))
	if err != nil {
		return fmt.Errorf("initialise enforcer: %w", err)
	}

	auditSvc, err := services.NewAuditService(db)
	if err != nil {
		return fmt.Errorf("initialise audit service: %w", err)
	}

	roleSvc, err := services.NewRoleService(store, enforcer.Cache(), auditSvc, cfg.Application.ID, logger.WithModule("roles"))
	if err != nil {
		return fmt.Errorf("initialise role service: %w", err)
	}

	violationSvc, err := services.NewViolationService(db, store, enforcer.Cache(), auditSvc, logger.WithModule("violations"))
	if err != nil {
		return fmt.Errorf("initialise violation service: %w", err)
	}

	var enqueuer services.ExportEnqueuer
	var jobsClient *jobs.Client
	if cfg.Jobs.Enabled {
		jobsClient, err = jobs.NewClient(redisClientOpt(cfg))
		if err != nil {
			return fmt.Errorf("initialise jobs client: %w", err)
		}
		defer func() { _ = jobsClient.Close() }()
		enqueuer = jobsClient
	}

	exporter, err := services.NewAuditExporter(auditSvc, enqueuer, cfg.Audit.ExportThreshold, logger.WithModule("audit"))
	if err != nil {
		return fmt.Errorf("initialise audit exporter: %w", err)
	}

	if cfg.Jobs.Enabled {
		exportWorker, workerErr := jobs.NewExportWorker(exporter, cfg.Audit.ExportDir, logger.WithModule("jobs"))
		if workerErr != nil {
			return fmt.Errorf("initialise export worker: %w", workerErr)
		}
		worker, workerErr := jobs.NewWorker(redisClientOpt(cfg), exportWorker, cfg.Jobs.Concurrency, logger.WithModule("jobs"))
		if workerErr != nil {
			return fmt.Errorf("initialise jobs worker: %w", workerErr)
		}
		go func() {
			if runErr := worker.Run(ctx); runErr != nil {
				log.Warn("jobs worker stopped", zap.Error(runErr))
			}
		}()
	}

	sweeper := maintenance.NewSweeper(violationSvc, auditSvc,
		maintenance.WithAuditRetentionDays(cfg.Audit.RetentionDays),
		maintenance.WithSweepSchedule(cfg.Violations.SweepSchedule),
		maintenance.WithAuditSchedule(cfg.Audit.CleanupSchedule),
	)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := sweeper.Stop()
		if err := sweeper.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown sweep failed", zap.Error(err))
		}
	}()

	router, err := api.NewRouter(api.Services{
		Enforcer:   enforcer,
		Roles:      roleSvc,
		Violations: violationSvc,
		Audit:      auditSvc,
		Exporter:   exporter,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func redisClientOpt(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:        cfg.Jobs.Redis.Address,
		Username:    cfg.Jobs.Redis.Username,
		Password:    cfg.Jobs.Redis.Password,
		DB:          cfg.Jobs.Redis.DB,
		DialTimeout: cfg.Jobs.Redis.Timeout,
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database.ToDatabaseConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database handle unavailable on shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}
