package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"blogsite/internal/auth"
	"blogsite/internal/backup"
	"blogsite/internal/config"
	apphttp "blogsite/internal/http"
	"blogsite/internal/repository/sqlite"
	"blogsite/internal/service"
	"blogsite/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	revokedRepo := sqlite.NewRevokedSessionRepository(db)
	if err := revokedRepo.Init(ctx); err != nil {
		logger.Fatalf("init revoked session repository: %v", err)
	}
	if n, err := revokedRepo.PurgeExpired(ctx, time.Now()); err != nil {
		logger.Warnf("purge revoked sessions: %v", err)
	} else if n > 0 {
		logger.Infof("purged %d expired session revocations", n)
	}

	manager := service.NewManager(userRepo)
	userService := service.NewUserService(userRepo, manager, logger)

	sessions, err := auth.NewSessions(auth.Config{
		Secret:       cfg.Auth.JWTSecret,
		TTL:          cfg.SessionTTL(),
		CookieName:   cfg.Auth.CookieName,
		SecureCookie: cfg.Auth.SecureCookie,
		Revocations:  revokedRepo,
	})
	if err != nil {
		logger.Fatalf("setup sessions: %v", err)
	}

	var scheduler backup.Scheduler
	if cfg.BackupEnabled() {
		store, err := storage.NewS3ServiceFromConfig(ctx, storage.S3Config{
			Region:   cfg.Storage.Region,
			Endpoint: cfg.Storage.Endpoint,
			Profile:  cfg.AWS.Profile,
		})
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
		logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)

		scheduler = backup.NewScheduler(backup.Config{
			Bucket:    cfg.Storage.Bucket,
			KeyPrefix: cfg.Storage.KeyPrefix,
			Interval:  cfg.Backup.Interval,
			Keep:      cfg.Backup.Keep,
			Logger:    logger,
		}, db, store)
		if err := scheduler.Start(ctx); err != nil {
			logger.Fatalf("start backup scheduler: %v", err)
		}
	} else {
		logger.Info("database backups disabled (no storage bucket)")
	}

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), apphttp.RequestLogger(logger))
	handler := apphttp.NewHandler(userService, sessions, db, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}

	logger.Info("bye")
}
