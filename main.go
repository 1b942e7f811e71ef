package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"paper-portal/auth"
	"paper-portal/config"
	"paper-portal/database"
	"paper-portal/handlers"
	"paper-portal/middleware"
	"paper-portal/services"
	"paper-portal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	var logging *zap.Logger
	if cfg.IsProduction() {
		logging, err = zap.NewProduction()
		gin.SetMode(gin.ReleaseMode)
	} else {
		logging, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	db, err := database.Open(cfg, logging)
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Running database auto-migration...")
	if err := database.Migrate(db); err != nil {
		logging.Fatal("Migration failed", zap.Error(err))
	}
	if cfg.SeedDefaults {
		if err := database.Seed(db, logging); err != nil {
			logging.Fatal("Seeding failed", zap.Error(err))
		}
	}

	store, files, err := newObjectStore(cfg, logging)
	if err != nil {
		logging.Fatal("Object storage setup failed", zap.Error(err))
	}

	// Setup Services
	sessions := auth.NewSessionIssuer(cfg.JWTSecret, cfg.JWTTTL)
	tokens := services.NewTokenService(db, logging)
	events := services.NewEventService(db, services.NewEventCache(cfg.EventCacheSize, cfg.EventCacheTTL), logging)
	papers := services.NewPaperService(db, events, store, logging)

	h := &handlers.Handler{
		Auth:          services.NewAuthService(db, sessions, tokens, logging),
		Tokens:        tokens,
		Organizations: services.NewOrganizationService(db, logging),
		Events:        events,
		Papers:        papers,
		Uploads:       services.NewUploadService(db, papers, store, cfg, logging),
		Logger:        logging,
		Production:    cfg.IsProduction(),
	}
	router := handlers.NewRouter(h, handlers.RouterOptions{
		Sessions:     sessions,
		DB:           db,
		LoginLimiter: middleware.NewRateLimiter(cfg.LoginRatePerMinute, 10*time.Minute),
		TokenLimiter: middleware.NewRateLimiter(cfg.LoginRatePerMinute, 10*time.Minute),
		MetricsKey:   cfg.MetricsAPIKey,
		Files:        files,
	})

	// Setup Cron
	cronScheduler := cron.New()
	housekeeper := services.NewHousekeeper(db, cfg.LoginLogRetentionDays, logging)
	if _, err := housekeeper.Schedule(cronScheduler, cfg.CronSchedule); err != nil {
		logging.Fatal("Invalid cron schedule", zap.String("schedule", cfg.CronSchedule), zap.Error(err))
	}
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort), zap.String("env", cfg.AppEnv))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info("Shutting down server...")

	<-cronScheduler.Stop().Done()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server shutdown failed", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logging.Info("Server stopped.")
}

// newObjectStore wählt den Dateispeicher anhand von STORAGE_DRIVER.
// Der In-Memory-Speicher wird zusätzlich unter /files ausgeliefert.
func newObjectStore(cfg *config.Config, logging *zap.Logger) (storage.ObjectStore, handlers.FileSource, error) {
	if cfg.StorageDriver == "memory" {
		logging.Warn("Using in-memory object storage; uploaded files are lost on restart.")
		mem := storage.NewMemoryStore("http://localhost:" + cfg.HTTPPort + "/files")
		return mem, mem, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := storage.NewS3Store(ctx, storage.OptionsFromConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	logging.Info("Using S3 object storage.", zap.String("bucket", cfg.S3Bucket))
	return store, nil, nil
}
