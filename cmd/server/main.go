package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fvila/renovaciones/internal/alerts"
	"github.com/fvila/renovaciones/internal/audit"
	"github.com/fvila/renovaciones/internal/config"
	"github.com/fvila/renovaciones/internal/db"
	"github.com/fvila/renovaciones/internal/logging"
	"github.com/fvila/renovaciones/internal/scheduler"
	"github.com/fvila/renovaciones/internal/server"
	"github.com/fvila/renovaciones/internal/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()
	_ = godotenv.Load()
	cfg := config.Load()

	if *migrateOnlyFlag {
		if _, err := db.ConnectAndMigrate(cfg.DatabaseDSN); err != nil {
			log.Fatalf("migrate-only failed: %v", err)
		}
		log.Println("migrations completed; exiting as requested")
		return
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	dbConn, err := db.ConnectAndMigrate(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db connection failed", zap.Error(err))
	}

	sink, err := audit.Open(filepath.Join(cfg.StorageDir, "logs"))
	if err != nil {
		logger.Fatal("audit sink init failed", zap.Error(err))
	}
	defer sink.Sync()

	scanner := alerts.NewDeadlineScanner(dbConn)
	daily := scheduler.NewDaily(scanner, cfg.ScanHour, cfg.ScanMinute, logger)
	if cfg.SchedulerEnabled {
		if err := daily.Start(); err != nil {
			logger.Fatal("scheduler start failed", zap.Error(err))
		}
	}

	handler := server.New(server.Options{
		DB:      dbConn,
		Audit:   sink,
		Store:   storage.New(cfg.StorageDir),
		Scanner: scanner,
		Log:     logger,
	})
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	logger.Info("starting server", zap.String("env", cfg.Env), zap.String("port", cfg.Port))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	daily.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	logger.Info("server gracefully stopped")
}
