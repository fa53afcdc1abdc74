package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/timeclock/internal/backup"
	"github.com/dukerupert/timeclock/internal/database"
	"github.com/dukerupert/timeclock/internal/logging"
	"github.com/dukerupert/timeclock/internal/server"
	"github.com/dukerupert/timeclock/internal/store"
)

func main() {
	logger := logging.Setup(os.Getenv("TIMECLOCK_LOG_LEVEL"))

	port := os.Getenv("TIMECLOCK_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("TIMECLOCK_DB_PATH")
	if dbPath == "" {
		dbPath = "timeclock.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// S3 settings stored in the database win over environment variables so
	// they can be changed without a restart losing them.
	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("TIMECLOCK_S3_ENDPOINT"),
			Bucket:    os.Getenv("TIMECLOCK_S3_BUCKET"),
			Region:    os.Getenv("TIMECLOCK_S3_REGION"),
			AccessKey: os.Getenv("TIMECLOCK_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("TIMECLOCK_S3_SECRET_KEY"),
		},
		DBPath: dbPath,
	}
	settingsStore := store.NewSettingsStore(db)
	if stored, err := settingsStore.GetS3Settings(); err == nil && len(stored) > 0 {
		s3cfg, interval := backup.FromSettings(stored)
		if s3cfg.Bucket != "" {
			backupCfg.S3 = s3cfg
		}
		backupCfg.Interval = interval
	}

	srv := server.New(db, server.Config{
		DBPath:            dbPath,
		SheetsAccessToken: os.Getenv("TIMECLOCK_SHEETS_TOKEN"),
		VAPIDPublicKey:    os.Getenv("TIMECLOCK_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey:   os.Getenv("TIMECLOCK_VAPID_PRIVATE_KEY"),
		Backup:            backupCfg,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
	} else {
		logger.Info("push notifications disabled, no VAPID keys configured")
	}

	// Drop stale rate-limit windows so the map stays bounded.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("timeclock listening", "port", port, "db", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
