package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/larderapp/larder/internal/backup"
	"github.com/larderapp/larder/internal/database"
	"github.com/larderapp/larder/internal/email"
	"github.com/larderapp/larder/internal/expiry"
	"github.com/larderapp/larder/internal/logging"
	"github.com/larderapp/larder/internal/push"
	"github.com/larderapp/larder/internal/remote"
	"github.com/larderapp/larder/internal/server"
	"github.com/larderapp/larder/internal/store"
)

func main() {
	logger := logging.Setup(os.Getenv("LARDER_LOG_LEVEL"))

	port := os.Getenv("LARDER_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("LARDER_DB_PATH")
	if dbPath == "" {
		dbPath = "larder.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var dir remote.Directory
	if projectID := os.Getenv("LARDER_FIRESTORE_PROJECT"); projectID != "" {
		fd, err := remote.NewFirestoreDirectory(ctx, projectID, os.Getenv("LARDER_FIRESTORE_CREDENTIALS"), logger.With("component", "firestore"))
		if err != nil {
			logger.Error("connect firestore", "project", projectID, "error", err)
			os.Exit(1)
		}
		defer fd.Close()
		dir = fd
	} else {
		logger.Info("no firestore project configured, running local-only")
	}

	var pushSvc *push.Service
	vapidPublic := os.Getenv("LARDER_VAPID_PUBLIC_KEY")
	vapidPrivate := os.Getenv("LARDER_VAPID_PRIVATE_KEY")
	if vapidPublic != "" && vapidPrivate != "" {
		pushSvc = push.NewService(vapidPublic, vapidPrivate)
	} else {
		logger.Info("no VAPID keys configured, push notifications disabled")
	}

	emailClient := email.NewClient(os.Getenv("LARDER_POSTMARK_TOKEN"), os.Getenv("LARDER_EMAIL_FROM"))

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("LARDER_S3_ENDPOINT"),
			Bucket:    os.Getenv("LARDER_S3_BUCKET"),
			Region:    os.Getenv("LARDER_S3_REGION"),
			AccessKey: os.Getenv("LARDER_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("LARDER_S3_SECRET_KEY"),
		},
		DBPath:        dbPath,
		Passphrase:    os.Getenv("LARDER_BACKUP_PASSPHRASE"),
		ScheduleHour:  envInt("LARDER_BACKUP_HOUR", 3),
		RetentionDays: envInt("LARDER_BACKUP_RETENTION_DAYS", 30),
	}
	backupMgr, err := backup.NewManager(backupCfg, db, store.NewBackupStore(db), logger.With("component", "backup"))
	if err != nil {
		logger.Error("init backups", "error", err)
		os.Exit(1)
	}
	backupMgr.Start(ctx)
	defer backupMgr.Stop()

	srv := server.New(db, dir, emailClient, pushSvc, backupMgr, logger)

	if pushSvc != nil {
		notifier := expiry.NewNotifier(pushSvc, srv.PushStore(), srv.ProductStore(), logger.With("component", "expiry"))
		notifier.Start(ctx)
		defer notifier.Stop()
	}

	go cleanupLoop(ctx, srv, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("larder listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// cleanupLoop evicts expired sessions and stale rate-limit entries hourly.
func cleanupLoop(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := srv.SessionStore().DeleteExpired(); err != nil {
				logger.Warn("session cleanup", "error", err)
			} else if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
			srv.RateLimiter().Cleanup()
		}
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
