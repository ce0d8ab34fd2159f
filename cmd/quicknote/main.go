package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mikaelkraft/quicknote-pro/config"
	"github.com/mikaelkraft/quicknote-pro/internal/backup"
	"github.com/mikaelkraft/quicknote-pro/internal/database"
	"github.com/mikaelkraft/quicknote-pro/internal/handler"
	"github.com/mikaelkraft/quicknote-pro/internal/logger"
	"github.com/mikaelkraft/quicknote-pro/internal/media"
	"github.com/mikaelkraft/quicknote-pro/internal/middleware"
	"github.com/mikaelkraft/quicknote-pro/internal/notestore"
	"github.com/mikaelkraft/quicknote-pro/internal/provider"
	"github.com/mikaelkraft/quicknote-pro/internal/router"
	syncsvc "github.com/mikaelkraft/quicknote-pro/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	mediaStore, err := media.NewStorage(cfg.Media.RootPath)
	if err != nil {
		log.Fatalf("Failed to initialize media storage: %v", err)
	}
	store := notestore.NewStore(db)

	configService := provider.NewConfigService(db)
	registry, err := configService.BuildRegistry(provider.Options{
		GitWorkRoot: "data/git",
	})
	if err != nil {
		log.Fatalf("Failed to build provider registry: %v", err)
	}

	manager := syncsvc.NewManager(db, store, mediaStore, registry, syncsvc.ManagerConfig{
		AutoSyncInterval: cfg.Sync.AutoSyncPeriod(),
		NetworkTimeout:   cfg.Sync.NetworkTimeoutDuration(),
	})
	backupService := backup.NewService(store, mediaStore, cfg.Backup.ExportDir, cfg.Backup.ShareDir)

	loggerMiddleware := middleware.NewLoggerMiddleware()
	r := router.NewRouter(loggerMiddleware, db, router.Dependencies{
		Notes:  handler.NewNoteHandler(store, mediaStore),
		Sync:   handler.NewSyncHandler(manager, configService),
		Backup: handler.NewBackupHandler(backupService),
	})

	syncCtx, cancelSync := context.WithCancel(context.Background())
	manager.Start(syncCtx)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      r.GetEngine(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("shutting down")

	cancelSync()
	manager.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shut down: %v", err)
	}

	logger.Infof("server exited")
}
