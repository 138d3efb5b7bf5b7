// Package main initializes and starts the CloudKeep dashboard server,
// setting up configuration, logging, the platform clients, the session gate,
// services, and HTTP handlers.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/akozyreva/cloudkeep/internal/config"
	"github.com/akozyreva/cloudkeep/internal/db"
	"github.com/akozyreva/cloudkeep/internal/logger"
	"github.com/akozyreva/cloudkeep/internal/models"
	"github.com/akozyreva/cloudkeep/internal/notify"
	"github.com/akozyreva/cloudkeep/internal/objectstore"
	"github.com/akozyreva/cloudkeep/internal/repository"
	"github.com/akozyreva/cloudkeep/internal/server/handler/http"
	"github.com/akozyreva/cloudkeep/internal/service"
	"github.com/akozyreva/cloudkeep/internal/session"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init("Info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to the platform's managed Postgres record store.
	recordDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init record store", zap.Error(err))
	}
	defer recordDB.Close()

	// Session provider and gate: the gate owns the principal everything
	// else is scoped by.
	provider := session.NewProvider(options.AuthURL, options.APIKey, zapLogger)
	provider.Start(ctx, options.SessionRefresh)
	gate := session.NewGate(provider, zapLogger)
	defer gate.Close()

	// Platform object store client, authorized through the gate.
	store := objectstore.New(options.StorageURL, options.Bucket, options.APIKey, gate)

	// Notification hub: toasts for the dashboard, refresh signals for the
	// catalog.
	hub := notify.NewHub()

	// Repositories and services.
	credRepo := repository.NewPostgresCredentialRepository(recordDB)
	uploads := service.NewUploadCoordinator(store, gate, hub, zapLogger)
	catalog := service.NewCatalog(store, gate, options.SignedURLTTL, zapLogger)
	vault := service.NewVault(credRepo, gate, zapLogger)

	// The catalog re-fetches after every completed mutation.
	signals, unsubscribe := hub.SubscribeUploads()
	defer unsubscribe()
	catalog.Watch(ctx, signals)

	// Principal changes refresh the catalog; session loss clears all
	// view-local state.
	unsubSession := provider.OnChange(func(s *models.Session) {
		if s == nil {
			catalog.Clear()
			vault.Reset()
			return
		}
		go func() {
			if err := catalog.Refresh(ctx); err != nil {
				zapLogger.Warn("catalog refresh failed", zap.Error(err))
			}
		}()
	})
	defer unsubSession()

	// HTTP handlers and router.
	authHandler := &http.AuthHandler{Provider: provider, Gate: gate, Notifier: hub}
	filesHandler := &http.FilesHandler{Uploads: uploads, Catalog: catalog, Notifier: hub}
	vaultHandler := &http.VaultHandler{Vault: vault, Notifier: hub}
	notificationsHandler := &http.NotificationsHandler{Hub: hub}
	router := http.NewRouter(authHandler, filesHandler, vaultHandler, notificationsHandler, gate, zapLogger)

	server := &nethttp.Server{
		Addr:    options.Addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Warn("shutdown", zap.Error(err))
		}
	}()

	zapLogger.Info("starting dashboard server", zap.String("addr", options.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("failed to start server", zap.Error(err))
	}
}
