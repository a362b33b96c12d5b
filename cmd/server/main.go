// pubfiles server
//
// A minimal authenticated HTML hosting portal over a flat object store:
// the admin uploads, categorizes, renames and deletes documents; the
// public browses and views them at extension-less /view addresses.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pubfiles/pubfiles/internal/api"
	"github.com/pubfiles/pubfiles/internal/auth"
	"github.com/pubfiles/pubfiles/internal/blob"
	"github.com/pubfiles/pubfiles/internal/blob/memory"
	s3blob "github.com/pubfiles/pubfiles/internal/blob/s3"
	"github.com/pubfiles/pubfiles/internal/config"
	"github.com/pubfiles/pubfiles/internal/logging"
	"github.com/pubfiles/pubfiles/internal/metrics"
	"github.com/pubfiles/pubfiles/internal/portal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("pubfiles server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("backend", cfg.StorageBackend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newStore(ctx, cfg)
	if err != nil {
		logging.Fatal("storage init failed", zap.Error(err))
	}

	sessions := auth.New(cfg.SessionSecret, cfg.SessionTTL, cfg.AdminPasswordHash, cfg.AdminPassword)
	svc := portal.New(store, portal.AuthorizerFunc(auth.FromContext))
	srv := api.NewServer(svc, sessions, cfg.MaxUploadSize)

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}
	go func() {
		logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logging.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("server shutdown error", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("metrics shutdown error", zap.Error(err))
	}
	logging.Info("shutdown complete")
}

func newStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.StorageBackend {
	case "memory":
		logging.Warn("using in-memory storage; objects will not survive a restart")
		return memory.New(cfg.S3Bucket), nil
	default:
		return s3blob.New(ctx, s3blob.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	}
}
