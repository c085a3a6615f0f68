package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/vehosts/vehosts/internal/artifact"
	rconsole "github.com/vehosts/vehosts/internal/runner/console"
	"github.com/vehosts/vehosts/internal/runner/executor"
	httpx "github.com/vehosts/vehosts/internal/runner/http"
	"github.com/vehosts/vehosts/internal/runner/workspace"
	"github.com/vehosts/vehosts/pkg/config"
	"github.com/vehosts/vehosts/pkg/logger"
)

func main() {
	cfg := config.LoadRunnerConfig()
	log := logger.New("runner", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := artifact.NewS3Store(artifact.S3Config{
		Endpoint:        cfg.StorageEndpoint,
		Bucket:          cfg.StorageBucket,
		Region:          cfg.StorageRegion,
		AccessKeyID:     cfg.StorageAccessKey,
		SecretAccessKey: cfg.StorageSecretKey,
		ForcePathStyle:  cfg.StoragePathStyle,
	})
	if err != nil {
		log.Error("failed to configure artifact storage", "error", err)
		os.Exit(1)
	}

	workspaceManager, err := workspace.New(cfg.Workdir)
	if err != nil {
		log.Error("workspace init failed", "error", err, "workdir", cfg.Workdir)
		os.Exit(1)
	}

	emitter, err := rconsole.NewEmitter(cfg.APIBaseURL, cfg.RunnerAuthToken, &http.Client{Timeout: cfg.LogEmitTimeout})
	if err != nil {
		log.Error("console emitter init failed", "error", err)
		os.Exit(1)
	}

	execSvc := executor.New(store, workspaceManager, emitter, log, cfg)
	router := httpx.New(log, execSvc, cfg.RunnerAuthToken)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("runner server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("runner server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
