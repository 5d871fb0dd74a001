package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askduck/askduck/internal/api"
	"github.com/askduck/askduck/internal/ask"
	"github.com/askduck/askduck/internal/config"
	"github.com/askduck/askduck/internal/dataset"
	"github.com/askduck/askduck/internal/nl2sql"
	"github.com/askduck/askduck/internal/observability"
	duckdbengine "github.com/askduck/askduck/internal/query/duckdb"
	"github.com/askduck/askduck/internal/storage"
	s3store "github.com/askduck/askduck/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("askduck-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	store, err := dataset.Open(cfg.Dataset)
	if err != nil {
		logger.Error("failed to open dataset store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	var archive storage.ObjectStore
	if cfg.Archive.Enabled {
		s3, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.Archive.Endpoint,
			Region:           cfg.Archive.Region,
			Bucket:           cfg.Archive.Bucket,
			AccessKeyID:      cfg.Archive.AccessKeyID,
			SecretAccessKey:  cfg.Archive.SecretAccessKey,
			UseSSL:           cfg.Archive.UseSSL,
			Prefix:           cfg.Archive.Prefix,
			AutoCreateBucket: cfg.Archive.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize archive store", slog.Any("error", err))
			os.Exit(1)
		}
		archive = s3
		restoreArchivedUpload(logger, cfg, archive)
	}

	if err := store.EnsureInitialized(context.Background()); err != nil {
		// The service still answers health and accepts uploads; data endpoints
		// report the missing dataset until a load succeeds.
		logger.Warn("failed to initialize dataset", slog.Any("error", err))
	}

	engine := duckdbengine.NewEngine(store.DB(), cfg.Dataset.QueryTimeout)

	var translator nl2sql.Translator
	if cfg.AI.Enabled {
		translator, err = nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
			BaseURL:         cfg.AI.BaseURL,
			APIKey:          cfg.AI.APIKey,
			Model:           cfg.AI.Model,
			Temperature:     cfg.AI.Temperature,
			MaxOutputTokens: cfg.AI.MaxOutputTokens,
			Timeout:         cfg.AI.Timeout,
			TableName:       cfg.Dataset.TableName,
		})
		if err != nil {
			logger.Error("failed to initialize translator", slog.Any("error", err))
			os.Exit(1)
		}
	}

	service := &ask.Service{
		Store:        store,
		Translator:   translator,
		Engine:       engine,
		Pending:      ask.NewPendingStore(),
		DefaultLimit: cfg.Dataset.DefaultRowLimit,
		Logger:       logger,
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:  logger,
		Ask:     service,
		Dataset: store,
		Engine:  engine,
		Archive: archive,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

// restoreArchivedUpload pulls the last archived upload back to local disk so a
// fresh instance resumes with the same dataset. A missing archive object or a
// failed download leaves the local state as-is.
func restoreArchivedUpload(logger *slog.Logger, cfg config.Config, archive storage.ObjectStore) {
	uploadPath := cfg.Dataset.UploadPath()
	if _, err := os.Stat(uploadPath); err == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reader, err := archive.Get(ctx, storage.UploadObjectKey)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			logger.Warn("failed to fetch archived upload", slog.Any("error", err))
		}
		return
	}
	defer reader.Close()

	if err := os.MkdirAll(cfg.Dataset.Dir, 0o755); err != nil {
		logger.Warn("failed to create dataset dir", slog.Any("error", err))
		return
	}
	target, err := os.Create(uploadPath)
	if err != nil {
		logger.Warn("failed to create local upload file", slog.Any("error", err))
		return
	}
	if _, err := io.Copy(target, reader); err != nil {
		_ = target.Close()
		_ = os.Remove(uploadPath)
		logger.Warn("failed to restore archived upload", slog.Any("error", err))
		return
	}
	if err := target.Close(); err != nil {
		logger.Warn("failed to finalize restored upload", slog.Any("error", err))
		return
	}
	logger.Info("restored archived upload", slog.String("path", uploadPath))
}
