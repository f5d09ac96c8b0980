package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/gifcut/gifcut/internal/api"
	"github.com/gifcut/gifcut/internal/catalog"
	"github.com/gifcut/gifcut/internal/config"
	"github.com/gifcut/gifcut/internal/db"
	"github.com/gifcut/gifcut/internal/ffmpeg"
	"github.com/gifcut/gifcut/internal/logging"
	"github.com/gifcut/gifcut/internal/pipeline"
	"github.com/spf13/cobra"
)

func newServeCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP service that queues and converts jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, cfg)
		},
	}
}

func runServe(cmd *cobra.Command, cfg config.Config) error {
	ctx := cmd.Context()
	startTime := time.Now()

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir(), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting gifcut service", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if _, err := database.FailInterruptedJobs(ctx); err != nil {
		logger.Warn("failed to mark interrupted jobs", "error", err)
	}

	repo := catalog.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	ffLogger := logging.WithComponent(logger, "ffmpeg")
	runner, err := newFFmpegRunner(cfg, cfg.ServeFFmpegTimeout(), ffLogger, nil, nil)
	if err != nil {
		return err
	}

	doctor := ffmpeg.NewCachedDoctor(runner, ffLogger)
	if caps, err := doctor.Refresh(ctx); err != nil {
		logger.Warn("initial doctor probe failed", "error", err)
	} else if !caps.CanConvert() {
		logger.Warn("ffmpeg lacks palettegen/paletteuse, conversions will fail", "version", caps.Version)
	}

	catalogSvc := catalog.NewService(repo, logging.WithComponent(logger, "catalog"))
	converter := pipeline.NewConverter(runner, pipeline.Options{TempDir: cfg.TempDir()}, logging.WithComponent(logger, "pipeline"))
	jobRunner := catalog.NewRunner(repo, converter, logging.WithComponent(logger, "runner"))

	// Drain the runner before the deferred database.Close runs.
	runCtx, cancel := context.WithCancel(ctx)
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		jobRunner.Start(runCtx)
	}()
	defer func() {
		cancel()
		<-runnerDone
	}()

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		OutputDir:  cfg.OutputDir(),
		Service:    catalogSvc,
		Repository: repo,
		Runner:     jobRunner,
		Doctor:     doctor,
		Logger:     logging.WithComponent(logger, "api"),
		StartTime:  startTime,
		Version:    config.Version,
	})

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  gifcut %s\n", config.Version)
	fmt.Fprintf(out, "  API URL:    http://%s\n", apiServer.Addr())
	fmt.Fprintf(out, "  Auth Token: %s\n", authToken)
	fmt.Fprintln(out)

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("HTTP server: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	<-runnerDone
	logger.Info("shutdown complete")
	return serveErr
}

func ensureAuthToken(ctx context.Context, repo catalog.Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
