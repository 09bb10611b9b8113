package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/safe-uploader/internal/api/handlers/upload"
	"github.com/aliskhannn/safe-uploader/internal/api/router"
	"github.com/aliskhannn/safe-uploader/internal/api/server"
	"github.com/aliskhannn/safe-uploader/internal/config"
	"github.com/aliskhannn/safe-uploader/internal/processor"
	"github.com/aliskhannn/safe-uploader/internal/storage/file"
	"github.com/aliskhannn/safe-uploader/internal/storage/object"
	"github.com/aliskhannn/safe-uploader/internal/uploader"
)

// objectHandler is the moveHandler name of the object storage strategy.
const objectHandler = "object"

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}

	configFlag(cmd.Flags(), &configPath)

	return cmd
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	files := file.NewStorage(nil)

	u, err := newUploader(ctx, cfg, files)
	if err != nil {
		return err
	}

	// HTTP handler for upload routes.
	h := upload.NewHandler(u, files, upload.Config{
		TmpDir:    cfg.Uploader.TmpDir,
		MaxMemory: cfg.Server.MaxMemory,
		Mode:      mode(cfg.Uploader.Collect),
	})

	// Start HTTP server in a separate goroutine.
	r := router.Setup(h)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Msg("starting server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	return nil
}

// newUploader wires the upload pipeline described by cfg.
func newUploader(ctx context.Context, cfg *config.Config, files *file.Storage) (*uploader.Uploader, error) {
	profiles := config.NewProfileSource(files.Fs(), cfg.Uploader.ProfilesFile)
	zlog.Logger.Info().Str("profiles", profiles.Path()).Msg("profiles file")

	opts := []uploader.Option{
		uploader.WithProfileSource(profiles),
	}

	// Object storage is only available when configured.
	if cfg.Object.Enabled() {
		store, err := object.NewStorage(ctx, cfg.Object.Endpoint, cfg.Object.AccessKey, cfg.Object.SecretKey, cfg.Object.UseSSL,
			files, object.Options{
				BucketName: cfg.Object.BucketName,
				PublicURL:  cfg.Object.PublicURL,
				KeyPattern: cfg.Object.KeyPattern,
				Retry: retry.Strategy{
					Attempts: cfg.Retry.Attempts,
					Delay:    cfg.Retry.Delay,
					Backoff:  cfg.Retry.Backoff,
				},
			})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to object storage: %w", err)
		}

		opts = append(opts, uploader.WithPlacement(objectHandler, store.Place))
		zlog.Logger.Info().Str("bucket", cfg.Object.BucketName).Msg("object storage enabled")
	}

	return uploader.New(files, processor.New(files), opts...), nil
}

func mode(collect bool) uploader.Mode {
	if collect {
		return uploader.Collect
	}
	return uploader.Raise
}
