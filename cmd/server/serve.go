package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rohits-web03/peerlink/internal/api"
	"github.com/rohits-web03/peerlink/internal/api/handlers"
	"github.com/rohits-web03/peerlink/internal/config"
	"github.com/rohits-web03/peerlink/internal/repositories"
	"github.com/rohits-web03/peerlink/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Envs
	config.SetupLogging(cfg, logLevel)
	cfg.LogEnvFile()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	db, err := repositories.ConnectDatabase(cfg.DB_URL)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	if err := repositories.Migrate(db); err != nil {
		log.Error().Err(err).Msg("failed to migrate database")
		return err
	}

	blobs, err := repositories.NewObjectStore(cfg.S3)
	if err != nil {
		log.Error().Err(err).Msg("failed to configure object store")
		return err
	}

	records := repositories.NewFileRecordRepository(db)
	userRepo := repositories.NewUserRepository(db)
	files := services.NewFileService(blobs, records, userRepo, services.NewShareCodeAllocator(records))
	users := services.NewUserService(userRepo, cfg.JWTSecret)

	h := handlers.New(files, users, handlers.Options{
		SecureCookies: cfg.IsProduction(),
		MaxUploadSize: cfg.MaxUploadSize,
		FrontendURL:   cfg.FrontendURL,
		GoogleOAuth:   config.GoogleOAuthConfig(cfg.Google),
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: api.SetupRouter(h, users, cfg.CorsConfig),
		// Timeouts prevent resource exhaustion from slow clients. Writes get
		// longer because upload handlers stream the body to the object store.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("starting PeerLink server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("port", cfg.Port).Msg("could not listen")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Envs
	config.SetupLogging(cfg, logLevel)
	cfg.LogEnvFile()
	if cfg.DB_URL == "" {
		return errors.New("DB_URL is required")
	}

	db, err := repositories.ConnectDatabase(cfg.DB_URL)
	if err != nil {
		return err
	}
	if err := repositories.Migrate(db); err != nil {
		return err
	}
	log.Info().Msg("database schema is up to date")
	return nil
}
