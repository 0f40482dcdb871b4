package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Icestreamm/baseer-backend/internal/auth"
	"github.com/Icestreamm/baseer-backend/internal/config"
	"github.com/Icestreamm/baseer-backend/internal/db"
	"github.com/Icestreamm/baseer-backend/internal/detect"
	httphandler "github.com/Icestreamm/baseer-backend/internal/http"
	"github.com/Icestreamm/baseer-backend/internal/http/middleware"
	"github.com/Icestreamm/baseer-backend/internal/imaging"
	"github.com/Icestreamm/baseer-backend/internal/logger"
	"github.com/Icestreamm/baseer-backend/internal/report"
	"github.com/Icestreamm/baseer-backend/internal/repository"
	"github.com/Icestreamm/baseer-backend/internal/service"
	"github.com/Icestreamm/baseer-backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}

	assessmentRepo := repository.NewAssessmentRepository(database)
	registry := detect.NewRegistry(cfg.Detector.BaseURL, cfg.Detector.Timeout, appLogger)
	photoSource := imaging.NewHTTPSource(cfg.Photo.FetchTimeout)
	renderer := report.NewRenderer()

	// Artifact storage is optional; without it the pipeline still completes,
	// reports are just not published.
	var artifacts service.ArtifactStore
	r2Client, err := storage.NewR2Client(cfg.Storage)
	if err != nil && !errors.Is(err, storage.ErrNotConfigured) {
		appLogger.Fatal().Err(err).Msg("failed to initialize R2 client")
	}
	if err != nil {
		appLogger.Warn().Msg("R2 storage not configured, report publishing will be disabled")
	} else {
		artifacts = r2Client
	}

	assessmentService := service.NewAssessmentService(
		assessmentRepo,
		registry,
		photoSource,
		renderer,
		artifacts,
		cfg.Photo.MaxPerJob,
		appLogger,
	)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(assessmentService, cfg, appLogger)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, database, appLogger)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Msg("starting baseer service")

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error().Err(err).Msg("failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info().Msg("server exited")
}
