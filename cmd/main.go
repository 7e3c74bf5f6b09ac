package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/oacdarts/tournament-engine/brackets"
	"github.com/oacdarts/tournament-engine/config"
	"github.com/oacdarts/tournament-engine/db"
	"github.com/oacdarts/tournament-engine/handlers"
	"github.com/oacdarts/tournament-engine/live"
	"github.com/oacdarts/tournament-engine/repositories"
	"github.com/oacdarts/tournament-engine/routes"
	"github.com/oacdarts/tournament-engine/services"
	"github.com/oacdarts/tournament-engine/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	hub := live.NewHub(logger)
	go hub.Run()
	logger.Info("live hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	playerRepo := repositories.NewPostgresTournamentPlayerRepository(dbConn)
	groupRepo := repositories.NewPostgresGroupRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	legRepo := repositories.NewPostgresLegRepository(dbConn)
	ratingRepo := repositories.NewPostgresRatingRepository(dbConn)

	shuffler := brackets.NewSystemShuffler()

	authService := services.NewAuthService(userRepo, cfg.JWTSecretKey, cfg.TokenTTL)
	ratingService := services.NewRatingService(dbConn, ratingRepo, logger)
	tournamentService := services.NewTournamentService(dbConn, tournamentRepo, playerRepo, groupRepo, matchRepo, ratingService, services.NewOpenClubPermissions(), logger)
	groupService := services.NewGroupService(dbConn, tournamentRepo, playerRepo, groupRepo, matchRepo, shuffler, logger)
	knockoutService := services.NewKnockoutService(dbConn, tournamentRepo, playerRepo, groupRepo, matchRepo, shuffler, logger)
	matchService := services.NewMatchService(dbConn, matchRepo, legRepo, knockoutService, hub, logger)

	// Archival is optional; without R2 credentials the engine runs without it.
	var scheduler gocron.Scheduler
	if cfg.ArchivingEnabled() && cfg.ArchiveSweepInterval > 0 {
		uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		archiveService := services.NewArchiveService(tournamentRepo, tournamentService, uploader, logger)

		scheduler, err = gocron.NewScheduler()
		if err != nil {
			logger.Error("failed to create scheduler", slog.Any("error", err))
			os.Exit(1)
		}
		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.ArchiveSweepInterval),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				if _, err := archiveService.SweepFinished(ctx); err != nil {
					logger.Error("archive sweep failed", slog.Any("error", err))
				}
			}),
		)
		if err != nil {
			logger.Error("failed to schedule archive sweep", slog.Any("error", err))
			os.Exit(1)
		}
		scheduler.Start()
		logger.Info("archive sweep scheduled", slog.Duration("interval", cfg.ArchiveSweepInterval))
		defer func() {
			if err := scheduler.Shutdown(); err != nil {
				logger.Error("failed to stop scheduler", slog.Any("error", err))
			}
		}()
	} else {
		logger.Info("archival disabled, R2 configuration incomplete")
	}

	h := routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService),
		Tournament: handlers.NewTournamentHandler(tournamentService, groupService, knockoutService),
		Match:      handlers.NewMatchHandler(matchService),
		Rating:     handlers.NewRatingHandler(ratingService),
		WebSocket:  handlers.NewWebSocketHandler(hub, logger),
	}
	router := routes.InitRoutes(h, authService)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
