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

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Olzhas11/competition-platform/config"
	"github.com/Olzhas11/competition-platform/db"
	"github.com/Olzhas11/competition-platform/handlers"
	"github.com/Olzhas11/competition-platform/live"
	"github.com/Olzhas11/competition-platform/metrics"
	"github.com/Olzhas11/competition-platform/repositories"
	"github.com/Olzhas11/competition-platform/routes"
	"github.com/Olzhas11/competition-platform/services"
	"github.com/Olzhas11/competition-platform/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных и применение миграций
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if err := db.Migrate(dbConn); err != nil {
		logger.Error("failed to apply database migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Инициализация загрузчика файлов (Cloudflare R2)
	cloudflareUploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2AccessKeySecret,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	// Реестр метрик
	promRegistry := prometheus.NewRegistry()
	appMetrics := metrics.New(promRegistry)

	// Инициализация WebSocket Hub
	wsHub := live.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	txManager := repositories.NewSQLTxManager(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	competitionRepo := repositories.NewPostgresCompetitionRepository(dbConn)
	phaseRepo := repositories.NewPostgresPhaseRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	selfScoreRepo := repositories.NewPostgresSelfScoreRepository(dbConn)
	ratingRepo := repositories.NewPostgresRatingRepository(dbConn)
	voteRepo := repositories.NewPostgresCaptainVoteRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	authService := services.NewAuthService(userRepo)
	competitionService := services.NewCompetitionService(competitionRepo, cloudflareUploader, logger)
	phaseService := services.NewPhaseService(phaseRepo, competitionRepo, nil, logger)
	teamService := services.NewTeamService(teamRepo, userRepo, competitionRepo)
	registrationService := services.NewRegistrationService(registrationRepo, competitionRepo, userRepo)
	scoringService := services.NewScoringService(selfScoreRepo, ratingRepo, registrationRepo, phaseRepo, appMetrics, nil, logger)
	votingService := services.NewVotingService(voteRepo, teamRepo, userRepo, phaseRepo, txManager, wsHub, appMetrics, nil, logger)
	removalService := services.NewRemovalService(txManager, registrationRepo, selfScoreRepo, ratingRepo, voteRepo, teamRepo, appMetrics, logger)
	logger.Info("Services initialized")

	// Инициализация обработчиков HTTP
	h := routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService, cfg.JWTSecretKey),
		Competition:  handlers.NewCompetitionHandler(competitionService),
		Phase:        handlers.NewPhaseHandler(phaseService),
		Team:         handlers.NewTeamHandler(teamService),
		Scoring:      handlers.NewScoringHandler(scoringService),
		Voting:       handlers.NewVotingHandler(votingService),
		Registration: handlers.NewRegistrationHandler(registrationService, removalService),
		WebSocket:    handlers.NewWebSocketHandler(wsHub, votingService, logger),
	}
	router := routes.SetupRoutes(h, []byte(cfg.JWTSecretKey), promRegistry)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(rootCtx)

	// Планировщик автоматического обновления статусов фаз
	g.Go(func() error {
		ticker := time.NewTicker(cfg.PhaseRefreshInterval)
		defer ticker.Stop()
		logger.Info("phase status scheduler started", slog.Duration("interval", cfg.PhaseRefreshInterval))

		// Первый прогон сразу при старте, дальше по тикеру.
		if err := phaseService.RefreshPhaseStatuses(gCtx); err != nil {
			logger.Error("scheduler: initial run failed", slog.Any("error", err))
		}

		for {
			select {
			case <-gCtx.Done():
				logger.Info("phase status scheduler stopped")
				return nil
			case <-ticker.C:
				if err := phaseService.RefreshPhaseStatuses(gCtx); err != nil {
					logger.Error("scheduler: periodic run failed", slog.Any("error", err))
				}
			}
		}
	})

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("application terminated with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}
