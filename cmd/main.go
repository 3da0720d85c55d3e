package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Dosada05/studio-leaderboards/config"
	"github.com/Dosada05/studio-leaderboards/db"
	"github.com/Dosada05/studio-leaderboards/events"
	"github.com/Dosada05/studio-leaderboards/handlers"
	"github.com/Dosada05/studio-leaderboards/metrics"
	"github.com/Dosada05/studio-leaderboards/realtime"
	"github.com/Dosada05/studio-leaderboards/repositories"
	api "github.com/Dosada05/studio-leaderboards/routes"
	"github.com/Dosada05/studio-leaderboards/services"
	"github.com/Dosada05/studio-leaderboards/storage"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.Duration("scheduler_interval", cfg.SchedulerInterval),
		slog.Bool("archive_enabled", cfg.ArchiveEnabled()),
		slog.Bool("kafka_enabled", cfg.KafkaEnabled()))

	// Подключение к базе данных
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

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.DBMigrate {
		if err := db.Migrate(rootCtx, dbConn); err != nil {
			logger.Error("failed to migrate database", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("database schema applied")
	}

	m := metrics.New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)

	// Инициализация WebSocket Hub
	wsHub := realtime.NewHub(logger, cfg.CORSAllowedOrigins)
	go wsHub.Run(rootCtx)
	logger.Info("WebSocket Hub started")

	observers := []services.FinalizeObserver{wsHub}

	if cfg.KafkaEnabled() {
		publisher := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("failed to close kafka writer", slog.Any("error", err))
			}
		}()
		observers = append(observers, publisher)
		logger.Info("kafka publisher initialized", slog.String("topic", cfg.KafkaTopic))
	}

	if cfg.ArchiveEnabled() {
		store, err := storage.NewCloudflareR2Store(rootCtx, cfg.R2)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 store", slog.Any("error", err))
			os.Exit(1)
		}
		observers = append(observers, storage.NewSnapshotArchiver(store, logger))
		logger.Info("Cloudflare R2 snapshot archiver initialized")
	}

	// Инициализация репозиториев
	uow := repositories.NewSQLUnitOfWork(dbConn, nil)
	leaderboardRepo := repositories.NewPostgresLeaderboardRepository(dbConn)
	periodRepo := repositories.NewPostgresPeriodRepository(dbConn)
	entryRepo := repositories.NewPostgresEntryRepository(dbConn)
	winnerRepo := repositories.NewPostgresWinnerRepository(dbConn)
	logger.Info("repositories initialized")

	// Инициализация сервисов
	finalizerService := services.NewFinalizerService(uow, periodRepo, leaderboardRepo, entryRepo, winnerRepo, observers, m, logger, nil)
	periodService := services.NewPeriodService(uow, leaderboardRepo, periodRepo, finalizerService, m, logger)
	leaderboardService := services.NewLeaderboardService(leaderboardRepo, periodRepo, entryRepo, winnerRepo)
	scheduler := services.NewScheduler(leaderboardRepo, periodService, cfg.SchedulerActor, cfg.SchedulerParallelism, m, logger, nil)
	logger.Info("services initialized")

	// Инициализация обработчиков
	healthHandler := handlers.NewHealthHandler(dbConn)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService, periodService, nil)
	periodHandler := handlers.NewPeriodHandler(leaderboardService, finalizerService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, leaderboardService)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		[]byte(cfg.JWTSecretKey),
		cfg.CORSAllowedOrigins,
		m,
		healthHandler,
		leaderboardHandler,
		periodHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	var bg sync.WaitGroup
	bg.Add(1)
	go func() {
		defer bg.Done()
		scheduler.Start(rootCtx, cfg.SchedulerInterval)
	}()

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			exitCode = 1
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			exitCode = 1
		} else {
			logger.Info("server shutdown complete")
		}
	}

	// Останавливаем планировщик и hub до закрытия БД.
	stop()
	bg.Wait()
	logger.Info("application exited")

	if exitCode != 0 {
		// defer'ы выше не выполнятся после os.Exit, закрываем явно.
		_ = dbConn.Close()
		os.Exit(exitCode)
	}
}
