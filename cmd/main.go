package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"pingwatch/clients/discord"
	"pingwatch/config"
	"pingwatch/db"
	"pingwatch/handlers"
	"pingwatch/logging"
	"pingwatch/middleware"
	"pingwatch/services"
	"pingwatch/services/memberpings"
	"pingwatch/services/txmanager"
	"pingwatch/usecases/pings"
)

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	for _, warning := range cfg.Warnings {
		logger.Warn("⚠️ " + warning)
	}

	alertMiddleware := middleware.NewErrorAlertMiddleware(middleware.SlackAlertConfig{
		WebhookURL:  cfg.SlackAlertWebhookURL,
		Environment: cfg.Environment,
		AppName:     "pingwatch",
		LogsURL:     cfg.ServerLogsURL,
	}, logger)
	defer alertMiddleware.Wait()

	repo, txManager, closeStorage, err := setupStorage(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = alertMiddleware.WrapBackgroundTask("close storage", closeStorage)()
	}()

	memberPingsService := memberpings.NewMemberPingsService(repo, txManager, logger)

	session, err := handlers.NewDiscordSession(cfg.DiscordBotToken)
	if err != nil {
		return err
	}
	discordClient := discord.NewDiscordClient(session, logger)

	pingsUseCase := pings.NewPingsUseCase(
		discordClient,
		memberPingsService,
		cfg.Guilds.LogChannels(),
		cfg.Guilds.PingResponses,
		logger,
	)

	discordHandler := handlers.NewDiscordEventsHandler(
		session,
		pingsUseCase,
		cfg.Guilds,
		alertMiddleware,
		cfg.MaxConcurrentMessages,
		logger,
	)
	statsHandler := handlers.NewStatsHTTPHandler(pingsUseCase, cfg.Guilds, logger)

	router := mux.NewRouter()
	statsHandler.SetupEndpoints(router)

	allowedOrigins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           alertMiddleware.HTTPMiddleware(c.Handler(router)),
		ReadHeaderTimeout: 30 * time.Second,
	}

	if err := discordHandler.StartBot(); err != nil {
		return err
	}

	return handleGracefulShutdown(server, discordHandler, logger)
}

// setupStorage opens the configured counter store. The returned close func is always safe to call.
func setupStorage(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *zap.Logger,
) (services.MemberPingsRepository, services.TransactionManager, func() error, error) {
	if cfg.DatabaseDriver == db.DriverMemory {
		logger.Warn("⚠️ Using in-memory storage, counters are lost on restart")
		return db.NewInMemoryMemberPingsRepository(), txmanager.PassthroughTransactionManager{}, func() error { return nil }, nil
	}

	dbConn, err := db.NewConnection(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, cfg.DatabaseSchema, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	closeDB := func() error {
		if err := dbConn.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		logger.Info("database closed")
		return nil
	}
	repo := db.NewSQLMemberPingsRepository(dbConn, cfg.DatabaseSchema)
	return repo, txmanager.NewTransactionManager(dbConn, logger), closeDB, nil
}

func handleGracefulShutdown(server *http.Server, discordHandler *handlers.DiscordEventsHandler, logger *zap.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("✅ Stats API listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-stop:
		logger.Info("🛑 Shutdown signal received, cleaning up...")
	case runErr = <-serverErr:
		logger.Error("❌ Server error", zap.Error(runErr))
	}

	// Stop taking Discord events and let in-flight reconciliations finish before storage closes
	discordHandler.StopBot()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("❌ Server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("✅ Server stopped gracefully")
	return runErr
}
