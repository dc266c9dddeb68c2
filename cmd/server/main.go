package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/A2152225/MTGEDH-sub013/internal/cards"
	"github.com/A2152225/MTGEDH-sub013/internal/config"
	"github.com/A2152225/MTGEDH-sub013/internal/game"
	"github.com/A2152225/MTGEDH-sub013/internal/gateway"
	"github.com/A2152225/MTGEDH-sub013/internal/repository"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting EDH rules server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// The event store is optional; without a database URL the server
	// keeps event logs in memory only.
	var sink game.EventSink
	if cfg.Database.URL != "" {
		db, dbErr := repository.NewDB(ctx, cfg.Database, logger)
		if dbErr != nil {
			logger.Fatal("failed to connect to database", zap.Error(dbErr))
		}
		defer db.Close()

		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)

		store := repository.NewEventStore(db, logger)
		if schemaErr := store.EnsureSchema(ctx); schemaErr != nil {
			logger.Fatal("failed to prepare event schema", zap.Error(schemaErr))
		}
		sink = store
	} else {
		logger.Warn("no database configured, games will not survive a restart")
	}

	var (
		registry *cards.Registry
		decks    *cards.DeckFile
	)
	if cfg.Cards.RegistryPath != "" {
		registry, err = cards.LoadRegistry(cfg.Cards.RegistryPath)
		if err != nil {
			logger.Fatal("failed to load card registry", zap.Error(err))
		}
		logger.Info("card registry loaded",
			zap.String("path", cfg.Cards.RegistryPath),
			zap.Int("cards", registry.Len()),
		)
	}
	if cfg.Cards.DecksPath != "" {
		decks, err = cards.LoadDeckFile(cfg.Cards.DecksPath)
		if err != nil {
			logger.Fatal("failed to load decklists", zap.Error(err))
		}
		logger.Info("decklists loaded", zap.String("path", cfg.Cards.DecksPath))
	}

	engine := game.NewEngine(game.Options{
		Logger:               logger,
		Sink:                 sink,
		StartingLife:         cfg.Engine.StartingLife,
		DefaultStepTimeoutMs: int(cfg.Engine.StepTimeout.Milliseconds()),
		RollbackDepth:        cfg.Engine.RollbackDepth,
	})
	logger.Info("rules engine initialized",
		zap.Int("starting_life", cfg.Engine.StartingLife),
		zap.Duration("step_timeout", cfg.Engine.StepTimeout),
	)

	// Rehydrate persisted games so clients can reattach after a restart.
	if store, ok := sink.(*repository.EventStore); ok {
		ids, listErr := store.GameIDs(ctx)
		if listErr != nil {
			logger.Error("failed to list persisted games", zap.Error(listErr))
		}
		for _, id := range ids {
			if loadErr := engine.LoadGame(ctx, id); loadErr != nil {
				logger.Error("failed to load game", zap.String("game_id", id), zap.Error(loadErr))
				continue
			}
			logger.Info("game loaded from event log", zap.String("game_id", id))
		}
	}

	hub := gateway.NewHub(engine, logger)
	if registry != nil && decks != nil {
		hub.UseDecks(registry, decks)
	}
	go hub.Run(ctx)
	go hub.RunStepExpiry(ctx, time.Second)
	logger.Info("websocket hub initialized")

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS(cfg.Server.AllowedOrigins))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting websocket server", zap.String("address", cfg.Server.Addr()))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("websocket server error", zap.Error(serveErr))
		}
	}()

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}

	logger.Info("EDH rules server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if cfg.Development {
		zapCfg.Development = true
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
