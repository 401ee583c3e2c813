package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/duelforge/arena-server-go/internal/config"
	"github.com/duelforge/arena-server-go/internal/matchmaker"
	"github.com/duelforge/arena-server-go/internal/repository"
	"github.com/duelforge/arena-server-go/internal/room"
	"github.com/duelforge/arena-server-go/internal/server"
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

	logger.Info("starting arena server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	db, err := repository.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	stats := db.Stats()
	logger.Info("database connection pool initialized",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("idle_conns", stats.IdleConns()),
	)

	logRepo := repository.NewGameLogRepository(db, logger)
	catalogRepo := repository.NewCatalogRepository(db, logger)

	roomMgr := room.NewManager(logRepo, logger)
	logger.Info("room manager initialized")

	roomCfg := room.Config{
		OpeningHandSize: cfg.Game.OpeningHandSize,
		StartingLife:    cfg.Game.StartingLife,
		PhaseTimeout:    cfg.Game.PhaseTimeout,
	}
	matches := matchmaker.New(roomMgr, roomCfg, logger)
	logger.Info("matchmaker initialized",
		zap.Int("opening_hand", roomCfg.OpeningHandSize),
		zap.Int("starting_life", roomCfg.StartingLife),
		zap.Duration("phase_timeout", roomCfg.PhaseTimeout),
	)

	gateway := server.NewGateway(cfg, matches, roomMgr, catalogRepo, logger)

	errCh := make(chan error, 1)
	go func() {
		if serveErr := gateway.Serve(ctx); serveErr != nil {
			errCh <- serveErr
		}
	}()

	logger.Info("arena server initialized",
		zap.String("version", version),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("gateway error", zap.Error(err))
	}

	logger.Info("shutting down gracefully...")
	cancel()

	logger.Info("arena server stopped",
		zap.Int("rooms_closed", roomMgr.CloseAll()),
	)
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

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
