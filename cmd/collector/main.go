package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/onchainbill/collector/internal/adapters/chain"
	"github.com/onchainbill/collector/internal/adapters/postgres"
	"github.com/onchainbill/collector/internal/config"
	cronHandler "github.com/onchainbill/collector/internal/handlers/cron"
	"github.com/onchainbill/collector/internal/services/collection"
	"github.com/onchainbill/collector/pkg/logging"
	"github.com/onchainbill/collector/pkg/observability"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		defer bootstrap.Sync()
		bootstrap.Fatal("Invalid configuration", zap.Error(err))
	}

	logger := initLogger(cfg.Logger)
	defer logger.Sync()

	logger.Info("Starting subscription collector",
		zap.String("version", "0.1.0"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Resolve secrets before anything connects
	secretManager := initSecretManager(ctx, cfg, logger)

	if cfg.Secrets.DBPasswordSecretPath != "" {
		if secretManager == nil {
			logger.Fatal("DB_PASSWORD_SECRET_PATH set but no secret manager configured")
		}
		secret, err := secretManager.GetSecret(ctx, cfg.Secrets.DBPasswordSecretPath)
		if err != nil {
			logger.Fatal("Failed to fetch database password", zap.Error(err))
		}
		cfg.Database.Password = secret.Value
	}

	keyHex := cfg.Collector.OperatingKey
	if cfg.Collector.OperatingKeySecretPath != "" {
		secret, err := secretManager.GetSecret(ctx, cfg.Collector.OperatingKeySecretPath)
		if err != nil {
			logger.Fatal("Failed to fetch operating key", zap.Error(err))
		}
		keyHex = secret.Value
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		logger.Fatal("Invalid operating key", zap.Error(err))
	}

	// Ledger connection pool
	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	// Chain RPC connection
	ethClient, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		logger.Fatal("Failed to connect to chain RPC", zap.Error(err))
	}
	defer ethClient.Close()

	appLogger := logging.NewZapLogger(logger)

	chainClient, err := chain.NewClient(ethClient, key, chain.Config{
		ChainID:             big.NewInt(cfg.Chain.ChainID),
		DelegationManager:   common.HexToAddress(cfg.Chain.DelegationManager),
		SubscriptionManager: common.HexToAddress(cfg.Chain.SubscriptionManager),
		ReceiptTimeout:      cfg.Chain.ReceiptTimeout,
	}, appLogger)
	if err != nil {
		logger.Fatal("Failed to initialize chain client", zap.Error(err))
	}

	logger.Info("Chain client initialized",
		zap.Int64("chain_id", cfg.Chain.ChainID),
		zap.String("collector_address", chainClient.CollectorAddress().Hex()),
		zap.String("subscription_manager", cfg.Chain.SubscriptionManager),
	)

	// Wire the collection pipeline
	dbExec := postgres.NewDBExecutor(dbPool)
	subRepo := postgres.NewSubscriptionRepository(dbExec, cfg.Chain.SubscriptionManager)
	payRepo := postgres.NewPaymentRepository(dbExec)

	reconciler := collection.NewReconciler(dbExec, subRepo, payRepo, appLogger)
	executor := collection.NewExecutor(
		chainClient,
		chainClient.Codec(),
		reconciler,
		common.HexToAddress(cfg.Chain.SubscriptionManager),
		appLogger,
	)
	scanner := collection.NewScanner(dbExec, subRepo, cfg.Collector.BatchSize, cfg.Collector.BacklogMultiple, appLogger)
	runner := collection.NewRunner(
		scanner,
		executor,
		cfg.Collector.BatchSize,
		cfg.Collector.PollInterval,
		cfg.Collector.ErrorBackoff,
		appLogger,
	)

	// Ops HTTP server: metrics, health, cron trigger
	healthChecker := observability.NewHealthChecker(dbPool, func(ctx context.Context) error {
		_, err := ethClient.ChainID(ctx)
		return err
	})

	collectionHandler := cronHandler.NewCollectionHandler(runner, dbExec, payRepo, logger, cfg.Server.CronSecret)
	metricsServer := observability.StartMetricsServer(
		strconv.Itoa(cfg.Server.MetricsPort),
		healthChecker,
		func(mux *http.ServeMux) {
			mux.HandleFunc("/cron/run-collection", collectionHandler.RunCollection)
			mux.HandleFunc("/cron/health", collectionHandler.HealthCheck)
			mux.HandleFunc("/cron/stats", collectionHandler.Stats)
		},
	)
	defer observability.ShutdownMetricsServer(metricsServer)

	logger.Info("Ops server listening",
		zap.Int("port", cfg.Server.MetricsPort),
	)

	// Run the collection loop until the process is signalled
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Collection runner stopped", zap.Error(err))
	}

	logger.Info("Shutting down")
}

// initLogger builds the process logger from LOG_LEVEL and LOG_DEVELOPMENT.
func initLogger(cfg config.LoggerConfig) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, _ := zapCfg.Build()
	return logger
}

// initDatabase initializes the PostgreSQL connection pool
func initDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
