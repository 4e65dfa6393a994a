package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dex-trading-bot/config"
	"dex-trading-bot/internal/analysis"
	"dex-trading-bot/internal/api"
	"dex-trading-bot/internal/bot"
	"dex-trading-bot/internal/chains"
	"dex-trading-bot/internal/database"
	"dex-trading-bot/internal/discovery"
	"dex-trading-bot/internal/ethereum"
	"dex-trading-bot/internal/evaluator"
	"dex-trading-bot/internal/events"
	"dex-trading-bot/internal/monitor"
	"dex-trading-bot/internal/oracle"
	"dex-trading-bot/internal/risk"
	"dex-trading-bot/internal/state"
	"dex-trading-bot/internal/status"
	"dex-trading-bot/internal/trader"
	"dex-trading-bot/internal/wallet"
	"dex-trading-bot/internal/watchlist"
)

func main() {
	// .env is optional, real deployments use the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := newLogger(cfg.LoggingConfig)
	logger.Info().Str("chain", cfg.ChainConfig.SelectedChain).
		Bool("demo", cfg.TradingConfig.DemoMode).Msg("Starting DEX trading bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, err := chains.LoadRegistry(cfg.ChainConfig.SupportedChainsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load supported chains")
	}
	chain, err := registry.Get(cfg.ChainConfig.SelectedChain)
	if err != nil {
		logger.Fatal().Err(err).Msg("Unknown chain selected")
	}

	client, err := ethereum.Dial(ctx, chain.RPCURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to RPC endpoint")
	}
	defer client.Close()

	eventBus := events.NewEventBus()

	// Optional trade history store.
	var tradeRepo *database.TradeRepository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Database migration failed")
		}
		tradeRepo = database.NewTradeRepository(db)
	}

	// Optional redis cache for risk scores.
	var rdb *redis.Client
	if cfg.RedisConfig.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis unreachable, falling back to file cache")
			rdb = nil
		}
	}

	dataDir := cfg.ChainConfig.DataDir

	ledger := wallet.NewLedger(
		filepath.Join(dataDir, "demo_balances.json"),
		chain, client, os.Getenv("WALLET_ADDRESS"),
		cfg.TradingConfig.DemoMode, cfg.TradingConfig.ResetUserData,
		logger,
	)

	var priceOracle oracle.PriceOracle = oracle.NewUniswapQuoter(client, chain.QuoterAddress, logger)
	market := oracle.NewMarket(priceOracle, chain.NativeTokenAddress)

	eval := evaluator.New(client, cfg.TradingConfig.ProfitMargin, logger)

	blacklist := risk.NewBlacklist(filepath.Join(dataDir, "token_blacklist.json"), chain.Name, cfg.RiskConfig.MaxRetries, logger)

	// The chain registry can carry a per-chain score service; the config
	// value overrides it.
	providerURL := cfg.RiskConfig.ProviderURL
	if providerURL == "" {
		providerURL = chain.RiskAPIURL
	}
	var provider risk.ScoreProvider
	if providerURL != "" {
		provider = risk.NewHTTPScoreProvider(providerURL, chain.ShortName)
	}
	screen := risk.NewScreen(risk.Config{
		RatingThreshold: cfg.RiskConfig.RatingThreshold,
		CacheFile:       cfg.RiskConfig.CacheFile,
		CacheMaxAge:     time.Duration(cfg.RiskConfig.CacheMaxAgeHours) * time.Hour,
	}, chain.Name, provider, rdb, logger)

	stablecoins := loadStablecoins(filepath.Join(dataDir, "stablecoins.json"), chain.Name, logger)
	disc := discovery.NewClient(chain, discovery.Config{
		PastTime:        time.Duration(cfg.DiscoveryConfig.PastTimeHours) * time.Hour,
		MinLiquidityUSD: cfg.DiscoveryConfig.MinLiquidityUSD,
		MaxLiquidityUSD: cfg.DiscoveryConfig.MaxLiquidityUSD,
		MinVolumeUSD:    cfg.DiscoveryConfig.MinVolumeUSD,
	}, stablecoins, blacklist, logger)

	checker := analysis.NewChecker(market, disc, analysis.Config{
		PriceIncreaseThreshold:  decimal.NewFromFloat(cfg.TradingConfig.PriceIncreaseThreshold),
		VolumeIncreaseThreshold: decimal.NewFromFloat(cfg.TradingConfig.VolumeIncreaseThreshold),
		Window:                  cfg.MonitorWindow(),
	}, logger)

	positions := monitor.New(filepath.Join(dataDir, "monitored_tokens.json"), chain.Name, cfg.TradingConfig.MonitorTokenLimit, eventBus, logger)
	wl := watchlist.New(filepath.Join(dataDir, "watchlist.json"), chain.Name, cfg.TradingConfig.MaxWatchlistTokens, eventBus, logger)

	statuses := status.NewManager(checker, screen, blacklist, positions, cfg.TradingConfig.MaxConcurrentChecks, logger)

	executor := trader.NewExecutor(chain.Name, market, ledger, eval, cfg.TradingConfig.GasCostTradeThreshold, positions, blacklist, eventBus, tradeRepo, logger)
	buys := trader.NewBuyHandler(wl, market, executor, positions, blacklist, cfg.TradingConfig.PriceDecreaseThreshold, logger)
	sells := trader.NewSellHandler(positions, market, executor, eval, ledger, blacklist, cfg.TradingConfig.PriceDecreaseThreshold, logger)
	controller := trader.NewController(wl, positions, ledger, buys, sells, cfg.TradingConfig.TradeAmountPercentage, logger)

	tradingBot := bot.New(disc, statuses, wl, positions, controller, eventBus, cfg.CycleDuration(), logger)

	if cfg.APIConfig.Enabled {
		server := api.NewServer(chain.Name, cfg.TradingConfig.DemoMode, tradingBot, wl, positions, ledger, tradeRepo, eventBus, logger)
		go func() {
			if err := server.Start(ctx, cfg.APIConfig.Listen); err != nil {
				logger.Error().Err(err).Msg("API server stopped")
			}
		}()
	}

	tradingBot.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	cancel()
	tradingBot.Stop()
	logger.Info().Msg("Shutdown complete")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// loadStablecoins reads the per-chain stablecoin exclusion list. A missing
// file just means nothing is excluded.
func loadStablecoins(path, chainName string, logger zerolog.Logger) []string {
	store := make(map[string][]string)
	if !state.NewFileStore(path, logger).Load(&store) {
		return nil
	}
	return store[chainName]
}
