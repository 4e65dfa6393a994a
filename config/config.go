package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the immutable process-wide configuration, built once at startup
// and passed explicitly into every component constructor.
type Config struct {
	ChainConfig     ChainConfig     `json:"chain"`
	TradingConfig   TradingConfig   `json:"trading"`
	DiscoveryConfig DiscoveryConfig `json:"discovery"`
	RiskConfig      RiskConfig      `json:"risk"`
	RedisConfig     RedisConfig     `json:"redis"`
	DatabaseConfig  DatabaseConfig  `json:"database"`
	APIConfig       APIConfig       `json:"api"`
	LoggingConfig   LoggingConfig   `json:"logging"`
}

// ChainConfig selects the chain and the data directory for persisted state.
type ChainConfig struct {
	SelectedChain       string `json:"selected_chain"`        // key into the supported-chains file
	SupportedChainsFile string `json:"supported_chains_file"` // JSON registry of chains
	DataDir             string `json:"data_dir"`              // watchlist/monitor/balance state files
	WalletPrivateKey    string `json:"-"`                     // env only, never serialized
}

// TradingConfig drives the trade lifecycle state machine.
type TradingConfig struct {
	DemoMode                bool    `json:"demo_mode"`                 // simulated ledger instead of real swaps
	ResetUserData           bool    `json:"reset_user_data"`           // reseed demo balances on startup
	TradeAmountPercentage   float64 `json:"trade_amount_percentage"`   // fraction of native balance per buy
	ProfitMargin            float64 `json:"profit_margin"`             // target margin over break-even
	PriceIncreaseThreshold  float64 `json:"price_increase_threshold"`  // ratio > 1, e.g. 1.0025
	PriceDecreaseThreshold  float64 `json:"price_decrease_threshold"`  // ratio < 1, e.g. 0.95
	VolumeIncreaseThreshold float64 `json:"volume_increase_threshold"` // pool volume growth factor
	MonitorTimeframe        int     `json:"monitor_timeframe"`         // trend observation window, minutes
	MaxWatchlistTokens      int     `json:"max_watchlist_tokens"`
	MonitorTokenLimit       int     `json:"monitor_token_limit"` // max concurrently held positions
	GasCostTradeThreshold   float64 `json:"gas_cost_trade_threshold"`
	MaxConcurrentChecks     int     `json:"max_concurrent_checks"` // trend-check semaphore cap
	CycleInterval           int     `json:"cycle_interval"`        // seconds between trading cycles
}

// DiscoveryConfig bounds the new-pool subgraph queries.
type DiscoveryConfig struct {
	PastTimeHours   int     `json:"past_time_hours"` // max pool age
	MinLiquidityUSD float64 `json:"min_liquidity_usd"`
	MaxLiquidityUSD float64 `json:"max_liquidity_usd"`
	MinVolumeUSD    float64 `json:"min_volume_usd"`
}

// RiskConfig controls the scam-score screen.
type RiskConfig struct {
	RatingThreshold  int    `json:"rating_threshold"` // minimum passing score, 0-100
	ProviderURL      string `json:"provider_url"`     // score service base URL
	CacheFile        string `json:"cache_file"`
	CacheMaxAgeHours int    `json:"cache_max_age_hours"` // re-check pending/failed scores after this
	MaxRetries       int    `json:"max_retries"`         // blacklist after this many quote failures
}

// RedisConfig configures the optional risk-score cache backend.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DatabaseConfig configures the optional trade-history store.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// APIConfig configures the read-only status API.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen"`
}

type LoggingConfig struct {
	Level   string `json:"level"`   // debug, info, warn, error
	Console bool   `json:"console"` // human-readable console writer instead of JSON
}

// Load reads the config file (CONFIG_FILE env or config.json) and applies
// environment overrides for secrets and connection endpoints.
func Load() (*Config, error) {
	filename := getEnvOrDefault("CONFIG_FILE", "config.json")

	cfg, err := loadFromFile(filename)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.ChainConfig.SelectedChain = getEnvOrDefault("SELECTED_CHAIN", cfg.ChainConfig.SelectedChain)
	cfg.ChainConfig.SupportedChainsFile = getEnvOrDefault("SUPPORTED_CHAINS_FILE", cfg.ChainConfig.SupportedChainsFile)
	cfg.ChainConfig.DataDir = getEnvOrDefault("DATA_DIR", cfg.ChainConfig.DataDir)
	cfg.ChainConfig.WalletPrivateKey = os.Getenv("WALLET_PRIVATE_KEY")

	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)

	cfg.RiskConfig.ProviderURL = getEnvOrDefault("RISK_PROVIDER_URL", cfg.RiskConfig.ProviderURL)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
}

func (c *Config) validate() error {
	if c.ChainConfig.SelectedChain == "" {
		return fmt.Errorf("chain.selected_chain is required")
	}
	if c.TradingConfig.PriceIncreaseThreshold <= 1 {
		return fmt.Errorf("trading.price_increase_threshold must be greater than 1")
	}
	if c.TradingConfig.PriceDecreaseThreshold <= 0 || c.TradingConfig.PriceDecreaseThreshold >= 1 {
		return fmt.Errorf("trading.price_decrease_threshold must be between 0 and 1")
	}
	if c.TradingConfig.TradeAmountPercentage <= 0 || c.TradingConfig.TradeAmountPercentage > 1 {
		return fmt.Errorf("trading.trade_amount_percentage must be between 0 and 1")
	}
	if c.TradingConfig.MaxWatchlistTokens <= 0 {
		return fmt.Errorf("trading.max_watchlist_tokens must be positive")
	}
	return nil
}

// CycleDuration returns the trading cycle interval as a duration.
func (c *Config) CycleDuration() time.Duration {
	if c.TradingConfig.CycleInterval <= 0 {
		return time.Minute
	}
	return time.Duration(c.TradingConfig.CycleInterval) * time.Second
}

// MonitorWindow returns the trend observation window as a duration.
func (c *Config) MonitorWindow() time.Duration {
	return time.Duration(c.TradingConfig.MonitorTimeframe) * time.Minute
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file with demo-mode
// defaults.
func GenerateSampleConfig(filename string) error {
	config := Config{
		ChainConfig: ChainConfig{
			SelectedChain:       "ethereum",
			SupportedChainsFile: "data/supported_chains.json",
			DataDir:             "data",
		},
		TradingConfig: TradingConfig{
			DemoMode:                true,
			ResetUserData:           true,
			TradeAmountPercentage:   0.06,
			ProfitMargin:            0.01,
			PriceIncreaseThreshold:  1.0025,
			PriceDecreaseThreshold:  0.95,
			VolumeIncreaseThreshold: 1.0,
			MonitorTimeframe:        15,
			MaxWatchlistTokens:      10,
			MonitorTokenLimit:       5,
			GasCostTradeThreshold:   0.25,
			MaxConcurrentChecks:     20,
			CycleInterval:           60,
		},
		DiscoveryConfig: DiscoveryConfig{
			PastTimeHours:   3,
			MinLiquidityUSD: 1,
			MaxLiquidityUSD: 100000,
			MinVolumeUSD:    5000,
		},
		RiskConfig: RiskConfig{
			RatingThreshold:  80,
			CacheFile:        "data/risk_score_cache.json",
			CacheMaxAgeHours: 24,
			MaxRetries:       5,
		},
		RedisConfig: RedisConfig{
			Enabled:  false,
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		DatabaseConfig: DatabaseConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		APIConfig: APIConfig{
			Enabled: true,
			Listen:  ":8080",
		},
		LoggingConfig: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
