package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Split modes
const (
	SplitGlobal  = "global"
	SplitPerCoin = "per_coin"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	RawDataPath    string   `env:"RAW_DATA_PATH" envDefault:"data/raw/crypto_all_combined.csv"`
	ProcessedDir   string   `env:"PROCESSED_DIR" envDefault:"data/processed"`
	TargetColumn   string   `env:"TARGET_COLUMN" envDefault:"Volatility_7d"`
	FeatureColumns []string `env:"FEATURE_COLUMNS" envSeparator:","` // empty means every numeric column
	TestSize       float64  `env:"TEST_SIZE" envDefault:"0.2"`
	SplitMode      string   `env:"SPLIT_MODE" envDefault:"global"`
	Workers        int      `env:"WORKERS" envDefault:"4"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	MetricsFile    string   `env:"METRICS_FILE"`
	DatabaseURL    string   `env:"DATABASE_URL"` // empty disables persistence

	// Market data download
	TwelveAPIKey   string        `env:"TWELVE_API_KEY"`
	Symbols        []string      `env:"SYMBOLS" envSeparator:"," envDefault:"BTC/USD,ETH/USD"`
	Interval       string        `env:"INTERVAL" envDefault:"1day"`
	HistoryDays    int           `env:"HISTORY_DAYS" envDefault:"365"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	RequestsPerSec int           `env:"REQUESTS_PER_SEC" envDefault:"5"`
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	cfg.FeatureColumns = compact(cfg.FeatureColumns)
	cfg.Symbols = compact(cfg.Symbols)

	return &cfg, nil
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks that values are usable by the pipeline
func (c *Config) Validate() error {
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return fmt.Errorf("%w: TEST_SIZE must be in (0, 1), got %v", ErrInvalidConfig, c.TestSize)
	}
	if c.SplitMode != SplitGlobal && c.SplitMode != SplitPerCoin {
		return fmt.Errorf("%w: SPLIT_MODE must be %q or %q, got %q", ErrInvalidConfig, SplitGlobal, SplitPerCoin, c.SplitMode)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: WORKERS must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.TargetColumn == "" {
		return fmt.Errorf("%w: TARGET_COLUMN is empty", ErrInvalidConfig)
	}
	return nil
}

// ProcessedPath returns a file path inside the processed directory
func (c *Config) ProcessedPath(name string) string {
	return filepath.Join(c.ProcessedDir, name)
}
