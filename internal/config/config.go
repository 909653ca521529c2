package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dnmos/weba/internal/period"
	"github.com/spf13/viper"
)

// Environment keys. The names match the variables the extraction scripts
// have always read so existing .env files keep working.
const (
	KeyAPIToken     = "TRAVELPAYOUTS_API_TOKEN"
	KeyDataPath     = "PROCESSED_DATA_PATH"
	KeyMinPeriod    = "MIN_YEAR_MONTH"
	KeyBaseURL      = "TPO_BASE_URL"
	KeyCurrency     = "TPO_CURRENCY"
	KeyActionsLimit = "TPO_ACTIONS_LIMIT"
	KeyDetailDelay  = "TPO_DETAIL_DELAY"
	KeyHTTPTimeout  = "TPO_HTTP_TIMEOUT"
	KeyLogLevel     = "LOG_LEVEL"
	KeyBucket       = "GCS_BUCKET"
	KeyBQProject    = "BQ_PROJECT"
	KeyBQDataset    = "BQ_DATASET"
	KeyAPIPort      = "API_PORT"
)

// Defaults for optional settings.
const (
	DefaultDataPath     = "data/tpo_api_data"
	DefaultMinPeriod    = "201801"
	DefaultBaseURL      = "https://api.travelpayouts.com"
	DefaultCurrency     = "usd"
	DefaultActionsLimit = 300
	DefaultDetailDelay  = 100 * time.Millisecond
	DefaultLogLevel     = "info"
	DefaultBQDataset    = "tpo"
	DefaultAPIPort      = "8080"
)

// ErrMissingToken is returned by Validate when no API token is configured.
var ErrMissingToken = errors.New("TRAVELPAYOUTS_API_TOKEN is required")

// Config holds everything the pipeline components need. It is built once at
// startup and passed explicitly into each constructor.
type Config struct {
	APIToken  string
	DataPath  string
	MinPeriod period.Period

	TPO     TPOConfig
	Storage StorageConfig

	LogLevel string
	APIPort  string
}

// TPOConfig holds Travelpayouts API client settings.
type TPOConfig struct {
	BaseURL      string
	Currency     string
	ActionsLimit int
	DetailDelay  time.Duration
	HTTPTimeout  time.Duration // zero means the transport default (no timeout)
}

// StorageConfig holds settings for the optional publishing commands.
type StorageConfig struct {
	Bucket    string
	BQProject string
	BQDataset string
}

// Load reads configuration from the environment, falling back to a .env file
// in dir when present, and finally to defaults.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetDefault(KeyDataPath, DefaultDataPath)
	v.SetDefault(KeyMinPeriod, DefaultMinPeriod)
	v.SetDefault(KeyBaseURL, DefaultBaseURL)
	v.SetDefault(KeyCurrency, DefaultCurrency)
	v.SetDefault(KeyActionsLimit, DefaultActionsLimit)
	v.SetDefault(KeyDetailDelay, DefaultDetailDelay)
	v.SetDefault(KeyHTTPTimeout, time.Duration(0))
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyBQDataset, DefaultBQDataset)
	v.SetDefault(KeyAPIPort, DefaultAPIPort)

	// Keys without a default still need binding so AutomaticEnv sees them.
	for _, key := range []string{KeyAPIToken, KeyBucket, KeyBQProject} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", envFile, err)
		}
	}

	minPeriod, err := period.Parse(v.GetString(KeyMinPeriod))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", KeyMinPeriod, err)
	}

	return &Config{
		APIToken:  v.GetString(KeyAPIToken),
		DataPath:  v.GetString(KeyDataPath),
		MinPeriod: minPeriod,
		TPO: TPOConfig{
			BaseURL:      v.GetString(KeyBaseURL),
			Currency:     v.GetString(KeyCurrency),
			ActionsLimit: v.GetInt(KeyActionsLimit),
			DetailDelay:  v.GetDuration(KeyDetailDelay),
			HTTPTimeout:  v.GetDuration(KeyHTTPTimeout),
		},
		Storage: StorageConfig{
			Bucket:    v.GetString(KeyBucket),
			BQProject: v.GetString(KeyBQProject),
			BQDataset: v.GetString(KeyBQDataset),
		},
		LogLevel: v.GetString(KeyLogLevel),
		APIPort:  v.GetString(KeyAPIPort),
	}, nil
}

// Validate checks the settings every extraction command depends on.
func (c *Config) Validate() error {
	if c.APIToken == "" {
		return ErrMissingToken
	}
	if c.DataPath == "" {
		return fmt.Errorf("%s must not be empty", KeyDataPath)
	}
	if c.TPO.ActionsLimit <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeyActionsLimit, c.TPO.ActionsLimit)
	}
	if c.TPO.DetailDelay < 0 {
		return fmt.Errorf("%s must not be negative", KeyDetailDelay)
	}
	return nil
}
