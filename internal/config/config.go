package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SIEIMPORT_GCS_BUCKET.
const EnvPrefix = "SIEIMPORT"

// Store backends.
const (
	StoreBigQuery = "bigquery"
	StoreNotion   = "notion"
)

// Config holds application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	Notion   NotionConfig   `mapstructure:"notion"`
	Store    StoreConfig    `mapstructure:"store"`
	API      APIConfig      `mapstructure:"api"`
	Import   ImportConfig   `mapstructure:"import"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type BigQueryConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Dataset   string `mapstructure:"dataset"`
}

type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

// StoreConfig selects where imported periods are written.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

type APIConfig struct {
	Port           string        `mapstructure:"port"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second per client
	RateBurst      int           `mapstructure:"rate_burst"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

type ImportConfig struct {
	FiscalYear int `mapstructure:"fiscal_year"`
}

type JobsConfig struct {
	Workers    int `mapstructure:"workers"`
	BufferSize int `mapstructure:"buffer_size"`
}

// Load reads configuration from an optional .env file, an optional config
// file and SIEIMPORT_ environment variables, in increasing precedence.
// configFile may be empty.
func Load(configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("Load: reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("Load: reading config file %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("Load: unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("Load: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset", "finance")
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")
	v.SetDefault("store.backend", StoreBigQuery)
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.rate_limit", 10.0)
	v.SetDefault("api.rate_burst", 20)
	v.SetDefault("api.cache_ttl", 30*time.Minute)
	v.SetDefault("api.max_upload_bytes", 32<<20)
	v.SetDefault("import.fiscal_year", 0)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.buffer_size", 100)
}

// Validate checks values that have no sensible fallback.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case StoreBigQuery, StoreNotion:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be at least 1, got %d", c.Jobs.Workers)
	}
	if c.API.MaxUploadBytes <= 0 {
		return fmt.Errorf("api.max_upload_bytes must be positive, got %d", c.API.MaxUploadBytes)
	}
	return nil
}

// RequireBigQuery reports an error unless a BigQuery project is configured.
func (c Config) RequireBigQuery() error {
	if c.BigQuery.ProjectID == "" {
		return fmt.Errorf("bigquery.project_id is not set (%s_BIGQUERY_PROJECT_ID)", EnvPrefix)
	}
	return nil
}

// RequireNotion reports an error unless Notion credentials are configured.
func (c Config) RequireNotion() error {
	if c.Notion.Token == "" || c.Notion.DatabaseID == "" {
		return fmt.Errorf("notion.token and notion.database_id are required (%s_NOTION_TOKEN, %s_NOTION_DATABASE_ID)", EnvPrefix, EnvPrefix)
	}
	return nil
}
