package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files, environment
// variables and command-line flags.
type Config struct {
	AppName   string `mapstructure:"app_name"`
	Env       string `mapstructure:"app_env"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	ScholarUserID  string `mapstructure:"scholar_user_id"`
	ScholarURL     string `mapstructure:"scholar_url"`
	ScholarBaseURL string `mapstructure:"scholar_base_url"`

	LookupBackend        string        `mapstructure:"lookup_backend"`
	PythonBin            string        `mapstructure:"python_bin"`
	LookupTimeoutSeconds int64         `mapstructure:"lookup_timeout_seconds"`
	LookupTimeout        time.Duration `mapstructure:"-"`
	LookupLimit          int           `mapstructure:"lookup_limit"`
	S2AuthorID           string        `mapstructure:"s2_author_id"`
	S2APIKey             string        `mapstructure:"s2_api_key"`
	S2BaseURL            string        `mapstructure:"s2_base_url"`
	S2RequestsPerSecond  float64       `mapstructure:"s2_requests_per_second"`

	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`
	ScrapeDelayMs         int64         `mapstructure:"scrape_delay_ms"`
	ScrapeDelay           time.Duration `mapstructure:"-"`

	DocumentPath      string `mapstructure:"document_path"`
	MaxPublications   int    `mapstructure:"max_publications"`
	DryRun            bool   `mapstructure:"dry_run"`
	ImpactFactorsFile string `mapstructure:"impact_factors_file"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	PublishersFile string `mapstructure:"publishers_file"`
}

const (
	DefaultScholarUserID = "FDrOozwAAAAJ"
	DefaultDocumentPath  = "index.html"
	DefaultMaxPubs       = 10
)

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith reads configuration into v, which may already carry bound flags.
func LoadWith(v *viper.Viper) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	SetDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults registers every known key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "pubsync")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("scholar_user_id", DefaultScholarUserID)
	v.SetDefault("scholar_url", "https://scholar.google.com/citations?user="+DefaultScholarUserID+"&hl=zh-TW")
	v.SetDefault("scholar_base_url", "https://scholar.google.com")

	v.SetDefault("lookup_backend", "scholarly")
	v.SetDefault("python_bin", "python3")
	v.SetDefault("lookup_timeout_seconds", 300)
	v.SetDefault("lookup_limit", 20)
	v.SetDefault("s2_author_id", "")
	v.SetDefault("s2_api_key", "")
	v.SetDefault("s2_base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("s2_requests_per_second", 1.0)

	v.SetDefault("request_timeout_seconds", 30)
	v.SetDefault("scrape_delay_ms", 2000)

	v.SetDefault("document_path", DefaultDocumentPath)
	v.SetDefault("max_publications", DefaultMaxPubs)
	v.SetDefault("dry_run", false)
	v.SetDefault("impact_factors_file", "")

	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/publications.db")
	v.SetDefault("storage_ttl_seconds", int64((365*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((24*time.Hour)/time.Second))

	v.SetDefault("publishers_file", "")
}

func (cfg *Config) finalize() error {
	cfg.LookupBackend = strings.ToLower(strings.TrimSpace(cfg.LookupBackend))
	switch cfg.LookupBackend {
	case "scholarly", "semanticscholar", "none":
	default:
		return fmt.Errorf("invalid lookup_backend %q (expected scholarly, semanticscholar or none)", cfg.LookupBackend)
	}

	if strings.TrimSpace(cfg.ScholarURL) == "" {
		return fmt.Errorf("scholar_url is required")
	}
	if strings.TrimSpace(cfg.DocumentPath) == "" {
		return fmt.Errorf("document_path is required")
	}
	if cfg.MaxPublications <= 0 {
		return fmt.Errorf("invalid max_publications (must be positive)")
	}
	if cfg.LookupLimit <= 0 {
		return fmt.Errorf("invalid lookup_limit (must be positive)")
	}

	if cfg.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid request_timeout_seconds (must be positive seconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	if cfg.LookupTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid lookup_timeout_seconds (must be positive seconds)")
	}
	cfg.LookupTimeout = time.Duration(cfg.LookupTimeoutSeconds) * time.Second

	if cfg.ScrapeDelayMs < 0 {
		return fmt.Errorf("invalid scrape_delay_ms (must not be negative)")
	}
	cfg.ScrapeDelay = time.Duration(cfg.ScrapeDelayMs) * time.Millisecond

	if cfg.S2RequestsPerSecond <= 0 {
		return fmt.Errorf("invalid s2_requests_per_second (must be positive)")
	}

	if cfg.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return nil
}
