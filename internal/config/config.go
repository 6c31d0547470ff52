package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Git       GitConfig       `yaml:"git" mapstructure:"git"`
	DOI       DOIConfig       `yaml:"doi" mapstructure:"doi"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Classify  ClassifyConfig  `yaml:"classify" mapstructure:"classify"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Lock      LockConfig      `yaml:"lock" mapstructure:"lock"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CatalogConfig points at the catalog settings file.
type CatalogConfig struct {
	SettingsFile string `yaml:"settings_file" mapstructure:"settings_file"`
}

// OutputConfig configures where dated run directories are created.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// GitConfig configures the history extractor.
type GitConfig struct {
	Binary        string `yaml:"binary" mapstructure:"binary"`
	ScratchDir    string `yaml:"scratch_dir" mapstructure:"scratch_dir"`
	Depth         int    `yaml:"depth" mapstructure:"depth"`
	CloneAttempts int    `yaml:"clone_attempts" mapstructure:"clone_attempts"`
}

// DOIConfig configures the scholarly-record lookups.
type DOIConfig struct {
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ReconcileConfig selects the date priority.
type ReconcileConfig struct {
	UseDOIPriority bool `yaml:"use_doi_priority" mapstructure:"use_doi_priority"`
}

// ClassifyConfig configures the month grid.
type ClassifyConfig struct {
	MaxMonth        int  `yaml:"max_month" mapstructure:"max_month"`
	HighValueMonth  int  `yaml:"high_value_month" mapstructure:"high_value_month"`
	ComputeRelative bool `yaml:"compute_relative" mapstructure:"compute_relative"`
}

// StoreConfig configures the SQLite run ledger.
type StoreConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	LedgerPath string `yaml:"ledger_path" mapstructure:"ledger_path"`
}

// LockConfig configures the output directory writer lock.
type LockConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RSENG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("catalog.settings_file", "")
	v.SetDefault("output.dir", "./data")
	v.SetDefault("git.binary", "git")
	v.SetDefault("git.scratch_dir", "")
	v.SetDefault("git.depth", 1)
	v.SetDefault("git.clone_attempts", 2)
	v.SetDefault("doi.base_url", "https://zenodo.org/api/records")
	v.SetDefault("doi.timeout_secs", 30)
	v.SetDefault("doi.max_retries", 3)
	v.SetDefault("doi.rate_per_sec", 1.0)
	v.SetDefault("doi.user_agent", "rseng-activity/1.0")
	v.SetDefault("doi.breaker_threshold", 5)
	v.SetDefault("doi.breaker_reset_secs", 60)
	v.SetDefault("reconcile.use_doi_priority", true)
	v.SetDefault("classify.max_month", 40)
	v.SetDefault("classify.high_value_month", 24)
	v.SetDefault("classify.compute_relative", true)
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.ledger_path", "")
	v.SetDefault("lock.enabled", true)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Git.Depth < 1 {
		return eris.Errorf("config: git.depth must be >= 1 (got %d)", c.Git.Depth)
	}
	if c.Classify.MaxMonth < 0 {
		return eris.Errorf("config: classify.max_month must be >= 0 (got %d)", c.Classify.MaxMonth)
	}
	if c.Classify.HighValueMonth < 0 || c.Classify.HighValueMonth > c.Classify.MaxMonth {
		return eris.Errorf("config: classify.high_value_month must be within 0..%d (got %d)",
			c.Classify.MaxMonth, c.Classify.HighValueMonth)
	}
	if c.DOI.RatePerSec <= 0 {
		return eris.Errorf("config: doi.rate_per_sec must be positive (got %v)", c.DOI.RatePerSec)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
