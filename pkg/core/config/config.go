// Package config loads application configuration from config.yaml, the
// environment, and .env files, and owns global logger setup.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

// Config holds the full application configuration.
type Config struct {
	SEC      SECConfig      `yaml:"sec" mapstructure:"sec"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Fiscal   FiscalConfig   `yaml:"fiscal" mapstructure:"fiscal"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SECConfig identifies this client to EDGAR. The SEC requires a descriptive
// User-Agent with a working contact address on every request.
type SECConfig struct {
	Org   string `yaml:"org" mapstructure:"org"`
	Email string `yaml:"email" mapstructure:"email"`
}

// UserAgent builds the EDGAR User-Agent string from org and contact email.
func (s SECConfig) UserAgent() string {
	return strings.TrimSpace(s.Org + " " + s.Email)
}

// StorageConfig selects the artifact sink.
type StorageConfig struct {
	Driver          string `yaml:"driver" mapstructure:"driver"` // "local" or "gcs"
	LocalDir        string `yaml:"local_dir" mapstructure:"local_dir"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	ProjectID       string `yaml:"project_id" mapstructure:"project_id"`
	Collection      string `yaml:"collection" mapstructure:"collection"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	ReportDir       string `yaml:"report_dir" mapstructure:"report_dir"`
}

// DatabaseConfig configures the optional Postgres metadata mirror.
type DatabaseConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// FiscalConfig points at the optional company calendar override file.
type FiscalConfig struct {
	OverridesFile string `yaml:"overrides_file" mapstructure:"overrides_file"`
}

// PipelineConfig tunes the ingest run.
type PipelineConfig struct {
	Workers     int `yaml:"workers" mapstructure:"workers"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml, and the environment.
// Environment variables use the NATIVELLM_ prefix with underscores, e.g.
// NATIVELLM_SEC_EMAIL or NATIVELLM_STORAGE_BUCKET.
func Load() (*Config, error) {
	// .env is a developer convenience; absence is not an error.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("NATIVELLM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("sec.org", "NativeLLM Research")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.collection", "filings")
	v.SetDefault("storage.report_dir", ".")
	v.SetDefault("pipeline.workers", 3)
	v.SetDefault("pipeline.timeout_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errs.Wrap(errs.KindConfig, eris.Wrap(err, "config: read file"))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.KindConfig, eris.Wrap(err, "config: unmarshal"))
	}
	return &cfg, nil
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
		return errs.Wrap(errs.KindConfig, eris.Wrap(err, "config: parse log level"))
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return errs.Wrap(errs.KindConfig, eris.Wrap(err, "config: build logger"))
	}
	zap.ReplaceGlobals(logger)
	return nil
}
