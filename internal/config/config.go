package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is built once at
// process start and passed explicitly into the orchestrator; nothing reads
// configuration ambiently after Load returns.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Sheets    SheetsConfig    `yaml:"sheets" mapstructure:"sheets"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds completion API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SheetsConfig holds the Google Sheets CRM store settings.
type SheetsConfig struct {
	CredentialsFile string  `yaml:"credentials_file" mapstructure:"credentials_file"`
	SpreadsheetID   string  `yaml:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	SheetName       string  `yaml:"sheet_name" mapstructure:"sheet_name"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
}

// PipelineConfig configures per-stage retry and timeout behavior.
type PipelineConfig struct {
	MaxRetries  int `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-external-call timeout as a duration.
func (p PipelineConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// StoreConfig configures the local run-history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("POSTCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("sheets.sheet_name", "Sales_CRM_Production")
	v.SetDefault("sheets.rate_limit_per_sec", 1.0)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.timeout_secs", 30)
	v.SetDefault("store.path", "postcall.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	return &cfg, nil
}

// Validate checks that required settings are present. Called once at startup,
// before any run begins. requireCRM is false for invocations that never touch
// the sheet (e.g. analyze --no-crm).
func (c *Config) Validate(requireCRM bool) error {
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required")
	}
	if c.Anthropic.Model == "" {
		return eris.New("config: anthropic.model is required")
	}
	if c.Pipeline.MaxRetries < 1 {
		return eris.New("config: pipeline.max_retries must be at least 1")
	}
	if c.Pipeline.TimeoutSecs < 1 {
		return eris.New("config: pipeline.timeout_secs must be at least 1")
	}
	if requireCRM {
		if c.Sheets.SpreadsheetID == "" {
			return eris.New("config: sheets.spreadsheet_id is required")
		}
		if c.Sheets.CredentialsFile == "" {
			return eris.New("config: sheets.credentials_file is required")
		}
		if c.Sheets.SheetName == "" {
			return eris.New("config: sheets.sheet_name is required")
		}
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
