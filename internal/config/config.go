package config

import (
	"errors"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sells-group/vidauth/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	OpenRouter OpenRouterConfig `yaml:"openrouter" mapstructure:"openrouter"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Processing ProcessingConfig `yaml:"processing" mapstructure:"processing"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Pricing    []ModelPricing   `yaml:"pricing" mapstructure:"pricing"`
}

// OpenRouterConfig holds the upstream chat-completions settings.
type OpenRouterConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Referer     string `yaml:"referer" mapstructure:"referer"`
	Title       string `yaml:"title" mapstructure:"title"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host      string `yaml:"host" mapstructure:"host"`
	Port      int    `yaml:"port" mapstructure:"port"`
	Debug     bool   `yaml:"debug" mapstructure:"debug"`
	MaxBodyMB int    `yaml:"max_body_mb" mapstructure:"max_body_mb"`
}

// ProcessingConfig configures frame handling.
type ProcessingConfig struct {
	// MaxImageSize is the max frame dimension in pixels. Reserved for resizing;
	// frames are currently forwarded untouched.
	MaxImageSize int `yaml:"max_image_size" mapstructure:"max_image_size"`
	MaxBatchSize int `yaml:"max_batch_size" mapstructure:"max_batch_size"`
}

// LogConfig configures logging. When File is set, entries are also written
// as JSON to a size-rotated file.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Model  string  `yaml:"model" mapstructure:"model"`
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Timeout returns the outbound request timeout.
func (c OpenRouterConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// MaskedKey returns the API key reduced to its first 8 and last 4 characters,
// or "(not set)" when the key is too short to mask.
func (c OpenRouterConfig) MaskedKey() string {
	if len(c.Key) > 12 {
		return c.Key[:8] + "..." + c.Key[len(c.Key)-4:]
	}
	return "(not set)"
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MaxBodyBytes returns the request body cap in bytes.
func (c ServerConfig) MaxBodyBytes() int64 {
	return int64(c.MaxBodyMB) << 20
}

// Rates returns default model pricing overlaid with configured entries.
func (c *Config) Rates() cost.Rates {
	overrides := make(cost.Rates, len(c.Pricing))
	for _, p := range c.Pricing {
		overrides[p.Model] = cost.ModelRate{Input: p.Input, Output: p.Output}
	}
	return cost.Merge(overrides)
}

// legacyEnv maps config keys to the plain environment names the service has
// always honored alongside the VIDAUTH_ prefixed ones.
var legacyEnv = map[string]string{
	"openrouter.key":            "OPENROUTER_API_KEY",
	"openrouter.base_url":       "OPENROUTER_BASE_URL",
	"openrouter.model":          "OPENROUTER_MODEL",
	"server.host":               "HOST",
	"server.port":               "PORT",
	"server.debug":              "DEBUG",
	"processing.max_image_size": "MAX_IMAGE_SIZE",
}

// Load reads configuration from file and environment. A .env file in the
// working directory is loaded first; it never overrides variables already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VIDAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "VIDAUTH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("openrouter.key", "")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "google/gemini-2.0-flash-001")
	v.SetDefault("openrouter.timeout_secs", 60)
	v.SetDefault("openrouter.referer", "https://vidauth-detector.local")
	v.SetDefault("openrouter.title", "AI Video Authenticity Detector")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debug", true)
	v.SetDefault("server.max_body_mb", 64)
	v.SetDefault("processing.max_image_size", 1024)
	v.SetDefault("processing.max_batch_size", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)

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

// Validate checks the settings a command needs. mode is "serve" or "analyze".
// A missing API key is not an error: the detector answers in demo mode.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Server.MaxBodyMB <= 0 {
			errs = append(errs, "server.max_body_mb must be > 0")
		}
	case "analyze":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if u, err := url.Parse(c.OpenRouter.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "openrouter.base_url must be an absolute URL")
	}
	if c.OpenRouter.Model == "" {
		errs = append(errs, "openrouter.model is required")
	}
	if c.OpenRouter.TimeoutSecs <= 0 {
		errs = append(errs, "openrouter.timeout_secs must be > 0")
	}
	if c.Processing.MaxBatchSize < 1 {
		errs = append(errs, "processing.max_batch_size must be >= 1")
	}
	if c.Log.File != "" && (c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0) {
		errs = append(errs, "log rotation limits must be >= 0")
	}
	for _, p := range c.Pricing {
		if p.Model == "" || p.Input < 0 || p.Output < 0 {
			errs = append(errs, "pricing entries need a model and non-negative rates")
			break
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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

	var opts []zap.Option
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			zapCfg.Level,
		)
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
