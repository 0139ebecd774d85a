// Package config loads application configuration from file and environment
// and initializes the global logger.
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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	YouTube   YouTubeConfig   `yaml:"youtube" mapstructure:"youtube"`
	VideoAI   VideoAIConfig   `yaml:"video_ai" mapstructure:"video_ai"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Preflight PreflightConfig `yaml:"preflight" mapstructure:"preflight"`
	Video     VideoConfig     `yaml:"video" mapstructure:"video"`
	Web       WebConfig       `yaml:"web" mapstructure:"web"`
	Breaker   BreakerConfig   `yaml:"breaker" mapstructure:"breaker"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// YouTubeConfig holds YouTube Data API settings.
type YouTubeConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RateQPS float64 `yaml:"rate_qps" mapstructure:"rate_qps"`
}

// VideoAIConfig holds settings for the external video-understanding service.
type VideoAIConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	LibraryMode       string `yaml:"library_mode" mapstructure:"library_mode"` // "private" or "public"
	UploadTimeoutSecs int    `yaml:"upload_timeout_secs" mapstructure:"upload_timeout_secs"`
	QueryTimeoutSecs  int    `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
}

// AnthropicConfig holds settings for the description-based extractor.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PreflightConfig configures the admission gate.
type PreflightConfig struct {
	MinDurationSecs int    `yaml:"min_duration_secs" mapstructure:"min_duration_secs"`
	MaxDurationSecs int    `yaml:"max_duration_secs" mapstructure:"max_duration_secs"`
	PatternsFile    string `yaml:"patterns_file" mapstructure:"patterns_file"`
}

// VideoConfig configures the video extraction orchestrator. The backoff
// multipliers are tuning parameters against the third-party service, kept
// configurable rather than hardcoded.
type VideoConfig struct {
	MaxRetries              int     `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffBaseSecs         float64 `yaml:"backoff_base_secs" mapstructure:"backoff_base_secs"`
	BackoffNoVideosSecs     float64 `yaml:"backoff_no_videos_secs" mapstructure:"backoff_no_videos_secs"`
	BackoffBadStructureSecs float64 `yaml:"backoff_bad_structure_secs" mapstructure:"backoff_bad_structure_secs"`
	DefaultDurationSecs     int     `yaml:"default_duration_secs" mapstructure:"default_duration_secs"`
	MaxPollErrors           int     `yaml:"max_poll_errors" mapstructure:"max_poll_errors"`
}

// WebConfig configures the web extraction cascade.
type WebConfig struct {
	FetchTimeoutSecs  int    `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	RenderTimeoutSecs int    `yaml:"render_timeout_secs" mapstructure:"render_timeout_secs"`
	UserAgent         string `yaml:"user_agent" mapstructure:"user_agent"`
	ChromePath        string `yaml:"chrome_path" mapstructure:"chrome_path"`
	DisableRender     bool   `yaml:"disable_render" mapstructure:"disable_render"`
}

// BreakerConfig configures the video service circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("RECIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "recipe-cli.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.rate_qps", 2.0)
	v.SetDefault("video_ai.library_mode", "private")
	v.SetDefault("video_ai.upload_timeout_secs", 120)
	v.SetDefault("video_ai.query_timeout_secs", 45)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("preflight.min_duration_secs", 10)
	v.SetDefault("preflight.max_duration_secs", 1200)
	v.SetDefault("video.max_retries", 3)
	v.SetDefault("video.backoff_base_secs", 5)
	v.SetDefault("video.backoff_no_videos_secs", 10)
	v.SetDefault("video.backoff_bad_structure_secs", 4)
	v.SetDefault("video.default_duration_secs", 180)
	v.SetDefault("video.max_poll_errors", 3)
	v.SetDefault("web.fetch_timeout_secs", 20)
	v.SetDefault("web.render_timeout_secs", 40)
	v.SetDefault("web.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown_secs", 300)

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
