// Package config provides configuration loading for traceview.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the traceview service.
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Source SourceConfig `mapstructure:"source"`
	Ingest IngestConfig `mapstructure:"ingest"`
	Buffer BufferConfig `mapstructure:"buffer"`
	UI     UIConfig     `mapstructure:"ui"`
}

// AppConfig defines the HTTP server bind address and logging level.
type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// SourceConfig defines the upstream trace API this viewer reads from.
// Empty URL means the viewer serves only locally ingested traces.
type SourceConfig struct {
	URL     string `mapstructure:"url"`
	Timeout string `mapstructure:"timeout"`
}

// IngestConfig defines the local OTLP gRPC receiver.
type IngestConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"` // 0 for ephemeral
}

// BufferConfig bounds the in-memory span store.
type BufferConfig struct {
	SpanCapacity int `mapstructure:"span_capacity"`
}

// UIConfig holds presentation parameters. They are passed down as plain
// values, never read from shared global state.
type UIConfig struct {
	IndentPx      int `mapstructure:"indent_px"`
	TerminalWidth int `mapstructure:"terminal_width"`
}

// GetTimeoutDuration parses the configured source timeout.
func (c *SourceConfig) GetTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// Load reads config.yaml (working directory or ./configs) and
// TRACEVIEW_* environment variables over built-in defaults. A missing
// config file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("TRACEVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.host", "127.0.0.1")
	v.SetDefault("app.port", 4390)
	v.SetDefault("app.log_level", "info")

	v.SetDefault("source.url", "")
	v.SetDefault("source.timeout", "30s")

	v.SetDefault("ingest.enabled", true)
	v.SetDefault("ingest.host", "127.0.0.1")
	v.SetDefault("ingest.port", 0)

	v.SetDefault("buffer.span_capacity", 10_000)

	v.SetDefault("ui.indent_px", 16)
	v.SetDefault("ui.terminal_width", 80)
}
