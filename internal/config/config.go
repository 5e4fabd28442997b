// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
// Operational defaults that admins change at runtime (concurrency ceiling,
// default provider, quota limits) live in the settings store instead.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	DB        DBConfig        `mapstructure:"db"`
	Blob      BlobConfig      `mapstructure:"blob"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Places    PlacesConfig    `mapstructure:"places"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DBConfig selects and configures the persistence backend.
type DBConfig struct {
	Backend      string `mapstructure:"backend"`
	DSN          string `mapstructure:"dsn"`
	MaxConns     int    `mapstructure:"max_conns"`
	MinConns     int    `mapstructure:"min_conns"`
	ConnLifeMins int    `mapstructure:"conn_lifetime_minutes"`
}

// BlobConfig selects and configures artifact audit storage.
type BlobConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// PubSubConfig holds metadata for terminal-event notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// PlacesConfig configures the metered structured-search provider.
type PlacesConfig struct {
	BaseURL string  `mapstructure:"base_url"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// BrowserConfig configures the subprocess scraper provider.
type BrowserConfig struct {
	Binary         string `mapstructure:"binary"`
	UseDocker      bool   `mapstructure:"use_docker"`
	DockerImage    string `mapstructure:"docker_image"`
	CPUs           string `mapstructure:"cpus"`
	Memory         string `mapstructure:"memory"`
	ShmSize        string `mapstructure:"shm_size"`
	Concurrency    int    `mapstructure:"concurrency"`
	Debug          bool   `mapstructure:"debug"`
	TimeoutMinutes int    `mapstructure:"timeout_minutes"`
	WorkDir        string `mapstructure:"work_dir"`
}

// QueueConfig governs work queue behavior.
type QueueConfig struct {
	CooldownMs int `mapstructure:"cooldown_ms"`
}

// LoggingConfig controls zap encoding and verbosity.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig toggles trace export.
type TelemetryConfig struct {
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	ProjectID      string `mapstructure:"project_id"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.backend", "memory")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("blob.backend", "memory")
	v.SetDefault("places.base_url", "https://places.googleapis.com")
	v.SetDefault("places.rps", 5.0)
	v.SetDefault("places.burst", 5)
	v.SetDefault("browser.binary", "google-maps-scraper")
	v.SetDefault("browser.docker_image", "gosom/google-maps-scraper:latest")
	v.SetDefault("browser.cpus", "2")
	v.SetDefault("browser.memory", "2g")
	v.SetDefault("browser.shm_size", "1g")
	v.SetDefault("browser.concurrency", 2)
	v.SetDefault("browser.timeout_minutes", 30)
	v.SetDefault("queue.cooldown_ms", 1000)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.DB.Backend {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.backend is postgres")
		}
	default:
		return fmt.Errorf("db.backend must be memory or postgres, got %q", c.DB.Backend)
	}
	switch c.Blob.Backend {
	case "memory":
	case "local":
		if c.Blob.BaseDir == "" {
			return fmt.Errorf("blob.base_dir must be set when blob.backend is local")
		}
	case "gcs":
		if c.Blob.GCSBucket == "" {
			return fmt.Errorf("blob.gcs_bucket must be set when blob.backend is gcs")
		}
	default:
		return fmt.Errorf("blob.backend must be memory, local, or gcs, got %q", c.Blob.Backend)
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Queue.CooldownMs < 0 {
		return fmt.Errorf("queue.cooldown_ms must be >= 0")
	}
	if c.Browser.TimeoutMinutes <= 0 {
		return fmt.Errorf("browser.timeout_minutes must be > 0")
	}
	return nil
}

// Cooldown returns the queue admission cooldown as a duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Queue.CooldownMs) * time.Millisecond
}

// BrowserTimeout returns the scraper subprocess budget as a duration.
func (c Config) BrowserTimeout() time.Duration {
	return time.Duration(c.Browser.TimeoutMinutes) * time.Minute
}
