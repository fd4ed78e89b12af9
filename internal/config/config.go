package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/auroralabs/aurora-alerts/internal/domain"
)

// Config holds all service settings, populated from an optional config file
// and AURORA_-prefixed environment variables.
type Config struct {
	Env             string        `mapstructure:"env"`
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	Logging LoggingConfig `mapstructure:"logging"`
	SWPC    SWPCConfig    `mapstructure:"swpc"`
	FCM     FCMConfig     `mapstructure:"fcm"`
	Store   StoreConfig   `mapstructure:"store"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Fanout  FanoutConfig  `mapstructure:"fanout"`
	Jobs    JobsConfig    `mapstructure:"jobs"`

	Blend domain.BlendWeights `mapstructure:"blend"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SWPCConfig holds NOAA SWPC feed configuration.
type SWPCConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	GridCacheTTL time.Duration `mapstructure:"grid_cache_ttl"`
}

// FCMConfig holds push delivery configuration. DryRun is a first-class mode:
// sends and topic calls short-circuit with synthetic success and a log record.
type FCMConfig struct {
	ProjectID       string        `mapstructure:"project_id"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	DryRun          bool          `mapstructure:"dry_run"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// StoreConfig holds the subscriber store configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// KafkaConfig holds the optional alert-audit publisher configuration.
// The publisher is wired only when brokers are set.
type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	AuditTopic string   `mapstructure:"audit_topic"`
}

// Enabled reports whether the audit publisher should be wired.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// FanoutConfig selects the notification strategy and the free-tier threshold.
type FanoutConfig struct {
	Strategy          string  `mapstructure:"strategy"` // "topic" or "per_user"
	FreeTierThreshold float64 `mapstructure:"free_tier_threshold"`
}

// JobsConfig holds the scheduler intervals. A zero interval disables the job.
type JobsConfig struct {
	FanoutInterval        time.Duration `mapstructure:"fanout_interval"`
	ThrottleResetInterval time.Duration `mapstructure:"throttle_reset_interval"`
	ExpiryInterval        time.Duration `mapstructure:"expiry_interval"`
	RunTimeout            time.Duration `mapstructure:"run_timeout"`
}

// Load reads configuration from the given file (optional, "" to skip) and
// the environment, applying defaults where unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AURORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("swpc.base_url", "https://services.swpc.noaa.gov")
	v.SetDefault("swpc.timeout", "10s")
	v.SetDefault("swpc.max_retries", 3)
	v.SetDefault("swpc.grid_cache_ttl", "5m")

	v.SetDefault("fcm.dry_run", true)
	v.SetDefault("fcm.timeout", "15s")

	v.SetDefault("store.path", "data/aurora.sqlite3")

	v.SetDefault("kafka.audit_topic", "aurora-alert-audit")

	v.SetDefault("fanout.strategy", "per_user")
	v.SetDefault("fanout.free_tier_threshold", 50)

	v.SetDefault("jobs.fanout_interval", "1h")
	v.SetDefault("jobs.throttle_reset_interval", "24h")
	v.SetDefault("jobs.expiry_interval", "1h")
	v.SetDefault("jobs.run_timeout", "5m")

	w := domain.DefaultBlendWeights()
	v.SetDefault("blend.kp", w.Kp)
	v.SetDefault("blend.bz", w.Bz)
	v.SetDefault("blend.dst", w.Dst)
	v.SetDefault("blend.bz_saturation", w.BzSaturation)
	v.SetDefault("blend.dst_saturation", w.DstSaturation)
	v.SetDefault("blend.speed_baseline", w.SpeedBaseline)
	v.SetDefault("blend.speed_boost_cap", w.SpeedBoostCap)
	v.SetDefault("blend.cloud_attenuation", w.CloudAttenuation)
}

// Validate checks that all configuration values are usable together.
func (c *Config) Validate() error {
	if c.Env == "" {
		return errors.New("env is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be json or text; got %q", c.Logging.Format)
	}

	if c.SWPC.BaseURL == "" {
		return errors.New("swpc.base_url is required")
	}
	if c.SWPC.Timeout <= 0 {
		return errors.New("swpc.timeout must be positive")
	}
	if c.SWPC.MaxRetries < 0 {
		return errors.New("swpc.max_retries must not be negative")
	}
	if c.SWPC.GridCacheTTL < 0 {
		return errors.New("swpc.grid_cache_ttl must not be negative")
	}

	if !c.FCM.DryRun {
		if c.FCM.ProjectID == "" {
			return errors.New("fcm.project_id is required when dry_run is off")
		}
		if c.FCM.CredentialsFile == "" {
			return errors.New("fcm.credentials_file is required when dry_run is off")
		}
	}

	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}

	if c.Kafka.Enabled() && c.Kafka.AuditTopic == "" {
		return errors.New("kafka.audit_topic is required when brokers are set")
	}

	switch c.Fanout.Strategy {
	case "topic", "per_user":
	default:
		return fmt.Errorf("fanout.strategy must be topic or per_user; got %q", c.Fanout.Strategy)
	}
	if c.Fanout.FreeTierThreshold < 0 || c.Fanout.FreeTierThreshold > 100 {
		return errors.New("fanout.free_tier_threshold must be in [0, 100]")
	}

	if c.Jobs.RunTimeout <= 0 {
		return errors.New("jobs.run_timeout must be positive")
	}

	return nil
}
