// Package config holds the scheduler configuration, loaded from the
// environment and adjusted through functional options.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/longsihua2026/promptulate/utils"
)

type Config struct {
	// MaxAttempts bounds the credential failover loop of one dispatch.
	MaxAttempts int `env:"PROMPTULATE_MAX_ATTEMPTS" envDefault:"3" validate:"gte=1"`

	// Cooldown policy: window = CooldownBase * 2^min(failures, CooldownCap),
	// never exceeding CooldownMax.
	CooldownBase time.Duration `env:"PROMPTULATE_COOLDOWN_BASE" envDefault:"1s" validate:"gt=0"`
	CooldownMax  time.Duration `env:"PROMPTULATE_COOLDOWN_MAX" envDefault:"10m" validate:"gt=0"`
	CooldownCap  int           `env:"PROMPTULATE_COOLDOWN_CAP" envDefault:"6" validate:"gte=0"`

	// StatePath overrides the default state file location under the user
	// cache directory. SQLitePath, when set, switches persistence to a
	// SQLite database instead of the JSON file.
	StatePath  string `env:"PROMPTULATE_STATE_PATH"`
	SQLitePath string `env:"PROMPTULATE_SQLITE_PATH"`

	// WriteThrough flushes state after every state-changing update. When
	// off, state is written only on explicit Flush and on Close.
	WriteThrough bool `env:"PROMPTULATE_WRITE_THROUGH" envDefault:"true"`

	// ModelFallback lets a dispatch for a specific model use credentials of
	// other models once that model's partition is exhausted.
	ModelFallback bool `env:"PROMPTULATE_MODEL_FALLBACK" envDefault:"false"`

	// SeedKey seeds an empty pool on first run, when no persisted state
	// exists. SeedModel optionally binds it to a model.
	SeedKey   string `env:"PROMPTULATE_API_KEY"`
	SeedModel string `env:"PROMPTULATE_KEY_MODEL"`

	LogLevel utils.LogLevel `env:"PROMPTULATE_LOG_LEVEL" envDefault:"WARN"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfig returns a Config with defaults, independent of the environment.
func NewConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		CooldownBase: time.Second,
		CooldownMax:  10 * time.Minute,
		CooldownCap:  6,
		WriteThrough: true,
		LogLevel:     utils.LogLevelWarn,
	}
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

type ConfigOption func(*Config)

func SetMaxAttempts(n int) ConfigOption {
	return func(c *Config) {
		if n < 1 {
			n = 1
		}
		c.MaxAttempts = n
	}
}

func SetCooldownBase(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.CooldownBase = d
	}
}

func SetCooldownMax(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.CooldownMax = d
	}
}

func SetCooldownCap(n int) ConfigOption {
	return func(c *Config) {
		c.CooldownCap = n
	}
}

func SetStatePath(path string) ConfigOption {
	return func(c *Config) {
		c.StatePath = path
	}
}

func SetSQLitePath(path string) ConfigOption {
	return func(c *Config) {
		c.SQLitePath = path
	}
}

func SetWriteThrough(enabled bool) ConfigOption {
	return func(c *Config) {
		c.WriteThrough = enabled
	}
}

func SetModelFallback(enabled bool) ConfigOption {
	return func(c *Config) {
		c.ModelFallback = enabled
	}
}

func SetSeed(key, model string) ConfigOption {
	return func(c *Config) {
		c.SeedKey = key
		c.SeedModel = model
	}
}

func SetLogLevel(level utils.LogLevel) ConfigOption {
	return func(c *Config) {
		c.LogLevel = level
	}
}

func ApplyOptions(cfg *Config, options ...ConfigOption) {
	for _, option := range options {
		option(cfg)
	}
}
