// Package config loads session store configuration from a file, the environment and
// command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/creastat/storage/session"
)

// EnvPrefix prefixes every environment variable Load reads, e.g. SESSIONSTORE_MONGO_URI.
const EnvPrefix = "SESSIONSTORE"

// Config is the full configuration of a session backend.
type Config struct {
	Driver   session.StoreType `mapstructure:"driver"`
	Mongo    MongoConfig       `mapstructure:"mongo"`
	Redis    RedisConfig       `mapstructure:"redis"`
	Supabase SupabaseConfig    `mapstructure:"supabase"`
	GC       GCConfig          `mapstructure:"gc"`
	Log      LogConfig         `mapstructure:"log"`
}

// MongoConfig selects the collection sessions are stored in.
type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// SupabaseConfig holds Supabase connection configuration.
type SupabaseConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
	Table  string `mapstructure:"table"`
}

// GCConfig controls garbage collection of idle sessions.
type GCConfig struct {
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

var defaults = map[string]any{
	"driver":           string(session.StoreTypeMemory),
	"mongo.uri":        "mongodb://localhost:27017",
	"mongo.database":   "app",
	"mongo.collection": "sessions",
	"mongo.timeout":    10 * time.Second,
	"redis.addr":       "localhost:6379",
	"redis.username":   "",
	"redis.password":   "",
	"redis.db":         0,
	"redis.prefix":     "session:",
	"supabase.url":     "",
	"supabase.api_key": "",
	"supabase.table":   "sessions",
	"gc.max_lifetime":  24 * time.Minute,
	"log.level":        "info",
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"driver":       "driver",
	"log-level":    "log.level",
	"max-lifetime": "gc.max_lifetime",
}

// Load reads configuration from path (optional), SESSIONSTORE_* environment variables and
// any of flags that were set, in increasing order of precedence.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %q: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected driver has what it needs.
func (c *Config) Validate() error {
	switch c.Driver {
	case session.StoreTypeMemory:
	case session.StoreTypeMongo:
		if c.Mongo.URI == "" {
			return &session.ConfigurationError{Option: "mongo.uri", Reason: "is required"}
		}
		if c.Mongo.Database == "" {
			return &session.ConfigurationError{Option: "mongo.database", Reason: "is required"}
		}
		if c.Mongo.Collection == "" {
			return &session.ConfigurationError{Option: "mongo.collection", Reason: "is required"}
		}
	case session.StoreTypeRedis:
		if c.Redis.Addr == "" {
			return &session.ConfigurationError{Option: "redis.addr", Reason: "is required"}
		}
	case session.StoreTypeSupabase:
		if c.Supabase.URL == "" {
			return &session.ConfigurationError{Option: "supabase.url", Reason: "is required"}
		}
		if c.Supabase.APIKey == "" {
			return &session.ConfigurationError{Option: "supabase.api_key", Reason: "is required"}
		}
	default:
		return fmt.Errorf("%w: %q", session.ErrInvalidStoreType, c.Driver)
	}

	if c.GC.MaxLifetime < 0 {
		return &session.ConfigurationError{Option: "gc.max_lifetime", Reason: "must not be negative"}
	}
	return nil
}
