// Package config loads service settings from defaults, an optional config
// file and EDUAPP_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. EDUAPP_HTTP_PORT.
const EnvPrefix = "EDUAPP"

// ConfigFileEnv names a config file to load when Load is given no path.
const ConfigFileEnv = "EDUAPP_CONFIG_FILE"

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and business logic
type Config struct {
	HTTP      *HTTPConfig      `mapstructure:"http"`
	WebSocket *WebSocketConfig `mapstructure:"websocket"`
	Catalog   *CatalogConfig   `mapstructure:"catalog"`
	Cache     *CacheConfig     `mapstructure:"cache"`
	Chat      *ChatConfig      `mapstructure:"chat"`
	Log       *LogConfig       `mapstructure:"log"`
}

type HTTPConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// FUNCTIONAL DISCOVERY: 30s ping with a 60s read deadline tolerates one lost pong
type WebSocketConfig struct {
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	BufferSize      int           `mapstructure:"buffer_size"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// CatalogConfig selects where session ids are looked up.
type CatalogConfig struct {
	Driver         string        `mapstructure:"driver"`
	LookupTimeout  time.Duration `mapstructure:"lookup_timeout"`
	SQLitePath     string        `mapstructure:"sqlite_path"`
	MaxConnections int           `mapstructure:"max_connections"`

	MongoURI        string `mapstructure:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection"`

	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures"`
	BreakerInterval    time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ChatConfig struct {
	MaxTextLength     int `mapstructure:"max_text_length"`
	MessagesPerMinute int `mapstructure:"messages_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval:    30 * time.Second,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			BufferSize:      100,
			MaxMessageBytes: 16 * 1024,
			AllowedOrigins:  []string{"*"},
		},
		Catalog: &CatalogConfig{
			Driver:             "sqlite",
			LookupTimeout:      3 * time.Second,
			SQLitePath:         "./data/eduapp.db",
			MaxConnections:     10,
			MongoURI:           "mongodb://localhost:27017",
			MongoDatabase:      "eduapp",
			MongoCollection:    "videos",
			BreakerMaxFailures: 5,
			BreakerInterval:    time.Minute,
			BreakerTimeout:     30 * time.Second,
		},
		Cache: &CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			Prefix:  "eduapp:session:",
			TTL:     5 * time.Minute,
		},
		Chat: &ChatConfig{
			MaxTextLength:     2000,
			MessagesPerMinute: 100,
			Burst:             100,
		},
		Log: &LogConfig{
			Level: "info",
		},
	}
}

// setDefaults registers every key so AutomaticEnv can override keys that no
// config file mentions.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("http.host", c.HTTP.Host)
	v.SetDefault("http.port", c.HTTP.Port)
	v.SetDefault("http.read_timeout", c.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", c.HTTP.WriteTimeout)
	v.SetDefault("http.shutdown_timeout", c.HTTP.ShutdownTimeout)

	v.SetDefault("websocket.ping_interval", c.WebSocket.PingInterval)
	v.SetDefault("websocket.read_timeout", c.WebSocket.ReadTimeout)
	v.SetDefault("websocket.write_timeout", c.WebSocket.WriteTimeout)
	v.SetDefault("websocket.buffer_size", c.WebSocket.BufferSize)
	v.SetDefault("websocket.max_message_bytes", c.WebSocket.MaxMessageBytes)
	v.SetDefault("websocket.allowed_origins", c.WebSocket.AllowedOrigins)

	v.SetDefault("catalog.driver", c.Catalog.Driver)
	v.SetDefault("catalog.lookup_timeout", c.Catalog.LookupTimeout)
	v.SetDefault("catalog.sqlite_path", c.Catalog.SQLitePath)
	v.SetDefault("catalog.max_connections", c.Catalog.MaxConnections)
	v.SetDefault("catalog.mongo_uri", c.Catalog.MongoURI)
	v.SetDefault("catalog.mongo_database", c.Catalog.MongoDatabase)
	v.SetDefault("catalog.mongo_collection", c.Catalog.MongoCollection)
	v.SetDefault("catalog.breaker_max_failures", c.Catalog.BreakerMaxFailures)
	v.SetDefault("catalog.breaker_interval", c.Catalog.BreakerInterval)
	v.SetDefault("catalog.breaker_timeout", c.Catalog.BreakerTimeout)

	v.SetDefault("cache.enabled", c.Cache.Enabled)
	v.SetDefault("cache.addr", c.Cache.Addr)
	v.SetDefault("cache.password", c.Cache.Password)
	v.SetDefault("cache.db", c.Cache.DB)
	v.SetDefault("cache.prefix", c.Cache.Prefix)
	v.SetDefault("cache.ttl", c.Cache.TTL)

	v.SetDefault("chat.max_text_length", c.Chat.MaxTextLength)
	v.SetDefault("chat.messages_per_minute", c.Chat.MessagesPerMinute)
	v.SetDefault("chat.burst", c.Chat.Burst)

	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.development", c.Log.Development)
}

// Load reads configuration. path may be empty, in which case EDUAPP_CONFIG_FILE
// is consulted; with neither set only defaults and the environment apply.
// The file format follows its extension (yaml, json, toml).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Address is the HTTP listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// FUNCTIONAL DISCOVERY: Comprehensive validation prevents invalid system configurations
func (c *Config) Validate() error {
	if c.HTTP == nil || c.WebSocket == nil || c.Catalog == nil || c.Cache == nil || c.Chat == nil || c.Log == nil {
		return errors.New("all configuration sections are required")
	}

	if c.HTTP.Host == "" {
		return errors.New("HTTP host cannot be empty")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.New("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return errors.New("HTTP timeouts must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("HTTP shutdown timeout must be positive")
	}

	if c.WebSocket.PingInterval <= 0 {
		return errors.New("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return errors.New("WebSocket read timeout must be longer than the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return errors.New("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return errors.New("WebSocket buffer size must be positive")
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		return errors.New("WebSocket max message bytes must be positive")
	}

	switch c.Catalog.Driver {
	case "sqlite":
		if c.Catalog.SQLitePath == "" {
			return errors.New("catalog sqlite path cannot be empty")
		}
		if c.Catalog.MaxConnections <= 0 {
			return errors.New("catalog max connections must be positive")
		}
	case "mongo":
		if c.Catalog.MongoURI == "" || c.Catalog.MongoDatabase == "" {
			return errors.New("catalog mongo uri and database are required")
		}
	default:
		return fmt.Errorf("catalog driver must be 'sqlite' or 'mongo', got %q", c.Catalog.Driver)
	}
	if c.Catalog.LookupTimeout <= 0 {
		return errors.New("catalog lookup timeout must be positive")
	}
	if c.Catalog.BreakerMaxFailures == 0 {
		return errors.New("catalog breaker max failures must be positive")
	}

	if c.Cache.Enabled {
		if c.Cache.Addr == "" {
			return errors.New("cache addr cannot be empty when the cache is enabled")
		}
		if c.Cache.TTL <= 0 {
			return errors.New("cache ttl must be positive")
		}
	}

	if c.Chat.MaxTextLength <= 0 {
		return errors.New("chat max text length must be positive")
	}
	if c.Chat.MessagesPerMinute <= 0 || c.Chat.Burst <= 0 {
		return errors.New("chat rate limits must be positive")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}
