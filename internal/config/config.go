package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/openmark/openmark/internal/plugin"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	JWT        JWTConfig
	Cache      CacheConfig
	Plugins    PluginsConfig
	Revocation RevocationConfig
	MongoDB    MongoDBConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	LogLevel   string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type JWTConfig struct {
	Secret       string
	AuthTokenTTL time.Duration
}

type CacheConfig struct {
	Directory string
	Duration  time.Duration
	// CleanInterval is how often the background cleaner sweeps the
	// temp-document cache and the revocation set.
	CleanInterval time.Duration
}

// PluginRef names one plugin and carries its opaque configuration, parsed
// from a JSON blob in the environment (e.g. PLUGIN_AUTH_CONFIG).
type PluginRef struct {
	Type   string
	Config plugin.Config
}

type PluginsConfig struct {
	Auth        PluginRef
	Source      PluginRef
	Annotations PluginRef
}

// RevocationConfig selects where revoked-token hashes live. "memory" works
// for a single instance; "redis" and "mongodb" make logout visible across
// instances.
type RevocationConfig struct {
	Backend         string // memory | redis | mongodb
	MongoCollection string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5000")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JWT_AUTH_TOKEN_TTL_HOURS", 24)
	viper.SetDefault("CACHE_DIRECTORY", "./data/cache")
	viper.SetDefault("CACHE_DURATION_SECONDS", 3600)
	viper.SetDefault("CACHE_CLEAN_INTERVAL_SECONDS", 300)
	viper.SetDefault("PLUGIN_AUTH_TYPE", "local")
	viper.SetDefault("PLUGIN_SOURCE_TYPE", "local")
	viper.SetDefault("PLUGIN_ANNOTATIONS_TYPE", "local")
	viper.SetDefault("REVOCATION_BACKEND", "memory")
	viper.SetDefault("REVOCATION_MONGO_COLLECTION", "revoked_tokens")
	viper.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGODB_DATABASE", "openmark")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_RPS", 20.0)
	viper.SetDefault("RATE_LIMIT_BURST", 40)

	authCfg, err := pluginConfigBlob("PLUGIN_AUTH_CONFIG")
	if err != nil {
		return nil, err
	}
	sourceCfg, err := pluginConfigBlob("PLUGIN_SOURCE_CONFIG")
	if err != nil {
		return nil, err
	}
	annotationsCfg, err := pluginConfigBlob("PLUGIN_ANNOTATIONS_CONFIG")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		JWT: JWTConfig{
			Secret:       viper.GetString("JWT_SECRET"),
			AuthTokenTTL: time.Duration(viper.GetInt("JWT_AUTH_TOKEN_TTL_HOURS")) * time.Hour,
		},
		Cache: CacheConfig{
			Directory:     viper.GetString("CACHE_DIRECTORY"),
			Duration:      time.Duration(viper.GetInt("CACHE_DURATION_SECONDS")) * time.Second,
			CleanInterval: time.Duration(viper.GetInt("CACHE_CLEAN_INTERVAL_SECONDS")) * time.Second,
		},
		Plugins: PluginsConfig{
			Auth:        PluginRef{Type: viper.GetString("PLUGIN_AUTH_TYPE"), Config: authCfg},
			Source:      PluginRef{Type: viper.GetString("PLUGIN_SOURCE_TYPE"), Config: sourceCfg},
			Annotations: PluginRef{Type: viper.GetString("PLUGIN_ANNOTATIONS_TYPE"), Config: annotationsCfg},
		},
		Revocation: RevocationConfig{
			Backend:         viper.GetString("REVOCATION_BACKEND"),
			MongoCollection: viper.GetString("REVOCATION_MONGO_COLLECTION"),
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Enabled: viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:     viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:   viper.GetInt("RATE_LIMIT_BURST"),
		},
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Revocation.Backend {
	case "memory", "redis", "mongodb":
	default:
		return fmt.Errorf("REVOCATION_BACKEND must be memory, redis or mongodb, got %q", c.Revocation.Backend)
	}
	if c.Cache.Duration <= 0 {
		return fmt.Errorf("CACHE_DURATION_SECONDS must be positive")
	}
	return nil
}

// pluginConfigBlob parses an optional JSON object from the environment.
func pluginConfigBlob(key string) (plugin.Config, error) {
	raw := viper.GetString(key)
	if raw == "" {
		return plugin.Config{}, nil
	}
	var cfg plugin.Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", key, err)
	}
	return cfg, nil
}
