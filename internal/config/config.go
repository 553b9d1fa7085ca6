package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "COFFEESHOP"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabaseDriver     = DriverSQLite
	defaultDatabasePath       = "coffeeshop.db"
	defaultLogLevel           = "info"
	defaultAlgorithm          = "RS256"
	defaultKeySetCacheTTL     = 10 * time.Minute
	defaultKeySetFetchTimeout = 5 * time.Second
	defaultKeySetMinRefresh   = 30 * time.Second
	defaultRedisKey           = "coffeeshop:jwks"
	defaultAllowedOrigin      = "*"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	LogLevel       string
	Database       DatabaseConfig
	Auth           AuthConfig
	Redis          RedisConfig
	AllowedOrigins []string
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver string
	Path   string
	DSN    string
}

// AuthConfig describes the identity provider whose tokens are accepted.
type AuthConfig struct {
	Domain                string
	Audience              string
	Issuer                string
	KeySetURL             string
	Algorithms            []string
	KeySetCacheTTL        time.Duration
	KeySetFetchTimeout    time.Duration
	KeySetRefreshInterval time.Duration
}

// RedisConfig enables the shared key-set cache when Address is set.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Key      string
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Address) != ""
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("auth.domain", "")
	configViper.SetDefault("auth.audience", "")
	configViper.SetDefault("auth.issuer", "")
	configViper.SetDefault("auth.jwks_url", "")
	configViper.SetDefault("auth.algorithms", []string{defaultAlgorithm})
	configViper.SetDefault("auth.jwks_cache_ttl", defaultKeySetCacheTTL)
	configViper.SetDefault("auth.jwks_fetch_timeout", defaultKeySetFetchTimeout)
	configViper.SetDefault("auth.jwks_min_refresh_interval", defaultKeySetMinRefresh)
	configViper.SetDefault("redis.address", "")
	configViper.SetDefault("redis.password", "")
	configViper.SetDefault("redis.db", 0)
	configViper.SetDefault("redis.key", defaultRedisKey)
	configViper.SetDefault("cors.allowed_origins", []string{defaultAllowedOrigin})
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := read(configViper)
	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// LoadStorage parses configuration for maintenance commands that only touch the database.
// Auth settings are read but not required.
func LoadStorage(configViper *viper.Viper) (AppConfig, error) {
	cfg := read(configViper)
	if err := cfg.validateDatabase(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func read(configViper *viper.Viper) AppConfig {
	domain := normalizeDomain(configViper.GetString("auth.domain"))

	cfg := AppConfig{
		HTTPAddress: configViper.GetString("http.address"),
		LogLevel:    configViper.GetString("log.level"),
		Database: DatabaseConfig{
			Driver: strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
			Path:   configViper.GetString("database.path"),
			DSN:    configViper.GetString("database.dsn"),
		},
		Auth: AuthConfig{
			Domain:                domain,
			Audience:              strings.TrimSpace(configViper.GetString("auth.audience")),
			Issuer:                strings.TrimSpace(configViper.GetString("auth.issuer")),
			KeySetURL:             strings.TrimSpace(configViper.GetString("auth.jwks_url")),
			Algorithms:            splitList(configViper.GetStringSlice("auth.algorithms")),
			KeySetCacheTTL:        configViper.GetDuration("auth.jwks_cache_ttl"),
			KeySetFetchTimeout:    configViper.GetDuration("auth.jwks_fetch_timeout"),
			KeySetRefreshInterval: configViper.GetDuration("auth.jwks_min_refresh_interval"),
		},
		Redis: RedisConfig{
			Address:  strings.TrimSpace(configViper.GetString("redis.address")),
			Password: configViper.GetString("redis.password"),
			DB:       configViper.GetInt("redis.db"),
			Key:      strings.TrimSpace(configViper.GetString("redis.key")),
		},
		AllowedOrigins: splitList(configViper.GetStringSlice("cors.allowed_origins")),
	}

	if cfg.Auth.Issuer == "" && domain != "" {
		cfg.Auth.Issuer = "https://" + domain + "/"
	}
	if cfg.Auth.KeySetURL == "" && domain != "" {
		cfg.Auth.KeySetURL = "https://" + domain + "/.well-known/jwks.json"
	}
	return cfg
}

func (c AppConfig) validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if c.Auth.Domain == "" && (c.Auth.Issuer == "" || c.Auth.KeySetURL == "") {
		return fmt.Errorf("auth.domain is required")
	}
	if c.Auth.Audience == "" {
		return fmt.Errorf("auth.audience is required")
	}
	if len(c.Auth.Algorithms) == 0 {
		return fmt.Errorf("auth.algorithms must list at least one algorithm")
	}
	if c.Auth.KeySetCacheTTL <= 0 {
		return fmt.Errorf("auth.jwks_cache_ttl must be positive")
	}
	if c.Auth.KeySetFetchTimeout <= 0 {
		return fmt.Errorf("auth.jwks_fetch_timeout must be positive")
	}
	if c.Auth.KeySetRefreshInterval <= 0 {
		return fmt.Errorf("auth.jwks_min_refresh_interval must be positive")
	}
	if c.Redis.Enabled() && c.Redis.Key == "" {
		return fmt.Errorf("redis.key is required when redis.address is set")
	}
	return nil
}

func (c AppConfig) validateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("database.path is required")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	return nil
}

// normalizeDomain accepts either a bare host or a URL and returns the host part.
func normalizeDomain(raw string) string {
	domain := strings.TrimSpace(raw)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimRight(domain, "/")
}

// splitList flattens comma separated env values into a clean slice.
func splitList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
