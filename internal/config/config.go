// Package config provides configuration management for the Alexander storage gateway.
// Configuration can be loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
// It is loaded once at startup and passed explicitly to every component.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cache       CacheConfig       `mapstructure:"cache"`
	ObjectStore ObjectStoreConfig `mapstructure:"object_store"`
	Identity    IdentityConfig    `mapstructure:"identity"`
	Quota       QuotaConfig       `mapstructure:"quota"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`

	// EndpointPath is the single JSON entry point.
	EndpointPath string `mapstructure:"endpoint_path"`

	// AllowedOrigin is sent as Access-Control-Allow-Origin.
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

// Addr returns the listen address in host:port format.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database connection settings.
// Supports both PostgreSQL and SQLite backends.
type DatabaseConfig struct {
	// Driver specifies the database driver: "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`

	// URL is a full PostgreSQL connection string. When set it overrides the discrete fields.
	URL string `mapstructure:"url"`

	// PostgreSQL settings (used when Driver is "postgres")
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	// SQLite settings (used when Driver is "sqlite")
	Path            string `mapstructure:"path"`             // Path to SQLite database file
	JournalMode     string `mapstructure:"journal_mode"`     // WAL, DELETE, TRUNCATE, etc.
	BusyTimeout     int    `mapstructure:"busy_timeout"`     // Milliseconds to wait for locks
	SynchronousMode string `mapstructure:"synchronous_mode"` // NORMAL, FULL, OFF

	// AutoMigrate applies embedded migrations when the gateway starts.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Only valid when Driver is "postgres".
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// IsEmbedded returns true if using an embedded database (SQLite).
func (c DatabaseConfig) IsEmbedded() bool {
	return c.Driver == "sqlite"
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig holds quota read-cache settings.
type CacheConfig struct {
	// Backend is "memory", "redis" or "none".
	Backend string `mapstructure:"backend"`

	// QuotaTTL bounds how stale a cached quota may be.
	QuotaTTL time.Duration `mapstructure:"quota_ttl"`

	// CleanupInterval is how often the memory cache evicts expired entries.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// ObjectStoreConfig holds the S3-compatible store location and credentials.
type ObjectStoreConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// Signer selects the SigV4 implementation: "native" or "aws-sdk".
	Signer string `mapstructure:"signer"`

	// Timeout is the HTTP client timeout. Zero means no timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Configured reports whether credentials and endpoint are present.
// A gateway without them still starts, but every operation fails.
func (c ObjectStoreConfig) Configured() bool {
	return c.Endpoint != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// IdentityConfig holds caller token verification settings.
type IdentityConfig struct {
	// Provider is "gotrue" or "oidc".
	Provider string `mapstructure:"provider"`

	// AuthURL is the GoTrue base URL; /auth/v1/user is appended.
	AuthURL string `mapstructure:"auth_url"`

	// APIKey is sent as the apikey header to GoTrue.
	APIKey string `mapstructure:"api_key"`

	// Timeout bounds the verification call.
	Timeout time.Duration `mapstructure:"timeout"`

	// OIDC settings (used when Provider is "oidc")
	Issuer          string `mapstructure:"issuer"`
	JWKSURL         string `mapstructure:"jwks_url"`
	Audience        string `mapstructure:"audience"`
	SkipIssuerCheck bool   `mapstructure:"skip_issuer_check"`
}

// Quota enforcement modes.
const (
	QuotaModeAtomic          = "atomic"
	QuotaModeCheckThenUpdate = "check-then-update"
)

// QuotaConfig holds quota enforcement settings.
type QuotaConfig struct {
	// Mode is QuotaModeAtomic or QuotaModeCheckThenUpdate.
	Mode string `mapstructure:"mode"`

	// DefaultTotalMB is the ceiling given to new users.
	DefaultTotalMB float64 `mapstructure:"default_total_mb"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Port is the port for a dedicated metrics server. Zero serves metrics on the main router.
	Port int `mapstructure:"port"`

	// Path is the URL path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure"`
}

// legacyEnv maps config keys to the environment names used by existing deployments.
var legacyEnv = map[string]string{
	"object_store.endpoint":          "WASABI_ENDPOINT",
	"object_store.region":            "WASABI_REGION",
	"object_store.access_key_id":     "WASABI_ACCESS_KEY_ID",
	"object_store.secret_access_key": "WASABI_SECRET_ACCESS_KEY",
	"identity.auth_url":              "SUPABASE_URL",
	"identity.api_key":               "SUPABASE_SERVICE_ROLE_KEY",
	"database.url":                   "DATABASE_URL",
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with ALEXANDER_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix("ALEXANDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := "ALEXANDER_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("error binding env for %s: %w", key, err)
		}
	}

	// Config file configuration
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/alexander")
	}

	// Read config file (optional - environment variables can be used instead)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is acceptable - use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_size", 64*1024*1024) // 64MB of JSON, base64 inflates by 4/3
	v.SetDefault("server.endpoint_path", "/wasabi-storage")
	v.SetDefault("server.allowed_origin", "*")

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "alexander")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "alexander")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	v.SetDefault("database.auto_migrate", false)
	// SQLite defaults
	v.SetDefault("database.path", "./data/alexander-gateway.db")
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5000)
	v.SetDefault("database.synchronous_mode", "NORMAL")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.quota_ttl", 30*time.Second)
	v.SetDefault("cache.cleanup_interval", time.Minute)

	// Object store defaults
	v.SetDefault("object_store.endpoint", "https://s3.wasabisys.com")
	v.SetDefault("object_store.region", "us-east-1")
	v.SetDefault("object_store.access_key_id", "")
	v.SetDefault("object_store.secret_access_key", "")
	v.SetDefault("object_store.signer", "native")
	v.SetDefault("object_store.timeout", time.Duration(0))

	// Identity defaults
	v.SetDefault("identity.provider", "gotrue")
	v.SetDefault("identity.auth_url", "")
	v.SetDefault("identity.api_key", "")
	v.SetDefault("identity.timeout", 10*time.Second)
	v.SetDefault("identity.issuer", "")
	v.SetDefault("identity.jwks_url", "")
	v.SetDefault("identity.audience", "")
	v.SetDefault("identity.skip_issuer_check", false)

	// Quota defaults
	v.SetDefault("quota.mode", QuotaModeAtomic)
	v.SetDefault("quota.default_total_mb", 1024.0)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 0)
	v.SetDefault("metrics.path", "/metrics")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "alexander-gateway")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.insecure", true)
}

// Validate checks the configuration for required values and valid ranges.
// Missing object-store or identity secrets are not rejected here; they surface
// as configuration errors on the first operation.
func (c *Config) Validate() error {
	// Validate server configuration
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if !strings.HasPrefix(c.Server.EndpointPath, "/") {
		return fmt.Errorf("server.endpoint_path must start with '/'")
	}

	// Validate database configuration
	validDrivers := map[string]bool{"postgres": true, "sqlite": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be 'postgres' or 'sqlite'")
	}

	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for postgres driver")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for postgres driver")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for postgres driver")
		}
	} else if c.Database.Driver == "sqlite" {
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite driver")
		}
	}

	// Validate cache configuration
	validBackends := map[string]bool{"memory": true, "redis": true, "none": true}
	if !validBackends[c.Cache.Backend] {
		return fmt.Errorf("cache.backend must be 'memory', 'redis' or 'none'")
	}

	// Validate object store configuration
	validSigners := map[string]bool{"native": true, "aws-sdk": true}
	if !validSigners[c.ObjectStore.Signer] {
		return fmt.Errorf("object_store.signer must be 'native' or 'aws-sdk'")
	}

	// Validate identity configuration
	switch c.Identity.Provider {
	case "gotrue":
	case "oidc":
		if c.Identity.Issuer == "" && c.Identity.JWKSURL == "" {
			return fmt.Errorf("identity.issuer or identity.jwks_url is required for oidc provider")
		}
	default:
		return fmt.Errorf("identity.provider must be 'gotrue' or 'oidc'")
	}

	// Validate quota configuration
	if c.Quota.Mode != QuotaModeAtomic && c.Quota.Mode != QuotaModeCheckThenUpdate {
		return fmt.Errorf("quota.mode must be '%s' or '%s'", QuotaModeAtomic, QuotaModeCheckThenUpdate)
	}
	if c.Quota.DefaultTotalMB <= 0 {
		return fmt.Errorf("quota.default_total_mb must be positive")
	}

	// Validate tracing configuration
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}

	// Validate logging configuration
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}
