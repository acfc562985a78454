// Package config provides centralized configuration management for the ingester.
// Values come from environment variables, then an optional config file, then
// defaults, and are validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Store kinds accepted in DB_KIND.
const (
	KindPostgres = "postgres"
	KindMSSQL    = "mssql"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Ingest   IngestConfig
	Logging  LoggingConfig
	Status   StatusConfig
}

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	// Kind selects the SQL dialect: postgres or mssql (default: postgres)
	Kind string `env:"DB_KIND" default:"postgres"`

	// URL is a full connection string. When set it replaces Host..Name.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	Host string `env:"DB_HOST" default:"localhost"`

	// Port is the server port; 0 selects 5432 or 1433 by Kind
	Port int `env:"DB_PORT" default:"0"`

	User string `env:"DB_USER" default:"postgres"`

	// Password is required
	Password string `env:"DB_PASSWORD" required:"true"`

	Name string `env:"DB_NAME" default:"exchange_logs"`

	// TablePrefix is prepended to every table and index name
	TablePrefix string `env:"DB_TABLE_PREFIX"`

	// SSLMode is the postgres sslmode (default: disable)
	SSLMode string `env:"DB_SSL_MODE" default:"disable"`

	// TrustServerCert skips certificate validation for mssql (default: true)
	TrustServerCert bool `env:"DB_TRUST_CERT" default:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of idle connections kept open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// ConnectTimeout bounds the startup ping and schema creation (default: 10s)
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"10s"`
}

// IngestConfig holds run settings.
type IngestConfig struct {
	// LogsDir is the directory walked for log files (default: .)
	LogsDir string `env:"INGEST_LOGS_DIR" default:"."`

	// MaxConcurrent is the number of files processed in parallel (default: 10)
	MaxConcurrent int `env:"INGEST_MAX_CONCURRENT" default:"10"`

	// FlushRows writes a batch every N records; 0 writes once per file
	FlushRows int `env:"INGEST_FLUSH_ROWS" default:"0"`

	// WriteTimeout bounds a single batch write (default: 5m)
	WriteTimeout time.Duration `env:"INGEST_WRITE_TIMEOUT" default:"5m"`

	// Encoding is the code page of the log files (default: windows-1251)
	Encoding string `env:"INGEST_ENCODING" default:"windows-1251"`

	// Patterns are comma-separated file name globs; empty selects the defaults
	Patterns []string `env:"INGEST_PATTERNS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// StatusConfig holds the optional run status listener.
type StatusConfig struct {
	// Addr is the listen address; empty disables the listener
	Addr string `env:"STATUS_ADDR"`

	// APIKeys, when set, are required in X-API-Key on /status
	APIKeys []string `env:"STATUS_API_KEYS"`

	ShutdownTimeout time.Duration `env:"STATUS_SHUTDOWN_TIMEOUT" default:"5s"`
}

// EffectivePort returns Port, or the default port of Kind when Port is 0.
func (c *DatabaseConfig) EffectivePort() int {
	if c.Port != 0 {
		return c.Port
	}
	if c.Kind == KindMSSQL {
		return 1433
	}
	return 5432
}

// Addr returns host:port.
func (c *DatabaseConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.EffectivePort())
}
