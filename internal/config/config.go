// Package config loads flatsheet settings from environment variables.
// Every setting has a default, so an empty environment yields a working
// server; Validate rejects inconsistent values on startup.
package config

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/flatsheet/internal/core"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Session  SessionConfig
	Flatten  FlattenConfig
	Export   ExportConfig
	Database DatabaseConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout stays 0 so the progress stream is not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// UploadConfig holds ingestion limits.
type UploadConfig struct {
	// MaxFileSize accepts plain bytes or a unit suffix: 512KB, 50MB, 1GB.
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"50MB" size:"true"`

	// MaxConcurrent is how many uploads are normalized at once (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long an upload waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds reading and normalizing one upload (default: 5m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"5m"`
}

// SessionConfig holds the in-memory session store settings.
type SessionConfig struct {
	// Max is the number of sessions kept before the least recently used is dropped.
	Max int `env:"SESSION_MAX" default:"1000"`

	// TTL is how long an untouched session lives (default: 2h)
	TTL time.Duration `env:"SESSION_TTL" default:"2h"`

	// CookieName names the session cookie.
	CookieName string `env:"SESSION_COOKIE_NAME" default:"flatsheet_session"`

	// SecureCookie marks the session cookie Secure (default: false)
	SecureCookie bool `env:"SESSION_SECURE_COOKIE" default:"false"`
}

// FlattenConfig bounds document nesting.
type FlattenConfig struct {
	MaxDepth int `env:"FLATTEN_MAX_DEPTH" default:"256"`

	// PageSize is the number of preview rows per page (default: 10)
	PageSize int `env:"PREVIEW_PAGE_SIZE" default:"10"`
}

// ExportConfig holds download settings.
type ExportConfig struct {
	// SheetName names the single workbook sheet (default: Sheet1)
	SheetName string `env:"EXPORT_SHEET_NAME" default:"Sheet1"`
}

// DatabaseConfig holds the optional upload history database.
// History is disabled when URL is empty.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate creates the history table on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// RateLimitConfig holds per-IP request limits.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute applies to every route (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// UploadLimit applies to the upload endpoint (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Forwarded-For / X-Real-IP headers are honored.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey guards /api routes with the X-API-Key header.
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys.
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// ServiceConfig returns the session service settings.
func (c *Config) ServiceConfig() core.ServiceConfig {
	return core.ServiceConfig{
		MaxSessions:   c.Session.Max,
		SessionTTL:    c.Session.TTL,
		MaxFileSize:   c.Upload.MaxFileSize,
		MaxDepth:      c.Flatten.MaxDepth,
		PageSize:      c.Flatten.PageSize,
		UploadTimeout: c.Upload.Timeout,
		MaxConcurrent: c.Upload.MaxConcurrent,
		MaxWait:       c.Upload.MaxWaitTime,
	}
}
