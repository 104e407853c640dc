// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 3001)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"3001"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// MaxBodyBytes caps JSON request bodies (default: 10MB)
	MaxBodyBytes int64 `env:"SERVER_MAX_BODY_BYTES" default:"10485760"`
}

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	// URL is the store connection string. Its scheme selects the backend:
	// mongodb://, mongodb+srv://, postgres://, postgresql:// or memory://.
	// Supports both DATABASE_URL and MONGO_URI env vars for compatibility.
	URL string `env:"DATABASE_URL" envAlt:"MONGO_URI"`

	// Name is the MongoDB database name (default: trasporti)
	Name string `env:"DB_NAME" default:"trasporti"`

	// Collection is the records collection or table (default: trasporti)
	Collection string `env:"DB_COLLECTION" default:"trasporti"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// ConnectTimeout bounds the initial connect and ping (default: 10s)
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"10s"`
}

// AuthConfig holds token and credential settings.
type AuthConfig struct {
	// JWTSecret signs and verifies bearer tokens. Required by the server.
	JWTSecret string `env:"JWT_SECRET"`

	// TokenTTL is the lifetime of user login tokens (default: 168h)
	TokenTTL time.Duration `env:"JWT_EXPIRES_IN" default:"168h"`

	// AdminTokenTTL is the lifetime of fixed admin login tokens (default: 4h)
	AdminTokenTTL time.Duration `env:"ADMIN_TOKEN_TTL" default:"4h"`

	// AdminUser and AdminPass are the fixed admin credentials (both or neither)
	AdminUser string `env:"ADMIN_USER"`
	AdminPass string `env:"ADMIN_PASS"`

	// MasterUsername and MasterPassword seed the master user (create-master)
	MasterUsername string `env:"MASTER_USERNAME"`
	MasterPassword string `env:"MASTER_PASSWORD"`
}

// ImportConfig holds spreadsheet import settings.
type ImportConfig struct {
	// Source is the spreadsheet to import (default: usato.xlsx)
	Source string `env:"IMPORT_SOURCE" default:"usato.xlsx"`

	// SchemaOut is where the schema artifact is written
	SchemaOut string `env:"IMPORT_SCHEMA_OUT" default:"models/trasporto.schema.json"`

	// AllowedHeaders is the comma-separated header allow-list
	AllowedHeaders []string `env:"IMPORT_ALLOWED_HEADERS" default:"#,CLIENTE,DATA,MODELLO,TARGA,REGIONE CARICO,CARICO,SCARICO,NOTE,PAGAMENTO,AUTISTA CARICO,AUTISTA SCARICO,INDIRIZZO RITIRO,n° FATTURA,DEPOSITO"`

	// ForceText lists headers that are always typed as text
	ForceText []string `env:"IMPORT_FORCE_TEXT" default:"AUTISTA CARICO,AUTISTA SCARICO"`

	// SampleSize is the number of values inspected per column (default: 200)
	SampleSize int `env:"IMPORT_SAMPLE_SIZE" default:"200"`

	// BatchSize is the number of records per bulk insert (default: 1000)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"1000"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// LoginLimit is requests per minute for the login endpoint (default: 10)
	LoginLimit int `env:"RATE_LIMIT_LOGIN" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// AllowedOrigins is the comma-separated CORS origin list (default: *)
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"*"`
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

// HasAdmin reports whether fixed admin credentials are configured.
func (c *AuthConfig) HasAdmin() bool {
	return c.AdminUser != "" && c.AdminPass != ""
}
