package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

var durationType = reflect.TypeOf(time.Duration(0))

// envValue returns the first non-empty value among a field's env tags,
// falling back to its default tag.
func envValue(field reflect.StructField) (value, name string, ok bool) {
	name = field.Tag.Get("env")
	if name == "" {
		return "", "", false
	}
	for _, key := range []string{name, field.Tag.Get("envAlt")} {
		if key == "" {
			continue
		}
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, name, true
		}
	}
	return field.Tag.Get("default"), name, true
}

// loadStruct fills the tagged fields of v, descending into nested config
// groups. path names the group in error messages.
func loadStruct(v reflect.Value, path string) error {
	t := v.Type()

	for i := range t.NumField() {
		field := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fv, path+field.Name+"."); err != nil {
				return err
			}
			continue
		}

		value, name, tagged := envValue(field)
		if !tagged {
			continue
		}
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("%s%s: required environment variable %s is not set", path, field.Name, name)
			}
			continue
		}

		if err := setField(fv, value); err != nil {
			return fmt.Errorf("%s%s: %s=%q: %w", path, field.Name, name, value, err)
		}
	}

	return nil
}

// setField parses value into field according to its kind. Slices are
// comma separated; empty items are dropped.
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", field.Type().Elem().Kind())
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.ConnectTimeout <= 0 {
		errs = append(errs, "DB_CONNECT_TIMEOUT must be positive")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, "SERVER_MAX_BODY_BYTES must be positive")
	}

	// Auth validation
	if (c.Auth.AdminUser == "") != (c.Auth.AdminPass == "") {
		errs = append(errs, "ADMIN_USER and ADMIN_PASS must be set together")
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, "JWT_EXPIRES_IN must be positive")
	}
	if c.Auth.AdminTokenTTL <= 0 {
		errs = append(errs, "ADMIN_TOKEN_TTL must be positive")
	}

	// Import validation
	if len(c.Import.AllowedHeaders) == 0 {
		errs = append(errs, "IMPORT_ALLOWED_HEADERS must list at least one header")
	}
	if c.Import.SampleSize <= 0 {
		errs = append(errs, "IMPORT_SAMPLE_SIZE must be positive")
	}
	if c.Import.BatchSize <= 0 {
		errs = append(errs, "IMPORT_BATCH_SIZE must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.LoginLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_LOGIN must be positive when rate limiting is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// RequireServer checks the settings only the HTTP server needs. The
// importer does not call it, so a schema artifact can be produced without
// a store or a signing secret.
func (c *Config) RequireServer() error {
	var errs []string
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL (or MONGO_URI) is required")
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("server configuration incomplete:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and secrets are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, Name: %q, Collection: %q, MaxConns: %d, MinConns: %d}, ",
		mask(c.Database.URL), c.Database.Name, c.Database.Collection, c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Auth: {JWTSecret: %s, TokenTTL: %s, AdminUser: %q, AdminPass: %s}, ",
		mask(c.Auth.JWTSecret), c.Auth.TokenTTL, c.Auth.AdminUser, mask(c.Auth.AdminPass)))
	b.WriteString(fmt.Sprintf("Import: {Source: %q, SchemaOut: %q, SampleSize: %d, BatchSize: %d}, ",
		c.Import.Source, c.Import.SchemaOut, c.Import.SampleSize, c.Import.BatchSize))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
