package config

import (
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Load reads configuration from environment variables, applies defaults
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), os.Getenv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envField is the parsed set of struct tags on one config field.
type envField struct {
	name     string
	alt      string
	fallback string
	required bool
	unit     string
}

func parseEnvField(f reflect.StructField) (envField, bool) {
	name := f.Tag.Get("env")
	if name == "" {
		return envField{}, false
	}
	return envField{
		name:     name,
		alt:      f.Tag.Get("envAlt"),
		fallback: f.Tag.Get("default"),
		required: f.Tag.Get("required") == "true",
		unit:     f.Tag.Get("unit"),
	}, true
}

// resolve returns the raw value for the field; "" means leave it zero.
func (e envField) resolve(getenv func(string) string) (string, error) {
	if v := getenv(e.name); v != "" {
		return v, nil
	}
	if e.alt != "" {
		if v := getenv(e.alt); v != "" {
			return v, nil
		}
	}
	if e.required {
		return "", fmt.Errorf("required environment variable %s is not set", e.name)
	}
	return e.fallback, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// loadStruct walks nested section structs and fills tagged fields.
func loadStruct(v reflect.Value, getenv func(string) string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}

		if sf.Type.Kind() == reflect.Struct {
			if err := loadStruct(fv, getenv); err != nil {
				return err
			}
			continue
		}

		ef, ok := parseEnvField(sf)
		if !ok {
			continue
		}

		raw, err := ef.resolve(getenv)
		if err != nil {
			return err
		}
		if raw == "" {
			continue
		}

		if err := assign(fv, raw, ef.unit); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", ef.name, raw, err)
		}
	}

	return nil
}

// assign parses raw into field according to its kind. Integer fields
// tagged unit:"bytes" accept human sizes ("16MiB", "500 kB").
func assign(field reflect.Value, raw, unit string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))

	case field.Kind() == reflect.Int64 && unit == "bytes":
		n, err := humanize.ParseBytes(raw)
		if err != nil {
			return fmt.Errorf("invalid size: %w", err)
		}
		if n > math.MaxInt64 {
			return fmt.Errorf("size %s overflows", raw)
		}
		field.SetInt(int64(n))

	case field.Kind() == reflect.Int || field.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		field.Set(reflect.ValueOf(splitList(raw)))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}

	return nil
}

// splitList splits a comma-separated value, dropping blank entries.
func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	} else if c.Database.Driver() == "" {
		errs = append(errs, "DATABASE_URL must start with postgres://, postgresql://, sqlite: or file:")
	}
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

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}

	if c.Storage.UploadsDir == "" {
		errs = append(errs, "UPLOADS_DIR must not be empty")
	}
	if c.Storage.GeneratedDir == "" {
		errs = append(errs, "GENERATED_DIR must not be empty")
	}
	if c.Storage.MaxEvidenceSize <= 0 {
		errs = append(errs, "EVIDENCE_MAX_SIZE must be positive")
	}

	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	if len(c.Security.JWTSecret) < 16 {
		errs = append(errs, "JWT_SECRET must be at least 16 characters")
	}

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

// String returns a safe string representation of the config for logging.
// The database URL and JWT secret are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {Driver: %s, URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.Driver(), c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Import: {MaxFileSize: %s, MaxConcurrent: %d}, ",
		humanize.IBytes(uint64(max(c.Import.MaxFileSize, 0))), c.Import.MaxConcurrent))
	b.WriteString(fmt.Sprintf("Storage: {UploadsDir: %q, GeneratedDir: %q, MaxEvidenceSize: %s}, ",
		c.Storage.UploadsDir, c.Storage.GeneratedDir, humanize.IBytes(uint64(max(c.Storage.MaxEvidenceSize, 0)))))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString("Security: {JWTSecret: [MASKED]}, ")
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

// Driver reports which database backend the URL selects: "pgx", "sqlite",
// or "" when the scheme is not recognized.
func (c *DatabaseConfig) Driver() string {
	return DriverFor(c.URL)
}

// DriverFor maps a database URL to its driver name.
func DriverFor(url string) string {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "pgx"
	case strings.HasPrefix(url, "sqlite:"), strings.HasPrefix(url, "file:"):
		return "sqlite"
	default:
		return ""
	}
}
