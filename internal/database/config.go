package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// parseBoolEnv reads key as a boolean. The second result reports whether
// the variable was set to a recognised value.
func parseBoolEnv(key string) (bool, bool) {
	value := os.Getenv(key)
	if value == "" {
		return false, false
	}

	if parsed, err := strconv.ParseBool(value); err == nil {
		return parsed, true
	}

	switch strings.ToLower(value) {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

// Config holds session store configuration
type Config struct {
	Driver      string `json:"driver" yaml:"driver" mapstructure:"driver"`                // sqlite or postgres
	Path        string `json:"path" yaml:"path" mapstructure:"path"`                      // SQLite file path
	PostgresURL string `json:"postgresUrl" yaml:"postgresUrl" mapstructure:"postgres_url"` // used when Driver is postgres

	MaxConnections        int           `json:"maxConnections" yaml:"maxConnections" mapstructure:"max_connections"`
	MaxIdleConns          int           `json:"maxIdleConns" yaml:"maxIdleConns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime       time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime       time.Duration `json:"connMaxIdleTime" yaml:"connMaxIdleTime" mapstructure:"conn_max_idle_time"`
	ForceSingleConnection bool          `json:"forceSingleConnection" yaml:"forceSingleConnection" mapstructure:"force_single_connection"`
	ConnectTimeout        time.Duration `json:"connectTimeout" yaml:"connectTimeout" mapstructure:"connect_timeout"`

	AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate" mapstructure:"auto_migrate"`

	// SQLite pragmas
	JournalMode     string `json:"journalMode" yaml:"journalMode" mapstructure:"journal_mode"`
	SynchronousMode string `json:"synchronousMode" yaml:"synchronousMode" mapstructure:"synchronous_mode"`
	CacheSize       int    `json:"cacheSize" yaml:"cacheSize" mapstructure:"cache_size"`       // KB
	BusyTimeout     int    `json:"busyTimeout" yaml:"busyTimeout" mapstructure:"busy_timeout"` // ms
	ForeignKeys     bool   `json:"foreignKeys" yaml:"foreignKeys" mapstructure:"foreign_keys"`

	RetentionDays int  `json:"retentionDays" yaml:"retentionDays" mapstructure:"retention_days"` // 0 keeps everything
	EnableCleanup bool `json:"enableCleanup" yaml:"enableCleanup" mapstructure:"enable_cleanup"`

	Environment string `json:"environment" yaml:"environment" mapstructure:"environment"`
	LogLevel    string `json:"logLevel" yaml:"logLevel" mapstructure:"log_level"`
}

// DefaultConfig returns production defaults backed by a local SQLite file
func DefaultConfig() *Config {
	return &Config{
		Driver:          DriverSQLite,
		Path:            "zenfocus.db",
		MaxConnections:  10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 24 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		ConnectTimeout:  5 * time.Second,
		AutoMigrate:     true,
		JournalMode:     "WAL",
		SynchronousMode: "NORMAL",
		CacheSize:       2000,
		BusyTimeout:     30000,
		ForeignKeys:     true,
		RetentionDays:   365,
		EnableCleanup:   true,
		Environment:     "production",
		LogLevel:        "info",
	}
}

// DevelopmentConfig keeps a month of sessions and logs at debug
func DevelopmentConfig() *Config {
	config := DefaultConfig()
	config.Path = "zenfocus_dev.db"
	config.Environment = "development"
	config.LogLevel = "debug"
	config.RetentionDays = 30
	config.EnableCleanup = false
	return config
}

// TestConfig uses an in-memory database on a single connection
func TestConfig() *Config {
	config := DefaultConfig()
	config.Path = ":memory:"
	config.Environment = "test"
	config.LogLevel = "error"
	config.RetentionDays = 0
	config.EnableCleanup = false
	config.ForceSingleConnection = true

	config.JournalMode = "MEMORY"
	config.SynchronousMode = "OFF"
	config.CacheSize = 1000
	config.BusyTimeout = 1000
	return config
}

// LoadFromEnvironment overrides fields from ZENFOCUS_DB_* variables.
// Unparseable values are ignored.
func (c *Config) LoadFromEnvironment() error {
	strVars := map[string]*string{
		"ZENFOCUS_DB_DRIVER":           &c.Driver,
		"ZENFOCUS_DB_PATH":             &c.Path,
		"ZENFOCUS_DB_POSTGRES_URL":     &c.PostgresURL,
		"ZENFOCUS_DB_JOURNAL_MODE":     &c.JournalMode,
		"ZENFOCUS_DB_SYNCHRONOUS_MODE": &c.SynchronousMode,
		"ZENFOCUS_ENVIRONMENT":         &c.Environment,
		"ZENFOCUS_DB_LOG_LEVEL":        &c.LogLevel,
	}
	for key, target := range strVars {
		if value := os.Getenv(key); value != "" {
			*target = value
		}
	}

	positiveInts := map[string]*int{
		"ZENFOCUS_DB_MAX_CONNECTIONS":      &c.MaxConnections,
		"ZENFOCUS_DB_MAX_IDLE_CONNECTIONS": &c.MaxIdleConns,
		"ZENFOCUS_DB_CACHE_SIZE":           &c.CacheSize,
	}
	for key, target := range positiveInts {
		if raw := os.Getenv(key); raw != "" {
			if val, err := strconv.Atoi(raw); err == nil && val > 0 {
				*target = val
			}
		}
	}

	nonNegativeInts := map[string]*int{
		"ZENFOCUS_DB_BUSY_TIMEOUT":   &c.BusyTimeout,
		"ZENFOCUS_DB_RETENTION_DAYS": &c.RetentionDays,
	}
	for key, target := range nonNegativeInts {
		if raw := os.Getenv(key); raw != "" {
			if val, err := strconv.Atoi(raw); err == nil && val >= 0 {
				*target = val
			}
		}
	}

	durations := map[string]*time.Duration{
		"ZENFOCUS_DB_CONN_MAX_LIFETIME":  &c.ConnMaxLifetime,
		"ZENFOCUS_DB_CONN_MAX_IDLE_TIME": &c.ConnMaxIdleTime,
		"ZENFOCUS_DB_CONNECT_TIMEOUT":    &c.ConnectTimeout,
	}
	for key, target := range durations {
		if raw := os.Getenv(key); raw != "" {
			if val, err := time.ParseDuration(raw); err == nil {
				*target = val
			}
		}
	}

	bools := map[string]*bool{
		"ZENFOCUS_DB_AUTO_MIGRATE":            &c.AutoMigrate,
		"ZENFOCUS_DB_FOREIGN_KEYS":            &c.ForeignKeys,
		"ZENFOCUS_DB_FORCE_SINGLE_CONNECTION": &c.ForceSingleConnection,
		"ZENFOCUS_DB_ENABLE_CLEANUP":          &c.EnableCleanup,
	}
	for key, target := range bools {
		if val, present := parseBoolEnv(key); present {
			*target = val
		}
	}

	return nil
}

// Validate checks the configuration and creates the SQLite directory if needed
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if err := c.validateSQLite(); err != nil {
			return err
		}
	case DriverPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgresUrl cannot be empty when driver is %s", DriverPostgres)
		}
	default:
		return fmt.Errorf("invalid driver: %q", c.Driver)
	}

	if c.MaxConnections <= 0 {
		return fmt.Errorf("maxConnections must be positive, got %d", c.MaxConnections)
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("maxIdleConns cannot be negative, got %d", c.MaxIdleConns)
	}
	if c.MaxIdleConns > c.MaxConnections {
		return fmt.Errorf("maxIdleConns (%d) cannot be greater than maxConnections (%d)", c.MaxIdleConns, c.MaxConnections)
	}
	if c.ConnMaxLifetime < 0 {
		return fmt.Errorf("connMaxLifetime cannot be negative, got %v", c.ConnMaxLifetime)
	}
	if c.ConnMaxIdleTime < 0 {
		return fmt.Errorf("connMaxIdleTime cannot be negative, got %v", c.ConnMaxIdleTime)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("connectTimeout cannot be negative, got %v", c.ConnectTimeout)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retentionDays cannot be negative, got %d", c.RetentionDays)
	}

	switch c.Environment {
	case "development", "test", "production":
	default:
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logLevel: %s", c.LogLevel)
	}

	return nil
}

func (c *Config) validateSQLite() error {
	if c.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if !c.IsInMemory() {
		dir := filepath.Dir(c.Path)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create database directory %s: %w", dir, err)
				}
			}
		}
	}

	journalModes := []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}
	valid := false
	for _, mode := range journalModes {
		if strings.EqualFold(c.JournalMode, mode) {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid journalMode: %s", c.JournalMode)
	}
	if c.IsInMemory() && strings.EqualFold(c.JournalMode, "WAL") {
		return fmt.Errorf("journalMode cannot be WAL when using in-memory database")
	}

	switch c.SynchronousMode {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("invalid synchronousMode: %s", c.SynchronousMode)
	}

	if c.CacheSize <= 0 {
		return fmt.Errorf("cacheSize must be positive, got %d", c.CacheSize)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("busyTimeout cannot be negative, got %d", c.BusyTimeout)
	}
	return nil
}

// GetConnectionString builds the go-sqlite3 DSN with pragmas as query parameters
func (c *Config) GetConnectionString() string {
	values := url.Values{}
	if c.ForeignKeys {
		values.Set("_foreign_keys", "on")
	} else {
		values.Set("_foreign_keys", "off")
	}
	values.Set("_journal_mode", c.JournalMode)
	values.Set("_synchronous", c.SynchronousMode)
	// negative cache size is interpreted as KB
	values.Set("_cache_size", strconv.Itoa(-c.CacheSize))
	values.Set("_busy_timeout", strconv.Itoa(c.BusyTimeout))

	path := c.Path
	if strings.ContainsAny(path, "?&") {
		path = strings.ReplaceAll(path, "?", "%3F")
		path = strings.ReplaceAll(path, "&", "%26")
	}

	return path + "?" + values.Encode()
}

// Clone returns a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// RetentionCutoff is the instant before which sessions are eligible for cleanup.
// The second result is false when retention is disabled.
func (c *Config) RetentionCutoff(now time.Time) (time.Time, bool) {
	if c.RetentionDays <= 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -c.RetentionDays), true
}

func (c *Config) IsInMemory() bool    { return c.Path == ":memory:" }
func (c *Config) IsPostgres() bool    { return c.Driver == DriverPostgres }
func (c *Config) IsDevelopment() bool { return c.Environment == "development" }
func (c *Config) IsTest() bool        { return c.Environment == "test" }
func (c *Config) IsProduction() bool  { return c.Environment == "production" }

// ConfigForEnvironment returns the preset for env, defaulting to production
func ConfigForEnvironment(env string) *Config {
	switch env {
	case "development":
		return DevelopmentConfig()
	case "test":
		return TestConfig()
	default:
		return DefaultConfig()
	}
}
