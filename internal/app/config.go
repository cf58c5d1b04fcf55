package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"zenfocus/internal/cache"
	"zenfocus/internal/database"
	"zenfocus/internal/detection"
	"zenfocus/internal/platform"
	"zenfocus/internal/stats"
)

// EnvPrefix namespaces environment overrides: database.path becomes ZENFOCUS_DATABASE_PATH
const EnvPrefix = "ZENFOCUS"

// Config is the complete application configuration
type Config struct {
	Environment     string           `mapstructure:"environment"`
	UserID          string           `mapstructure:"user"`
	Location        string           `mapstructure:"location"`
	BucketScoreMode string           `mapstructure:"bucket_score_mode"`
	LookbackDays    int              `mapstructure:"lookback_days"`
	LogLevel        string           `mapstructure:"log_level"`
	Database        database.Config  `mapstructure:"database"`
	Detection       detection.Config `mapstructure:"detection"`
	Cache           cache.Options    `mapstructure:"cache"`
}

// LoadConfig reads defaults, then the optional YAML file at path, then
// ZENFOCUS_* environment variables. Database defaults follow the environment preset.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("environment", "production")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	setDefaults(v, v.GetString("environment"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Database.Environment = cfg.Environment
	cfg.Database.LogLevel = cfg.LogLevel
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, env string) {
	db := database.ConfigForEnvironment(env)
	det := detection.DefaultConfig()

	defaults := map[string]any{
		"user":              "local",
		"location":          "Local",
		"bucket_score_mode": string(stats.BucketScoreRunning),
		"lookback_days":     365,
		"log_level":         db.LogLevel,

		"database.driver":                  db.Driver,
		"database.path":                    db.Path,
		"database.postgres_url":            db.PostgresURL,
		"database.max_connections":         db.MaxConnections,
		"database.max_idle_conns":          db.MaxIdleConns,
		"database.conn_max_lifetime":       db.ConnMaxLifetime,
		"database.conn_max_idle_time":      db.ConnMaxIdleTime,
		"database.force_single_connection": db.ForceSingleConnection,
		"database.connect_timeout":         db.ConnectTimeout,
		"database.auto_migrate":            db.AutoMigrate,
		"database.journal_mode":            db.JournalMode,
		"database.synchronous_mode":        db.SynchronousMode,
		"database.cache_size":              db.CacheSize,
		"database.busy_timeout":            db.BusyTimeout,
		"database.foreign_keys":            db.ForeignKeys,
		"database.retention_days":          db.RetentionDays,
		"database.enable_cleanup":          db.EnableCleanup,

		"detection.sleep_confirm_frames":      det.SleepConfirmFrames,
		"detection.up_glance_grace_frames":    det.UpGlanceGraceFrames,
		"detection.side_glance_grace_frames":  det.SideGlanceGraceFrames,
		"detection.look_away_distract_frames": det.LookAwayDistractFrames,
		"detection.smoothing_window":          det.SmoothingWindow,
		"detection.reading_yaw_threshold":     det.ReadingYawThreshold,
		"detection.gaze_yaw_threshold":        det.GazeYawThreshold,
		"detection.gaze_pitch_threshold":      det.GazePitchThreshold,
		"detection.study_mode":                det.StudyMode,
		"detection.sensitivity":               det.Sensitivity,

		"cache.addr":     "",
		"cache.password": "",
		"cache.db":       0,
		"cache.ttl":      cache.DefaultTTL,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Validate checks every section. Errors from all sections are joined.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.UserID) == "" {
		errs = append(errs, errors.New("user cannot be empty"))
	}
	if c.LookbackDays <= 0 {
		errs = append(errs, fmt.Errorf("lookback_days must be positive, got %d", c.LookbackDays))
	}
	if _, err := platform.LoadLocation(c.Location); err != nil {
		errs = append(errs, err)
	}
	if _, err := stats.ParseBucketScoreMode(c.BucketScoreMode); err != nil {
		errs = append(errs, err)
	}
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if err := c.Detection.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detection: %w", err))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache: ttl cannot be negative, got %v", c.Cache.TTL))
	}
	return errors.Join(errs...)
}
