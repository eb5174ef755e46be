package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/aegisauth/aegis/internal/database"
)

// Config represents the runtime configuration for the authorization engine.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Application ApplicationConfig `mapstructure:"application"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Violations  ViolationsConfig  `mapstructure:"violations"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// ApplicationConfig scopes the engine to one application's policy set.
type ApplicationConfig struct {
	ID string `mapstructure:"id"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string            `mapstructure:"driver"`
	Path     string            `mapstructure:"path"`
	DSN      string            `mapstructure:"dsn"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Name     string            `mapstructure:"name"`
	Options  map[string]string `mapstructure:"options"`
}

// ToDatabaseConfig converts the section into the connection layer's config.
func (d DatabaseConfig) ToDatabaseConfig() database.Config {
	return database.Config{
		Driver:   d.Driver,
		Path:     d.Path,
		DSN:      d.DSN,
		Host:     d.Host,
		Port:     d.Port,
		User:     d.Username,
		Password: d.Password,
		Name:     d.Name,
		Options:  d.Options,
	}
}

// CacheConfig sizes the in-process decision cache.
type CacheConfig struct {
	Size int `mapstructure:"size"`
}

// AuditConfig controls retention and export behaviour for the audit trail.
type AuditConfig struct {
	RetentionDays   int    `mapstructure:"retention_days"`
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
	ExportThreshold int64  `mapstructure:"export_threshold"`
	ExportDir       string `mapstructure:"export_dir"`
}

// JobsConfig configures the async job system for large audit exports.
type JobsConfig struct {
	Enabled     bool        `mapstructure:"enabled"`
	Concurrency int         `mapstructure:"concurrency"`
	Redis       RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection options for the job broker.
type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ViolationsConfig schedules the expired-suspension sweeper.
type ViolationsConfig struct {
	SweepSchedule string `mapstructure:"sweep_schedule"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("AEGIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("application.id", "default")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/aegis.sqlite")

	v.SetDefault("cache.size", 16384)

	v.SetDefault("audit.retention_days", 90)
	v.SetDefault("audit.cleanup_schedule", "@daily")
	v.SetDefault("audit.export_threshold", 5000)
	v.SetDefault("audit.export_dir", "./data/exports")

	v.SetDefault("jobs.enabled", false)
	v.SetDefault("jobs.concurrency", 4)
	v.SetDefault("jobs.redis.address", "127.0.0.1:6379")
	v.SetDefault("jobs.redis.username", "")
	v.SetDefault("jobs.redis.password", "")
	v.SetDefault("jobs.redis.db", 0)
	v.SetDefault("jobs.redis.timeout", "5s")

	v.SetDefault("violations.sweep_schedule", "@every 1m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
