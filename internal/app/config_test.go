package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "default", cfg.Application.ID)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 16384, cfg.Cache.Size)
	require.Equal(t, 90, cfg.Audit.RetentionDays)
	require.Equal(t, "@daily", cfg.Audit.CleanupSchedule)
	require.EqualValues(t, 5000, cfg.Audit.ExportThreshold)
	require.False(t, cfg.Jobs.Enabled)
	require.Equal(t, "127.0.0.1:6379", cfg.Jobs.Redis.Address)
	require.Equal(t, 5*time.Second, cfg.Jobs.Redis.Timeout)
	require.Equal(t, "@every 1m", cfg.Violations.SweepSchedule)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 9100
  log_level: debug
application:
  id: billing
database:
  driver: postgres
  host: db.internal
  port: 5432
  name: aegis
jobs:
  enabled: true
  redis:
    address: queue.internal:6379
    timeout: 30s
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "billing", cfg.Application.ID)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.internal", cfg.Database.Host)
	require.True(t, cfg.Jobs.Enabled)
	require.Equal(t, "queue.internal:6379", cfg.Jobs.Redis.Address)
	require.Equal(t, 30*time.Second, cfg.Jobs.Redis.Timeout)

	// Unset sections keep their defaults.
	require.Equal(t, 90, cfg.Audit.RetentionDays)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("AEGIS_SERVER_PORT", "9000")
	t.Setenv("AEGIS_APPLICATION_ID", "crm")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "crm", cfg.Application.ID)
}

func TestDatabaseConfigConversion(t *testing.T) {
	section := DatabaseConfig{
		Driver:   "mysql",
		Host:     "db",
		Port:     3306,
		Username: "aegis",
		Password: "secret",
		Name:     "authz",
		Options:  map[string]string{"charset": "utf8mb4"},
	}

	cfg := section.ToDatabaseConfig()
	require.Equal(t, "mysql", cfg.Driver)
	require.Equal(t, "db", cfg.Host)
	require.Equal(t, 3306, cfg.Port)
	require.Equal(t, "aegis", cfg.User)
	require.Equal(t, "secret", cfg.Password)
	require.Equal(t, "authz", cfg.Name)
	require.Equal(t, "utf8mb4", cfg.Options["charset"])
}
