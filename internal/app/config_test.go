package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 50, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 6543, cfg.Database.Postgres.Port)

	require.Equal(t, "test-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 12*time.Hour, cfg.Auth.JWT.RoomTokenTTL)

	require.Equal(t, 0.2, cfg.Matching.TagBonus)
	require.Equal(t, 5, cfg.Matching.MaxResults)

	require.False(t, cfg.Maintenance.Enabled)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWT.RoomTokenTTL)
	require.Equal(t, 0.1, cfg.Matching.TagBonus)
	require.Equal(t, "@hourly", cfg.Maintenance.RoomSweepSpec)
	require.Equal(t, 6*time.Hour, cfg.Maintenance.RoomIdleAfter)
}

func TestDatabaseSettingsPostgres(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Driver = "postgres"
	cfg.Database.Postgres.Host = "db.internal"
	cfg.Database.Postgres.Port = 5433
	cfg.Database.Postgres.Username = "app"
	cfg.Database.Postgres.Password = "secret"
	cfg.Database.Postgres.Database = "coreleven"

	settings := cfg.DatabaseSettings()
	require.Equal(t, "postgres", settings.Driver)
	require.Equal(t, "db.internal", settings.Host)
	require.Equal(t, 5433, settings.Port)
	require.Equal(t, "app", settings.User)
	require.Equal(t, "coreleven", settings.Name)
}
