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
	require.Equal(t, "https://quotes.example.com", cfg.Server.BaseURL)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "skyquote-staging", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 10*time.Minute, cfg.Auth.MagicLink.TTL)
	require.Equal(t, 48*time.Hour, cfg.Auth.MagicLink.UsedRetention)

	require.Equal(t, 96*time.Hour, cfg.Invitations.TTL)

	require.False(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@every 1h", cfg.Maintenance.Schedule)
	require.False(t, cfg.Monitoring.Prometheus.Enabled)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, "smtp-user", cfg.Email.SMTP.Username)
	require.Equal(t, "smtp-pass", cfg.Email.SMTP.Password)
	require.Equal(t, "no-reply@example.com", cfg.Email.SMTP.From)
	require.True(t, cfg.Email.SMTP.UseTLS)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/skyquote.sqlite", cfg.Database.Path)
	require.Equal(t, "./migrations", cfg.Database.MigrationsDir)
	require.Equal(t, "skyquote", cfg.Auth.JWT.Issuer)
	require.Equal(t, 12*time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, 15*time.Minute, cfg.Auth.MagicLink.TTL)
	require.Equal(t, 720*time.Hour, cfg.Auth.MagicLink.UsedRetention)
	require.Equal(t, 72*time.Hour, cfg.Invitations.TTL)
	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@every 10m", cfg.Maintenance.Schedule)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.False(t, cfg.Email.SMTP.Enabled)
}

func TestDatabaseConfigConnection(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "postgres",
		Postgres: DBAuthConfig{
			Enabled:  true,
			Host:     "db.example.com",
			Port:     5433,
			Database: "skyquote",
			Username: "app",
			Password: "secret",
		},
	}

	conn := cfg.Connection()
	require.Equal(t, "postgres", conn.Driver)
	require.Equal(t, "db.example.com", conn.Host)
	require.Equal(t, 5433, conn.Port)
	require.Equal(t, "skyquote", conn.Name)
	require.Equal(t, "app", conn.User)
	require.Equal(t, "secret", conn.Password)

	sqlite := DatabaseConfig{Driver: "sqlite", Path: "./data/app.sqlite"}
	require.Equal(t, "./data/app.sqlite", sqlite.Connection().Path)
}
