package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		driver string
		check  func(t *testing.T, cfg Config)
	}{
		{
			name:   "bare path is sqlite",
			raw:    "./data/app.sqlite",
			driver: "sqlite",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "./data/app.sqlite", cfg.Path)
			},
		},
		{
			name:   "sqlite scheme",
			raw:    "sqlite://data/app.sqlite",
			driver: "sqlite",
		},
		{
			name:   "postgres keeps full dsn",
			raw:    "postgres://user:pass@db:5432/skyquote",
			driver: "postgres",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "postgres://user:pass@db:5432/skyquote", cfg.DSN)
			},
		},
		{
			name:   "mysql decomposed",
			raw:    "mysql://user:pass@db:3306/skyquote",
			driver: "mysql",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "db", cfg.Host)
				assert.Equal(t, 3306, cfg.Port)
				assert.Equal(t, "skyquote", cfg.Name)
				assert.Equal(t, "user", cfg.User)
				assert.Equal(t, "pass", cfg.Password)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ParseURL(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.driver, cfg.Driver)
			if tc.check != nil {
				tc.check(t, cfg)
			}
		})
	}
}

func TestParseURLRejectsBadInput(t *testing.T) {
	_, err := ParseURL("")
	assert.Error(t, err)

	_, err = ParseURL("redis://localhost:6379")
	assert.Error(t, err)

	_, err = ParseURL("mysql://user@db:99999999999999999999/skyquote")
	assert.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "app", Password: "secret", Host: "db.example.com", Port: 3307, Name: "skyquote"})
	require.NoError(t, err)
	assert.Equal(t, "app:secret@tcp(db.example.com:3307)/skyquote?charset=utf8mb4&loc=Local&parseTime=True", dsn)

	dsn, err = buildMySQLDSN(Config{User: "app", Name: "skyquote"})
	require.NoError(t, err)
	assert.Equal(t, "app@tcp(127.0.0.1:3306)/skyquote?charset=utf8mb4&loc=Local&parseTime=True", dsn)

	_, err = buildMySQLDSN(Config{Host: "db"})
	assert.Error(t, err)
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "app", Password: "secret", Host: "db.example.com", Port: 5433, Name: "skyquote"})
	require.NoError(t, err)
	assert.Equal(t, "host=db.example.com port=5433 user=app dbname=skyquote password=secret sslmode=disable", dsn)

	_, err = buildPostgresDSN(Config{User: "app"})
	assert.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	assert.Error(t, err)
}
