package database

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// Config contains database connection options.
type Config struct {
	Driver   string
	Path     string // SQLite database path when Driver == sqlite
	DSN      string // Optional DSN override
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		return openSQLite(cfg)
	case "postgres", "postgresql":
		return openPostgres(cfg)
	case "mysql":
		return openMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenURL opens a connection described by a DATABASE_URL-style string, as
// used by the operational CLIs.
func OpenURL(raw string) (*gorm.DB, error) {
	cfg, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}
	return Open(cfg)
}

// ParseURL converts a DATABASE_URL into a Config. Supported schemes:
// postgres://, mysql://, sqlite:// (or a bare file path).
func ParseURL(raw string) (Config, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Config{}, errors.New("database url is empty")
	}

	if !strings.Contains(raw, "://") {
		return Config{Driver: "sqlite", Path: raw}, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse database url: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "sqlite", "file":
		path := parsed.Opaque
		if path == "" {
			path = strings.TrimPrefix(parsed.Path, "/")
		}
		return Config{Driver: "sqlite", Path: path}, nil
	case "postgres", "postgresql":
		return Config{Driver: "postgres", DSN: raw}, nil
	case "mysql":
		cfg := Config{Driver: "mysql", Host: parsed.Hostname(), Name: strings.TrimPrefix(parsed.Path, "/")}
		if parsed.User != nil {
			cfg.User = parsed.User.Username()
			cfg.Password, _ = parsed.User.Password()
		}
		if port := parsed.Port(); port != "" {
			value, err := strconv.Atoi(port)
			if err != nil {
				return Config{}, fmt.Errorf("parse database url: invalid port %q", port)
			}
			cfg.Port = value
		}
		return cfg, nil
	default:
		return Config{}, fmt.Errorf("unsupported database url scheme %q", parsed.Scheme)
	}
}
