package db

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// Dialect builds the postgres dialector. A non-empty service key replaces the
// password embedded in the URL.
func Dialect(cfg Config) (gorm.Dialector, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	return postgres.Open(dsn), nil
}

func DSN(cfg Config) (string, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return "", ErrMissingDatabaseURL
	}
	key := strings.TrimSpace(cfg.ServiceKey)
	if key == "" {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("DATABASE_URL must be a postgres URL when DATABASE_SERVICE_KEY is set: %w", errInvalidURL(err))
	}
	username := "postgres"
	if u.User != nil && u.User.Username() != "" {
		username = u.User.Username()
	}
	u.User = url.UserPassword(username, key)
	return u.String(), nil
}

func errInvalidURL(err error) error {
	if err != nil {
		return err
	}
	return errors.New("missing scheme")
}
