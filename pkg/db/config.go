package db

import (
	"time"

	"github.com/smallbiznis/guardbook/internal/config"
)

type Config struct {
	URL             string
	ServiceKey      string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
}

func NewConfig(cfg config.Config) Config {
	return Config{
		URL:             cfg.DatabaseURL,
		ServiceKey:      cfg.DatabaseServiceKey,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
	}
}
