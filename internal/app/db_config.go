package app

import (
	"strings"

	"github.com/charlesng35/gatekeeper/internal/database"
)

// ConnectionConfig maps the configured driver section onto database.Config.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:            c.Path,
		DSN:             c.DSN,
		Options:         c.Options,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		SlowThreshold:   c.SlowThreshold,
	}

	var section DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		section = c.Postgres
	case "mysql":
		section = c.MySQL
	default:
		return cfg
	}
	cfg.Host = section.Host
	cfg.Port = section.Port
	cfg.Name = section.Database
	cfg.User = section.Username
	cfg.Password = section.Password
	return cfg
}
