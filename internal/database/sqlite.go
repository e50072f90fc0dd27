package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn, err := buildSQLiteDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(cfg))
	if err != nil {
		return nil, err
	}

	// Role hierarchy cleanup relies on ON DELETE rules.
	if err := enableForeignKeys(db); err != nil {
		return nil, err
	}

	return db, nil
}

// buildSQLiteDSN turns a file path into a DSN. Entries in cfg.Options are
// appended as query parameters and override the defaults.
func buildSQLiteDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}

	path := strings.TrimSpace(cfg.Path)
	options := map[string]string{"_foreign_keys": "1"}

	var target string
	if path == "" || strings.EqualFold(path, ":memory:") {
		target = "file::memory:"
		options["cache"] = "shared"
	} else {
		if err := ensureDir(path); err != nil {
			return "", err
		}
		target = "file:" + filepath.ToSlash(path)
		options["_journal_mode"] = "WAL"
		options["_busy_timeout"] = "5000"
	}

	for key, value := range cfg.Options {
		key = strings.TrimSpace(key)
		if key == "" {
			return "", errors.New("sqlite option names must not be empty")
		}
		options[key] = value
	}

	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	params := make([]string, 0, len(keys))
	for _, key := range keys {
		params = append(params, fmt.Sprintf("%s=%s", key, url.QueryEscape(options[key])))
	}
	return target + "?" + strings.Join(params, "&"), nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func enableForeignKeys(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
