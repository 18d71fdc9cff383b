//go:build sqlite && !postgres

package main

import (
	"alarmtrack/internal/audit"
	"alarmtrack/internal/observability"
	"alarmtrack/internal/storage"
	sqlitestore "alarmtrack/internal/storage/sqlite"
)

// selectStore returns a SQLite-backed store when built with the 'sqlite' tag.
// Configure with sqlite_dsn in the config file or the SQLITE_DSN env var.
func selectStore(logger observability.Logger, cfg *Config) storage.Store {
	st, err := sqlitestore.New(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("sqlite init failed; falling back to memory store", "error", err)
		return storage.NewMemoryStore()
	}
	logger.Info("using sqlite store", "dsn", cfg.SQLiteDSN)
	return st
}

// selectAuditLogger writes audit entries into the same SQLite database as
// the main store.
func selectAuditLogger(logger observability.Logger, store storage.Store) audit.Logger {
	st, ok := store.(*sqlitestore.Store)
	if !ok {
		logger.Warn("store is not sqlite-backed; using in-memory audit logger")
		return audit.NewMemoryLogger()
	}
	al, err := audit.NewSQLiteLoggerFromDB(st.DB())
	if err != nil {
		logger.Error("sqlite audit logger init failed; falling back to memory", "error", err)
		return audit.NewMemoryLogger()
	}
	logger.Info("using sqlite audit logger")
	return al
}
