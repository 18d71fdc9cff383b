//go:build !sqlite && !postgres

package main

import (
	"alarmtrack/internal/audit"
	"alarmtrack/internal/observability"
	"alarmtrack/internal/storage"
)

// selectStore returns the in-memory store when built without a database tag.
// If a database is configured, log a hint to rebuild with the right tag.
func selectStore(logger observability.Logger, cfg *Config) storage.Store {
	if cfg.DatabaseURL != "" {
		logger.Warn("database_url set, but binary not built with -tags postgres; using in-memory store")
	} else if cfg.SQLiteDSN != "" {
		logger.Info("binary built without -tags sqlite; using in-memory store")
	}
	return storage.NewMemoryStore()
}

// selectAuditLogger returns an in-memory audit logger for memory builds.
func selectAuditLogger(logger observability.Logger, _ storage.Store) audit.Logger {
	logger.Info("using in-memory audit logger")
	return audit.NewMemoryLogger()
}
