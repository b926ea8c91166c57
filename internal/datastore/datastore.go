// Package datastore provides read-only GORM access to the two databases
// the verifier compares: the legacy site's MySQL schema and the
// destination application's database. Neither store ever writes; all
// mutation of the destination goes through its HTTP API.
package datastore

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// createGormLogger bridges GORM's logging to our slog setup. Anything
// below a slow-query warning is noise during verification runs.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(
		slogWriter{},
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}

type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Default().Info(fmt.Sprintf(format, args...), "service", "datastore")
}

func closeDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("retrieving underlying connection: %w", err)
	}
	return sqlDB.Close()
}
