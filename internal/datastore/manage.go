package datastore

import (
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tlahtinen/trackguard/internal/conf"
	"github.com/tlahtinen/trackguard/internal/errors"
	"github.com/tlahtinen/trackguard/internal/observability/metrics"
)

// New creates the datastore selected by the output settings, or nil when no
// database output is enabled.
func New(settings *conf.Settings, dsMetrics *metrics.DatastoreMetrics) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{Metrics: dsMetrics},
			Settings:  settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{Metrics: dsMetrics},
			Settings:  settings,
		}
	default:
		return nil
	}
}

// createGormLogger builds the GORM logger. Debug mode logs every statement,
// otherwise only slow queries and errors surface.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// performAutoMigration creates or updates the schema for every model.
func performAutoMigration(db *gorm.DB, dbType string) error {
	start := time.Now()
	if err := db.AutoMigrate(
		&Artist{},
		&Album{},
		&Track{},
		&Play{},
		&Decision{},
		&SourceResult{},
		&LLMResult{},
		&TrackAction{},
		&Override{},
	); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Build()
	}
	logger.Debug("database migration completed",
		"db_type", dbType,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
