package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Open initializes the sqlite database at path and runs migrations.
// Uses the pure Go driver, WAL mode and a single connection; sqlite only
// supports one writer anyway.
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	gdb, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// OpenMemory opens an isolated in-memory database, used by tests.
func OpenMemory() (*gorm.DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	gdb, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// Migrate creates or updates the schema, including the partial unique index
// backing the at-most-one-open-incident invariant.
func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&Monitor{},
		&MonitorGroup{},
		&MonitorConfig{},
		&Ping{},
		&Tag{},
		&MonitorOverdueHistory{},
		&NotificationChannel{},
		&MonitorNotification{},
		&GroupNotification{},
		&NotificationHistory{},
	)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	// One unresolved overdue record per monitor, enforced at the storage
	// layer so overlapping sweeps cannot double-open an incident.
	err = gdb.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_overdue_open
		ON monitor_overdue_histories (monitor_id) WHERE is_resolved = 0`).Error
	if err != nil {
		return fmt.Errorf("create open-incident index: %w", err)
	}
	return nil
}
