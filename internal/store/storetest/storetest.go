// Package storetest opens throwaway sqlite databases carrying the full schema.
package storetest

import (
	"database/sql"
	"fmt"

	"github.com/frahmantamala/user-management/internal/store"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open returns an in-memory database with the schema applied. The pool is pinned
// to one connection so every handle sees the same memory database.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := store.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Runner wraps db with the default isolation level, which sqlite accepts.
func Runner(db *gorm.DB, opts ...store.RunnerOption) *store.Runner {
	return store.NewRunner(db, append([]store.RunnerOption{store.WithIsolation(sql.LevelDefault)}, opts...)...)
}

// SQLX shares the gorm pool with a sqlx handle for the read models.
func SQLX(db *gorm.DB) (*sqlx.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return sqlx.NewDb(sqlDB, "sqlite3"), nil
}
