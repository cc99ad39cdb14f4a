package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/store"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database bundles the handles sharing one connection pool: GORM for the
// write side, sqlx for the read models.
type Database struct {
	Gorm   *gorm.DB
	SQLX   *sqlx.DB
	Driver string
}

func (d *Database) SQL() *sql.DB {
	return d.SQLX.DB
}

func (d *Database) Close() error {
	return d.SQLX.Close()
}

// initDB opens the configured database and applies the pool settings.
func initDB(cfg internal.DatabaseConfig) (*Database, error) {
	gormCfg := &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var (
		gdb        *gorm.DB
		sqlxDriver string
		err        error
	)

	switch cfg.Driver {
	case "sqlite":
		gdb, err = gorm.Open(sqlite.Open(cfg.Source), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		sqlxDriver = "sqlite3"
	default:
		sqlDB, err := sql.Open("pgx", cfg.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to open db connection: %w", err)
		}
		gdb, err = gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormCfg)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to open gorm over pgx: %w", err)
		}
		sqlxDriver = "pgx"
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	if cfg.Driver == "sqlite" {
		// one writer; sqlite serialises anyway
		sqlDB.SetMaxOpenConns(1)
	}

	// verify connection; close underlying *sql.DB on failure
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		if err := store.AutoMigrate(gdb); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	slog.Info("database connected", "driver", cfg.Driver, "isolation", cfg.Isolation().String())
	return &Database{Gorm: gdb, SQLX: sqlx.NewDb(sqlDB, sqlxDriver), Driver: cfg.Driver}, nil
}
