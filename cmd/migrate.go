package cmd

import (
	"context"
	"fmt"

	migrations "github.com/frahmantamala/user-management/db/migrations"
	"github.com/frahmantamala/user-management/internal/store"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "apply the embedded sql migrations",
	}
	migrateRollback bool
	migrateStatus   bool
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
	migrateCmd.Flags().BoolVarP(&migrateStatus, "status", "s", false, "print the applied state of every migration")
	migrateCmd.MarkFlagsMutuallyExclusive("rollback", "status")
}

func runMigration(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Database.Driver == "sqlite" {
		if migrateRollback || migrateStatus {
			return fmt.Errorf("migrate: --rollback and --status need the postgres driver, sqlite is migrated from the models")
		}
		// initDB migrates sqlite from the models
		db, err := initDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		return store.AutoMigrate(db.Gorm)
	}

	db, err := goose.OpenDBWithDriver("pgx", cfg.Database.Source)
	if err != nil {
		return fmt.Errorf("goose: failed to open DB: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetTableName("schema_migrations")
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose: %w", err)
	}

	command := migrationCommand(migrateRollback, migrateStatus)
	if err := goose.RunContext(ctx, command, db, "."); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func migrationCommand(rollback, status bool) string {
	switch {
	case status:
		return "status"
	case rollback:
		return "down"
	default:
		return "up"
	}
}
