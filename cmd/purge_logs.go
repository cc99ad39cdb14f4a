package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var purgeDays int

var purgeLogsCmd = &cobra.Command{
	Use:   "purge-logs",
	Short: "Delete audit logs older than the retention window",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		days := purgeDays
		if days == 0 {
			days = cfg.Audit.Days()
		}

		purged, err := newServices(cfg, db, nil).Audit.PurgeOlderThan(cmd.Context(), days)
		if err != nil {
			log.Fatalf("purge failed: %v", err)
		}
		fmt.Printf("purged %d log rows older than %d days\n", purged, days)
	},
}

func init() {
	purgeLogsCmd.Flags().IntVar(&purgeDays, "days", 0, "retention in days; defaults to audit.retention_days")
}
