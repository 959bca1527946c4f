package main

import (
	"log"

	"github.com/bitfantasy/nimo-scm/internal/database"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update SCM tables",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		zapLogger, err := initLogger(cfg.Log)
		if err != nil {
			log.Fatalf("Failed to init logger: %v", err)
		}
		defer zapLogger.Sync()

		db, err := database.Open(cfg.Database)
		if err != nil {
			zapLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := database.Migrate(db); err != nil {
			zapLogger.Fatal("Migration failed", zap.Error(err))
		}
		zapLogger.Info("Migration completed", zap.String("driver", cfg.Database.Driver))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
