package main

import (
	"fmt"

	"github.com/smallbiznis/vatdesk/internal/config"
	"github.com/smallbiznis/vatdesk/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the database schema. PostgreSQL uses the versioned SQL migrations;
other dialects are brought up to date with gorm's AutoMigrate.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	var (
		conn *gorm.DB
		cfg  config.Config
		log  *zap.Logger
	)
	return runApp(cmd.Context(), func() error {
		if err := migration.Migrate(conn, cfg.DBType); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logStep(log, "schema migrated", zap.String("db_type", cfg.DBType))
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	}, &conn, &cfg, &log)
}
