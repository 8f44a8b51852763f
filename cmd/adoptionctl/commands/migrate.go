package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/database"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/config"
)

var steps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
	Long: `Apply or roll back the SQL migrations in the migrations directory.

Subcommands:
  up       - Apply pending migrations
  down     - Roll back migrations
  version  - Show the applied schema version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := postgresConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), cfg.MigrationsDir, log); err != nil {
			return err
		}
		success("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	Long: `Roll back applied migrations.

Examples:
  adoptionctl migrate down              # Roll back the last migration
  adoptionctl migrate down --steps 2    # Roll back two migrations`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := postgresConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		if err := database.RollbackMigrations(cfg.DBConfig.DatabaseURL(), cfg.MigrationsDir, steps, log); err != nil {
			return err
		}
		success("rolled back %d migration(s)", steps)
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := postgresConfig()
		if err != nil {
			return err
		}
		version, dirty, err := database.MigrationVersion(cfg.DBConfig.DatabaseURL(), cfg.MigrationsDir)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"version": version, "dirty": dirty})
		}
		if dirty {
			warning("schema version %d is dirty", version)
			return nil
		}
		info("schema version %d", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	migrateDownCmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
}

func postgresConfig() (*config.ServiceConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return nil, fmt.Errorf("migrations require the postgres store, got %q", cfg.StoreDriver)
	}
	return cfg, nil
}
