package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/logger"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/config"
)

var (
	// Global flags
	storeDriver   string
	migrationsDir string
	verbose       bool
	jsonOutput    bool
)

var rootCmd = &cobra.Command{
	Use:   "adoptionctl",
	Short: "Maintenance tool for the adoption service",
	Long: `adoptionctl runs maintenance tasks against the adoption service's record store.

Configuration is read from the same ADOPTION_* environment variables as the
server; flags override them.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "Store driver (postgres or memory); defaults to ADOPTION_STORE_DRIVER")
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "migrations-dir", "", "Directory holding SQL migrations; defaults to ADOPTION_MIGRATIONS_DIR")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (*config.ServiceConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if storeDriver != "" {
		cfg.StoreDriver = storeDriver
	}
	if migrationsDir != "" {
		cfg.MigrationsDir = migrationsDir
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.ServiceConfig) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return logger.NewNamed(cfg.AppEnv, "adoptionctl")
}
