// Package main implements kbctl, the operator CLI for the knowledge assistant: schema migration, knowledge
// seeding, local resolution and NATS message injection.
package main

import (
	"fmt"
	"os"
	"time"

	"kb-assistant-be/internal/config"
	"kb-assistant-be/pkg/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	verbose bool
	timeout time.Duration
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "kbctl",
	Short:         "Operate the knowledge assistant backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every SQL statement")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Operation timeout")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(injectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openDB requires DB_CONNECTION_STRING.
func openDB() (*gorm.DB, error) {
	if cfg.Database.Connection == "" {
		return nil, fmt.Errorf("DB_CONNECTION_STRING is not set")
	}
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, 4, verbose)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}
