package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinwave/clinwave/internal/config"
	"github.com/clinwave/clinwave/internal/db"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "clinwave",
		Short: "Clinwave: multi-tenant WhatsApp to CRM message relay",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := db.Migrate(cfg.Postgres); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			return nil
		},
	}
}
