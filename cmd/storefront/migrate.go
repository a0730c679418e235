package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/andreasstove999/bnpl-storefront/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the token table migrations to DATABASE_URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set")
		}
		return db.RunMigrations(cfg.DatabaseURL, logger)
	},
}
