package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nuvia-server/internal/infrastructure/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations",
	Long: `Apply the schema migrations the server runs at startup: table
creation, the pgvector extension, and the partial unique index that
keeps one open session per customer and channel.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_, db, log, err := bootstrap()
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(cmd.Context(), db, log); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}
