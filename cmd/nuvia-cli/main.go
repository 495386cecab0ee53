package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nuvia-cli",
	Short: "Admin CLI for the Nuvia conversation server",
	Long: `nuvia-cli is the operational command-line tool for the Nuvia
conversation server. It talks directly to the database and the
inference backend, so it needs the same environment variables as
the server (a .env file in the working directory is picked up).

Examples:
  # Run schema migrations
  nuvia-cli migrate

  # Register a tenant
  nuvia-cli tenant ensure acme --name "Acme Hardware"

  # Load a knowledge document and test retrieval
  nuvia-cli kb ingest acme faq.md --title "Preguntas frecuentes"
  nuvia-cli kb search acme "¿hacen envíos a Monterrey?"`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tenantCmd)
	rootCmd.AddCommand(kbCmd)

	cobra.OnInitialize(func() {
		for _, path := range []string{".env", "../.env"} {
			if _, err := os.Stat(path); err == nil {
				_ = godotenv.Overload(path)
			}
		}
	})
}
