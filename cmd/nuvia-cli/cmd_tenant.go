package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nuvia-server/internal/infrastructure/repository/tenantrepo"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Tenant management commands",
}

var tenantEnsureCmd = &cobra.Command{
	Use:   "ensure <slug>",
	Short: "Create a tenant if it does not exist",
	Long: `Register a tenant under the given slug. The slug is the path
segment the webhook and API routes use. Re-running with an existing
slug is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runTenantEnsure,
}

func init() {
	tenantCmd.AddCommand(tenantEnsureCmd)
	tenantEnsureCmd.Flags().String("name", "", "Display name (defaults to the slug)")
}

func runTenantEnsure(cmd *cobra.Command, args []string) error {
	_, db, _, err := bootstrap()
	if err != nil {
		return err
	}
	slug := args[0]
	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = slug
	}

	t, err := tenantrepo.NewRepository(db).EnsureBySlug(cmd.Context(), slug, name)
	if err != nil {
		return err
	}
	fmt.Printf("tenant %q ready (id=%d)\n", t.Slug, t.ID)
	return nil
}
