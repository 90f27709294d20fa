package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"alarm-dashboard/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the alarm and audit tables when missing.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			if a.DB == nil {
				return fmt.Errorf("migrate needs a database driver, got %q", a.Config.Database.Driver)
			}
			if err := a.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated table %s\n", a.Config.Database.Table)
			return nil
		})
	},
}
