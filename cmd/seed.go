package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"alarm-dashboard/internal/app"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo open alarms for local development.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			n, err := a.Seed(ctx, a.Service.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d alarms\n", n)
			return nil
		})
	},
}
