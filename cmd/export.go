package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	alarms "alarm-dashboard/internal/alarms/domain"
	"alarm-dashboard/internal/alarms/export"
	"alarm-dashboard/internal/app"
)

var (
	exportFormat string
	exportWindow string
	exportOut    string

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write the open alarms of a window to a CSV, XLSX or PDF file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := export.ParseFormat(exportFormat)
			if err != nil {
				return err
			}
			window, err := alarms.ParseWindow(exportWindow)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				now := a.Service.Now()
				list, err := a.Service.ListOpenAt(ctx, window, now)
				if err != nil {
					return err
				}
				report := export.Report{Window: window, GeneratedAt: now, Location: a.Location, Alarms: list}
				data, err := export.Build(format, report)
				if err != nil {
					return err
				}
				path := exportOut
				if path == "" {
					path = report.Filename(format)
				}
				if err := os.WriteFile(filepath.Clean(path), data, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d alarms to %s\n", len(list), path)
				return nil
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(export.FormatCSV), "output format (csv, xlsx, pdf)")
	exportCmd.Flags().StringVarP(&exportWindow, "window", "w", string(alarms.WindowRecent), "window to export (recent, older)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path, defaults to a timestamped name")
}
