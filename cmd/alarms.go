package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	alarmapp "alarm-dashboard/internal/alarms/application"
	alarms "alarm-dashboard/internal/alarms/domain"
	"alarm-dashboard/internal/alarms/notify"
	"alarm-dashboard/internal/app"
)

const displayLayout = "2006-01-02 15:04"

var (
	listWindow string
	operatorID string

	alarmsCmd = &cobra.Command{
		Use:   "alarms",
		Short: "List and resolve open alarms.",
	}

	alarmsListCmd = &cobra.Command{
		Use:   "list",
		Short: "Print open alarms of a window in display order.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := alarms.ParseWindow(listWindow)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				list, err := a.Service.ListOpen(ctx, window)
				if err != nil {
					return err
				}
				return printAlarms(cmd.OutOrStdout(), window, list, a.Location)
			})
		},
	}

	alarmsAcceptCmd = &cobra.Command{
		Use:   "accept <alarm-id>",
		Short: "Accept an open alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd, args[0], alarms.StatusAccepted)
		},
	}

	alarmsDismissCmd = &cobra.Command{
		Use:   "dismiss <alarm-id>",
		Short: "Dismiss an open alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd, args[0], alarms.StatusDismissed)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	alarmsListCmd.Flags().StringVarP(&listWindow, "window", "w", string(alarms.WindowRecent), "window to list (recent, older)")
	for _, c := range []*cobra.Command{alarmsAcceptCmd, alarmsDismissCmd} {
		c.Flags().StringVarP(&operatorID, "operator", "o", "", "operator id, 1 to 10 characters")
		_ = c.MarkFlagRequired("operator")
	}
	alarmsCmd.AddCommand(alarmsListCmd, alarmsAcceptCmd, alarmsDismissCmd)
}

func runTransition(cmd *cobra.Command, rawID string, status alarms.Status) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid alarm id %q", rawID)
	}
	req := alarms.TransitionRequest{AlarmID: id, Status: status, OperatorID: operatorID}
	if err := req.Validate(); err != nil {
		return err
	}
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		result, err := a.Service.Transition(ctx, req)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch result.Outcome {
		case alarmapp.OutcomeApplied:
			fmt.Fprintf(out, "alarm %d %s by %s\n", id, status, req.Normalized().OperatorID)
			return nil
		case alarmapp.OutcomeAlreadyResolved:
			fmt.Fprintf(out, "no changes made: alarm %d is already %s\n", id, result.Alarm.Status)
		default:
			fmt.Fprintf(out, "no changes made: alarm %d not found\n", id)
		}
		return result.Err()
	})
}

func printAlarms(w io.Writer, window alarms.Window, list []alarms.Alarm, loc *time.Location) error {
	if loc == nil {
		return errors.New("nil display location")
	}
	fmt.Fprintf(w, "%s (%d)\n", window.Title(), len(list))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDETECTED\tMEASUREMENT\tEQUIPMENT\tTYPE\tVALUE\tREFERENCE\tPRIORITY")
	for _, a := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s %s\t%s\t%d\n",
			a.ID,
			a.DetectedAt.In(loc).Format(displayLayout),
			a.MeasurementName,
			a.Equipment,
			a.AlarmType,
			strconv.FormatFloat(a.ObservedValue, 'f', -1, 64),
			a.Unit,
			notify.FormatReference(a.ReferenceMin, a.ReferenceMax),
			a.Priority,
		)
	}
	return tw.Flush()
}
