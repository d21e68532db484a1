package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"limpet/internal/ipc"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Reveal the running daemon's surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Show()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Surface is %s\n", resp.State)
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Quit the running daemon (sanctioned exit, no relaunch)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Quit()
				if err != nil {
					return err
				}
				if resp.Quitting {
					fmt.Fprintln(cmd.OutOrStdout(), "Quit requested; the daemon will exit cleanly")
				}
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				renderStatus(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func renderStatus(out io.Writer, resp *ipc.StatusResponse) {
	rows := [][]string{
		{"Running", yesNo(resp.Running)},
		{"PID", fmt.Sprintf("%d", resp.PID)},
		{"Surface", resp.SurfaceState},
		{"Quit intent", resp.Intent},
		{"Supervised", yesNo(resp.Supervised)},
		{"Task active", yesNo(resp.TaskActive)},
		{"Lock", resp.LockPath},
		{"Marker", resp.MarkerPath},
		{"Socket", resp.SocketPath},
	}
	if resp.LastTask != nil {
		rows = append(rows, []string{"Last task", taskOutcome(resp.LastTask)})
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
}

func taskOutcome(summary *ipc.TaskSummary) string {
	switch {
	case !summary.Resolved:
		return fmt.Sprintf("%s (running, %d lines)", summary.ID, summary.Lines)
	case summary.Success:
		return fmt.Sprintf("%s (succeeded, %d lines)", summary.ID, summary.Lines)
	case summary.Error != "":
		return fmt.Sprintf("%s (failed: %s)", summary.ID, summary.Error)
	default:
		return fmt.Sprintf("%s (failed, exit %d)", summary.ID, summary.ExitCode)
	}
}
