package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"limpet/internal/ipc"
)

var headerCaser = cases.Title(language.Und)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Manage background task runs",
	}
	taskCmd.AddCommand(newTaskRunCommand(ctx))
	taskCmd.AddCommand(newTaskStatusCommand(ctx))
	taskCmd.AddCommand(newTaskHistoryCommand(ctx))
	return taskCmd
}

func newTaskRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the background worker in the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskStart()
				if err != nil {
					return err
				}
				if !resp.Started {
					fmt.Fprintf(cmd.OutOrStdout(), "Not started: %s\n", resp.Message)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task started: %s\n", resp.RunID)
				return nil
			})
		},
	}
}

func newTaskStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active or most recent task run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskStatus()
				if err != nil {
					return err
				}
				if !resp.Known {
					fmt.Fprintln(cmd.OutOrStdout(), "No task has been started")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), taskOutcome(&resp.Task))
				return nil
			})
		},
	}
}

func newTaskHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List persisted task runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskHistory(limit)
				if err != nil {
					return err
				}
				if len(resp.Tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No task runs recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTaskHistory(resp.Tasks))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list (0 for all)")
	return cmd
}

func renderTaskHistory(tasks []ipc.TaskSummary) string {
	headers := []string{
		headerCaser.String("id"),
		headerCaser.String("started"),
		headerCaser.String("outcome"),
		headerCaser.String("lines"),
	}
	rows := make([][]string, 0, len(tasks))
	for i := range tasks {
		task := tasks[i]
		rows = append(rows, []string{
			task.ID,
			task.StartedAt.Local().Format(time.RFC3339),
			historyOutcome(task),
			strconv.FormatInt(task.Lines, 10),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
}

func historyOutcome(task ipc.TaskSummary) string {
	switch {
	case !task.Resolved:
		return "running"
	case task.Success:
		return "succeeded"
	case task.Error != "":
		return "failed: " + task.Error
	default:
		return fmt.Sprintf("failed (exit %d)", task.ExitCode)
	}
}
