package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

var errSchedulerMissing = errors.New("scheduler not configured")

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Inspect and run background tasks",
	Long: `The scheduler runs two tasks while "searchapi serve" is running:

  index-batch   indexes a batch of pending items on every enabled index
  server-tasks  replays operations queued for servers that were unavailable`,
}

var schedulerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every task",
	Args:  cobra.NoArgs,
	RunE:  runSchedulerStatus,
}

var schedulerHistoryCmd = &cobra.Command{
	Use:   "history [task-id]",
	Short: "Show recent runs of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulerHistory,
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run [task-id]",
	Short: "Run a task now",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulerRun,
}

var schedulerHistoryLimit int

func init() {
	schedulerHistoryCmd.Flags().IntVarP(&schedulerHistoryLimit, "limit", "n", 10, "number of runs to show (0 for all)")
	schedulerCmd.AddCommand(schedulerStatusCmd, schedulerHistoryCmd, schedulerRunCmd)
	rootCmd.AddCommand(schedulerCmd)
}

func runSchedulerStatus(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errSchedulerMissing
	}
	tasks, err := scheduler.Tasks(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(tasks) == 0 {
		cmd.Println("No tasks have been scheduled yet. Run \"searchapi serve\" to start the scheduler.")
		return nil
	}

	for i, task := range tasks {
		if i > 0 {
			cmd.Println()
		}
		cmd.Println(title(fmt.Sprintf("%s (%s)", task.Name, task.ID)))
		cmd.Println(row("Enabled", enabledText(task.Enabled)))
		cmd.Println(row("Interval", task.Interval))
		cmd.Println(row("Last run", formatTime(task.LastRun)))
		cmd.Println(row("Next run", formatTime(task.NextRun)))
		cmd.Println(row("Last items", task.LastItems))
		if task.LastError != "" {
			cmd.Println(row("Last error", errorStyle.Render(task.LastError)))
		}
	}
	return nil
}

func runSchedulerHistory(cmd *cobra.Command, args []string) error {
	if scheduler == nil {
		return errSchedulerMissing
	}
	results, err := scheduler.History(cmd.Context(), args[0], schedulerHistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(results) == 0 {
		cmd.Printf("No runs recorded for %s.\n", args[0])
		return nil
	}

	cmd.Println(title("Runs of " + args[0]))
	for _, r := range results {
		status := successStyle.Render("ok")
		if !r.Succeeded() {
			status = errorStyle.Render("failed: " + r.Error)
		}
		cmd.Printf("  %s  %6s  %5d items  %s\n",
			formatTime(r.StartedAt), r.Duration().Round(time.Millisecond), r.Items, status)
	}
	return nil
}

func runSchedulerRun(cmd *cobra.Command, args []string) error {
	if scheduler == nil {
		return errSchedulerMissing
	}
	result, err := scheduler.RunNow(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", args[0], err)
	}
	if !result.Succeeded() {
		return fmt.Errorf("%s failed after %d items: %s", args[0], result.Items, result.Error)
	}
	cmd.Printf("%s handled %d items in %s.\n", domain.TaskName(args[0]), result.Items, result.Duration().Round(time.Millisecond))
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return mutedStyle.Render("never")
	}
	return t.Local().Format(time.DateTime)
}
