package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgraph/internal/client"
	"github.com/alfredjeanlab/taskgraph/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	Short:   "Create, inspect and move tasks",
	GroupID: "graph",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		team, _ := cmd.Flags().GetString("team")
		priority, _ := cmd.Flags().GetString("priority")

		task, err := tgClient.CreateTask(context.Background(), &client.CreateTaskRequest{
			TeamID:    team,
			Title:     args[0],
			Priority:  priority,
			CreatedBy: actor,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(task)
		}
		fmt.Fprintf(out, "Created %s\n", ui.RenderAccent(task.ID))
		printTask(task)
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task and its dependency summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		task, err := tgClient.GetTask(ctx, args[0])
		if err != nil {
			return err
		}
		sum, err := tgClient.GetSummary(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"task": task, "summary": sum})
		}
		printTask(task)
		fmt.Fprintln(out)
		printSummary(task.ID, sum)
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Move a task to a new status",
	Long: `Move a task to pending, in_progress, done or cancelled.

Moving to done is refused while an outgoing DEPENDS_ON or BLOCKED_BY
edge points at an unfinished task. Reaching done or cancelled is copied
to every direct DUPLICATED_WITH neighbor not already in that status.`,
	Example: "  tg task status task-abc in_progress\n  tg task status task-abc done",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := tgClient.SetTaskStatus(context.Background(), args[0], &client.SetStatusRequest{
			Status: args[1],
			Actor:  actor,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp)
		}
		fmt.Fprintf(out, "%s is now %s\n", resp.Task.ID, ui.RenderStatus(string(resp.Task.Status)))
		for _, id := range resp.Propagated {
			fmt.Fprintf(out, "  %s followed (duplicate)\n", id)
		}
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task and every edge touching it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tgClient.DeleteTask(context.Background(), args[0], actor); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]string{"deleted": args[0]})
		}
		fmt.Fprintf(out, "Deleted %s\n", args[0])
		return nil
	},
}

var taskHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show a task's status changes, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := tgClient.GetStatusHistory(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(history)
		}
		printHistory(history)
		return nil
	},
}

var taskActivityCmd = &cobra.Command{
	Use:   "activity <id>",
	Short: "Show recent activity for a task, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		acts, err := tgClient.ListActivity(context.Background(), args[0], limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(acts)
		}
		printActivities(acts)
		return nil
	},
}

func init() {
	taskCreateCmd.Flags().String("team", "", "team that owns the task (required)")
	taskCreateCmd.Flags().StringP("priority", "p", "", "low, medium, high or critical (default medium)")
	_ = taskCreateCmd.MarkFlagRequired("team")

	taskActivityCmd.Flags().Int("limit", 50, "maximum number of entries")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskHistoryCmd)
	taskCmd.AddCommand(taskActivityCmd)
}
