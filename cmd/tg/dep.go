package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgraph/internal/client"
	"github.com/alfredjeanlab/taskgraph/internal/ui"
)

var depCmd = &cobra.Command{
	Use:     "dep",
	Short:   "Manage dependency edges between tasks",
	GroupID: "graph",
}

var depListCmd = &cobra.Command{
	Use:   "list <task-id>",
	Short: "List edges touching a task, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("type")
		direction, _ := cmd.Flags().GetString("direction")

		deps, err := tgClient.ListDependencies(context.Background(), args[0], &client.ListDependenciesRequest{
			Type:      kind,
			Direction: direction,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(deps)
		}
		printDependencyTable(args[0], deps)
		return nil
	},
}

var depAddCmd = &cobra.Command{
	Use:   "add <task-id> <type> <target-id>",
	Short: "Add an edge from a task to another task of the same team",
	Long: `Add a typed edge. Types are DEPENDS_ON, BLOCKED_BY and DUPLICATED_WITH.

An edge is rejected when it points at its own source, crosses teams,
repeats an existing (source, target, type) or is the direct reverse of
an existing DEPENDS_ON or BLOCKED_BY edge.`,
	Example: "  tg dep add task-a DEPENDS_ON task-b --note \"needs the schema\"",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		note, _ := cmd.Flags().GetString("note")

		dep, err := tgClient.CreateDependency(context.Background(), args[0], &client.CreateDependencyRequest{
			TargetTaskID: args[2],
			Type:         args[1],
			Note:         note,
			CreatedBy:    actor,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(dep)
		}
		fmt.Fprintf(out, "Added %s: %s %s %s\n", ui.RenderAccent(dep.ID), dep.SourceTaskID, ui.RenderKind(dep.Kind.String()), dep.TargetTaskID)
		return nil
	},
}

var depShowCmd = &cobra.Command{
	Use:   "show <task-id> <dep-id>",
	Short: "Show one edge addressed through either endpoint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dep, err := tgClient.GetDependency(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(dep)
		}
		printDependency(dep)
		return nil
	},
}

var depUpdateCmd = &cobra.Command{
	Use:     "update <task-id> <dep-id>",
	Short:   "Change an edge's type or note",
	Example: "  tg dep update task-a dep-xyz --type BLOCKED_BY\n  tg dep update task-a dep-xyz --note \"\"",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.UpdateDependencyRequest{Actor: actor}
		if cmd.Flags().Changed("type") {
			v, _ := cmd.Flags().GetString("type")
			req.Type = &v
		}
		if cmd.Flags().Changed("note") {
			v, _ := cmd.Flags().GetString("note")
			req.Note = &v
		}
		if req.Type == nil && req.Note == nil {
			return fmt.Errorf("nothing to update; pass --type and/or --note")
		}

		dep, err := tgClient.UpdateDependency(context.Background(), args[0], args[1], req)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(dep)
		}
		printDependency(dep)
		return nil
	},
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove <task-id> <dep-id>",
	Short: "Delete an edge",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tgClient.DeleteDependency(context.Background(), args[0], args[1], actor); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]string{"deleted": args[1]})
		}
		fmt.Fprintf(out, "Removed %s\n", args[1])
		return nil
	},
}

var depSummaryCmd = &cobra.Command{
	Use:   "summary <task-id>",
	Short: "Show blocked/duplicate flags and edge counts for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sum, err := tgClient.GetSummary(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(sum)
		}
		printSummary(args[0], sum)
		return nil
	},
}

var depClosureCmd = &cobra.Command{
	Use:   "closure <task-id>",
	Short: "Check whether a task may move to done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		check, err := tgClient.CanClose(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(check)
		}
		printClosure(args[0], check)
		return nil
	},
}

func init() {
	depListCmd.Flags().StringP("type", "t", "", "filter by DEPENDS_ON, BLOCKED_BY or DUPLICATED_WITH")
	depListCmd.Flags().StringP("direction", "d", "", "outgoing, incoming or both (default both)")

	depAddCmd.Flags().String("note", "", "free-text note (max 255 characters)")

	depUpdateCmd.Flags().String("type", "", "new dependency type")
	depUpdateCmd.Flags().String("note", "", "new note; empty clears it")

	depCmd.AddCommand(depListCmd)
	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depShowCmd)
	depCmd.AddCommand(depUpdateCmd)
	depCmd.AddCommand(depRemoveCmd)
	depCmd.AddCommand(depSummaryCmd)
	depCmd.AddCommand(depClosureCmd)
}
