package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/taskgraph/internal/client"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

// out is where command output goes; tests swap it for a buffer.
var out io.Writer = os.Stdout

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func printTask(t *model.Task) {
	fmt.Fprintf(out, "ID:          %s\n", t.ID)
	fmt.Fprintf(out, "Title:       %s\n", t.Title)
	fmt.Fprintf(out, "Team:        %s\n", t.TeamID)
	fmt.Fprintf(out, "Status:      %s\n", ui.RenderStatus(string(t.Status)))
	fmt.Fprintf(out, "Priority:    %s\n", t.Priority)
	if t.CreatedBy != "" {
		fmt.Fprintf(out, "Created By:  %s\n", t.CreatedBy)
	}
	if !t.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Created At:  %s\n", t.CreatedAt.Format(timeLayout))
	}
	if !t.UpdatedAt.IsZero() {
		fmt.Fprintf(out, "Updated At:  %s\n", t.UpdatedAt.Format(timeLayout))
	}
}

func printDependency(d *model.Dependency) {
	fmt.Fprintf(out, "ID:          %s\n", d.ID)
	fmt.Fprintf(out, "Type:        %s\n", ui.RenderKind(d.Kind.String()))
	fmt.Fprintf(out, "Source:      %s\n", describeEndpoint(d.SourceTaskID, d.SourceTask))
	fmt.Fprintf(out, "Target:      %s\n", describeEndpoint(d.TargetTaskID, d.TargetTask))
	if d.Note != "" {
		fmt.Fprintf(out, "Note:        %s\n", d.Note)
	}
	if d.CreatedBy != "" {
		fmt.Fprintf(out, "Created By:  %s\n", d.CreatedBy)
	}
	if !d.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Created At:  %s\n", d.CreatedAt.Format(timeLayout))
	}
}

func describeEndpoint(id string, ref *model.TaskRef) string {
	if ref == nil {
		return id
	}
	return fmt.Sprintf("%s %s [%s]", id, ref.Title, ui.RenderStatus(string(ref.Status)))
}

// printDependencyTable lists edges from the perspective of taskID: the
// OTHER column names the endpoint that is not taskID.
func printDependencyTable(taskID string, deps []*model.Dependency) {
	if len(deps) == 0 {
		fmt.Fprintln(out, ui.RenderMuted("no dependencies"))
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tDIR\tOTHER\tSTATUS\tTITLE")
	for _, d := range deps {
		dir, ref := "out", d.TargetTask
		if d.TargetTaskID == taskID && d.SourceTaskID != taskID {
			dir, ref = "in", d.SourceTask
		}
		status, title := "", ""
		if ref != nil {
			status, title = string(ref.Status), ref.Title
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", d.ID, d.Kind, dir, d.Other(taskID), status, title)
	}
	w.Flush()
}

func printSummary(taskID string, s *model.Summary) {
	fmt.Fprintf(out, "Task:        %s\n", taskID)
	fmt.Fprintf(out, "Blocked:     %s\n", yesNo(s.Blocked))
	fmt.Fprintf(out, "Duplicates:  %s\n", yesNo(s.HasDuplicates))
	fmt.Fprintf(out, "Outgoing:    %d\n", s.OutgoingCount)
	fmt.Fprintf(out, "Incoming:    %d\n", s.IncomingCount)
}

func printClosure(taskID string, c *model.ClosureCheck) {
	if c.Allowed {
		fmt.Fprintf(out, "%s can be closed\n", taskID)
		return
	}
	fmt.Fprintf(out, "%s is blocked by %d task(s):\n", taskID, len(c.BlockingTasks))
	printBlocking(c.BlockingTasks)
}

func printBlocking(blocking []model.BlockingTask) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, b := range blocking {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", b.ID, b.Kind, b.Status, b.Title)
	}
	w.Flush()
}

func printHistory(history []*model.StatusChange) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tFROM\tTO\tACTOR")
	for _, h := range history {
		from := string(h.From)
		if from == "" {
			from = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", h.CreatedAt.Format(timeLayout), from, h.To, h.Actor)
	}
	w.Flush()
}

func printActivities(acts []*model.Activity) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tKIND\tACTOR\tDESCRIPTION")
	for _, a := range acts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.CreatedAt.Format(timeLayout), a.Kind, a.ActorID, a.Description)
	}
	w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// describeError renders an API error with its reason and, for a blocked
// closure, the blocking task IDs.
func describeError(err error) string {
	var ae *client.APIError
	if !errors.As(err, &ae) {
		return err.Error()
	}
	msg := ae.Message
	if ae.Reason != "" {
		msg += " (" + ae.Reason + ")"
	}
	if len(ae.BlockingTasks) > 0 {
		ids := make([]string, len(ae.BlockingTasks))
		for i, b := range ae.BlockingTasks {
			ids[i] = b.ID
		}
		msg += "\nblocking: " + strings.Join(ids, ", ")
	}
	return msg
}
