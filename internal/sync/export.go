package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// FormatVersion is written into every export header.
const FormatVersion = "1"

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	TaskCount       int       `json:"task_count"`
	DependencyCount int       `json:"dependency_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every task and dependency edge in the store as JSONL
// to w. Both sections are sorted by ID so identical graphs produce
// identical bodies apart from the header timestamp.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	tasks, err := s.ListTasks(ctx, "")
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ID < tasks[j].ID
	})

	edges, err := s.ListAllDependencies(ctx)
	if err != nil {
		return fmt.Errorf("list dependencies: %w", err)
	}
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].ID < edges[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:         FormatVersion,
		Type:            "header",
		Timestamp:       time.Now().UTC(),
		TaskCount:       len(tasks),
		DependencyCount: len(edges),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, t := range tasks {
		if err := enc.Encode(record{Type: "task", Data: t}); err != nil {
			return fmt.Errorf("encode task %s: %w", t.ID, err)
		}
	}

	for _, d := range edges {
		// Endpoint snapshots are derivable from the task records.
		flat := *d
		flat.SourceTask, flat.TargetTask = nil, nil
		if err := enc.Encode(record{Type: "dependency", Data: &flat}); err != nil {
			return fmt.Errorf("encode dependency %s: %w", d.ID, err)
		}
	}

	return nil
}

// Snapshot is a decoded export.
type Snapshot struct {
	Version      string
	Timestamp    time.Time
	Tasks        []*model.Task
	Dependencies []*model.Dependency
}

// ReadJSONL decodes an export written by ExportJSONL. The header must come
// first and its counts must match the records that follow.
func ReadJSONL(r io.Reader) (*Snapshot, error) {
	dec := json.NewDecoder(r)

	var h header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if h.Type != "header" {
		return nil, fmt.Errorf("expected header record, got %q", h.Type)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported export version %q", h.Version)
	}

	snap := &Snapshot{Version: h.Version, Timestamp: h.Timestamp}
	for dec.More() {
		var raw struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		switch raw.Type {
		case "task":
			var t model.Task
			if err := json.Unmarshal(raw.Data, &t); err != nil {
				return nil, fmt.Errorf("decode task: %w", err)
			}
			snap.Tasks = append(snap.Tasks, &t)
		case "dependency":
			var d model.Dependency
			if err := json.Unmarshal(raw.Data, &d); err != nil {
				return nil, fmt.Errorf("decode dependency: %w", err)
			}
			snap.Dependencies = append(snap.Dependencies, &d)
		default:
			return nil, fmt.Errorf("unknown record type %q", raw.Type)
		}
	}

	if len(snap.Tasks) != h.TaskCount || len(snap.Dependencies) != h.DependencyCount {
		return nil, fmt.Errorf("header counts tasks=%d dependencies=%d, read %d and %d",
			h.TaskCount, h.DependencyCount, len(snap.Tasks), len(snap.Dependencies))
	}
	return snap, nil
}
