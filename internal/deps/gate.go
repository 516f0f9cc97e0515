package deps

import (
	"context"

	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// Gate answers whether a task may move to done. It is a pure query; the
// task update path decides what to do with the answer.
type Gate struct {
	store store.Store
}

// NewGate returns a Gate reading from s.
func NewGate(s store.Store) *Gate {
	return &Gate{store: s}
}

// CanClose lists every outgoing DEPENDS_ON or BLOCKED_BY target of taskID
// that is not yet done or cancelled.
func (g *Gate) CanClose(ctx context.Context, taskID string) (*model.ClosureCheck, error) {
	if _, err := g.store.GetTask(ctx, taskID); err != nil {
		return nil, notFound("task", taskID, "get task", err)
	}

	edges, err := g.store.FindDependencies(ctx, taskID, model.DependencyFilter{Direction: model.Outgoing})
	if err != nil {
		return nil, storageErr("find dependencies", err)
	}

	check := &model.ClosureCheck{BlockingTasks: []model.BlockingTask{}}
	for _, d := range edges {
		if !d.Kind.Gates() || d.TargetTask == nil {
			continue
		}
		if d.TargetTask.Status.IsTerminal() {
			continue
		}
		check.BlockingTasks = append(check.BlockingTasks, model.BlockingTask{
			ID:     d.TargetTask.ID,
			Title:  d.TargetTask.Title,
			Status: d.TargetTask.Status,
			Kind:   d.Kind,
		})
	}
	check.Allowed = len(check.BlockingTasks) == 0
	return check, nil
}
