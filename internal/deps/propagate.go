package deps

import (
	"context"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// PropagationActor is recorded in the status history of tasks updated by
// the Propagator.
const PropagationActor = "system:propagation"

// Propagated describes one neighbor synchronized by OnStatusChanged.
type Propagated struct {
	Task         *model.Task
	From         model.TaskStatus
	DependencyID string
}

// Propagator copies terminal statuses across DUPLICATED_WITH edges.
type Propagator struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewPropagator returns a Propagator writing through s.
func NewPropagator(s store.Store, logger *slog.Logger) *Propagator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Propagator{
		store:  s,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// OnStatusChanged runs after taskID has committed newStatus. When the status
// is terminal, every task directly linked to taskID by DUPLICATED_WITH that
// is in a different status is moved to newStatus. Neighbors of neighbors are
// not visited, and neighbor updates do not trigger further propagation.
//
// Each neighbor is written in its own transaction. Failures are logged and
// skipped; the triggering task's own change is never undone. Re-running the
// call is safe since neighbors already in newStatus are left alone.
func (p *Propagator) OnStatusChanged(ctx context.Context, taskID string, newStatus model.TaskStatus) []Propagated {
	if !newStatus.IsTerminal() {
		return nil
	}

	edges, err := p.store.FindDependencies(ctx, taskID, model.DependencyFilter{
		Kind:      model.DuplicatedWith,
		Direction: model.Both,
	})
	if err != nil {
		p.logger.Warn("propagation: failed to load duplicates", "task_id", taskID, "error", err)
		return nil
	}

	var out []Propagated
	seen := make(map[string]bool)
	for _, d := range edges {
		neighborID := d.Other(taskID)
		if seen[neighborID] {
			continue
		}
		seen[neighborID] = true

		if ctx.Err() != nil {
			p.logger.Warn("propagation: interrupted", "task_id", taskID, "error", ctx.Err())
			break
		}

		res, err := p.syncNeighbor(ctx, neighborID, newStatus)
		if err != nil {
			p.logger.Warn("propagation: failed to sync duplicate",
				"task_id", taskID, "neighbor_id", neighborID, "dependency_id", d.ID, "error", err)
			continue
		}
		if res != nil {
			res.DependencyID = d.ID
			out = append(out, *res)
		}
	}
	return out
}

// syncNeighbor reads the neighbor's current status and updates it if needed.
// A nil result means the neighbor was already in status.
func (p *Propagator) syncNeighbor(ctx context.Context, neighborID string, status model.TaskStatus) (*Propagated, error) {
	var res *Propagated
	err := p.store.RunInTransaction(ctx, func(tx store.Store) error {
		current, err := tx.GetTask(ctx, neighborID)
		if err != nil {
			return notFound("task", neighborID, "get task", err)
		}
		if current.Status == status {
			return nil
		}

		updated, err := tx.SetTaskStatus(ctx, neighborID, status)
		if err != nil {
			return storageErr("set task status", err)
		}
		if err := tx.RecordStatusChange(ctx, &model.StatusChange{
			TaskID:    neighborID,
			From:      current.Status,
			To:        status,
			Actor:     PropagationActor,
			CreatedAt: p.now(),
		}); err != nil {
			return storageErr("record status change", err)
		}
		res = &Propagated{Task: updated, From: current.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
