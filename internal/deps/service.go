// Package deps implements the task dependency graph: edge validation and
// persistence, per-task queries and summaries, the closure gate, and
// status propagation across duplicate links.
package deps

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/idgen"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// CreateInput describes a new edge.
type CreateInput struct {
	SourceTaskID string
	TargetTaskID string
	Kind         model.DependencyKind
	Note         string
	CreatedBy    string
}

// Service is the write and query path for dependency edges.
type Service struct {
	store     store.Store
	validator *Validator
	now       func() time.Time
}

// NewService returns a Service backed by s.
func NewService(s store.Store) *Service {
	return &Service{
		store:     s,
		validator: NewValidator(s),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Validator exposes the validator used by the write path.
func (s *Service) Validator() *Validator { return s.validator }

// Create validates and persists a new edge, returning it with endpoint
// snapshots resolved.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Dependency, error) {
	dep := &model.Dependency{
		SourceTaskID: in.SourceTaskID,
		TargetTaskID: in.TargetTaskID,
		Kind:         in.Kind,
		Note:         in.Note,
		CreatedBy:    in.CreatedBy,
	}
	if err := model.ValidateDependency(dep); err != nil {
		return nil, err
	}

	if err := s.validator.Validate(ctx, Candidate{
		SourceTaskID: dep.SourceTaskID,
		TargetTaskID: dep.TargetTaskID,
		Kind:         dep.Kind,
	}); err != nil {
		return nil, err
	}

	id, err := idgen.Dependency()
	if err != nil {
		return nil, storageErr("generate id", err)
	}
	now := s.now()
	dep.ID = id
	dep.CreatedAt = now
	dep.UpdatedAt = now

	if err := s.store.CreateDependency(ctx, dep); err != nil {
		// Two requests can race past the duplicate check; the unique
		// constraint decides.
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newRelationshipError(ReasonDuplicateEdge)
		}
		return nil, storageErr("create dependency", err)
	}

	return s.FindByID(ctx, dep.ID)
}

// Update applies patch to the edge id. Changing the kind re-runs the full
// validation with the edge itself excluded. An empty note clears it.
func (s *Service) Update(ctx context.Context, id string, patch model.DependencyPatch) (*model.Dependency, error) {
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		dep, err := tx.GetDependency(ctx, id)
		if err != nil {
			return notFound("dependency", id, "get dependency", err)
		}

		if patch.Kind != nil && *patch.Kind != dep.Kind {
			if err := NewValidator(tx).Validate(ctx, Candidate{
				SourceTaskID:  dep.SourceTaskID,
				TargetTaskID:  dep.TargetTaskID,
				Kind:          *patch.Kind,
				ExcludeEdgeID: dep.ID,
			}); err != nil {
				return err
			}
			dep.Kind = *patch.Kind
		}
		if patch.Note != nil {
			dep.Note = *patch.Note
		}
		if err := model.ValidateDependency(dep); err != nil {
			return err
		}

		dep.UpdatedAt = s.now()
		if err := tx.UpdateDependency(ctx, dep); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return newRelationshipError(ReasonDuplicateEdge)
			}
			return notFound("dependency", id, "update dependency", err)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("update dependency", err)
	}
	return s.FindByID(ctx, id)
}

// Delete removes the edge id. A missing edge is a NotFoundError.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteDependency(ctx, id); err != nil {
		return notFound("dependency", id, "delete dependency", err)
	}
	return nil
}

// FindByID returns the edge id with endpoint snapshots.
func (s *Service) FindByID(ctx context.Context, id string) (*model.Dependency, error) {
	dep, err := s.store.GetDependency(ctx, id)
	if err != nil {
		return nil, notFound("dependency", id, "get dependency", err)
	}
	return dep, nil
}

// FindForTask returns the edge id only if it touches taskID; otherwise it
// returns ErrForbidden.
func (s *Service) FindForTask(ctx context.Context, taskID, id string) (*model.Dependency, error) {
	dep, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !dep.Touches(taskID) {
		return nil, ErrForbidden
	}
	return dep, nil
}

// FindByEndpoint returns edges where taskID is the source, the target or
// either, newest first. It does not check that the task exists.
func (s *Service) FindByEndpoint(ctx context.Context, taskID string, filter model.DependencyFilter) ([]*model.Dependency, error) {
	if filter.Direction == "" {
		filter.Direction = model.Both
	}
	deps, err := s.store.FindDependencies(ctx, taskID, filter)
	if err != nil {
		return nil, storageErr("find dependencies", err)
	}
	return deps, nil
}

// ListForTask is FindByEndpoint for an existing task.
func (s *Service) ListForTask(ctx context.Context, taskID string, filter model.DependencyFilter) ([]*model.Dependency, error) {
	if _, err := s.requireTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.FindByEndpoint(ctx, taskID, filter)
}

// Summarize reports whether taskID is blocked and whether it has duplicates.
// Only BLOCKED_BY edges to open targets set Blocked.
func (s *Service) Summarize(ctx context.Context, taskID string) (*model.Summary, error) {
	if _, err := s.requireTask(ctx, taskID); err != nil {
		return nil, err
	}
	edges, err := s.FindByEndpoint(ctx, taskID, model.DependencyFilter{Direction: model.Both})
	if err != nil {
		return nil, err
	}

	var sum model.Summary
	for _, d := range edges {
		outgoing := d.SourceTaskID == taskID
		if outgoing {
			sum.OutgoingCount++
		} else {
			sum.IncomingCount++
		}
		switch d.Kind {
		case model.BlockedBy:
			if outgoing && d.TargetTask != nil && !d.TargetTask.Status.IsTerminal() {
				sum.Blocked = true
			}
		case model.DuplicatedWith:
			sum.HasDuplicates = true
		}
	}
	return &sum, nil
}

func (s *Service) requireTask(ctx context.Context, taskID string) (*model.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, notFound("task", taskID, "get task", err)
	}
	return t, nil
}
