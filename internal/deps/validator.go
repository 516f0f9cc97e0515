package deps

import (
	"context"

	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// Candidate is an edge proposed for creation or update.
type Candidate struct {
	SourceTaskID  string
	TargetTaskID  string
	Kind          model.DependencyKind
	ExcludeEdgeID string // the edge being updated, ignored by the duplicate and cycle checks
}

// Validator checks a candidate edge against the graph invariants. It never
// writes.
type Validator struct {
	store store.Store
}

// NewValidator returns a Validator reading from s.
func NewValidator(s store.Store) *Validator {
	return &Validator{store: s}
}

// Validate returns nil if c may be persisted. Checks run in a fixed order so
// the first failing rule is always the one reported: self reference, task
// existence, team, duplicate, direct cycle.
func (v *Validator) Validate(ctx context.Context, c Candidate) error {
	if !c.Kind.IsValid() {
		return &model.ValidationError{Errors: []model.FieldError{{Field: "type", Message: "is required"}}}
	}

	if c.SourceTaskID == c.TargetTaskID {
		return newRelationshipError(ReasonSelfReference)
	}

	source, err := v.store.GetTask(ctx, c.SourceTaskID)
	if err != nil {
		return notFound("task", c.SourceTaskID, "get source task", err)
	}
	target, err := v.store.GetTask(ctx, c.TargetTaskID)
	if err != nil {
		return notFound("task", c.TargetTaskID, "get target task", err)
	}

	if source.TeamID != target.TeamID {
		return newRelationshipError(ReasonCrossTeam)
	}

	dup, err := v.store.DependencyExists(ctx, c.SourceTaskID, c.TargetTaskID, c.Kind, c.ExcludeEdgeID)
	if err != nil {
		return storageErr("check duplicate", err)
	}
	if dup {
		return newRelationshipError(ReasonDuplicateEdge)
	}

	if c.Kind.CycleChecked() {
		inverse, err := v.store.DependencyExists(ctx, c.TargetTaskID, c.SourceTaskID, c.Kind, c.ExcludeEdgeID)
		if err != nil {
			return storageErr("check cycle", err)
		}
		if inverse {
			return newRelationshipError(ReasonDirectCycle)
		}
	}

	return nil
}
