package server

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/taskgraph/internal/deps"
	"github.com/alfredjeanlab/taskgraph/internal/events"
	"github.com/alfredjeanlab/taskgraph/internal/model"
)

type createDependencyInput struct {
	TargetTaskID string `json:"target_task_id" validate:"required,max=64"`
	Type         string `json:"type" validate:"required,oneof=DEPENDS_ON BLOCKED_BY DUPLICATED_WITH"`
	Note         string `json:"note" validate:"max=255"`
	CreatedBy    string `json:"created_by" validate:"max=64"`
}

type updateDependencyInput struct {
	Type  *string `json:"type" validate:"omitempty,oneof=DEPENDS_ON BLOCKED_BY DUPLICATED_WITH"`
	Note  *string `json:"note" validate:"omitempty,max=255"`
	Actor string  `json:"actor" validate:"max=64"`
}

// listDependencies parses the optional type and direction filters and
// lists the edges touching taskID, newest first.
func (s *TaskGraphServer) listDependencies(ctx context.Context, taskID, kind, direction string) ([]*model.Dependency, error) {
	var filter model.DependencyFilter
	if kind != "" {
		k, err := model.ParseDependencyKind(kind)
		if err != nil {
			return nil, inputError(err.Error())
		}
		filter.Kind = k
	}
	dir, err := model.ParseDirection(direction)
	if err != nil {
		return nil, inputError(err.Error())
	}
	filter.Direction = dir

	list, err := s.deps.ListForTask(ctx, taskID, filter)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*model.Dependency{}
	}
	return list, nil
}

// createDependency adds an edge with taskID as its source.
func (s *TaskGraphServer) createDependency(ctx context.Context, taskID string, in createDependencyInput) (*model.Dependency, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	kind, err := model.ParseDependencyKind(in.Type)
	if err != nil {
		return nil, inputError(err.Error())
	}

	source, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	dep, err := s.deps.Create(ctx, deps.CreateInput{
		SourceTaskID: taskID,
		TargetTaskID: in.TargetTaskID,
		Kind:         kind,
		Note:         in.Note,
		CreatedBy:    in.CreatedBy,
	})
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, &model.Activity{
		Kind:        model.ActivityDependencyCreated,
		Description: fmt.Sprintf("added %s dependency on %s", dep.Kind, dep.TargetTaskID),
		ActorID:     dep.CreatedBy,
		TeamID:      source.TeamID,
		TaskID:      taskID,
	}, events.DependencyCreated{Dependency: dep})

	return dep, nil
}

// getDependency returns edge id as seen from taskID.
func (s *TaskGraphServer) getDependency(ctx context.Context, taskID, id string) (*model.Dependency, error) {
	return s.deps.FindForTask(ctx, taskID, id)
}

// updateDependency changes the kind or note of an edge addressed through
// one of its endpoints.
func (s *TaskGraphServer) updateDependency(ctx context.Context, taskID, id string, in updateDependencyInput) (*model.Dependency, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	var patch model.DependencyPatch
	changes := make(map[string]any)
	if in.Type != nil {
		kind, err := model.ParseDependencyKind(*in.Type)
		if err != nil {
			return nil, inputError(err.Error())
		}
		patch.Kind = &kind
		changes["type"] = kind
	}
	if in.Note != nil {
		patch.Note = in.Note
		changes["note"] = *in.Note
	}

	existing, err := s.deps.FindForTask(ctx, taskID, id)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return existing, nil
	}

	dep, err := s.deps.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, &model.Activity{
		Kind:        model.ActivityDependencyUpdated,
		Description: fmt.Sprintf("updated %s dependency %s", dep.Kind, dep.ID),
		ActorID:     in.Actor,
		TeamID:      s.teamOf(ctx, taskID),
		TaskID:      taskID,
	}, events.DependencyUpdated{Dependency: dep, Changes: changes})

	return dep, nil
}

// deleteDependency removes an edge addressed through one of its endpoints.
func (s *TaskGraphServer) deleteDependency(ctx context.Context, taskID, id, actor string) error {
	dep, err := s.deps.FindForTask(ctx, taskID, id)
	if err != nil {
		return err
	}
	if err := s.deps.Delete(ctx, id); err != nil {
		return err
	}

	s.recordAndPublish(ctx, &model.Activity{
		Kind:        model.ActivityDependencyDeleted,
		Description: fmt.Sprintf("removed %s dependency between %s and %s", dep.Kind, dep.SourceTaskID, dep.TargetTaskID),
		ActorID:     actor,
		TeamID:      s.teamOf(ctx, taskID),
		TaskID:      taskID,
	}, events.DependencyDeleted{
		DependencyID: dep.ID,
		SourceTaskID: dep.SourceTaskID,
		TargetTaskID: dep.TargetTaskID,
		Kind:         dep.Kind,
	})
	return nil
}

func (s *TaskGraphServer) summary(ctx context.Context, taskID string) (*model.Summary, error) {
	return s.deps.Summarize(ctx, taskID)
}

func (s *TaskGraphServer) closure(ctx context.Context, taskID string) (*model.ClosureCheck, error) {
	return s.gate.CanClose(ctx, taskID)
}

// teamOf returns the team of taskID for activity records. Edges never
// cross teams, so either endpoint gives the same answer.
func (s *TaskGraphServer) teamOf(ctx context.Context, taskID string) string {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return ""
	}
	return task.TeamID
}
