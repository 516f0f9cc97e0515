package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/taskgraph/internal/deps"
	"github.com/alfredjeanlab/taskgraph/internal/events"
	"github.com/alfredjeanlab/taskgraph/internal/idgen"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// defaultActivityLimit caps activity listings when no limit is given.
const defaultActivityLimit = 50

type createTaskInput struct {
	TeamID    string `json:"team_id" validate:"required,max=64"`
	Title     string `json:"title" validate:"required,max=200"`
	Priority  string `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	CreatedBy string `json:"created_by" validate:"max=64"`
}

type setStatusInput struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress done cancelled"`
	Actor  string `json:"actor" validate:"max=64"`
}

// statusResult is the outcome of a status change: the updated task and the
// IDs of the duplicates that followed it.
type statusResult struct {
	Task       *model.Task `json:"task"`
	Propagated []string    `json:"propagated"`
}

// createTask is the transport-agnostic core of task creation.
func (s *TaskGraphServer) createTask(ctx context.Context, in createTaskInput) (*model.Task, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	priority := model.Priority(in.Priority)
	if priority == "" {
		priority = model.PriorityMedium
	}

	id, err := idgen.Task()
	if err != nil {
		return nil, fmt.Errorf("generate task id: %w", err)
	}
	now := s.now()
	task := &model.Task{
		ID:        id,
		TeamID:    in.TeamID,
		Title:     in.Title,
		Status:    model.StatusPending,
		Priority:  priority,
		CreatedBy: in.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := model.ValidateTask(task); err != nil {
		return nil, err
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.recordAndPublish(ctx, &model.Activity{
		Kind:        model.ActivityTaskCreated,
		Description: fmt.Sprintf("created task %q", task.Title),
		ActorID:     task.CreatedBy,
		TeamID:      task.TeamID,
		TaskID:      task.ID,
	}, events.TaskCreated{Task: task})

	return task, nil
}

func (s *TaskGraphServer) getTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, taskNotFound(id, err)
	}
	return task, nil
}

// deleteTask removes a task. Its edges and status history go with it.
func (s *TaskGraphServer) deleteTask(ctx context.Context, id, actor string) error {
	task, err := s.getTask(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return taskNotFound(id, err)
	}

	s.recordAndPublish(ctx, &model.Activity{
		Kind:        model.ActivityTaskDeleted,
		Description: fmt.Sprintf("deleted task %q", task.Title),
		ActorID:     actor,
		TeamID:      task.TeamID,
		TaskID:      task.ID,
	}, events.TaskDeleted{TaskID: id})
	return nil
}

// setTaskStatus moves a task through the status state machine. Moving to
// done is refused while the closure gate reports open blockers. After the
// change commits, terminal statuses are copied to direct duplicates.
func (s *TaskGraphServer) setTaskStatus(ctx context.Context, id string, in setStatusInput) (*statusResult, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	next := model.TaskStatus(in.Status)

	current, err := s.getTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == next {
		return &statusResult{Task: current, Propagated: []string{}}, nil
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, inputError(fmt.Sprintf("cannot change status from %s to %s", current.Status, next))
	}

	if next == model.StatusDone {
		check, err := s.gate.CanClose(ctx, id)
		if err != nil {
			return nil, err
		}
		if !check.Allowed {
			return nil, &deps.ClosureError{TaskID: id, Blocking: check.BlockingTasks}
		}
	}

	var (
		updated *model.Task
		from    model.TaskStatus
	)
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		cur, err := tx.GetTask(ctx, id)
		if err != nil {
			return taskNotFound(id, err)
		}
		from = cur.Status
		if !from.CanTransitionTo(next) {
			return inputError(fmt.Sprintf("cannot change status from %s to %s", from, next))
		}
		updated, err = tx.SetTaskStatus(ctx, id, next)
		if err != nil {
			return fmt.Errorf("set task status: %w", err)
		}
		return tx.RecordStatusChange(ctx, &model.StatusChange{
			TaskID:    id,
			From:      from,
			To:        next,
			Actor:     in.Actor,
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, &model.Activity{
		Kind:        model.ActivityTaskStatusChanged,
		Description: fmt.Sprintf("changed status from %s to %s", from, next),
		ActorID:     in.Actor,
		TeamID:      updated.TeamID,
		TaskID:      id,
	}, events.TaskStatusChanged{Task: updated, From: from, To: next, Actor: in.Actor})

	res := &statusResult{Task: updated, Propagated: []string{}}
	for _, p := range s.propagator.OnStatusChanged(ctx, id, next) {
		res.Propagated = append(res.Propagated, p.Task.ID)
		s.recordAndPublish(ctx, &model.Activity{
			Kind:        model.ActivityStatusPropagated,
			Description: fmt.Sprintf("status set to %s from duplicate %s", next, id),
			ActorID:     deps.PropagationActor,
			TeamID:      p.Task.TeamID,
			TaskID:      p.Task.ID,
		}, events.StatusPropagated{
			TriggerID:    id,
			TaskID:       p.Task.ID,
			DependencyID: p.DependencyID,
			From:         p.From,
			To:           next,
		})
	}
	if len(res.Propagated) > 0 {
		slog.Info("status propagated", "task_id", id, "status", next, "count", len(res.Propagated))
	}
	return res, nil
}

func (s *TaskGraphServer) statusHistory(ctx context.Context, id string) ([]*model.StatusChange, error) {
	if _, err := s.getTask(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.store.GetStatusHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get status history: %w", err)
	}
	if history == nil {
		history = []*model.StatusChange{}
	}
	return history, nil
}

func (s *TaskGraphServer) listActivity(ctx context.Context, taskID string, limit int) ([]*model.Activity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	acts, err := s.store.ListActivities(ctx, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	if acts == nil {
		acts = []*model.Activity{}
	}
	return acts, nil
}
