package events

import (
	"context"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// Event topic constants. Subjects follow taskgraph.<entity>.<verb>.
const (
	TopicTaskCreated       = "taskgraph.task.created"
	TopicTaskStatusChanged = "taskgraph.task.status_changed"
	TopicTaskDeleted       = "taskgraph.task.deleted"
	TopicStatusPropagated  = "taskgraph.task.status_propagated"

	TopicDependencyCreated = "taskgraph.dependency.created"
	TopicDependencyUpdated = "taskgraph.dependency.updated"
	TopicDependencyDeleted = "taskgraph.dependency.deleted"

	// TopicAll matches every taskgraph subject.
	TopicAll = "taskgraph.>"
)

var kindTopics = map[model.ActivityKind]string{
	model.ActivityTaskCreated:       TopicTaskCreated,
	model.ActivityTaskStatusChanged: TopicTaskStatusChanged,
	model.ActivityTaskDeleted:       TopicTaskDeleted,
	model.ActivityStatusPropagated:  TopicStatusPropagated,
	model.ActivityDependencyCreated: TopicDependencyCreated,
	model.ActivityDependencyUpdated: TopicDependencyUpdated,
	model.ActivityDependencyDeleted: TopicDependencyDeleted,
}

// TopicFor returns the subject an activity kind is published on.
func TopicFor(kind model.ActivityKind) string {
	if t, ok := kindTopics[kind]; ok {
		return t
	}
	return "taskgraph.activity." + string(kind)
}

// Event types

type TaskCreated struct {
	Task *model.Task `json:"task"`
}

type TaskStatusChanged struct {
	Task  *model.Task      `json:"task"`
	From  model.TaskStatus `json:"from"`
	To    model.TaskStatus `json:"to"`
	Actor string           `json:"actor,omitempty"`
}

type TaskDeleted struct {
	TaskID string `json:"task_id"`
}

// StatusPropagated is emitted once per duplicate synchronized after a
// terminal status change on TriggerID.
type StatusPropagated struct {
	TriggerID    string           `json:"trigger_id"`
	TaskID       string           `json:"task_id"`
	DependencyID string           `json:"dependency_id"`
	From         model.TaskStatus `json:"from"`
	To           model.TaskStatus `json:"to"`
}

type DependencyCreated struct {
	Dependency *model.Dependency `json:"dependency"`
}

type DependencyUpdated struct {
	Dependency *model.Dependency `json:"dependency"`
	Changes    map[string]any    `json:"changes"` // field name -> new value
}

type DependencyDeleted struct {
	DependencyID string               `json:"dependency_id"`
	SourceTaskID string               `json:"source_task_id"`
	TargetTaskID string               `json:"target_task_id"`
	Kind         model.DependencyKind `json:"type"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
