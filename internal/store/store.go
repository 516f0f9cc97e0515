package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// ErrDuplicate is returned when a write violates a uniqueness constraint,
// e.g. a second edge with the same (source, target, type).
var ErrDuplicate = errors.New("duplicate record")

// Store defines the persistence interface for tasks, dependency edges and
// the activity log. Lookups of missing rows return sql.ErrNoRows.
type Store interface {
	// Tasks
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, teamID string) ([]*model.Task, error) // empty teamID lists all teams
	SetTaskStatus(ctx context.Context, id string, status model.TaskStatus) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// Status history
	RecordStatusChange(ctx context.Context, change *model.StatusChange) error
	GetStatusHistory(ctx context.Context, taskID string) ([]*model.StatusChange, error)

	// Dependencies. Reads resolve the endpoint task snapshots.
	CreateDependency(ctx context.Context, dep *model.Dependency) error
	GetDependency(ctx context.Context, id string) (*model.Dependency, error)
	UpdateDependency(ctx context.Context, dep *model.Dependency) error
	DeleteDependency(ctx context.Context, id string) error
	FindDependencies(ctx context.Context, taskID string, filter model.DependencyFilter) ([]*model.Dependency, error) // newest first
	DependencyExists(ctx context.Context, sourceID, targetID string, kind model.DependencyKind, excludeID string) (bool, error)
	ListAllDependencies(ctx context.Context) ([]*model.Dependency, error)

	// Activity log
	RecordActivity(ctx context.Context, activity *model.Activity) error
	ListActivities(ctx context.Context, taskID string, limit int) ([]*model.Activity, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
