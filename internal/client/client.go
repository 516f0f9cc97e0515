// Package client provides a transport-agnostic interface for the taskgraph
// service with HTTP/JSON and gRPC implementations.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// TaskGraphClient is the interface every CLI command uses to talk to the
// server. It is implemented by HTTPClient (default) and GRPCClient.
type TaskGraphClient interface {
	// Tasks
	CreateTask(ctx context.Context, req *CreateTaskRequest) (*model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	DeleteTask(ctx context.Context, id, actor string) error
	SetTaskStatus(ctx context.Context, id string, req *SetStatusRequest) (*SetStatusResponse, error)
	GetStatusHistory(ctx context.Context, id string) ([]*model.StatusChange, error)
	ListActivity(ctx context.Context, taskID string, limit int) ([]*model.Activity, error)

	// Dependencies
	ListDependencies(ctx context.Context, taskID string, req *ListDependenciesRequest) ([]*model.Dependency, error)
	CreateDependency(ctx context.Context, taskID string, req *CreateDependencyRequest) (*model.Dependency, error)
	GetDependency(ctx context.Context, taskID, id string) (*model.Dependency, error)
	UpdateDependency(ctx context.Context, taskID, id string, req *UpdateDependencyRequest) (*model.Dependency, error)
	DeleteDependency(ctx context.Context, taskID, id, actor string) error
	GetSummary(ctx context.Context, taskID string) (*model.Summary, error)
	CanClose(ctx context.Context, taskID string) (*model.ClosureCheck, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateTaskRequest holds parameters for creating a task.
type CreateTaskRequest struct {
	TeamID    string `json:"team_id"`
	Title     string `json:"title"`
	Priority  string `json:"priority,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
}

// SetStatusRequest moves a task to a new status.
type SetStatusRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor,omitempty"`
}

// SetStatusResponse carries the updated task and the duplicates that
// followed it.
type SetStatusResponse struct {
	Task       *model.Task `json:"task"`
	Propagated []string    `json:"propagated"`
}

// ListDependenciesRequest filters a task's edges. Empty fields mean any.
type ListDependenciesRequest struct {
	Type      string `json:"type,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// CreateDependencyRequest holds parameters for adding an edge from the
// addressed task.
type CreateDependencyRequest struct {
	TargetTaskID string `json:"target_task_id"`
	Type         string `json:"type"`
	Note         string `json:"note,omitempty"`
	CreatedBy    string `json:"created_by,omitempty"`
}

// UpdateDependencyRequest holds optional edge changes.
// Nil pointer fields mean "don't change"; an empty note clears it.
type UpdateDependencyRequest struct {
	Type  *string `json:"type,omitempty"`
	Note  *string `json:"note,omitempty"`
	Actor string  `json:"actor,omitempty"`
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode    int
	Message       string
	Reason        string
	BlockingTasks []model.BlockingTask
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("HTTP %d: %s (%s)", e.StatusCode, e.Message, e.Reason)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}
