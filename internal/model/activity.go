package model

import (
	"encoding/json"
	"time"
)

// ActivityKind names what happened in an activity log entry.
type ActivityKind string

const (
	ActivityTaskCreated       ActivityKind = "task_created"
	ActivityTaskStatusChanged ActivityKind = "task_status_changed"
	ActivityTaskDeleted       ActivityKind = "task_deleted"
	ActivityDependencyCreated ActivityKind = "dependency_created"
	ActivityDependencyUpdated ActivityKind = "dependency_updated"
	ActivityDependencyDeleted ActivityKind = "dependency_deleted"
	ActivityStatusPropagated  ActivityKind = "status_propagated"
)

// Activity is a persisted audit record, mirroring what is published to NATS.
type Activity struct {
	ID          int64           `json:"id"`
	Kind        ActivityKind    `json:"kind"`
	Topic       string          `json:"topic"`
	Description string          `json:"description"`
	ActorID     string          `json:"actor_id,omitempty"`
	TeamID      string          `json:"team_id,omitempty"`
	TaskID      string          `json:"task_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
