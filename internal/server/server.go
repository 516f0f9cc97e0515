// Package server exposes the dependency graph over HTTP, gRPC and
// Server-Sent Events, and hosts the task status transition path that drives
// the closure gate and status propagation.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/deps"
	"github.com/alfredjeanlab/taskgraph/internal/events"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// TaskGraphServer serves the dependency API over every transport.
type TaskGraphServer struct {
	store      store.Store
	publisher  events.Publisher
	sseHub     *sseHub
	deps       *deps.Service
	gate       *deps.Gate
	propagator *deps.Propagator

	// Development exposes internal error detail in 500 responses.
	Development bool

	now func() time.Time
}

// NewTaskGraphServer returns a server backed by the given store and publisher.
func NewTaskGraphServer(s store.Store, p events.Publisher) *TaskGraphServer {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	return &TaskGraphServer{
		store:      s,
		publisher:  p,
		sseHub:     newSSEHub(),
		deps:       deps.NewService(s),
		gate:       deps.NewGate(s),
		propagator: deps.NewPropagator(s, slog.Default()),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// recordAndPublish persists an activity, publishes event to NATS and fans it
// out to SSE clients. All three are best-effort; failures are logged and
// never reach the caller.
func (s *TaskGraphServer) recordAndPublish(ctx context.Context, activity *model.Activity, event any) {
	topic := events.TopicFor(activity.Kind)
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event", "topic", topic, "task_id", activity.TaskID, "error", err)
		return
	}

	activity.Topic = topic
	activity.Metadata = payload
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = s.now()
	}
	if err := s.store.RecordActivity(ctx, activity); err != nil {
		slog.Warn("failed to record activity", "kind", activity.Kind, "task_id", activity.TaskID, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "task_id", activity.TaskID, "error", err)
	}
	s.sseHub.broadcast(topic, payload)
}
