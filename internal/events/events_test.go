package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = &NoopPublisher{}
	if err := pub.Publish(context.Background(), TopicTaskCreated, TaskCreated{}); err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestTopicFor(t *testing.T) {
	for _, tc := range []struct {
		kind model.ActivityKind
		want string
	}{
		{model.ActivityTaskCreated, TopicTaskCreated},
		{model.ActivityTaskStatusChanged, TopicTaskStatusChanged},
		{model.ActivityTaskDeleted, TopicTaskDeleted},
		{model.ActivityStatusPropagated, TopicStatusPropagated},
		{model.ActivityDependencyCreated, TopicDependencyCreated},
		{model.ActivityDependencyUpdated, TopicDependencyUpdated},
		{model.ActivityDependencyDeleted, TopicDependencyDeleted},
		{model.ActivityKind("comment_added"), "taskgraph.activity.comment_added"},
	} {
		if got := TopicFor(tc.kind); got != tc.want {
			t.Errorf("TopicFor(%q) = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicDependencyCreated, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := DependencyCreated{Dependency: &model.Dependency{
		ID: "dep-pub1", SourceTaskID: "task-a", TargetTaskID: "task-b", Kind: model.BlockedBy,
	}}
	if err := pub.Publish(context.Background(), TopicDependencyCreated, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got DependencyCreated
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Dependency.ID != "dep-pub1" || got.Dependency.Kind != model.BlockedBy {
			t.Errorf("got %+v", got.Dependency)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_PublishMultipleTopics(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe(TopicAll, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	for _, tc := range []struct {
		topic string
		event any
	}{
		{TopicTaskCreated, TaskCreated{Task: &model.Task{ID: "task-1"}}},
		{TopicTaskDeleted, TaskDeleted{TaskID: "task-2"}},
		{TopicStatusPropagated, StatusPropagated{TriggerID: "task-1", TaskID: "task-3", To: model.StatusDone}},
		{TopicDependencyDeleted, DependencyDeleted{DependencyID: "dep-1", Kind: model.DependsOn}},
	} {
		if err := pub.Publish(context.Background(), tc.topic, tc.event); err != nil {
			t.Fatalf("Publish(%s): %v", tc.topic, err)
		}
	}
	pub.conn.Flush()

	for i := 0; i < 4; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestNATSPublisher_CancelledContext(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicTaskCreated, TaskCreated{}); err == nil {
		t.Fatal("expected error publishing with a cancelled context")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Publishing after close should fail.
	err = pub.Publish(context.Background(), TopicTaskCreated, TaskCreated{})
	if err == nil {
		t.Error("expected error publishing after close")
	}
}
