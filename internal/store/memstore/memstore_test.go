package memstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

func seedTask(t *testing.T, s *Store, id, team string) {
	t.Helper()
	now := time.Now().UTC()
	err := s.CreateTask(context.Background(), &model.Task{
		ID: id, TeamID: team, Title: "Task " + id,
		Status: model.StatusPending, Priority: model.PriorityMedium,
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func addEdge(t *testing.T, s *Store, id, src, tgt string, kind model.DependencyKind, at time.Time) {
	t.Helper()
	err := s.CreateDependency(context.Background(), &model.Dependency{
		ID: id, SourceTaskID: src, TargetTaskID: tgt, Kind: kind, CreatedAt: at, UpdatedAt: at,
	})
	if err != nil {
		t.Fatalf("add edge %s: %v", id, err)
	}
}

func TestUniqueEdgeConstraint(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTask(t, s, "a", "t1")
	seedTask(t, s, "b", "t1")
	now := time.Now()

	addEdge(t, s, "dep-1", "a", "b", model.DependsOn, now)
	err := s.CreateDependency(ctx, &model.Dependency{ID: "dep-2", SourceTaskID: "a", TargetTaskID: "b", Kind: model.DependsOn})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// A different kind between the same pair is a distinct edge.
	addEdge(t, s, "dep-3", "a", "b", model.BlockedBy, now)

	// Changing dep-3 to DEPENDS_ON would collide with dep-1.
	err = s.UpdateDependency(ctx, &model.Dependency{ID: "dep-3", Kind: model.DependsOn})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on update, got %v", err)
	}
}

func TestFindDependencies_DirectionKindAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		seedTask(t, s, id, "t1")
	}
	base := time.Now()
	addEdge(t, s, "dep-1", "a", "b", model.DependsOn, base)
	addEdge(t, s, "dep-2", "c", "a", model.BlockedBy, base.Add(time.Second))
	addEdge(t, s, "dep-3", "a", "c", model.DuplicatedWith, base.Add(2*time.Second))

	for _, tc := range []struct {
		name   string
		filter model.DependencyFilter
		want   []string
	}{
		{"both", model.DependencyFilter{}, []string{"dep-3", "dep-2", "dep-1"}},
		{"outgoing", model.DependencyFilter{Direction: model.Outgoing}, []string{"dep-3", "dep-1"}},
		{"incoming", model.DependencyFilter{Direction: model.Incoming}, []string{"dep-2"}},
		{"kind", model.DependencyFilter{Kind: model.DependsOn}, []string{"dep-1"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.FindDependencies(ctx, "a", tc.filter)
			if err != nil {
				t.Fatalf("FindDependencies: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d edges, want %d", len(got), len(tc.want))
			}
			for i, d := range got {
				if d.ID != tc.want[i] {
					t.Errorf("[%d] = %s, want %s", i, d.ID, tc.want[i])
				}
				if d.SourceTask == nil || d.TargetTask == nil {
					t.Errorf("%s: missing endpoint snapshots", d.ID)
				}
			}
		})
	}
}

func TestDeleteTask_CascadesEdges(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTask(t, s, "a", "t1")
	seedTask(t, s, "b", "t1")
	addEdge(t, s, "dep-1", "a", "b", model.DependsOn, time.Now())

	if err := s.DeleteTask(ctx, "b"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := s.GetDependency(ctx, "dep-1"); err != sql.ErrNoRows {
		t.Fatalf("expected edge removed, got %v", err)
	}
	if err := s.DeleteTask(ctx, "b"); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows on second delete, got %v", err)
	}
}

func TestRunInTransaction_RollsBack(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTask(t, s, "a", "t1")

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		if _, err := tx.SetTaskStatus(ctx, "a", model.StatusInProgress); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("expected boom, got %v", err)
	}
	task, _ := s.GetTask(ctx, "a")
	if task.Status != model.StatusPending {
		t.Fatalf("status = %s, want pending after rollback", task.Status)
	}

	err = s.RunInTransaction(ctx, func(tx store.Store) error {
		if _, err := tx.SetTaskStatus(ctx, "a", model.StatusInProgress); err != nil {
			return err
		}
		return tx.RecordStatusChange(ctx, &model.StatusChange{TaskID: "a", From: model.StatusPending, To: model.StatusInProgress})
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	task, _ = s.GetTask(ctx, "a")
	if task.Status != model.StatusInProgress {
		t.Fatalf("status = %s, want in_progress after commit", task.Status)
	}
	hist, _ := s.GetStatusHistory(ctx, "a")
	if len(hist) != 1 || hist[0].ID != 1 {
		t.Fatalf("unexpected history: %+v", hist)
	}
}

func TestListActivities_NewestFirstWithLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := s.RecordActivity(ctx, &model.Activity{Kind: model.ActivityTaskCreated, TaskID: "a"}); err != nil {
			t.Fatal(err)
		}
	}
	_ = s.RecordActivity(ctx, &model.Activity{Kind: model.ActivityTaskCreated, TaskID: "b"})

	got, err := s.ListActivities(ctx, "a", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 2 {
		t.Fatalf("unexpected activities: %+v", got)
	}
}
