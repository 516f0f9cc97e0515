package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// taskRowColumns is the column list for scanTask results.
var taskRowColumns = []string{
	"id", "team_id", "title", "status", "priority", "created_by", "created_at", "updated_at",
}

// dependencyRowColumns is the column list for dependencySelect results.
var dependencyRowColumns = []string{
	"id", "source_task_id", "target_task_id", "type", "note", "created_by",
	"created_at", "updated_at",
	"source_title", "source_status", "source_priority",
	"target_title", "target_status", "target_priority",
}

// addDependencyRow adds an edge row whose endpoints are both pending/medium.
func addDependencyRow(rows *sqlmock.Rows, id, src, tgt, kind string, now time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, src, tgt, kind, nil, nil,
		now, now,
		"Source "+src, "pending", "medium",
		"Target "+tgt, "in_progress", "high",
	)
}

func TestScanHelpers(t *testing.T) {
	if nullString("").Valid {
		t.Error("nullString(\"\") should be invalid")
	}
	if ns := nullString("hello"); !ns.Valid || ns.String != "hello" {
		t.Errorf("nullString(\"hello\") = %v", ns)
	}

	if jsonbBytes(nil) != nil {
		t.Error("jsonbBytes(nil) should be nil")
	}
	if jsonbBytes(json.RawMessage{}) != nil {
		t.Error("jsonbBytes({}) should be nil")
	}
	input := json.RawMessage(`{"key":"value"}`)
	if string(jsonbBytes(input)) != `{"key":"value"}` {
		t.Errorf("jsonbBytes = %s", jsonbBytes(input))
	}
}

func TestMapWriteErr(t *testing.T) {
	dup := mapWriteErr(&pq.Error{Code: "23505", Constraint: "dependencies_unique_edge"})
	if !errors.Is(dup, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", dup)
	}

	other := &pq.Error{Code: "23503"}
	if got := mapWriteErr(other); got != error(other) {
		t.Fatalf("expected passthrough, got %v", got)
	}
	if mapWriteErr(nil) != nil {
		t.Fatal("mapWriteErr(nil) should be nil")
	}
}

func TestQueryCreateTask(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	task := &model.Task{
		ID: "task-a", TeamID: "team-1", Title: "Write docs",
		Status: model.StatusPending, Priority: model.PriorityHigh,
		CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectExec("INSERT INTO tasks").
		WithArgs("task-a", "team-1", "Write docs", "pending", "high", nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCreateTask(context.Background(), db, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryGetTask(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM tasks WHERE id = \\$1").WithArgs("task-a").
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow("task-a", "team-1", "Write docs", "in_progress", "low", "alice", now, now))

	task, err := queryGetTask(context.Background(), db, "task-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != model.StatusInProgress || task.Priority != model.PriorityLow || task.CreatedBy != "alice" {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestQueryGetTask_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM tasks WHERE id = \\$1").WithArgs("nonexistent").
		WillReturnRows(sqlmock.NewRows(taskRowColumns))

	_, err := queryGetTask(context.Background(), db, "nonexistent")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestQueryListTasks(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM tasks WHERE team_id = \\$1 ORDER BY").WithArgs("team-1").
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow("task-a", "team-1", "A", "pending", "medium", nil, now, now).
			AddRow("task-b", "team-1", "B", "done", "medium", nil, now, now))

	tasks, err := queryListTasks(context.Background(), db, "team-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 || tasks[1].Status != model.StatusDone {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestQuerySetTaskStatus(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("UPDATE tasks SET status = \\$2").WithArgs("task-a", "done").
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow("task-a", "team-1", "A", "done", "medium", nil, now, now))

	task, err := querySetTaskStatus(context.Background(), db, "task-a", model.StatusDone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != model.StatusDone {
		t.Fatalf("status = %q, want done", task.Status)
	}
}

func TestQueryDeleteTask_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM tasks WHERE id = \\$1").WithArgs("nonexistent").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := queryDeleteTask(context.Background(), db, "nonexistent"); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestQueryRecordStatusChange(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	change := &model.StatusChange{TaskID: "task-a", From: model.StatusPending, To: model.StatusInProgress, CreatedAt: now}
	mock.ExpectQuery("INSERT INTO task_status_history").
		WithArgs("task-a", "pending", "in_progress", nil, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	if err := queryRecordStatusChange(context.Background(), db, change); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.ID != 7 {
		t.Fatalf("ID = %d, want 7", change.ID)
	}
}

func TestQueryGetStatusHistory(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM task_status_history WHERE task_id = \\$1").WithArgs("task-a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_id", "from_status", "to_status", "actor", "created_at"}).
			AddRow(int64(1), "task-a", nil, "pending", nil, now).
			AddRow(int64(2), "task-a", "pending", "in_progress", "bob", now))

	changes, err := queryGetStatusHistory(context.Background(), db, "task-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 2 || changes[0].From != "" || changes[1].Actor != "bob" {
		t.Fatalf("unexpected history: %+v", changes)
	}
}

func TestQueryCreateDependency(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	dep := &model.Dependency{
		ID: "dep-1", SourceTaskID: "task-a", TargetTaskID: "task-b",
		Kind: model.DependsOn, Note: "needs schema", CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectExec("INSERT INTO dependencies").
		WithArgs("dep-1", "task-a", "task-b", "DEPENDS_ON", "needs schema", nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCreateDependency(context.Background(), db, dep); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryCreateDependency_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	dep := &model.Dependency{ID: "dep-2", SourceTaskID: "task-a", TargetTaskID: "task-b", Kind: model.DependsOn}
	mock.ExpectExec("INSERT INTO dependencies").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "dependencies_unique_edge"})

	err := queryCreateDependency(context.Background(), db, dep)
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestQueryGetDependency(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("FROM dependencies d .+ WHERE d.id = \\$1").WithArgs("dep-1").
		WillReturnRows(addDependencyRow(sqlmock.NewRows(dependencyRowColumns), "dep-1", "task-a", "task-b", "BLOCKED_BY", now))

	dep, err := queryGetDependency(context.Background(), db, "dep-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dep.Kind != model.BlockedBy {
		t.Errorf("Kind = %v, want BLOCKED_BY", dep.Kind)
	}
	if dep.SourceTask == nil || dep.SourceTask.ID != "task-a" || dep.SourceTask.Title != "Source task-a" {
		t.Errorf("unexpected source snapshot: %+v", dep.SourceTask)
	}
	if dep.TargetTask == nil || dep.TargetTask.Status != model.StatusInProgress || dep.TargetTask.Priority != model.PriorityHigh {
		t.Errorf("unexpected target snapshot: %+v", dep.TargetTask)
	}
}

func TestQueryGetDependency_BadKind(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("FROM dependencies d").WithArgs("dep-x").
		WillReturnRows(addDependencyRow(sqlmock.NewRows(dependencyRowColumns), "dep-x", "task-a", "task-b", "RELATES_TO", now))

	if _, err := queryGetDependency(context.Background(), db, "dep-x"); err == nil {
		t.Fatal("expected error for unknown type column")
	}
}

func TestQueryUpdateDependency_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	dep := &model.Dependency{ID: "nonexistent", Kind: model.BlockedBy}
	mock.ExpectExec("UPDATE dependencies SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := queryUpdateDependency(context.Background(), db, dep); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestQueryUpdateDependency_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	dep := &model.Dependency{ID: "dep-1", Kind: model.BlockedBy}
	mock.ExpectExec("UPDATE dependencies SET").
		WillReturnError(&pq.Error{Code: "23505"})

	if err := queryUpdateDependency(context.Background(), db, dep); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestQueryDeleteDependency(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM dependencies WHERE id = \\$1").WithArgs("dep-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := queryDeleteDependency(context.Background(), db, "dep-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec("DELETE FROM dependencies WHERE id = \\$1").WithArgs("dep-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := queryDeleteDependency(context.Background(), db, "dep-1"); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows on second delete, got %v", err)
	}
}

func TestQueryFindDependencies(t *testing.T) {
	for _, tc := range []struct {
		name   string
		filter model.DependencyFilter
		where  string
		args   []driver.Value
	}{
		{
			name:   "both",
			filter: model.DependencyFilter{},
			where:  "WHERE (d.source_task_id = $1 OR d.target_task_id = $1) ORDER BY",
			args:   []driver.Value{"task-a"},
		},
		{
			name:   "outgoing",
			filter: model.DependencyFilter{Direction: model.Outgoing},
			where:  "WHERE d.source_task_id = $1 ORDER BY",
			args:   []driver.Value{"task-a"},
		},
		{
			name:   "incoming with kind",
			filter: model.DependencyFilter{Direction: model.Incoming, Kind: model.DuplicatedWith},
			where:  "WHERE d.target_task_id = $1 AND d.type = $2 ORDER BY",
			args:   []driver.Value{"task-a", "DUPLICATED_WITH"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			now := time.Now().UTC()
			mock.ExpectQuery(regexp.QuoteMeta(tc.where) + ".+d.created_at DESC").
				WithArgs(tc.args...).
				WillReturnRows(addDependencyRow(sqlmock.NewRows(dependencyRowColumns), "dep-1", "task-a", "task-b", "DEPENDS_ON", now))

			deps, err := queryFindDependencies(context.Background(), db, "task-a", tc.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(deps) != 1 || deps[0].ID != "dep-1" {
				t.Fatalf("unexpected result: %+v", deps)
			}
		})
	}
}

func TestQueryDependencyExists(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT EXISTS").WithArgs("task-b", "task-a", "DEPENDS_ON", "dep-9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := queryDependencyExists(context.Background(), db, "task-b", "task-a", model.DependsOn, "dep-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected exists=true")
	}
}

func TestQueryRecordActivity(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	a := &model.Activity{
		Kind: model.ActivityDependencyCreated, Topic: "taskgraph.dependency.created",
		Description: "task-a now depends on task-b", TaskID: "task-a",
		Metadata: json.RawMessage(`{"dependencyId":"dep-1"}`), CreatedAt: now,
	}
	mock.ExpectQuery("INSERT INTO activities").
		WithArgs("dependency_created", "taskgraph.dependency.created", "task-a now depends on task-b",
			nil, nil, "task-a", sqlmock.AnyArg(), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	if err := queryRecordActivity(context.Background(), db, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID != 42 {
		t.Fatalf("ID = %d, want 42", a.ID)
	}
}

func TestQueryListActivities(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM activities WHERE task_id = \\$1 .+ LIMIT \\$2").WithArgs("task-a", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "topic", "description", "actor_id", "team_id", "task_id", "metadata", "created_at"}).
			AddRow(int64(1), "task_created", "taskgraph.task.created", "created", "alice", "team-1", "task-a", []byte(`{"a":1}`), now))

	acts, err := queryListActivities(context.Background(), db, "task-a", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(acts) != 1 || acts[0].ActorID != "alice" || string(acts[0].Metadata) != `{"a":1}` {
		t.Fatalf("unexpected activities: %+v", acts)
	}
}

func TestRunInTransaction_CommitAndRollback(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM dependencies").WithArgs("dep-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.DeleteDependency(context.Background(), "dep-1")
	})
	if err != nil {
		t.Fatalf("commit path: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM dependencies").WithArgs("dep-2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.DeleteDependency(context.Background(), "dep-2")
	})
	if err != sql.ErrNoRows {
		t.Fatalf("rollback path: expected sql.ErrNoRows, got %v", err)
	}
}
