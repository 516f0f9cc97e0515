// Package memstore implements store.Store with in-memory maps. It backs the
// deps and server tests and enforces the same uniqueness and cascade rules
// as the PostgreSQL schema.
package memstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// Store is an in-memory store.Store.
type Store struct {
	mu   sync.RWMutex // protects everything below
	txMu sync.Mutex   // serializes RunInTransaction

	tasks    map[string]*model.Task
	deps     map[string]*model.Dependency
	depSeq   map[string]int64 // edge ID -> insertion order, tie-break for equal timestamps
	history  []*model.StatusChange
	activity []*model.Activity

	seq        int64
	historyID  int64
	activityID int64
	closed     bool
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		tasks:  make(map[string]*model.Task),
		deps:   make(map[string]*model.Dependency),
		depSeq: make(map[string]int64),
	}
}

func (s *Store) CreateTask(_ context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("%w: task %s", store.ErrDuplicate, task.ID)
	}
	t := *task
	s.tasks[t.ID] = &t
	return nil
}

func (s *Store) GetTask(_ context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *t
	return &out, nil
}

func (s *Store) ListTasks(_ context.Context, teamID string) ([]*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Task
	for _, t := range s.tasks {
		if teamID != "" && t.TeamID != teamID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SetTaskStatus(_ context.Context, id string, status model.TaskStatus) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	out := *t
	return &out, nil
}

// DeleteTask removes the task together with every edge and history row
// that references it.
func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.tasks, id)
	for depID, d := range s.deps {
		if d.Touches(id) {
			delete(s.deps, depID)
			delete(s.depSeq, depID)
		}
	}
	kept := s.history[:0]
	for _, c := range s.history {
		if c.TaskID != id {
			kept = append(kept, c)
		}
	}
	s.history = kept
	return nil
}

func (s *Store) RecordStatusChange(_ context.Context, change *model.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[change.TaskID]; !ok {
		return fmt.Errorf("status history: task %s does not exist", change.TaskID)
	}
	s.historyID++
	change.ID = s.historyID
	c := *change
	s.history = append(s.history, &c)
	return nil
}

func (s *Store) GetStatusHistory(_ context.Context, taskID string) ([]*model.StatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.StatusChange
	for _, c := range s.history {
		if c.TaskID == taskID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) CreateDependency(_ context.Context, dep *model.Dependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[dep.SourceTaskID]; !ok {
		return fmt.Errorf("dependency: source task %s does not exist", dep.SourceTaskID)
	}
	if _, ok := s.tasks[dep.TargetTaskID]; !ok {
		return fmt.Errorf("dependency: target task %s does not exist", dep.TargetTaskID)
	}
	if _, ok := s.deps[dep.ID]; ok || s.existsLocked(dep.SourceTaskID, dep.TargetTaskID, dep.Kind, "") {
		return fmt.Errorf("%w: dependencies_unique_edge", store.ErrDuplicate)
	}
	d := *dep
	d.SourceTask, d.TargetTask = nil, nil
	s.deps[d.ID] = &d
	s.seq++
	s.depSeq[d.ID] = s.seq
	return nil
}

func (s *Store) GetDependency(_ context.Context, id string) (*model.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s.resolveLocked(d), nil
}

func (s *Store) UpdateDependency(_ context.Context, dep *model.Dependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deps[dep.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if s.existsLocked(d.SourceTaskID, d.TargetTaskID, dep.Kind, d.ID) {
		return fmt.Errorf("%w: dependencies_unique_edge", store.ErrDuplicate)
	}
	d.Kind = dep.Kind
	d.Note = dep.Note
	d.UpdatedAt = dep.UpdatedAt
	return nil
}

func (s *Store) DeleteDependency(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deps[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.deps, id)
	delete(s.depSeq, id)
	return nil
}

func (s *Store) FindDependencies(_ context.Context, taskID string, filter model.DependencyFilter) ([]*model.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Dependency
	for _, d := range s.deps {
		if filter.Kind.IsValid() && d.Kind != filter.Kind {
			continue
		}
		switch filter.Direction {
		case model.Outgoing:
			if d.SourceTaskID != taskID {
				continue
			}
		case model.Incoming:
			if d.TargetTaskID != taskID {
				continue
			}
		default:
			if !d.Touches(taskID) {
				continue
			}
		}
		out = append(out, s.resolveLocked(d))
	}
	s.sortNewestFirst(out)
	return out, nil
}

func (s *Store) DependencyExists(_ context.Context, sourceID, targetID string, kind model.DependencyKind, excludeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.existsLocked(sourceID, targetID, kind, excludeID), nil
}

func (s *Store) ListAllDependencies(_ context.Context) ([]*model.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Dependency, 0, len(s.deps))
	for _, d := range s.deps {
		out = append(out, s.resolveLocked(d))
	}
	sort.Slice(out, func(i, j int) bool { return s.depSeq[out[i].ID] < s.depSeq[out[j].ID] })
	return out, nil
}

func (s *Store) RecordActivity(_ context.Context, activity *model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activityID++
	activity.ID = s.activityID
	a := *activity
	s.activity = append(s.activity, &a)
	return nil
}

func (s *Store) ListActivities(_ context.Context, taskID string, limit int) ([]*model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Activity
	for i := len(s.activity) - 1; i >= 0; i-- {
		a := s.activity[i]
		if a.TaskID != taskID {
			continue
		}
		cp := *a
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// RunInTransaction runs fn against a copy of the current state and installs
// the copy only if fn succeeds.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := s.clone()
	if err := fn(&txStore{Store: tx}); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks, s.deps, s.depSeq = tx.tasks, tx.deps, tx.depSeq
	s.history, s.activity = tx.history, tx.activity
	s.seq, s.historyID, s.activityID = tx.seq, tx.historyID, tx.activityID
	return nil
}

// Close marks the store closed. Data stays readable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// txStore reuses the enclosing transaction for nested calls.
type txStore struct {
	*Store
}

func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (s *Store) clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := New()
	for id, t := range s.tasks {
		cp := *t
		c.tasks[id] = &cp
	}
	for id, d := range s.deps {
		cp := *d
		c.deps[id] = &cp
	}
	for id, n := range s.depSeq {
		c.depSeq[id] = n
	}
	c.history = append(c.history, s.history...)
	c.activity = append(c.activity, s.activity...)
	c.seq, c.historyID, c.activityID = s.seq, s.historyID, s.activityID
	return c
}

func (s *Store) existsLocked(sourceID, targetID string, kind model.DependencyKind, excludeID string) bool {
	for id, d := range s.deps {
		if id == excludeID {
			continue
		}
		if d.SourceTaskID == sourceID && d.TargetTaskID == targetID && d.Kind == kind {
			return true
		}
	}
	return false
}

// resolveLocked returns a copy of d with endpoint snapshots attached.
func (s *Store) resolveLocked(d *model.Dependency) *model.Dependency {
	out := *d
	if t, ok := s.tasks[d.SourceTaskID]; ok {
		ref := t.Ref()
		out.SourceTask = &ref
	}
	if t, ok := s.tasks[d.TargetTaskID]; ok {
		ref := t.Ref()
		out.TargetTask = &ref
	}
	return &out
}

func (s *Store) sortNewestFirst(deps []*model.Dependency) {
	sort.Slice(deps, func(i, j int) bool {
		a, b := deps[i], deps[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return s.depSeq[a.ID] > s.depSeq[b.ID]
	})
}
