package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanTask scans a single row into a model.Task.
// The row must contain columns in the order defined by taskColumns.
func scanTask(row scannable) (*model.Task, error) {
	var t model.Task
	var createdBy sql.NullString

	err := row.Scan(
		&t.ID,
		&t.TeamID,
		&t.Title,
		&t.Status,
		&t.Priority,
		&createdBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.CreatedBy = createdBy.String
	return &t, nil
}

// scanTasks scans multiple rows into a slice of model.Task pointers.
func scanTasks(rows *sql.Rows) ([]*model.Task, error) {
	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// scanDependency scans a row produced by dependencySelect.
func scanDependency(row scannable) (*model.Dependency, error) {
	var d model.Dependency
	var (
		kind      string
		note      sql.NullString
		createdBy sql.NullString
		src       = model.TaskRef{}
		tgt       = model.TaskRef{}
	)

	err := row.Scan(
		&d.ID,
		&d.SourceTaskID,
		&d.TargetTaskID,
		&kind,
		&note,
		&createdBy,
		&d.CreatedAt,
		&d.UpdatedAt,
		&src.Title,
		&src.Status,
		&src.Priority,
		&tgt.Title,
		&tgt.Status,
		&tgt.Priority,
	)
	if err != nil {
		return nil, err
	}

	d.Kind, err = model.ParseDependencyKind(kind)
	if err != nil {
		return nil, fmt.Errorf("dependency %s: %w", d.ID, err)
	}
	d.Note = note.String
	d.CreatedBy = createdBy.String

	src.ID = d.SourceTaskID
	tgt.ID = d.TargetTaskID
	d.SourceTask = &src
	d.TargetTask = &tgt
	return &d, nil
}

// scanDependencies scans multiple rows into a slice of model.Dependency pointers.
func scanDependencies(rows *sql.Rows) ([]*model.Dependency, error) {
	var deps []*model.Dependency
	for rows.Next() {
		d, err := scanDependency(rows)
		if err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return deps, nil
}

// scanStatusChanges scans task_status_history rows.
func scanStatusChanges(rows *sql.Rows) ([]*model.StatusChange, error) {
	var changes []*model.StatusChange
	for rows.Next() {
		var c model.StatusChange
		var from, actor sql.NullString
		if err := rows.Scan(&c.ID, &c.TaskID, &from, &c.To, &actor, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.From = model.TaskStatus(from.String)
		c.Actor = actor.String
		changes = append(changes, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}

// scanActivity scans a single row into a model.Activity.
func scanActivity(row scannable) (*model.Activity, error) {
	var a model.Activity
	var (
		actorID  sql.NullString
		teamID   sql.NullString
		taskID   sql.NullString
		metadata []byte
	)
	err := row.Scan(
		&a.ID,
		&a.Kind,
		&a.Topic,
		&a.Description,
		&actorID,
		&teamID,
		&taskID,
		&metadata,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.ActorID = actorID.String
	a.TeamID = teamID.String
	a.TaskID = taskID.String
	if len(metadata) > 0 {
		a.Metadata = json.RawMessage(metadata)
	}
	return &a, nil
}

// scanActivities scans multiple rows into a slice of model.Activity pointers.
func scanActivities(rows *sql.Rows) ([]*model.Activity, error) {
	var activities []*model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return activities, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
