package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// taskColumns is the column list used for SELECT statements on the tasks table.
const taskColumns = `id, team_id, title, status, priority, created_by, created_at, updated_at`

// dependencySelect resolves both endpoint snapshots with the edge row.
const dependencySelect = `
	SELECT d.id, d.source_task_id, d.target_task_id, d.type, d.note, d.created_by,
	       d.created_at, d.updated_at,
	       s.title, s.status, s.priority,
	       t.title, t.status, t.priority
	FROM dependencies d
	JOIN tasks s ON s.id = d.source_task_id
	JOIN tasks t ON t.id = d.target_task_id`

// activityColumns is the column list used for SELECT statements on the activities table.
const activityColumns = `id, kind, topic, description, actor_id, team_id, task_id, metadata, created_at`

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mapWriteErr translates a unique violation into store.ErrDuplicate.
func mapWriteErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pqErr.Constraint)
	}
	return err
}

// requireAffected returns sql.ErrNoRows when an UPDATE or DELETE matched nothing.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryCreateTask(ctx context.Context, db executor, t *model.Task) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tasks (id, team_id, title, status, priority, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID,
		t.TeamID,
		t.Title,
		string(t.Status),
		string(t.Priority),
		nullString(t.CreatedBy),
		t.CreatedAt,
		t.UpdatedAt,
	)
	return mapWriteErr(err)
}

func queryGetTask(ctx context.Context, db executor, id string) (*model.Task, error) {
	row := db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

func queryListTasks(ctx context.Context, db executor, teamID string) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if teamID != "" {
		query += ` WHERE team_id = $1`
		args = append(args, teamID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func querySetTaskStatus(ctx context.Context, db executor, id string, status model.TaskStatus) (*model.Task, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE tasks SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+taskColumns,
		id, string(status),
	)
	return scanTask(row)
}

func queryDeleteTask(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(res)
}

func queryRecordStatusChange(ctx context.Context, db executor, c *model.StatusChange) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO task_status_history (task_id, from_status, to_status, actor, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		c.TaskID,
		nullString(string(c.From)),
		string(c.To),
		nullString(c.Actor),
		c.CreatedAt,
	).Scan(&c.ID)
}

func queryGetStatusHistory(ctx context.Context, db executor, taskID string) ([]*model.StatusChange, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, task_id, from_status, to_status, actor, created_at
		FROM task_status_history WHERE task_id = $1
		ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("get status history: %w", err)
	}
	defer rows.Close()
	return scanStatusChanges(rows)
}

func queryCreateDependency(ctx context.Context, db executor, d *model.Dependency) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO dependencies (id, source_task_id, target_task_id, type, note, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID,
		d.SourceTaskID,
		d.TargetTaskID,
		d.Kind.String(),
		nullString(d.Note),
		nullString(d.CreatedBy),
		d.CreatedAt,
		d.UpdatedAt,
	)
	return mapWriteErr(err)
}

func queryGetDependency(ctx context.Context, db executor, id string) (*model.Dependency, error) {
	row := db.QueryRowContext(ctx, dependencySelect+` WHERE d.id = $1`, id)
	return scanDependency(row)
}

func queryUpdateDependency(ctx context.Context, db executor, d *model.Dependency) error {
	res, err := db.ExecContext(ctx, `
		UPDATE dependencies SET type = $2, note = $3, updated_at = $4
		WHERE id = $1`,
		d.ID,
		d.Kind.String(),
		nullString(d.Note),
		d.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr(err)
	}
	return requireAffected(res)
}

func queryDeleteDependency(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM dependencies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dependency: %w", err)
	}
	return requireAffected(res)
}

func queryFindDependencies(ctx context.Context, db executor, taskID string, filter model.DependencyFilter) ([]*model.Dependency, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	p := nextArg()
	args = append(args, taskID)
	switch filter.Direction {
	case model.Outgoing:
		whereClauses = append(whereClauses, "d.source_task_id = "+p)
	case model.Incoming:
		whereClauses = append(whereClauses, "d.target_task_id = "+p)
	default:
		whereClauses = append(whereClauses, "(d.source_task_id = "+p+" OR d.target_task_id = "+p+")")
	}

	if filter.Kind.IsValid() {
		whereClauses = append(whereClauses, "d.type = "+nextArg())
		args = append(args, filter.Kind.String())
	}

	query := dependencySelect + " WHERE " + strings.Join(whereClauses, " AND ") +
		" ORDER BY d.created_at DESC, d.id DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find dependencies: %w", err)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

func queryDependencyExists(ctx context.Context, db executor, sourceID, targetID string, kind model.DependencyKind, excludeID string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM dependencies
			WHERE source_task_id = $1 AND target_task_id = $2 AND type = $3 AND id <> $4
		)`,
		sourceID, targetID, kind.String(), excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check dependency: %w", err)
	}
	return exists, nil
}

func queryListAllDependencies(ctx context.Context, db executor) ([]*model.Dependency, error) {
	rows, err := db.QueryContext(ctx, dependencySelect+` ORDER BY d.created_at, d.id`)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

func queryRecordActivity(ctx context.Context, db executor, a *model.Activity) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO activities (kind, topic, description, actor_id, team_id, task_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		string(a.Kind),
		a.Topic,
		a.Description,
		nullString(a.ActorID),
		nullString(a.TeamID),
		nullString(a.TaskID),
		jsonbBytes(a.Metadata),
		a.CreatedAt,
	).Scan(&a.ID)
}

func queryListActivities(ctx context.Context, db executor, taskID string, limit int) ([]*model.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE task_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{taskID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()
	return scanActivities(rows)
}
