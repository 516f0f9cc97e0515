// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already-open database handle without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateTask(ctx context.Context, task *model.Task) error {
	return queryCreateTask(ctx, s.db, task)
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return queryGetTask(ctx, s.db, id)
}

func (s *PostgresStore) ListTasks(ctx context.Context, teamID string) ([]*model.Task, error) {
	return queryListTasks(ctx, s.db, teamID)
}

func (s *PostgresStore) SetTaskStatus(ctx context.Context, id string, status model.TaskStatus) (*model.Task, error) {
	return querySetTaskStatus(ctx, s.db, id, status)
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id string) error {
	return queryDeleteTask(ctx, s.db, id)
}

func (s *PostgresStore) RecordStatusChange(ctx context.Context, change *model.StatusChange) error {
	return queryRecordStatusChange(ctx, s.db, change)
}

func (s *PostgresStore) GetStatusHistory(ctx context.Context, taskID string) ([]*model.StatusChange, error) {
	return queryGetStatusHistory(ctx, s.db, taskID)
}

func (s *PostgresStore) CreateDependency(ctx context.Context, dep *model.Dependency) error {
	return queryCreateDependency(ctx, s.db, dep)
}

func (s *PostgresStore) GetDependency(ctx context.Context, id string) (*model.Dependency, error) {
	return queryGetDependency(ctx, s.db, id)
}

func (s *PostgresStore) UpdateDependency(ctx context.Context, dep *model.Dependency) error {
	return queryUpdateDependency(ctx, s.db, dep)
}

func (s *PostgresStore) DeleteDependency(ctx context.Context, id string) error {
	return queryDeleteDependency(ctx, s.db, id)
}

func (s *PostgresStore) FindDependencies(ctx context.Context, taskID string, filter model.DependencyFilter) ([]*model.Dependency, error) {
	return queryFindDependencies(ctx, s.db, taskID, filter)
}

func (s *PostgresStore) DependencyExists(ctx context.Context, sourceID, targetID string, kind model.DependencyKind, excludeID string) (bool, error) {
	return queryDependencyExists(ctx, s.db, sourceID, targetID, kind, excludeID)
}

func (s *PostgresStore) ListAllDependencies(ctx context.Context) ([]*model.Dependency, error) {
	return queryListAllDependencies(ctx, s.db)
}

func (s *PostgresStore) RecordActivity(ctx context.Context, activity *model.Activity) error {
	return queryRecordActivity(ctx, s.db, activity)
}

func (s *PostgresStore) ListActivities(ctx context.Context, taskID string, limit int) ([]*model.Activity, error) {
	return queryListActivities(ctx, s.db, taskID, limit)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateTask(ctx context.Context, task *model.Task) error {
	return queryCreateTask(ctx, s.tx, task)
}

func (s *txStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return queryGetTask(ctx, s.tx, id)
}

func (s *txStore) ListTasks(ctx context.Context, teamID string) ([]*model.Task, error) {
	return queryListTasks(ctx, s.tx, teamID)
}

func (s *txStore) SetTaskStatus(ctx context.Context, id string, status model.TaskStatus) (*model.Task, error) {
	return querySetTaskStatus(ctx, s.tx, id, status)
}

func (s *txStore) DeleteTask(ctx context.Context, id string) error {
	return queryDeleteTask(ctx, s.tx, id)
}

func (s *txStore) RecordStatusChange(ctx context.Context, change *model.StatusChange) error {
	return queryRecordStatusChange(ctx, s.tx, change)
}

func (s *txStore) GetStatusHistory(ctx context.Context, taskID string) ([]*model.StatusChange, error) {
	return queryGetStatusHistory(ctx, s.tx, taskID)
}

func (s *txStore) CreateDependency(ctx context.Context, dep *model.Dependency) error {
	return queryCreateDependency(ctx, s.tx, dep)
}

func (s *txStore) GetDependency(ctx context.Context, id string) (*model.Dependency, error) {
	return queryGetDependency(ctx, s.tx, id)
}

func (s *txStore) UpdateDependency(ctx context.Context, dep *model.Dependency) error {
	return queryUpdateDependency(ctx, s.tx, dep)
}

func (s *txStore) DeleteDependency(ctx context.Context, id string) error {
	return queryDeleteDependency(ctx, s.tx, id)
}

func (s *txStore) FindDependencies(ctx context.Context, taskID string, filter model.DependencyFilter) ([]*model.Dependency, error) {
	return queryFindDependencies(ctx, s.tx, taskID, filter)
}

func (s *txStore) DependencyExists(ctx context.Context, sourceID, targetID string, kind model.DependencyKind, excludeID string) (bool, error) {
	return queryDependencyExists(ctx, s.tx, sourceID, targetID, kind, excludeID)
}

func (s *txStore) ListAllDependencies(ctx context.Context) ([]*model.Dependency, error) {
	return queryListAllDependencies(ctx, s.tx)
}

func (s *txStore) RecordActivity(ctx context.Context, activity *model.Activity) error {
	return queryRecordActivity(ctx, s.tx, activity)
}

func (s *txStore) ListActivities(ctx context.Context, taskID string, limit int) ([]*model.Activity, error) {
	return queryListActivities(ctx, s.tx, taskID, limit)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
