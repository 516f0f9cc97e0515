package deps

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// Reason distinguishes the sub-cases of a rejected relationship.
type Reason string

const (
	ReasonSelfReference Reason = "self_reference"
	ReasonCrossTeam     Reason = "cross_team"
	ReasonDuplicateEdge Reason = "duplicate_edge"
	ReasonDirectCycle   Reason = "direct_cycle"
)

var reasonMessages = map[Reason]string{
	ReasonSelfReference: "a task cannot depend on itself",
	ReasonCrossTeam:     "both tasks must belong to the same team",
	ReasonDuplicateEdge: "this dependency already exists",
	ReasonDirectCycle:   "this would create a direct cycle",
}

// RelationshipError is a policy violation detected before a write.
type RelationshipError struct {
	Reason  Reason
	Message string
}

func newRelationshipError(r Reason) *RelationshipError {
	return &RelationshipError{Reason: r, Message: reasonMessages[r]}
}

func (e *RelationshipError) Error() string { return e.Message }

// NotFoundError reports a task or dependency that does not exist.
type NotFoundError struct {
	Entity string // "task" or "dependency"
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Entity, e.ID) }

// NotFound lets transport layers detect the error without importing deps.
func (e *NotFoundError) NotFound() bool { return true }

// ErrForbidden is returned when an edge is addressed through a task it does
// not touch.
var ErrForbidden = errors.New("dependency does not belong to this task")

// ClosureError rejects a transition into done while gating targets are open.
type ClosureError struct {
	TaskID   string
	Blocking []model.BlockingTask
}

func (e *ClosureError) Error() string {
	ids := make([]string, len(e.Blocking))
	for i, b := range e.Blocking {
		ids[i] = b.ID
	}
	return fmt.Sprintf("task %s cannot be closed: blocked by %s", e.TaskID, strings.Join(ids, ", "))
}

// StorageError wraps an unexpected persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// storageErr wraps err unless it already carries a domain meaning.
func storageErr(op string, err error) error {
	var (
		rel *RelationshipError
		nf  *NotFoundError
		ve  *model.ValidationError
		se  *StorageError
	)
	if errors.As(err, &rel) || errors.As(err, &nf) || errors.As(err, &ve) || errors.As(err, &se) || errors.Is(err, ErrForbidden) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// notFound maps sql.ErrNoRows to a NotFoundError and everything else to a
// StorageError.
func notFound(entity, id, op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return storageErr(op, err)
}
