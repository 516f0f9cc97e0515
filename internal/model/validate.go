package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateTask checks a Task for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the task is valid.
func ValidateTask(t *Task) error {
	var ve ValidationError

	// Title: required and at most 200 characters.
	title := strings.TrimSpace(t.Title)
	if title == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "is required"})
	} else if len([]rune(title)) > 200 {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "must be 200 characters or fewer"})
	}

	if strings.TrimSpace(t.TeamID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "team_id", Message: "is required"})
	}

	if !t.Status.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "status",
			Message: fmt.Sprintf("invalid value %q", t.Status),
		})
	}

	if !t.Priority.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "priority",
			Message: fmt.Sprintf("invalid value %q", t.Priority),
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateDependency checks the shape of an edge: both endpoints present,
// a known kind, and a note within MaxNoteLength. Graph-level rules (self
// reference, team, duplicates, cycles) are enforced by the deps package.
func ValidateDependency(d *Dependency) error {
	var ve ValidationError

	if strings.TrimSpace(d.SourceTaskID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "source_task_id", Message: "is required"})
	}
	if strings.TrimSpace(d.TargetTaskID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "target_task_id", Message: "is required"})
	}
	if !d.Kind.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{Field: "type", Message: "is required"})
	}
	if len([]rune(d.Note)) > MaxNoteLength {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "note",
			Message: fmt.Sprintf("must be %d characters or fewer", MaxNoteLength),
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
