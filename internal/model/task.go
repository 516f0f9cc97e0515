package model

import "time"

// TaskStatus represents the workflow state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
	StatusCancelled  TaskStatus = "cancelled"
)

// String returns the string representation of the status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further work is expected in this status.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// statusTransitions lists the statuses reachable from each status.
var statusTransitions = map[TaskStatus][]TaskStatus{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusDone, StatusCancelled, StatusPending},
	StatusDone:       {},
	StatusCancelled:  {StatusPending},
}

// CanTransitionTo reports whether a task in status s may move to next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsValid checks whether the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Task is the work item that dependency edges connect. Task CRUD is owned
// by the surrounding application; this service reads tasks and writes only
// their status.
type Task struct {
	ID        string     `json:"id"`
	TeamID    string     `json:"team_id"`
	Title     string     `json:"title"`
	Status    TaskStatus `json:"status"`
	Priority  Priority   `json:"priority"`
	CreatedBy string     `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Ref returns the lightweight snapshot of the task used in edge views.
func (t *Task) Ref() TaskRef {
	return TaskRef{
		ID:       t.ID,
		Title:    t.Title,
		Status:   t.Status,
		Priority: t.Priority,
	}
}

// TaskRef is a read-time snapshot of a task endpoint.
type TaskRef struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Status   TaskStatus `json:"status"`
	Priority Priority   `json:"priority"`
}

// StatusChange is one row of a task's status history.
type StatusChange struct {
	ID        int64      `json:"id"`
	TaskID    string     `json:"task_id"`
	From      TaskStatus `json:"from,omitempty"`
	To        TaskStatus `json:"to"`
	Actor     string     `json:"actor,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
