package model

import (
	"fmt"
	"time"
)

// DependencyKind is the closed set of relationship types between two tasks.
// The zero value is not a valid kind; it is used to mean "any kind" in filters.
type DependencyKind int

const (
	DependsOn DependencyKind = iota + 1
	BlockedBy
	DuplicatedWith
)

// Kinds lists every valid dependency kind.
var Kinds = []DependencyKind{DependsOn, BlockedBy, DuplicatedWith}

// String returns the wire representation of the kind.
func (k DependencyKind) String() string {
	switch k {
	case DependsOn:
		return "DEPENDS_ON"
	case BlockedBy:
		return "BLOCKED_BY"
	case DuplicatedWith:
		return "DUPLICATED_WITH"
	}
	return fmt.Sprintf("DependencyKind(%d)", int(k))
}

// IsValid reports whether k is one of the three known kinds.
func (k DependencyKind) IsValid() bool {
	switch k {
	case DependsOn, BlockedBy, DuplicatedWith:
		return true
	}
	return false
}

// CycleChecked reports whether an inverse edge of the same kind is forbidden.
func (k DependencyKind) CycleChecked() bool {
	switch k {
	case DependsOn, BlockedBy:
		return true
	case DuplicatedWith:
		return false
	}
	return false
}

// Gates reports whether an open target of this kind prevents closing the source.
func (k DependencyKind) Gates() bool {
	switch k {
	case DependsOn, BlockedBy:
		return true
	case DuplicatedWith:
		return false
	}
	return false
}

// ParseDependencyKind converts a wire string into a DependencyKind.
func ParseDependencyKind(s string) (DependencyKind, error) {
	switch s {
	case "DEPENDS_ON":
		return DependsOn, nil
	case "BLOCKED_BY":
		return BlockedBy, nil
	case "DUPLICATED_WITH":
		return DuplicatedWith, nil
	}
	return 0, fmt.Errorf("invalid dependency type %q (must be DEPENDS_ON, BLOCKED_BY or DUPLICATED_WITH)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k DependencyKind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("invalid dependency kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *DependencyKind) UnmarshalText(b []byte) error {
	parsed, err := ParseDependencyKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Direction selects which endpoint of an edge a task must occupy.
type Direction string

const (
	Outgoing Direction = "outgoing" // task is the source
	Incoming Direction = "incoming" // task is the target
	Both     Direction = "both"
)

// ParseDirection converts a query value into a Direction. Empty means Both.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "":
		return Both, nil
	case Outgoing, Incoming, Both:
		return Direction(s), nil
	}
	return "", fmt.Errorf("invalid direction %q (must be outgoing, incoming or both)", s)
}

// MaxNoteLength is the maximum number of characters in a dependency note.
const MaxNoteLength = 255

// Dependency is a directed, typed edge between two tasks of the same team.
type Dependency struct {
	ID           string         `json:"id"`
	SourceTaskID string         `json:"source_task_id"`
	TargetTaskID string         `json:"target_task_id"`
	Kind         DependencyKind `json:"type"`
	Note         string         `json:"note,omitempty"`
	CreatedBy    string         `json:"created_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	// Endpoint snapshots -- joined at read time, not stored with the edge.
	SourceTask *TaskRef `json:"source_task,omitempty"`
	TargetTask *TaskRef `json:"target_task,omitempty"`
}

// Touches reports whether taskID is either endpoint of the edge.
func (d *Dependency) Touches(taskID string) bool {
	return d.SourceTaskID == taskID || d.TargetTaskID == taskID
}

// Other returns the endpoint opposite taskID.
func (d *Dependency) Other(taskID string) string {
	if d.SourceTaskID == taskID {
		return d.TargetTaskID
	}
	return d.SourceTaskID
}

// DependencyFilter narrows FindByEndpoint results.
type DependencyFilter struct {
	Kind      DependencyKind // zero = any kind
	Direction Direction      // empty = Both
}

// DependencyPatch holds the mutable fields of an edge. Nil means unchanged.
type DependencyPatch struct {
	Kind *DependencyKind
	Note *string
}

// Summary is the blocking overview of a single task.
type Summary struct {
	Blocked       bool `json:"blocked"`
	HasDuplicates bool `json:"has_duplicates"`
	OutgoingCount int  `json:"outgoing_count"`
	IncomingCount int  `json:"incoming_count"`
}

// BlockingTask is an open target that prevents a task from closing.
type BlockingTask struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Status TaskStatus     `json:"status"`
	Kind   DependencyKind `json:"type"`
}

// ClosureCheck is the result of asking whether a task may move to done.
type ClosureCheck struct {
	Allowed       bool           `json:"allowed"`
	BlockingTasks []BlockingTask `json:"blocking_tasks"`
}
