package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID generates a new ULID string for use as an entity identifier.
func NewID() string {
	return ulid.Make().String()
}

// View state constants.
const (
	StateInitializing = "initializing"
	StateReady        = "ready"
	StateLoading      = "loading"
	StateError        = "error"
	StateUnmounted    = "unmounted"
)

// Query outcome constants.
const (
	QueryStatusSucceeded = "succeeded"
	QueryStatusFailed    = "failed"
	QueryStatusDiscarded = "discarded"
)

// validTransitions maps each view state to the set of states it may transition to.
// Error and unmounted are terminal for a mount.
var validTransitions = map[string]map[string]bool{
	StateInitializing: {
		StateReady:     true,
		StateError:     true,
		StateUnmounted: true,
	},
	StateReady: {
		StateLoading:   true,
		StateUnmounted: true,
	},
	StateLoading: {
		StateReady:     true,
		StateError:     true,
		StateUnmounted: true,
	},
	StateError: {
		StateUnmounted: true,
	},
}

// ValidTransition reports whether transitioning from one state to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether no further transitions are possible except unmounting.
func IsTerminal(state string) bool {
	return state == StateError || state == StateUnmounted
}

// View is the persisted record of one mounted query table view.
type View struct {
	ID          string     `json:"id"`
	Profile     string     `json:"profile"`
	Bundle      string     `json:"bundle,omitempty"`
	DatasetURL  string     `json:"dataset_url"`
	State       string     `json:"state"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadyAt     *time.Time `json:"ready_at,omitempty"`
	UnmountedAt *time.Time `json:"unmounted_at,omitempty"`
}

// QueryRecord is one executed query in a view's history.
type QueryRecord struct {
	ID          string    `json:"id"`
	ViewID      string    `json:"view_id"`
	Seq         int64     `json:"seq"`
	SQL         string    `json:"sql"`
	Status      string    `json:"status"`
	RowCount    int       `json:"row_count"`
	ColumnCount int       `json:"column_count"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int       `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}
