package coordinator

import (
	"errors"
	"fmt"
)

var (
	// ErrRunInProgress rejects a run while another one is in flight.
	ErrRunInProgress = errors.New("a run is already in progress")
	// ErrMissingCredentials rejects a run when no credentials are configured.
	ErrMissingCredentials = errors.New("credentials are missing")
	// ErrUnknownNode rejects a single-node run for a name no node carries.
	ErrUnknownNode = errors.New("no node with that name")
)

// State is the lifecycle state of the current run.
type State int

const (
	Idle State = iota
	Submitting
	Running
	Completed
	Errored
	Disconnected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Errored:
		return "errored"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// InFlight reports whether a run has been started and has not ended.
func (s State) InFlight() bool { return s == Submitting || s == Running }

// Terminal reports whether a run has ended and awaits acknowledgement.
func (s State) Terminal() bool {
	return s == Completed || s == Errored || s == Disconnected
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status is a point-in-time view of the coordinator.
type Status struct {
	State       State  `json:"state"`
	RunID       int    `json:"runId"`
	CurrentNode string `json:"currentNode,omitempty"`
	ErrorCount  int    `json:"errorCount"`
	LastError   string `json:"lastError,omitempty"`
}
