package flow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateNode is returned when a node id is already taken.
	ErrDuplicateNode = errors.New("duplicate node id")
	// ErrUnknownNode is returned when an edge references a node that is not
	// in the graph.
	ErrUnknownNode = errors.New("unknown node id")
	// ErrHandleOccupied is returned by snapshot validation when two edges
	// target the same (target, targetHandle) pair.
	ErrHandleOccupied = errors.New("target handle already connected")
	// ErrEmptyID is returned for nodes without an id.
	ErrEmptyID = errors.New("node id is empty")
	// ErrNoProcessorType is returned when a new node names no processor type.
	ErrNoProcessorType = errors.New("processor type is empty")
	// ErrCyclicGraph is the sentinel wrapped by CyclicGraphError.
	ErrCyclicGraph = errors.New("graph contains a cycle")
)

// CyclicGraphError reports the nodes Sort could not order.
type CyclicGraphError struct {
	NodeIDs []string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("graph contains a cycle through nodes: %s", strings.Join(e.NodeIDs, ", "))
}

func (e *CyclicGraphError) Unwrap() error { return ErrCyclicGraph }
