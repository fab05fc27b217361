package flowdoc

import (
	"time"

	"github.com/vk/flowgrid/internal/flow"
)

// Document is the portable form of a flow.
type Document struct {
	Nodes []NodeEntry `json:"nodes" yaml:"nodes"`
	Edges []EdgeEntry `json:"edges" yaml:"edges"`
}

// NodeEntry is one node of a document.
type NodeEntry struct {
	ID       string         `json:"id" yaml:"id"`
	Type     string         `json:"type" yaml:"type"`
	Position *flow.Position `json:"position,omitempty" yaml:"position,omitempty"`
	Data     NodeData       `json:"data" yaml:"data"`
}

// NodeData is the document form of flow.NodeData. OutputData is a string or
// a list of strings.
type NodeData struct {
	Name          string         `json:"name" yaml:"name"`
	ProcessorType string         `json:"processorType" yaml:"processorType"`
	Config        map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	OutputData    any            `json:"outputData,omitempty" yaml:"outputData,omitempty"`
	LastRun       *time.Time     `json:"lastRun,omitempty" yaml:"lastRun,omitempty"`
	MissingFields []string       `json:"missingFields,omitempty" yaml:"missingFields,omitempty"`
}

// EdgeEntry is one edge of a document.
type EdgeEntry struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
}
