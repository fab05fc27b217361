package flow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vk/flowgrid/internal/processor"
)

// Position is a node's location on the editor canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is one processing step of a flow.
type Node struct {
	ID       string
	Type     string
	Position Position
	Data     NodeData
}

// NodeData is the mutable payload of a node. Config is the processor-specific
// variant selected by ProcessorType.
type NodeData struct {
	Name          string
	ProcessorType string
	Config        processor.Config
	OutputData    *OutputData
	LastRun       *time.Time
	MissingFields []string
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	n.Data = n.Data.Clone()
	return n
}

// Clone returns a deep copy of the data.
func (d NodeData) Clone() NodeData {
	d.Config = processor.CloneConfig(d.Config)
	if d.OutputData != nil {
		out := d.OutputData.clone()
		d.OutputData = &out
	}
	if d.LastRun != nil {
		ts := *d.LastRun
		d.LastRun = &ts
	}
	if d.MissingFields != nil {
		d.MissingFields = append([]string(nil), d.MissingFields...)
	}
	return d
}

// DataPatch lists the NodeData fields to replace. Nil fields are left as they
// are.
type DataPatch struct {
	Name          *string
	Config        processor.Config
	OutputData    *OutputData
	LastRun       *time.Time
	MissingFields *[]string
}

func (p DataPatch) apply(d *NodeData) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Config != nil {
		d.Config = processor.CloneConfig(p.Config)
		d.ProcessorType = p.Config.ProcessorType()
	}
	if p.OutputData != nil {
		out := p.OutputData.clone()
		d.OutputData = &out
	}
	if p.LastRun != nil {
		ts := *p.LastRun
		d.LastRun = &ts
	}
	if p.MissingFields != nil {
		d.MissingFields = append([]string(nil), (*p.MissingFields)...)
	}
}

// Edge connects an output handle of Source to an input handle of Target.
type Edge struct {
	ID           string
	Source       string
	Target       string
	SourceHandle string
	TargetHandle string
}

// Snapshot is an immutable copy of a graph's nodes (in insertion order) and
// edges.
type Snapshot struct {
	Nodes []Node
	Edges []Edge
}

// OutputData is a node's output: either a single text or a list of texts.
type OutputData struct {
	items []string
	list  bool
}

// TextOutput returns a single-valued output.
func TextOutput(s string) OutputData {
	return OutputData{items: []string{s}}
}

// ListOutput returns a list-valued output.
func ListOutput(items ...string) OutputData {
	return OutputData{items: append([]string{}, items...), list: true}
}

// IsList reports whether the output is list-valued.
func (o OutputData) IsList() bool { return o.list }

// Text returns a single-valued output, or the first item of a list.
func (o OutputData) Text() string {
	if len(o.items) == 0 {
		return ""
	}
	return o.items[0]
}

// Items returns the output as a list.
func (o OutputData) Items() []string {
	return append([]string{}, o.items...)
}

func (o OutputData) String() string {
	if o.list {
		return fmt.Sprintf("%q", o.items)
	}
	return o.Text()
}

func (o OutputData) clone() OutputData {
	o.items = append([]string(nil), o.items...)
	return o
}

// MarshalJSON encodes the output as a JSON string or array of strings.
func (o OutputData) MarshalJSON() ([]byte, error) {
	if o.list {
		return json.Marshal(o.Items())
	}
	return json.Marshal(o.Text())
}

// UnmarshalJSON accepts a JSON string or array of strings.
func (o *OutputData) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*o = TextOutput(s)
		return nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("output data must be a string or a list of strings: %w", err)
	}
	*o = ListOutput(items...)
	return nil
}
