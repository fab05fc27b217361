package flowdoc

import (
	"fmt"

	"github.com/vk/flowgrid/internal/flow"
	"github.com/vk/flowgrid/internal/nodeid"
	"github.com/vk/flowgrid/internal/processor"
)

// ToDocument serializes nodes, in the given order, and edges into a
// document. Positions are included only when includeCoordinates is set.
// The inputs are not modified.
func ToDocument(ordered []flow.Node, edges []flow.Edge, includeCoordinates bool) (Document, error) {
	doc := Document{
		Nodes: make([]NodeEntry, 0, len(ordered)),
		Edges: make([]EdgeEntry, 0, len(edges)),
	}

	for _, n := range ordered {
		data, err := encodeNodeData(n.Data)
		if err != nil {
			return Document{}, fmt.Errorf("encoding node %s: %w", n.ID, err)
		}
		entry := NodeEntry{ID: n.ID, Type: n.Type, Data: data}
		if includeCoordinates {
			pos := n.Position
			entry.Position = &pos
		}
		doc.Nodes = append(doc.Nodes, entry)
	}

	for _, e := range normalizeHandles(edges) {
		id := e.ID
		if id == "" {
			id = nodeid.EdgeID(e.Source, e.SourceHandle, e.Target, e.TargetHandle)
		}
		doc.Edges = append(doc.Edges, EdgeEntry{
			ID:           id,
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
		})
	}
	return doc, nil
}

// FromGraph serializes a graph snapshot in execution order.
func FromGraph(s flow.Snapshot, policy flow.CyclePolicy, includeCoordinates bool) (Document, error) {
	order, err := flow.Sort(s, policy)
	if err != nil {
		return Document{}, err
	}
	return ToDocument(s.Ordered(order), s.Edges, includeCoordinates)
}

func encodeNodeData(d flow.NodeData) (NodeData, error) {
	out := NodeData{
		Name:          d.Name,
		ProcessorType: d.ProcessorType,
	}
	if out.ProcessorType == "" && d.Config != nil {
		out.ProcessorType = d.Config.ProcessorType()
	}

	if d.Config != nil {
		values, err := processor.Values(d.Config)
		if err != nil {
			return NodeData{}, err
		}
		if len(values) > 0 {
			out.Config = values
		}
	}

	if d.OutputData != nil {
		if d.OutputData.IsList() {
			out.OutputData = d.OutputData.Items()
		} else {
			out.OutputData = d.OutputData.Text()
		}
	}
	if d.LastRun != nil {
		ts := *d.LastRun
		out.LastRun = &ts
	}
	if len(d.MissingFields) > 0 {
		out.MissingFields = append([]string(nil), d.MissingFields...)
	}
	return out, nil
}
