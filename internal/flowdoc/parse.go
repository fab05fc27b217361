package flowdoc

import (
	"encoding/json"
	"fmt"

	"github.com/vk/flowgrid/internal/flow"
	"github.com/vk/flowgrid/internal/nodeid"
	"github.com/vk/flowgrid/internal/processor"
)

// Option configures FromDocument.
type Option func(*options)

type options struct {
	registry *processor.Registry
	spacing  flow.Position
	ids      nodeid.Allocator
}

// WithRegistry fills config defaults and computes missing required fields
// from the given processor registry.
func WithRegistry(reg *processor.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithAllocator gives nodes without an id a fresh one from a instead of
// rejecting the document. Such nodes can have no edges.
func WithAllocator(a nodeid.Allocator) Option {
	return func(o *options) { o.ids = a }
}

// WithSpacing sets the column and row distance of computed positions.
func WithSpacing(x, y float64) Option {
	return func(o *options) { o.spacing = flow.Position{X: x, Y: y} }
}

// FromDocument rebuilds a graph snapshot from a document. Nodes without a
// position are placed by a layered default layout. Any violation of the graph
// invariants yields a *MalformedDocumentError.
func FromDocument(doc Document, opts ...Option) (flow.Snapshot, error) {
	o := options{spacing: flow.Position{X: 350, Y: 200}}
	for _, opt := range opts {
		opt(&o)
	}

	snap := flow.Snapshot{
		Nodes: make([]flow.Node, 0, len(doc.Nodes)),
		Edges: make([]flow.Edge, 0, len(doc.Edges)),
	}
	seen := make(map[string]struct{}, len(doc.Nodes))
	explicit := make(map[string]struct{}, len(doc.Nodes))
	for _, entry := range doc.Nodes {
		explicit[entry.ID] = struct{}{}
	}
	var unplaced []int

	for i, entry := range doc.Nodes {
		if entry.ID == "" {
			if o.ids == nil {
				return flow.Snapshot{}, malformed(flow.ErrEmptyID, "node at index %d", i)
			}
			processorType := entry.Data.ProcessorType
			if processorType == "" {
				processorType = entry.Type
			}
			entry.ID = allocateID(o.ids, processorType, explicit, seen)
			if entry.Data.Name == "" {
				entry.Data.Name = entry.ID
			}
		}
		if _, dup := seen[entry.ID]; dup {
			return flow.Snapshot{}, malformed(flow.ErrDuplicateNode, "node %s", entry.ID)
		}
		seen[entry.ID] = struct{}{}

		node, err := decodeNode(entry, o.registry)
		if err != nil {
			return flow.Snapshot{}, err
		}
		if entry.Position == nil {
			unplaced = append(unplaced, len(snap.Nodes))
		}
		snap.Nodes = append(snap.Nodes, node)
	}

	for i, entry := range doc.Edges {
		if entry.Source == "" || entry.Target == "" {
			return flow.Snapshot{}, malformed(nil, "edge at index %d is missing an endpoint", i)
		}
		for _, end := range []string{entry.Source, entry.Target} {
			if _, ok := seen[end]; !ok {
				return flow.Snapshot{}, malformed(flow.ErrUnknownNode, "edge %s references unknown node %s", entry.ID, end)
			}
		}
		id := entry.ID
		if id == "" {
			id = nodeid.EdgeID(entry.Source, entry.SourceHandle, entry.Target, entry.TargetHandle)
		}
		snap.Edges = append(snap.Edges, flow.Edge{
			ID:           id,
			Source:       entry.Source,
			Target:       entry.Target,
			SourceHandle: entry.SourceHandle,
			TargetHandle: entry.TargetHandle,
		})
	}

	if err := snap.Validate(); err != nil {
		return flow.Snapshot{}, malformed(err, "invalid graph")
	}

	if len(unplaced) > 0 {
		positions := defaultPositions(snap, o.spacing)
		for _, i := range unplaced {
			snap.Nodes[i].Position = positions[snap.Nodes[i].ID]
		}
	}
	return snap, nil
}

func allocateID(ids nodeid.Allocator, processorType string, taken ...map[string]struct{}) string {
	for {
		id := ids.New(processorType)
		free := true
		for _, m := range taken {
			if _, ok := m[id]; ok {
				free = false
			}
		}
		if free {
			return id
		}
	}
}

func decodeNode(entry NodeEntry, reg *processor.Registry) (flow.Node, error) {
	processorType := entry.Data.ProcessorType
	if processorType == "" {
		processorType = entry.Type
	}
	if processorType == "" {
		// Editor ids end in "#<processorType>".
		if _, fromID, ok := nodeid.Parse(entry.ID); ok {
			processorType = fromID
		}
	}
	if processorType == "" {
		return flow.Node{}, malformed(nil, "node %s has no processor type", entry.ID)
	}
	nodeType := entry.Type
	if nodeType == "" {
		nodeType = processorType
	}

	raw, err := json.Marshal(entry.Data.Config)
	if err != nil {
		return flow.Node{}, malformed(err, "node %s config", entry.ID)
	}
	cfg, err := processor.DecodeConfig(processorType, raw)
	if err != nil {
		return flow.Node{}, malformed(err, "node %s config", entry.ID)
	}

	output, err := decodeOutput(entry.Data.OutputData)
	if err != nil {
		return flow.Node{}, malformed(err, "node %s output", entry.ID)
	}

	data := flow.NodeData{
		Name:          entry.Data.Name,
		ProcessorType: processorType,
		Config:        cfg,
		OutputData:    output,
		MissingFields: append([]string(nil), entry.Data.MissingFields...),
	}
	if len(data.MissingFields) == 0 {
		data.MissingFields = nil
	}
	if entry.Data.LastRun != nil {
		ts := *entry.Data.LastRun
		data.LastRun = &ts
	}

	if reg != nil {
		withDefaults, err := reg.ApplyDefaults(cfg)
		if err != nil {
			return flow.Node{}, malformed(err, "node %s defaults", entry.ID)
		}
		data.Config = withDefaults
		data.MissingFields = reg.MissingFields(withDefaults)
	}

	node := flow.Node{ID: entry.ID, Type: nodeType, Data: data}
	if entry.Position != nil {
		node.Position = *entry.Position
	}
	return node, nil
}

func decodeOutput(v any) (*flow.OutputData, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		out := flow.TextOutput(t)
		return &out, nil
	case []string:
		out := flow.ListOutput(t...)
		return &out, nil
	case []any:
		items := make([]string, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list item %d is %T, not a string", i, item)
			}
			items[i] = s
		}
		out := flow.ListOutput(items...)
		return &out, nil
	default:
		return nil, fmt.Errorf("output data must be a string or a list of strings, got %T", v)
	}
}

// defaultPositions lays nodes out in columns by longest-path depth from the
// roots, and in rows by execution order within a column.
func defaultPositions(s flow.Snapshot, spacing flow.Position) map[string]flow.Position {
	order, _ := flow.Sort(s, flow.CycleDegrade)

	preds := make(map[string][]string)
	for _, e := range s.Edges {
		preds[e.Target] = append(preds[e.Target], e.Source)
	}

	depth := make(map[string]int, len(order))
	rows := make(map[int]int)
	positions := make(map[string]flow.Position, len(order))
	for _, id := range order {
		d := 0
		for _, p := range preds[id] {
			if pd, ok := depth[p]; ok && pd+1 > d {
				d = pd + 1
			}
		}
		depth[id] = d
		positions[id] = flow.Position{X: float64(d) * spacing.X, Y: float64(rows[d]) * spacing.Y}
		rows[d]++
	}
	return positions
}
