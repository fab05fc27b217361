package flow

import (
	"fmt"
	"sync"

	"github.com/vk/flowgrid/internal/nodeid"
	"github.com/vk/flowgrid/internal/processor"
)

// Graph is a mutable flow graph. The zero value is not usable; call New.
type Graph struct {
	mu    sync.RWMutex
	nodes []*Node
	index map[string]int
	edges []Edge
	ids   nodeid.Allocator
}

// GraphOption configures New.
type GraphOption func(*Graph)

// WithAllocator sets the allocator AddProcessor draws ids from. The default
// is nodeid.Random.
func WithAllocator(a nodeid.Allocator) GraphOption {
	return func(g *Graph) {
		if a != nil {
			g.ids = a
		}
	}
}

// New creates an empty graph.
func New(opts ...GraphOption) *Graph {
	g := &Graph{index: make(map[string]int), ids: nodeid.Random{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FromSnapshot builds a graph from a snapshot after validating it.
func FromSnapshot(s Snapshot, opts ...GraphOption) (*Graph, error) {
	g := New(opts...)
	if err := g.Replace(s); err != nil {
		return nil, err
	}
	return g, nil
}

// AddNode appends a node. The node is stored as a copy.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrEmptyID
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.index[n.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	clone := n.Clone()
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, &clone)
	return nil
}

// AddProcessor appends a new node of processorType at pos and returns it. The
// id comes from the graph's allocator and doubles as the node's name. A nil
// cfg is replaced by the processor's empty config.
func (g *Graph) AddProcessor(processorType string, cfg processor.Config, pos Position) (Node, error) {
	if processorType == "" {
		return Node{}, ErrNoProcessorType
	}
	if cfg == nil {
		empty, err := processor.DecodeConfig(processorType, nil)
		if err != nil {
			return Node{}, err
		}
		cfg = empty
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.ids.New(processorType)
	for _, taken := g.index[id]; taken; _, taken = g.index[id] {
		id = g.ids.New(processorType)
	}
	n := Node{
		ID:       id,
		Type:     processorType,
		Position: pos,
		Data: NodeData{
			Name:          id,
			ProcessorType: processorType,
			Config:        processor.CloneConfig(cfg),
		},
	}
	g.index[id] = len(g.nodes)
	stored := n.Clone()
	g.nodes = append(g.nodes, &stored)
	return n, nil
}

// RemoveNode deletes a node together with every edge touching it. It reports
// whether the node existed.
func (g *Graph) RemoveNode(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos, ok := g.index[id]
	if !ok {
		return false
	}

	g.nodes = append(g.nodes[:pos], g.nodes[pos+1:]...)
	delete(g.index, id)
	for i := pos; i < len(g.nodes); i++ {
		g.index[g.nodes[i].ID] = i
	}

	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	return true
}

// Connect adds an edge. It returns false, leaving the graph unchanged, when
// the (target, targetHandle) pair already has an incoming edge. An endpoint
// that is not in the graph is an error. An edge without an id gets one
// derived from its endpoints.
func (g *Graph) Connect(e Edge) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.index[e.Source]; !ok {
		return false, fmt.Errorf("%w: source %s", ErrUnknownNode, e.Source)
	}
	if _, ok := g.index[e.Target]; !ok {
		return false, fmt.Errorf("%w: target %s", ErrUnknownNode, e.Target)
	}
	if g.targetTaken(e.Target, e.TargetHandle) {
		return false, nil
	}

	if e.ID == "" {
		e.ID = nodeid.EdgeID(e.Source, e.SourceHandle, e.Target, e.TargetHandle)
	}
	g.edges = append(g.edges, e)
	return true, nil
}

func (g *Graph) targetTaken(target, handle string) bool {
	for _, existing := range g.edges {
		if existing.Target == target && existing.TargetHandle == handle {
			return true
		}
	}
	return false
}

// Disconnect removes the edge with the given id.
func (g *Graph) Disconnect(edgeID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, e := range g.edges {
		if e.ID == edgeID {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateNodeData merges patch into the node's data. It is a no-op returning
// false when the node does not exist.
func (g *Graph) UpdateNodeData(id string, patch DataPatch) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos, ok := g.index[id]
	if !ok {
		return false
	}
	patch.apply(&g.nodes[pos].Data)
	return true
}

// MoveNode sets a node's canvas position.
func (g *Graph) MoveNode(id string, p Position) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos, ok := g.index[id]
	if !ok {
		return false
	}
	g.nodes[pos].Position = p
	return true
}

// ClearOutputs drops the output and last run time of every node.
func (g *Graph) ClearOutputs() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range g.nodes {
		n.Data.OutputData = nil
		n.Data.LastRun = nil
	}
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	pos, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[pos].Clone(), true
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodesLocked()
}

func (g *Graph) nodesLocked() []Node {
	out := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Clone()
	}
	return out
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge{}, g.edges...)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// NodeIDsByName returns, in insertion order, the ids of every node whose
// data name equals name.
func (g *Graph) NodeIDsByName(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []string
	for _, n := range g.nodes {
		if n.Data.Name == name {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Snapshot returns a consistent copy of the whole graph.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Snapshot{Nodes: g.nodesLocked(), Edges: append([]Edge{}, g.edges...)}
}

// Replace swaps the graph's content for s. On a validation error the graph is
// left untouched.
func (g *Graph) Replace(s Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}

	nodes := make([]*Node, len(s.Nodes))
	index := make(map[string]int, len(s.Nodes))
	for i, n := range s.Nodes {
		clone := n.Clone()
		nodes[i] = &clone
		index[n.ID] = i
	}
	edges := make([]Edge, len(s.Edges))
	for i, e := range s.Edges {
		if e.ID == "" {
			e.ID = nodeid.EdgeID(e.Source, e.SourceHandle, e.Target, e.TargetHandle)
		}
		edges[i] = e
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes, g.index, g.edges = nodes, index, edges
	return nil
}

// Validate checks the graph invariants on a snapshot.
func (s Snapshot) Validate() error {
	ids := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.ID == "" {
			return ErrEmptyID
		}
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		ids[n.ID] = struct{}{}
	}

	type targetKey struct{ node, handle string }
	targets := make(map[targetKey]struct{}, len(s.Edges))
	for _, e := range s.Edges {
		if _, ok := ids[e.Source]; !ok {
			return fmt.Errorf("%w: edge %s source %s", ErrUnknownNode, e.ID, e.Source)
		}
		if _, ok := ids[e.Target]; !ok {
			return fmt.Errorf("%w: edge %s target %s", ErrUnknownNode, e.ID, e.Target)
		}
		key := targetKey{e.Target, e.TargetHandle}
		if _, taken := targets[key]; taken {
			return fmt.Errorf("%w: %s handle %q", ErrHandleOccupied, e.Target, e.TargetHandle)
		}
		targets[key] = struct{}{}
	}
	return nil
}
