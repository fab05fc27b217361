package flow

import (
	"container/heap"
	"fmt"
)

// CyclePolicy decides what Sort does with nodes a cycle keeps it from
// ordering.
type CyclePolicy int

const (
	// CycleDegrade appends the cyclic nodes, in insertion order, after every
	// orderable node.
	CycleDegrade CyclePolicy = iota
	// CycleFail returns a *CyclicGraphError.
	CycleFail
)

func (p CyclePolicy) String() string {
	switch p {
	case CycleDegrade:
		return "degrade"
	case CycleFail:
		return "fail"
	default:
		return fmt.Sprintf("CyclePolicy(%d)", int(p))
	}
}

// ParseCyclePolicy parses "degrade" or "fail".
func ParseCyclePolicy(s string) (CyclePolicy, error) {
	switch s {
	case "degrade", "":
		return CycleDegrade, nil
	case "fail":
		return CycleFail, nil
	default:
		return CycleDegrade, fmt.Errorf("invalid cycle policy %q: must be 'degrade' or 'fail'", s)
	}
}

// Sort returns the node ids of s in execution order: for every edge u->v, u
// comes before v. Nodes that are free to go in any order keep their insertion
// order. Edges touching nodes outside the snapshot are ignored.
func Sort(s Snapshot, policy CyclePolicy) ([]string, error) {
	position := make(map[string]int, len(s.Nodes))
	for i, n := range s.Nodes {
		position[n.ID] = i
	}

	inDegree := make([]int, len(s.Nodes))
	successors := make([][]int, len(s.Nodes))
	for _, e := range s.Edges {
		from, ok := position[e.Source]
		if !ok {
			continue
		}
		to, ok := position[e.Target]
		if !ok {
			continue
		}
		successors[from] = append(successors[from], to)
		inDegree[to]++
	}

	ready := &indexHeap{}
	for i, d := range inDegree {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]string, 0, len(s.Nodes))
	emitted := make([]bool, len(s.Nodes))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, s.Nodes[i].ID)
		emitted[i] = true
		for _, next := range successors[i] {
			inDegree[next]--
			if inDegree[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(order) == len(s.Nodes) {
		return order, nil
	}

	var cyclic []string
	for i, n := range s.Nodes {
		if !emitted[i] {
			cyclic = append(cyclic, n.ID)
		}
	}
	if policy == CycleFail {
		return nil, &CyclicGraphError{NodeIDs: cyclic}
	}
	return append(order, cyclic...), nil
}

// Ordered returns the nodes of s arranged by ids. Unknown ids are skipped.
func (s Snapshot) Ordered(ids []string) []Node {
	byID := make(map[string]Node, len(s.Nodes))
	for _, n := range s.Nodes {
		byID[n.ID] = n
	}
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// indexHeap is a min-heap of insertion positions.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *indexHeap) Push(x any) { *h = append(*h, x.(int)) }

func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
