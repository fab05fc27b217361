package flowdoc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vk/flowgrid/internal/flow"
)

// Side is the side of a node a handle sits on.
type Side int

const (
	Input Side = iota
	Output
)

const outputSuffix = "-output"

// Handle is a connection point addressed by its index on one side of a node.
type Handle struct {
	Side  Side
	Index int
}

// String returns the wire id: "<index>" for inputs, "<index>-output" for
// outputs.
func (h Handle) String() string {
	if h.Side == Output {
		return fmt.Sprintf("%d%s", h.Index, outputSuffix)
	}
	return strconv.Itoa(h.Index)
}

// ParseHandle parses a wire handle id.
func ParseHandle(s string) (Handle, bool) {
	side := Input
	if strings.HasSuffix(s, outputSuffix) {
		side = Output
		s = strings.TrimSuffix(s, outputSuffix)
	}
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return Handle{}, false
	}
	idx, err := strconv.Atoi(s)
	if err != nil || idx < 0 {
		return Handle{}, false
	}
	return Handle{Side: side, Index: idx}, true
}

type sideKey struct {
	node string
	side Side
}

// handleAllocator maps arbitrary handle ids onto the canonical scheme.
type handleAllocator struct {
	used     map[sideKey]map[int]bool
	assigned map[sideKey]map[string]int
}

// normalizeHandles rewrites edge handles into the canonical scheme. Handles
// already canonical for their side keep their index. Other ids, including the
// empty one, take the lowest free index of their node side in order of first
// appearance.
func normalizeHandles(edges []flow.Edge) []flow.Edge {
	a := &handleAllocator{
		used:     make(map[sideKey]map[int]bool),
		assigned: make(map[sideKey]map[string]int),
	}
	for _, e := range edges {
		a.reserve(sideKey{e.Source, Output}, e.SourceHandle)
		a.reserve(sideKey{e.Target, Input}, e.TargetHandle)
	}

	out := make([]flow.Edge, len(edges))
	for i, e := range edges {
		e.SourceHandle = a.resolve(sideKey{e.Source, Output}, e.SourceHandle)
		e.TargetHandle = a.resolve(sideKey{e.Target, Input}, e.TargetHandle)
		out[i] = e
	}
	return out
}

func (a *handleAllocator) reserve(key sideKey, id string) {
	h, ok := ParseHandle(id)
	if !ok || h.Side != key.side {
		return
	}
	if a.used[key] == nil {
		a.used[key] = make(map[int]bool)
	}
	a.used[key][h.Index] = true
}

func (a *handleAllocator) resolve(key sideKey, id string) string {
	if h, ok := ParseHandle(id); ok && h.Side == key.side {
		return h.String()
	}
	if a.assigned[key] == nil {
		a.assigned[key] = make(map[string]int)
	}
	if idx, ok := a.assigned[key][id]; ok {
		return Handle{Side: key.side, Index: idx}.String()
	}
	if a.used[key] == nil {
		a.used[key] = make(map[int]bool)
	}
	idx := 0
	for a.used[key][idx] {
		idx++
	}
	a.used[key][idx] = true
	a.assigned[key][id] = idx
	return Handle{Side: key.side, Index: idx}.String()
}
