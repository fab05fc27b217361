package flow

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/nodeid"
	"github.com/vk/flowgrid/internal/processor"
)

// testNode builds an llm-prompt node whose name equals its id.
func testNode(id string) Node {
	return Node{
		ID:   id,
		Type: processor.TypeLLMPrompt,
		Data: NodeData{
			Name:          id,
			ProcessorType: processor.TypeLLMPrompt,
			Config:        processor.LLMPromptConfig{Prompt: "prompt " + id},
		},
	}
}

// buildGraph adds nodes in order and connects each pair as source->target on
// output handle 0 and a distinct input handle per target.
func buildGraph(t *testing.T, ids []string, edges [][2]string) *Graph {
	t.Helper()
	g := New()
	for _, id := range ids {
		require.NoError(t, g.AddNode(testNode(id)))
	}
	handles := make(map[string]int)
	for _, e := range edges {
		handle := handles[e[1]]
		handles[e[1]]++
		ok, err := g.Connect(Edge{Source: e[0], Target: e[1], SourceHandle: "0-output", TargetHandle: itoa(handle)})
		require.NoError(t, err)
		require.True(t, ok)
	}
	return g
}

func itoa(i int) string {
	return string(rune('0' + i))
}

func TestGraph_AddNode(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(testNode("a")))

	err := g.AddNode(testNode("a"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateNode))

	assert.ErrorIs(t, g.AddNode(Node{}), ErrEmptyID)
	assert.Equal(t, 1, g.Len())
}

func TestGraph_AddProcessor(t *testing.T) {
	g := New(WithAllocator(&nodeid.Sequence{}))
	require.NoError(t, g.AddNode(Node{ID: "n2#input-text", Type: processor.TypeInputText}))

	first, err := g.AddProcessor(processor.TypeInputText, nil, Position{X: 10, Y: 20})
	require.NoError(t, err)
	assert.Equal(t, "n1#input-text", first.ID)
	assert.Equal(t, first.ID, first.Data.Name)
	assert.Equal(t, processor.InputTextConfig{}, first.Data.Config)
	assert.Equal(t, Position{X: 10, Y: 20}, first.Position)

	cfg := processor.InputTextConfig{InputText: "hi"}
	second, err := g.AddProcessor(processor.TypeInputText, cfg, Position{})
	require.NoError(t, err)
	assert.Equal(t, "n3#input-text", second.ID, "ids already in the graph are skipped")

	stored, ok := g.Node(second.ID)
	require.True(t, ok)
	assert.Equal(t, cfg, stored.Data.Config)
	assert.Equal(t, 3, g.Len())

	_, err = g.AddProcessor("", nil, Position{})
	assert.ErrorIs(t, err, ErrNoProcessorType)
}

func TestGraph_RemoveNodeCascadesEdges(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}})

	assert.True(t, g.RemoveNode("b"))
	assert.False(t, g.RemoveNode("b"))

	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "a", edges[0].Source)
	assert.Equal(t, "c", edges[0].Target)

	_, ok := g.Node("c")
	assert.True(t, ok, "index must be rebuilt after removal")
	assert.Equal(t, []string{"a", "c"}, nodeIDs(g.Nodes()))
}

func TestGraph_Connect(t *testing.T) {
	t.Run("second edge into an occupied target handle is rejected", func(t *testing.T) {
		g := buildGraph(t, []string{"A", "B", "C"}, nil)
		ok, err := g.Connect(Edge{Source: "A", Target: "C", SourceHandle: "0-output", TargetHandle: "0"})
		require.NoError(t, err)
		require.True(t, ok)
		before := g.Snapshot()

		ok, err = g.Connect(Edge{Source: "B", Target: "C", SourceHandle: "0-output", TargetHandle: "0"})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Len(t, g.Edges(), 1)
		if diff := cmp.Diff(before, g.Snapshot(), cmp.AllowUnexported(OutputData{})); diff != "" {
			t.Errorf("graph changed (-before +after):\n%s", diff)
		}
	})

	t.Run("other handle on the same target is accepted", func(t *testing.T) {
		g := buildGraph(t, []string{"A", "B", "C"}, [][2]string{{"A", "C"}})
		ok, err := g.Connect(Edge{Source: "B", Target: "C", TargetHandle: "1"})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown endpoint is an error", func(t *testing.T) {
		g := buildGraph(t, []string{"A"}, nil)
		ok, err := g.Connect(Edge{Source: "A", Target: "ghost"})
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrUnknownNode)
		assert.Empty(t, g.Edges())
	})

	t.Run("missing id is derived from endpoints", func(t *testing.T) {
		g := buildGraph(t, []string{"A", "B"}, nil)
		_, err := g.Connect(Edge{Source: "A", Target: "B", SourceHandle: "0-output", TargetHandle: "0"})
		require.NoError(t, err)
		assert.NotEmpty(t, g.Edges()[0].ID)
	})
}

func TestGraph_Disconnect(t *testing.T) {
	g := buildGraph(t, []string{"A", "B"}, [][2]string{{"A", "B"}})
	id := g.Edges()[0].ID
	assert.True(t, g.Disconnect(id))
	assert.False(t, g.Disconnect(id))
	assert.Empty(t, g.Edges())
}

func TestGraph_UpdateNodeData(t *testing.T) {
	g := buildGraph(t, []string{"a"}, nil)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out := TextOutput("hello")

	assert.True(t, g.UpdateNodeData("a", DataPatch{OutputData: &out, LastRun: &ts}))

	n, _ := g.Node("a")
	assert.Equal(t, "a", n.Data.Name, "fields not in the patch are kept")
	assert.Equal(t, processor.LLMPromptConfig{Prompt: "prompt a"}, n.Data.Config)
	require.NotNil(t, n.Data.OutputData)
	assert.Equal(t, "hello", n.Data.OutputData.Text())
	assert.Equal(t, ts, *n.Data.LastRun)

	name := "renamed"
	missing := []string{"prompt"}
	assert.True(t, g.UpdateNodeData("a", DataPatch{Name: &name, Config: processor.DallEPromptConfig{}, MissingFields: &missing}))
	n, _ = g.Node("a")
	assert.Equal(t, "renamed", n.Data.Name)
	assert.Equal(t, processor.TypeDallEPrompt, n.Data.ProcessorType)
	assert.Equal(t, []string{"prompt"}, n.Data.MissingFields)

	before := g.Snapshot()
	assert.False(t, g.UpdateNodeData("ghost", DataPatch{Name: &name}))
	assert.Equal(t, before.Nodes[0].Data.Name, g.Snapshot().Nodes[0].Data.Name)
}

func TestGraph_ReadsReturnCopies(t *testing.T) {
	g := buildGraph(t, []string{"a"}, nil)
	missing := []string{"x"}
	g.UpdateNodeData("a", DataPatch{MissingFields: &missing})
	missing[0] = "mutated"

	n, _ := g.Node("a")
	n.Data.MissingFields[0] = "mutated"
	n.Data.Name = "mutated"

	again, _ := g.Node("a")
	assert.Equal(t, []string{"x"}, again.Data.MissingFields)
	assert.Equal(t, "a", again.Data.Name)
}

func TestGraph_NodeIDsByName(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c"}, nil)
	shared := "shared"
	g.UpdateNodeData("a", DataPatch{Name: &shared})
	g.UpdateNodeData("c", DataPatch{Name: &shared})

	assert.Equal(t, []string{"a", "c"}, g.NodeIDsByName("shared"))
	assert.Empty(t, g.NodeIDsByName("nobody"))
}

func TestGraph_MoveAndClearOutputs(t *testing.T) {
	g := buildGraph(t, []string{"a"}, nil)
	assert.True(t, g.MoveNode("a", Position{X: 10, Y: 20}))
	assert.False(t, g.MoveNode("ghost", Position{}))

	out := ListOutput("x", "y")
	ts := time.Now()
	g.UpdateNodeData("a", DataPatch{OutputData: &out, LastRun: &ts})
	g.ClearOutputs()

	n, _ := g.Node("a")
	assert.Equal(t, Position{X: 10, Y: 20}, n.Position)
	assert.Nil(t, n.Data.OutputData)
	assert.Nil(t, n.Data.LastRun)
}

func TestGraph_ReplaceKeepsStateOnError(t *testing.T) {
	g := buildGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	before := g.Snapshot()

	testCases := []struct {
		name     string
		snapshot Snapshot
		target   error
	}{
		{
			name:     "dangling edge",
			snapshot: Snapshot{Nodes: []Node{testNode("x")}, Edges: []Edge{{ID: "e", Source: "x", Target: "y"}}},
			target:   ErrUnknownNode,
		},
		{
			name:     "duplicate node",
			snapshot: Snapshot{Nodes: []Node{testNode("x"), testNode("x")}},
			target:   ErrDuplicateNode,
		},
		{
			name: "doubly targeted handle",
			snapshot: Snapshot{
				Nodes: []Node{testNode("x"), testNode("y"), testNode("z")},
				Edges: []Edge{{Source: "x", Target: "z", TargetHandle: "0"}, {Source: "y", Target: "z", TargetHandle: "0"}},
			},
			target: ErrHandleOccupied,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.Replace(tc.snapshot)
			assert.ErrorIs(t, err, tc.target)
			assert.Equal(t, nodeIDs(before.Nodes), nodeIDs(g.Nodes()))
			assert.Equal(t, before.Edges, g.Edges())
		})
	}

	require.NoError(t, g.Replace(Snapshot{Nodes: []Node{testNode("x")}}))
	assert.Equal(t, []string{"x"}, nodeIDs(g.Nodes()))
	assert.Empty(t, g.Edges())
}

func TestGraph_ConcurrentEditsAndMerges(t *testing.T) {
	g := buildGraph(t, []string{"a", "b"}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			out := TextOutput("x")
			g.UpdateNodeData("a", DataPatch{OutputData: &out})
		}()
		go func(i int) {
			defer wg.Done()
			g.MoveNode("b", Position{X: float64(i)})
			_ = g.Snapshot()
		}(i)
	}
	wg.Wait()

	n, _ := g.Node("a")
	assert.Equal(t, "x", n.Data.OutputData.Text())
}

func TestOutputData_JSON(t *testing.T) {
	raw, err := TextOutput("hi").MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"hi"`, string(raw))

	raw, err = ListOutput("a", "b").MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, string(raw))

	var out OutputData
	require.NoError(t, out.UnmarshalJSON([]byte(`["x","y"]`)))
	assert.True(t, out.IsList())
	assert.Equal(t, []string{"x", "y"}, out.Items())

	require.NoError(t, out.UnmarshalJSON([]byte(`"solo"`)))
	assert.False(t, out.IsList())
	assert.Equal(t, "solo", out.Text())

	assert.Error(t, out.UnmarshalJSON([]byte(`42`)))
}

func nodeIDs(nodes []Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
