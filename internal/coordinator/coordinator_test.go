package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/flow"
	"github.com/vk/flowgrid/internal/processor"
)

type fakeTransport struct {
	mu          sync.Mutex
	submissions []Submission
	err         error
	onSubmit    func(Submission)
}

func (f *fakeTransport) Submit(_ context.Context, s Submission) error {
	f.mu.Lock()
	f.submissions = append(f.submissions, s)
	hook, err := f.onSubmit, f.err
	f.mu.Unlock()
	if hook != nil {
		hook(s)
	}
	return err
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingNotifier) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice{}, r.notices...)
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func staticCreds() CredentialSource {
	return CredentialsFunc(func() map[string]string {
		return map[string]string{"openai_api_key": "sk-test"}
	})
}

func newTestCoordinator(t *testing.T, tr *fakeTransport) (*Coordinator, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	c := New(tr, staticCreds(), n, WithClock(func() time.Time { return fixedNow }))
	return c, n
}

func namedNode(id, name string) flow.Node {
	return flow.Node{
		ID:   id,
		Type: processor.TypeInputText,
		Data: flow.NodeData{
			Name:          name,
			ProcessorType: processor.TypeInputText,
			Config:        processor.InputTextConfig{InputText: "hello " + id},
		},
	}
}

func testGraph(t *testing.T, nodes ...flow.Node) *flow.Graph {
	t.Helper()
	g := flow.New()
	for _, n := range nodes {
		require.NoError(t, g.AddNode(n))
	}
	return g
}

func TestCoordinator_RunLifecycle(t *testing.T) {
	tr := &fakeTransport{}
	c, _ := newTestCoordinator(t, tr)
	g := testGraph(t, namedNode("1", "A"), namedNode("2", "B"))
	_, err := g.Connect(flow.Edge{Source: "1", Target: "2", SourceHandle: "0-output", TargetHandle: "0"})
	require.NoError(t, err)

	require.NoError(t, c.Run(context.Background(), g))
	assert.Equal(t, Running, c.State())
	require.Equal(t, 1, tr.count())

	sub := tr.submissions[0]
	assert.Empty(t, sub.NodeName)
	assert.Equal(t, "sk-test", sub.Credentials["openai_api_key"])
	require.Len(t, sub.Document.Nodes, 2)
	assert.Equal(t, "1", sub.Document.Nodes[0].ID)

	c.Handle(CurrentNodeEvent{InstanceName: "A"})
	assert.Equal(t, "A", c.CurrentNode())

	c.Handle(ProgressEvent{InstanceName: "A", Output: flow.TextOutput("result")})
	n, ok := g.Node("1")
	require.True(t, ok)
	require.NotNil(t, n.Data.OutputData)
	assert.Equal(t, "result", n.Data.OutputData.Text())
	require.NotNil(t, n.Data.LastRun)
	assert.True(t, n.Data.LastRun.Equal(fixedNow))

	c.Handle(RunEndEvent{})
	assert.Equal(t, Completed, c.State())
	assert.Empty(t, c.CurrentNode())

	assert.True(t, c.Acknowledge())
	assert.Equal(t, Idle, c.State())
	assert.False(t, c.Acknowledge())
}

func TestCoordinator_ProgressForUnknownNameIsDropped(t *testing.T) {
	tr := &fakeTransport{}
	c, n := newTestCoordinator(t, tr)
	g := testGraph(t, namedNode("1", "A"), namedNode("2", "B"))
	require.NoError(t, c.Run(context.Background(), g))

	before := g.Snapshot()
	c.Handle(ProgressEvent{InstanceName: "X", Output: flow.TextOutput("lost")})

	assert.Equal(t, before, g.Snapshot())
	assert.Equal(t, Running, c.State())
	assert.Empty(t, n.all())
}

func TestCoordinator_SingleFlight(t *testing.T) {
	tr := &fakeTransport{}
	c, n := newTestCoordinator(t, tr)
	g := testGraph(t, namedNode("1", "A"))

	require.NoError(t, c.Run(context.Background(), g))
	err := c.Run(context.Background(), g)
	assert.ErrorIs(t, err, ErrRunInProgress)
	err = c.RunNode(context.Background(), g, "A")
	assert.ErrorIs(t, err, ErrRunInProgress)

	assert.Equal(t, 1, tr.count())
	notices := n.all()
	require.Len(t, notices, 2)
	assert.Equal(t, NoticeWarning, notices[0].Level)
}

func TestCoordinator_SingleFlightWhileSubmitting(t *testing.T) {
	tr := &fakeTransport{}
	c, _ := newTestCoordinator(t, tr)
	g := testGraph(t, namedNode("1", "A"))

	var nested error
	tr.onSubmit = func(Submission) {
		nested = c.Run(context.Background(), g)
	}
	require.NoError(t, c.Run(context.Background(), g))
	assert.ErrorIs(t, nested, ErrRunInProgress)
	assert.Equal(t, 1, tr.count())
}

func TestCoordinator_MissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds CredentialSource
	}{
		{name: "nil source", creds: nil},
		{name: "empty map", creds: CredentialsFunc(func() map[string]string { return map[string]string{} })},
		{name: "nil map", creds: CredentialsFunc(func() map[string]string { return nil })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{}
			n := &recordingNotifier{}
			c := New(tr, tt.creds, n)

			err := c.Run(context.Background(), testGraph(t, namedNode("1", "A")))
			assert.ErrorIs(t, err, ErrMissingCredentials)
			assert.Equal(t, Idle, c.State())
			assert.Zero(t, tr.count())
			require.Len(t, n.all(), 1)
		})
	}
}

func TestCoordinator_ErrorEvent(t *testing.T) {
	tr := &fakeTransport{}
	c, n := newTestCoordinator(t, tr)
	g := testGraph(t, namedNode("1", "A"))
	require.NoError(t, c.Run(context.Background(), g))

	c.Handle(ErrorEvent{Message: "rate limited"})

	assert.Equal(t, Errored, c.State())
	assert.Equal(t, 1, c.ErrorCount())
	st := c.Status()
	assert.Equal(t, "rate limited", st.LastError)
	notices := n.all()
	require.Len(t, notices, 1)
	assert.Equal(t, Notice{Level: NoticeError, Message: "rate limited"}, notices[0])

	// A late run-end does not revive the run.
	c.Handle(RunEndEvent{})
	assert.Equal(t, Errored, c.State())

	require.True(t, c.Acknowledge())
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, 1, c.ErrorCount())
}

func TestCoordinator_ErrorOutsideRunIsCounted(t *testing.T) {
	c, n := newTestCoordinator(t, &fakeTransport{})

	c.Handle(ErrorEvent{Message: "stray"})
	c.Handle(ErrorEvent{Message: "stray again"})

	assert.Equal(t, Idle, c.State())
	assert.Equal(t, 2, c.ErrorCount())
	assert.Len(t, n.all(), 2)
}

func TestCoordinator_Disconnect(t *testing.T) {
	tests := []struct {
		name     string
		reason   string
		notified bool
	}{
		{name: "transport close", reason: "transport close", notified: true},
		{name: "ping timeout", reason: "ping timeout", notified: true},
		{name: "client disconnect", reason: ReasonClientDisconnect, notified: false},
		{name: "server disconnect", reason: ReasonServerDisconnect, notified: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{}
			c, n := newTestCoordinator(t, tr)
			require.NoError(t, c.Run(context.Background(), testGraph(t, namedNode("1", "A"))))

			c.Handle(DisconnectEvent{Reason: tt.reason})

			assert.Equal(t, Disconnected, c.State())
			if tt.notified {
				require.Len(t, n.all(), 1)
				assert.Equal(t, NoticeWarning, n.all()[0].Level)
			} else {
				assert.Empty(t, n.all())
			}
		})
	}
}

func TestCoordinator_DisconnectWhileIdle(t *testing.T) {
	c, n := newTestCoordinator(t, &fakeTransport{})

	c.Handle(DisconnectEvent{Reason: "transport error"})

	assert.Equal(t, Idle, c.State())
	assert.Len(t, n.all(), 1)
}

func TestCoordinator_NameCollisionUpdatesAllMatches(t *testing.T) {
	tr := &fakeTransport{}
	c, _ := newTestCoordinator(t, tr)
	g := testGraph(t, namedNode("1", "dup"), namedNode("2", "dup"), namedNode("3", "other"))
	require.NoError(t, c.Run(context.Background(), g))

	c.Handle(ProgressEvent{InstanceName: "dup", Output: flow.ListOutput("a", "b")})

	for _, id := range []string{"1", "2"} {
		n, ok := g.Node(id)
		require.True(t, ok)
		require.NotNil(t, n.Data.OutputData, id)
		assert.Equal(t, []string{"a", "b"}, n.Data.OutputData.Items())
	}
	other, _ := g.Node("3")
	assert.Nil(t, other.Data.OutputData)
}

func TestCoordinator_RunClearsPreviousOutputs(t *testing.T) {
	tr := &fakeTransport{}
	c, _ := newTestCoordinator(t, tr)
	g := testGraph(t, namedNode("1", "A"))
	out := flow.TextOutput("stale")
	require.True(t, g.UpdateNodeData("1", flow.DataPatch{OutputData: &out}))

	require.NoError(t, c.Run(context.Background(), g))

	n, _ := g.Node("1")
	assert.Nil(t, n.Data.OutputData)
}

func TestCoordinator_RejectedCyclicRunKeepsOutputs(t *testing.T) {
	tr := &fakeTransport{}
	n := &recordingNotifier{}
	c := New(tr, staticCreds(), n, WithCyclePolicy(flow.CycleFail))
	g := testGraph(t, namedNode("1", "A"), namedNode("2", "B"))
	for _, e := range []flow.Edge{
		{Source: "1", Target: "2", SourceHandle: "0-output", TargetHandle: "0"},
		{Source: "2", Target: "1", SourceHandle: "0-output", TargetHandle: "0"},
	} {
		_, err := g.Connect(e)
		require.NoError(t, err)
	}
	out := flow.TextOutput("previous")
	require.True(t, g.UpdateNodeData("1", flow.DataPatch{OutputData: &out}))

	err := c.Run(context.Background(), g)
	require.ErrorIs(t, err, flow.ErrCyclicGraph)
	assert.Equal(t, Errored, c.State())
	assert.Zero(t, tr.count())

	node, _ := g.Node("1")
	require.NotNil(t, node.Data.OutputData)
	assert.Equal(t, "previous", node.Data.OutputData.Text())
}

func TestCoordinator_SubmittedDocumentHasNoStaleOutputs(t *testing.T) {
	tr := &fakeTransport{}
	c, _ := newTestCoordinator(t, tr)
	g := testGraph(t, namedNode("1", "A"))
	out := flow.TextOutput("stale")
	require.True(t, g.UpdateNodeData("1", flow.DataPatch{OutputData: &out, LastRun: &fixedNow}))

	require.NoError(t, c.Run(context.Background(), g))
	require.Equal(t, 1, tr.count())
	assert.Nil(t, tr.submissions[0].Document.Nodes[0].Data.OutputData)
	assert.Nil(t, tr.submissions[0].Document.Nodes[0].Data.LastRun)
}

// busyCredentials calls back into the coordinator while holding its own
// lock, the way a workspace store consults its gate.
type busyCredentials struct {
	mu    sync.Mutex
	coord *Coordinator
}

func (b *busyCredentials) Credentials() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]string{"openai_api_key": "sk-test"}
}

func (b *busyCredentials) switchTab() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.coord.Busy()
}

func TestCoordinator_CredentialSourceMayConsultBusy(t *testing.T) {
	src := &busyCredentials{}
	c := New(&fakeTransport{}, src, nil)
	src.coord = c
	g := testGraph(t, namedNode("1", "A"))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if err := c.Run(context.Background(), g); err == nil {
				c.Handle(RunEndEvent{})
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			src.switchTab()
		}
	}()
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run and a credential source calling Busy deadlocked")
	}
}

func TestCoordinator_RunNode(t *testing.T) {
	tr := &fakeTransport{}
	c, n := newTestCoordinator(t, tr)
	g := testGraph(t, namedNode("1", "A"), namedNode("2", "B"))
	out := flow.TextOutput("kept")
	require.True(t, g.UpdateNodeData("1", flow.DataPatch{OutputData: &out}))

	err := c.RunNode(context.Background(), g, "missing")
	assert.ErrorIs(t, err, ErrUnknownNode)
	assert.Len(t, n.all(), 1)

	require.NoError(t, c.RunNode(context.Background(), g, "B"))
	require.Equal(t, 1, tr.count())
	assert.Equal(t, "B", tr.submissions[0].NodeName)

	kept, _ := g.Node("1")
	require.NotNil(t, kept.Data.OutputData)
	assert.Equal(t, "kept", kept.Data.OutputData.Text())
}

func TestCoordinator_RunFromTerminalState(t *testing.T) {
	tr := &fakeTransport{}
	c, _ := newTestCoordinator(t, tr)
	g := testGraph(t, namedNode("1", "A"))

	require.NoError(t, c.Run(context.Background(), g))
	c.Handle(RunEndEvent{})
	require.Equal(t, Completed, c.State())

	require.NoError(t, c.Run(context.Background(), g))
	assert.Equal(t, Running, c.State())
	assert.Equal(t, 2, c.Status().RunID)
}

func TestCoordinator_SubmitFailure(t *testing.T) {
	tr := &fakeTransport{err: errors.New("socket closed")}
	c, n := newTestCoordinator(t, tr)

	err := c.Run(context.Background(), testGraph(t, namedNode("1", "A")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "socket closed")

	assert.Equal(t, Errored, c.State())
	assert.Equal(t, 1, c.ErrorCount())
	require.Len(t, n.all(), 1)
	assert.Equal(t, NoticeError, n.all()[0].Level)
}

func TestCoordinator_EventsDuringSubmit(t *testing.T) {
	tr := &fakeTransport{}
	c, _ := newTestCoordinator(t, tr)
	tr.onSubmit = func(Submission) {
		c.Handle(RunEndEvent{})
	}

	require.NoError(t, c.Run(context.Background(), testGraph(t, namedNode("1", "A"))))
	assert.Equal(t, Completed, c.State())
}

func TestCoordinator_EventsOutsideRunAreIgnored(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeTransport{})

	c.Handle(CurrentNodeEvent{InstanceName: "A"})
	c.Handle(RunEndEvent{})

	assert.Equal(t, Idle, c.State())
	assert.Empty(t, c.CurrentNode())
}

func TestCoordinator_ServeAndWait(t *testing.T) {
	tr := &fakeTransport{}
	c, _ := newTestCoordinator(t, tr)
	g := testGraph(t, namedNode("1", "A"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveErr := make(chan error, 1)
	go func() { serveErr <- c.Serve(ctx) }()

	require.NoError(t, c.Run(ctx, g))
	c.Events() <- ProgressEvent{InstanceName: "A", Output: flow.TextOutput("done")}
	c.Events() <- RunEndEvent{}

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	state, err := c.Wait(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, Completed, state)

	n, _ := g.Node("1")
	require.NotNil(t, n.Data.OutputData)
	assert.Equal(t, "done", n.Data.OutputData.Text())

	cancel()
	assert.ErrorIs(t, <-serveErr, context.Canceled)
}

func TestCoordinator_WaitHonorsContext(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeTransport{})
	require.NoError(t, c.Run(context.Background(), testGraph(t, namedNode("1", "A"))))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	state, err := c.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Running, state)
}

func TestIsTransportLoss(t *testing.T) {
	assert.False(t, IsTransportLoss(ReasonClientDisconnect))
	assert.False(t, IsTransportLoss(ReasonServerDisconnect))
	assert.True(t, IsTransportLoss("transport close"))
	assert.True(t, IsTransportLoss(""))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "State(42)", State(42).String())
	text, err := Disconnected.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "disconnected", string(text))
}

func TestCoordinator_WithEvents(t *testing.T) {
	ch := make(chan Event, 1)
	c := New(&fakeTransport{}, staticCreds(), nil, WithEvents(ch))

	c.Events() <- RunEndEvent{}
	assert.Len(t, ch, 1)
}
