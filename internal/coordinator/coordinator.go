package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/vk/flowgrid/internal/flow"
	"github.com/vk/flowgrid/internal/flowdoc"
)

// Transport delivers submissions to the worker.
type Transport interface {
	Submit(ctx context.Context, s Submission) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCyclePolicy sets how cyclic graphs are ordered before submission.
func WithCyclePolicy(p flow.CyclePolicy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// WithClock replaces time.Now as the source of run timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLogger sets the coordinator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithEventBuffer sets the capacity of the inbound event channel.
func WithEventBuffer(n int) Option {
	return func(c *Coordinator) { c.bufferSize = n }
}

// WithEvents makes the coordinator consume ch instead of a channel of its
// own. Transports dialed before the coordinator exists send to ch.
func WithEvents(ch chan Event) Option {
	return func(c *Coordinator) { c.events = ch }
}

// Coordinator runs flows on a worker and folds the worker's events back into
// the graph being run.
type Coordinator struct {
	transport  Transport
	creds      CredentialSource
	notifier   Notifier
	policy     flow.CyclePolicy
	now        func() time.Time
	logger     *slog.Logger
	bufferSize int
	events     chan Event

	mu          sync.Mutex
	state       State
	graph       *flow.Graph
	runID       int
	currentNode string
	errorCount  int
	lastError   string
	done        chan State
}

// New creates an idle coordinator.
func New(transport Transport, creds CredentialSource, notifier Notifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		transport:  transport,
		creds:      creds,
		notifier:   notifier,
		policy:     flow.CycleDegrade,
		now:        time.Now,
		logger:     slog.Default(),
		bufferSize: 64,
		done:       make(chan State, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.events == nil {
		c.events = make(chan Event, c.bufferSize)
	}
	return c
}

// Run orders graph, serializes it and submits it to the worker.
func (c *Coordinator) Run(ctx context.Context, graph *flow.Graph) error {
	return c.start(ctx, graph, "")
}

// RunNode submits graph for a run of the single node named name.
func (c *Coordinator) RunNode(ctx context.Context, graph *flow.Graph, name string) error {
	if len(graph.NodeIDsByName(name)) == 0 {
		c.notify(NoticeWarning, fmt.Sprintf("No node is named %q.", name))
		return fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}
	return c.start(ctx, graph, name)
}

func (c *Coordinator) start(ctx context.Context, graph *flow.Graph, nodeName string) error {
	// c.mu is never held while calling out: a workspace store calls Busy
	// under its own lock.
	var creds map[string]string
	if c.creds != nil {
		creds = maps.Clone(c.creds.Credentials())
	}

	c.mu.Lock()
	if c.state.InFlight() {
		c.mu.Unlock()
		c.notify(NoticeWarning, "A flow is already running. Wait for it to finish before starting another one.")
		return ErrRunInProgress
	}
	if len(creds) == 0 {
		c.mu.Unlock()
		c.notify(NoticeWarning, "Credentials are missing. Configure your API keys before running a flow.")
		return ErrMissingCredentials
	}

	if c.state.Terminal() {
		c.logger.Debug("Previous run acknowledged implicitly.", "run_id", c.runID, "state", c.state.String())
	}
	c.runID++
	runID := c.runID
	c.state = Submitting
	c.graph = graph
	c.currentNode = ""
	c.lastError = ""
	c.done = make(chan State, 1)
	c.mu.Unlock()

	logger := c.logger.With("run_id", runID)
	snap := graph.Snapshot()
	if nodeName == "" {
		for i := range snap.Nodes {
			snap.Nodes[i].Data.OutputData = nil
			snap.Nodes[i].Data.LastRun = nil
		}
	}

	doc, err := flowdoc.FromGraph(snap, c.policy, true)
	if err != nil {
		c.fail(runID, err.Error())
		return fmt.Errorf("preparing run: %w", err)
	}
	// Previous outputs survive a run that could not be prepared.
	if nodeName == "" {
		graph.ClearOutputs()
	}

	logger.Debug("Submitting flow.", "nodes", len(doc.Nodes), "edges", len(doc.Edges), "node_name", nodeName)
	err = c.transport.Submit(ctx, Submission{Document: doc, Credentials: creds, NodeName: nodeName})
	if err != nil {
		c.fail(runID, err.Error())
		return fmt.Errorf("submitting run: %w", err)
	}

	c.mu.Lock()
	// Events may already have ended the run.
	if c.runID == runID && c.state == Submitting {
		c.state = Running
	}
	c.mu.Unlock()

	logger.Info("🚀 Flow submitted.", "nodes", len(doc.Nodes))
	return nil
}

// fail ends run runID as Errored if it is still in flight.
func (c *Coordinator) fail(runID int, msg string) {
	c.mu.Lock()
	if c.runID != runID || !c.state.InFlight() {
		c.mu.Unlock()
		return
	}
	c.setTerminal(Errored)
	c.errorCount++
	c.lastError = msg
	c.mu.Unlock()

	c.notify(NoticeError, msg)
}

// setTerminal must be called with c.mu held.
func (c *Coordinator) setTerminal(s State) {
	c.state = s
	c.currentNode = ""
	select {
	case c.done <- s:
	default:
	}
}

// Events returns the channel Serve consumes. Transports push worker messages
// onto it.
func (c *Coordinator) Events() chan<- Event {
	return c.events
}

// Serve applies events from the Events channel until ctx is done.
func (c *Coordinator) Serve(ctx context.Context) error {
	c.logger.Debug("Coordinator event loop started.")
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Coordinator event loop stopped.")
			return ctx.Err()
		case ev := <-c.events:
			c.Handle(ev)
		}
	}
}

// Handle applies one event to the run state.
func (c *Coordinator) Handle(ev Event) {
	var notices []Notice

	c.mu.Lock()
	inFlight := c.state.InFlight()
	logger := c.logger.With("run_id", c.runID)

	switch e := ev.(type) {
	case ProgressEvent:
		if !inFlight {
			logger.Debug("Progress event outside a run dropped.", "instance_name", e.InstanceName)
			break
		}
		c.mergeProgress(logger, e)

	case CurrentNodeEvent:
		if !inFlight {
			break
		}
		c.currentNode = e.InstanceName
		logger.Debug("Worker started node.", "instance_name", e.InstanceName)

	case ErrorEvent:
		c.errorCount++
		c.lastError = e.Message
		if inFlight {
			c.setTerminal(Errored)
		}
		logger.Warn("Worker reported an error.", "error", e.Message, "error_count", c.errorCount)
		notices = append(notices, Notice{Level: NoticeError, Message: e.Message})

	case RunEndEvent:
		if !inFlight {
			break
		}
		c.setTerminal(Completed)
		logger.Info("🏁 Flow finished.")

	case DisconnectEvent:
		if inFlight {
			c.setTerminal(Disconnected)
		}
		if IsTransportLoss(e.Reason) {
			logger.Warn("Connection to the worker lost.", "reason", e.Reason)
			notices = append(notices, Notice{Level: NoticeWarning, Message: fmt.Sprintf("Connection to the worker was lost (%s).", e.Reason)})
		} else {
			logger.Info("Worker connection closed.", "reason", e.Reason)
		}

	default:
		logger.Warn("Unknown event dropped.", "event", fmt.Sprintf("%T", ev))
	}
	c.mu.Unlock()

	for _, n := range notices {
		c.notify(n.Level, n.Message)
	}
}

// mergeProgress must be called with c.mu held. Every node carrying the event's
// name gets the output.
func (c *Coordinator) mergeProgress(logger *slog.Logger, e ProgressEvent) {
	ids := c.graph.NodeIDsByName(e.InstanceName)
	switch {
	case len(ids) == 0:
		logger.Debug("Progress for unknown node dropped.", "instance_name", e.InstanceName)
		return
	case len(ids) > 1:
		logger.Warn("Several nodes share a name; all receive the output.", "instance_name", e.InstanceName, "node_ids", ids)
	}

	ts := c.now()
	out := e.Output
	for _, id := range ids {
		c.graph.UpdateNodeData(id, flow.DataPatch{OutputData: &out, LastRun: &ts})
	}
	logger.Debug("Progress merged.", "instance_name", e.InstanceName, "nodes", len(ids))
}

// Acknowledge returns a finished run to Idle. It reports whether there was a
// finished run to acknowledge.
func (c *Coordinator) Acknowledge() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Terminal() {
		return false
	}
	c.state = Idle
	return true
}

// Wait blocks until the current run reaches a terminal state or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.state.Terminal() {
		s := c.state
		c.mu.Unlock()
		return s, nil
	}
	done := c.done
	c.mu.Unlock()

	select {
	case s := <-done:
		return s, nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

// Busy reports whether a run is in flight.
func (c *Coordinator) Busy() bool {
	return c.State().InFlight()
}

// State returns the current run state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentNode returns the name of the node the worker is executing.
func (c *Coordinator) CurrentNode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentNode
}

// ErrorCount returns how many worker errors have been seen. Callers use it
// to back off repeated runs.
func (c *Coordinator) ErrorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorCount
}

// Status returns a snapshot of the coordinator state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:       c.state,
		RunID:       c.runID,
		CurrentNode: c.currentNode,
		ErrorCount:  c.errorCount,
		LastError:   c.lastError,
	}
}

func (c *Coordinator) notify(level NoticeLevel, msg string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(Notice{Level: level, Message: msg})
}
