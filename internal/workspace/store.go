package workspace

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/vk/flowgrid/internal/coordinator"
	"github.com/vk/flowgrid/internal/flow"
	"github.com/vk/flowgrid/internal/layout"
)

var (
	// ErrRunInProgress rejects tab changes while a flow is running.
	ErrRunInProgress = errors.New("a flow is running")
	// ErrNoSuchTab is returned for a tab index out of range.
	ErrNoSuchTab = errors.New("no such tab")
)

// Gate reports whether a run is in flight. *coordinator.Coordinator
// satisfies it.
type Gate interface {
	Busy() bool
}

// Store is the single owner of workspace state. Graphs handed out by Current
// and Tab are shared, not copied.
type Store struct {
	mu          sync.Mutex
	tabs        []*flow.Graph
	current     int
	firstVisit  bool
	credentials map[string]string
	layout      layout.Layout

	gate     Gate
	notifier coordinator.Notifier
}

// New returns a first-visit workspace with one empty tab.
func New() *Store {
	return &Store{
		tabs:        []*flow.Graph{flow.New()},
		firstVisit:  true,
		credentials: map[string]string{},
		layout:      layout.New(layout.Horizontal),
	}
}

// SetGate installs the run gate consulted before tab changes, and the
// notifier told about rejected changes.
func (s *Store) SetGate(gate Gate, notifier coordinator.Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = gate
	s.notifier = notifier
}

// Current returns the active tab's graph.
func (s *Store) Current() *flow.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabs[s.current]
}

// CurrentIndex returns the active tab index.
func (s *Store) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// TabCount returns the number of open tabs.
func (s *Store) TabCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tabs)
}

// Tab returns the graph of tab i.
func (s *Store) Tab(i int) (*flow.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.tabs) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchTab, i)
	}
	return s.tabs[i], nil
}

// AddTab appends a tab holding g, or an empty graph when g is nil, and
// returns its index. The active tab does not change.
func (s *Store) AddTab(g *flow.Graph) int {
	if g == nil {
		g = flow.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs = append(s.tabs, g)
	return len(s.tabs) - 1
}

// SwitchTab makes tab i active.
func (s *Store) SwitchTab(i int) error {
	s.mu.Lock()
	if i < 0 || i >= len(s.tabs) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoSuchTab, i)
	}
	if i == s.current {
		s.mu.Unlock()
		return nil
	}
	if err := s.checkGateLocked("Wait for the running flow to finish before switching tabs."); err != nil {
		return err
	}
	s.current = i
	s.mu.Unlock()
	return nil
}

// CloseTab removes tab i. Closing the last tab leaves one empty tab.
func (s *Store) CloseTab(i int) error {
	s.mu.Lock()
	if i < 0 || i >= len(s.tabs) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoSuchTab, i)
	}
	if i == s.current {
		if err := s.checkGateLocked("Wait for the running flow to finish before closing its tab."); err != nil {
			return err
		}
	}
	defer s.mu.Unlock()

	s.tabs = append(s.tabs[:i], s.tabs[i+1:]...)
	if len(s.tabs) == 0 {
		s.tabs = []*flow.Graph{flow.New()}
	}
	if s.current > i || s.current >= len(s.tabs) {
		s.current--
	}
	if s.current < 0 {
		s.current = 0
	}
	return nil
}

// checkGateLocked must be called with s.mu held. On rejection it releases
// the lock before notifying.
func (s *Store) checkGateLocked(msg string) error {
	if s.gate == nil || !s.gate.Busy() {
		return nil
	}
	notifier := s.notifier
	s.mu.Unlock()
	if notifier != nil {
		notifier.Notify(coordinator.Notice{Level: coordinator.NoticeWarning, Message: msg})
	}
	return ErrRunInProgress
}

// RemoveNode removes a node from the active tab and clears every layout pane
// that showed it.
func (s *Store) RemoveNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tabs[s.current].RemoveNode(id) {
		return false
	}
	s.layout = layout.Detach(s.layout, id)
	return true
}

// FirstVisit reports whether the workspace has never been saved.
func (s *Store) FirstVisit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstVisit
}

// MarkVisited clears the first-visit flag.
func (s *Store) MarkVisited() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.firstVisit = false
}

// Credentials returns a copy of the stored credentials. It implements
// coordinator.CredentialSource.
func (s *Store) Credentials() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.credentials)
}

// SetCredentials replaces the stored credentials. Empty values are dropped.
func (s *Store) SetCredentials(creds map[string]string) {
	clean := make(map[string]string, len(creds))
	for k, v := range creds {
		if v != "" {
			clean[k] = v
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = clean
}

// Layout returns a copy of the layout tree.
func (s *Store) Layout() layout.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout.Clone()
}

// SetLayout replaces the layout tree after validating it.
func (s *Store) SetLayout(l layout.Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout = l.Clone()
	return nil
}
