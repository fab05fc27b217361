package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flow"
	"github.com/vk/flowgrid/internal/flowdoc"
	"github.com/vk/flowgrid/internal/fsutil"
	"github.com/vk/flowgrid/internal/layout"
	"gopkg.in/yaml.v3"
)

// state is the persisted form of a Store.
type state struct {
	Tabs        []flowdoc.Document `json:"tabs" yaml:"tabs"`
	CurrentTab  int                `json:"currentTab" yaml:"currentTab"`
	FirstVisit  bool               `json:"firstVisit" yaml:"firstVisit"`
	Credentials map[string]string  `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Layout      *layout.Layout     `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// Load reads a workspace file. A missing file yields a fresh first-visit
// workspace. Tab documents are decoded with opts.
func Load(ctx context.Context, path string, opts ...flowdoc.Option) (*Store, error) {
	logger := ctxlog.FromContext(ctx).With("path", path)

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("No workspace file, starting fresh.")
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading workspace: %w", err)
	}

	var st state
	switch flowdoc.FormatFromPath(path) {
	case flowdoc.YAML:
		err = yaml.Unmarshal(raw, &st)
	default:
		err = json.Unmarshal(raw, &st)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding workspace %s: %w", path, err)
	}

	s, err := fromState(st, opts...)
	if err != nil {
		return nil, fmt.Errorf("workspace %s: %w", path, err)
	}
	logger.Debug("Workspace loaded.", "tabs", len(s.tabs), "current_tab", s.current)
	return s, nil
}

func fromState(st state, opts ...flowdoc.Option) (*Store, error) {
	s := New()
	s.firstVisit = st.FirstVisit
	s.SetCredentials(st.Credentials)

	if len(st.Tabs) > 0 {
		s.tabs = make([]*flow.Graph, 0, len(st.Tabs))
	}
	for i, doc := range st.Tabs {
		snap, err := flowdoc.FromDocument(doc, opts...)
		if err != nil {
			return nil, fmt.Errorf("tab %d: %w", i, err)
		}
		g, err := flow.FromSnapshot(snap)
		if err != nil {
			return nil, fmt.Errorf("tab %d: %w", i, err)
		}
		s.tabs = append(s.tabs, g)
	}
	if st.CurrentTab >= 0 && st.CurrentTab < len(s.tabs) {
		s.current = st.CurrentTab
	}

	if st.Layout != nil {
		if err := st.Layout.Validate(); err != nil {
			return nil, err
		}
		s.layout = st.Layout.Clone()
	}
	return s, nil
}

func (s *Store) toState() (state, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := state{
		Tabs:        make([]flowdoc.Document, 0, len(s.tabs)),
		CurrentTab:  s.current,
		FirstVisit:  s.firstVisit,
		Credentials: maps.Clone(s.credentials),
	}
	l := s.layout.Clone()
	st.Layout = &l

	for i, g := range s.tabs {
		snap := g.Snapshot()
		doc, err := flowdoc.ToDocument(snap.Nodes, snap.Edges, true)
		if err != nil {
			return state{}, fmt.Errorf("tab %d: %w", i, err)
		}
		st.Tabs = append(st.Tabs, doc)
	}
	return st, nil
}

// Save writes the workspace to path atomically, in JSON or YAML by
// extension.
func (s *Store) Save(ctx context.Context, path string) error {
	st, err := s.toState()
	if err != nil {
		return err
	}

	var raw []byte
	switch flowdoc.FormatFromPath(path) {
	case flowdoc.YAML:
		raw, err = yaml.Marshal(st)
	default:
		raw, err = json.MarshalIndent(st, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding workspace: %w", err)
	}

	if err := fsutil.WriteFileAtomic(path, raw, 0o600); err != nil {
		return fmt.Errorf("saving workspace: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Workspace saved.", "path", path, "tabs", len(st.Tabs))
	return nil
}
