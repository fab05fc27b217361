package layout

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath is returned when a path does not address a pane.
	ErrInvalidPath = errors.New("invalid pane path")
	// ErrInvalidLayout is returned for trees that break the pane rules.
	ErrInvalidLayout = errors.New("invalid layout")
)

// Orientation is the direction a layout stacks its panes in.
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

// Layout is one level of the tree.
type Layout struct {
	Orientation Orientation `json:"orientation" yaml:"orientation"`
	Panes       []Pane      `json:"panes" yaml:"panes"`
}

// Pane is a leaf when Content is nil and a branch otherwise. Size is the
// pane's share of its parent, if one was set.
type Pane struct {
	NodeID    string   `json:"nodeId,omitempty" yaml:"nodeId,omitempty"`
	FieldName string   `json:"fieldName,omitempty" yaml:"fieldName,omitempty"`
	Content   *Layout  `json:"content,omitempty" yaml:"content,omitempty"`
	Size      *float64 `json:"size,omitempty" yaml:"size,omitempty"`
}

// New returns a tree with one empty leaf.
func New(o Orientation) Layout {
	return Layout{Orientation: o, Panes: []Pane{{}}}
}

// Leaf returns a leaf pane.
func Leaf(nodeID, fieldName string) Pane {
	return Pane{NodeID: nodeID, FieldName: fieldName}
}

// Branch returns a branch pane around l.
func Branch(l Layout) Pane {
	return Pane{Content: &l}
}

// IsBranch reports whether the pane holds a nested layout.
func (p Pane) IsBranch() bool { return p.Content != nil }

// Clone returns a deep copy of the tree.
func (l Layout) Clone() Layout {
	out := Layout{Orientation: l.Orientation}
	if l.Panes != nil {
		out.Panes = make([]Pane, len(l.Panes))
	}
	for i, p := range l.Panes {
		if p.Content != nil {
			content := p.Content.Clone()
			p.Content = &content
		}
		if p.Size != nil {
			size := *p.Size
			p.Size = &size
		}
		out.Panes[i] = p
	}
	return out
}

// Validate checks that every layout has a known orientation and at least one
// pane, and that no pane is both a leaf and a branch.
func (l Layout) Validate() error {
	return l.validate(Path{})
}

func (l Layout) validate(at Path) error {
	switch l.Orientation {
	case Horizontal, Vertical:
	default:
		return fmt.Errorf("%w: unknown orientation %q at %q", ErrInvalidLayout, l.Orientation, at)
	}
	if len(l.Panes) == 0 {
		return fmt.Errorf("%w: no panes at %q", ErrInvalidLayout, at)
	}
	for i, p := range l.Panes {
		here := at.Child(i)
		if p.Size != nil && *p.Size < 0 {
			return fmt.Errorf("%w: negative size at %q", ErrInvalidLayout, here)
		}
		if p.Content == nil {
			continue
		}
		if p.NodeID != "" || p.FieldName != "" {
			return fmt.Errorf("%w: pane %q is both a leaf and a branch", ErrInvalidLayout, here)
		}
		if err := p.Content.validate(here); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalJSON decodes and validates a tree.
func (l *Layout) UnmarshalJSON(raw []byte) error {
	type plain Layout
	var decoded plain
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	if err := Layout(decoded).Validate(); err != nil {
		return err
	}
	*l = Layout(decoded)
	return nil
}
