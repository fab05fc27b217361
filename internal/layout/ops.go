package layout

import "fmt"

// Split replaces the leaf at path with a branch holding two leaves in
// orientation o. The first leaf keeps the original node and field; the second
// is empty. A path resolving to a branch descends through first panes until
// it reaches a leaf.
func Split(tree Layout, path Path, o Orientation) (Layout, error) {
	out := tree.Clone()
	pane, err := resolveLeaf(&out, path)
	if err != nil {
		return Layout{}, err
	}
	*pane = Pane{
		Size: pane.Size,
		Content: &Layout{
			Orientation: o,
			Panes:       []Pane{Leaf(pane.NodeID, pane.FieldName), {}},
		},
	}
	return out, nil
}

// Delete removes the pane at path from its parent. A nested layout left
// without panes is removed in turn. Deleting the last pane of the tree is a
// no-op.
func Delete(tree Layout, path Path) (Layout, error) {
	out := tree.Clone()
	if err := deleteAt(&out, path); err != nil {
		return Layout{}, err
	}
	if len(out.Panes) == 0 {
		return tree.Clone(), nil
	}
	return out, nil
}

func deleteAt(l *Layout, path Path) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	idx := path[0]
	if idx < 0 || idx >= len(l.Panes) {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidPath, idx)
	}
	if len(path) == 1 {
		l.Panes = append(l.Panes[:idx], l.Panes[idx+1:]...)
		return nil
	}

	pane := &l.Panes[idx]
	if pane.Content == nil {
		return fmt.Errorf("%w: index %d is a leaf", ErrInvalidPath, idx)
	}
	if err := deleteAt(pane.Content, path[1:]); err != nil {
		return err
	}
	if len(pane.Content.Panes) == 0 {
		l.Panes = append(l.Panes[:idx], l.Panes[idx+1:]...)
	}
	return nil
}

// Attach shows field fieldName of node nodeID in the leaf at path. A path
// resolving to a branch descends through first panes until it reaches a leaf.
func Attach(tree Layout, path Path, nodeID, fieldName string) (Layout, error) {
	out := tree.Clone()
	pane, err := resolveLeaf(&out, path)
	if err != nil {
		return Layout{}, err
	}
	pane.NodeID = nodeID
	pane.FieldName = fieldName
	return out, nil
}

// Detach empties every leaf showing nodeID.
func Detach(tree Layout, nodeID string) Layout {
	out := tree.Clone()
	detach(&out, nodeID)
	return out
}

func detach(l *Layout, nodeID string) {
	for i := range l.Panes {
		p := &l.Panes[i]
		if p.Content != nil {
			detach(p.Content, nodeID)
			continue
		}
		if p.NodeID == nodeID {
			p.NodeID, p.FieldName = "", ""
		}
	}
}

// Resize sets the relative sizes of the panes of the layout at path; the
// empty path is the root layout. sizes must hold one entry per pane.
func Resize(tree Layout, path Path, sizes []float64) (Layout, error) {
	out := tree.Clone()
	target := &out
	if len(path) > 0 {
		pane, err := resolve(&out, path)
		if err != nil {
			return Layout{}, err
		}
		if pane.Content == nil {
			return Layout{}, fmt.Errorf("%w: %q is a leaf", ErrInvalidPath, path)
		}
		target = pane.Content
	}
	if len(sizes) != len(target.Panes) {
		return Layout{}, fmt.Errorf("%w: %d sizes for %d panes", ErrInvalidLayout, len(sizes), len(target.Panes))
	}
	for i, s := range sizes {
		if s < 0 {
			return Layout{}, fmt.Errorf("%w: negative size %v", ErrInvalidLayout, s)
		}
		size := s
		target.Panes[i].Size = &size
	}
	return out, nil
}

// IsEmpty reports whether no leaf in the tree shows a node.
func IsEmpty(tree Layout) bool {
	return len(Leaves(tree)) == 0
}

// LeafRef is a populated leaf and its path.
type LeafRef struct {
	Path      Path
	NodeID    string
	FieldName string
}

// Leaves lists the leaves showing a node, depth first.
func Leaves(tree Layout) []LeafRef {
	var out []LeafRef
	collect(tree, Path{}, &out)
	return out
}

func collect(l Layout, at Path, out *[]LeafRef) {
	for i, p := range l.Panes {
		here := at.Child(i)
		if p.Content != nil {
			collect(*p.Content, here, out)
			continue
		}
		if p.NodeID != "" {
			*out = append(*out, LeafRef{Path: here, NodeID: p.NodeID, FieldName: p.FieldName})
		}
	}
}

// resolve returns the pane at path.
func resolve(l *Layout, path Path) (*Pane, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	cur := l
	for depth, idx := range path {
		if idx < 0 || idx >= len(cur.Panes) {
			return nil, fmt.Errorf("%w: index %d out of range at %q", ErrInvalidPath, idx, path[:depth])
		}
		pane := &cur.Panes[idx]
		if depth == len(path)-1 {
			return pane, nil
		}
		if pane.Content == nil {
			return nil, fmt.Errorf("%w: %q passes through a leaf", ErrInvalidPath, path)
		}
		cur = pane.Content
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
}

// resolveLeaf returns the leaf at path, descending through first panes of
// any branch it lands on.
func resolveLeaf(l *Layout, path Path) (*Pane, error) {
	pane, err := resolve(l, path)
	if err != nil {
		return nil, err
	}
	for pane.Content != nil {
		if len(pane.Content.Panes) == 0 {
			return nil, fmt.Errorf("%w: %q holds an empty layout", ErrInvalidLayout, path)
		}
		pane = &pane.Content.Panes[0]
	}
	return pane, nil
}
