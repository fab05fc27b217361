package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// pathSeparator joins indices in the text form of a path.
const pathSeparator = "-"

// Path addresses a pane by its sibling index at each depth, root first.
type Path []int

// ParsePath decodes the text form produced by Path.String. The empty string
// is the root path.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, pathSeparator)
	p := make(Path, len(parts))
	for i, part := range parts {
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, s)
		}
		p[i] = idx
	}
	return p, nil
}

// String encodes the path as indices joined by "-".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, pathSeparator)
}

// Child returns the path of the i-th pane below p.
func (p Path) Child(i int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, i)
}
