// internal/nodeid/id.go
package nodeid

import (
	"fmt"
	"strings"
)

// separator splits the token from the processor type.
const separator = "#"

// Format builds a canonical node id from a token and a processor type.
func Format(token, processorType string) string {
	if processorType == "" {
		return token
	}
	return token + separator + processorType
}

// Parse splits a node id into its token and processor type. ok is false when
// the id carries no processor type suffix.
func Parse(id string) (token, processorType string, ok bool) {
	idx := strings.LastIndex(id, separator)
	if idx <= 0 || idx == len(id)-1 {
		return id, "", false
	}
	return id[:idx], id[idx+1:], true
}

// EdgeID derives an edge identifier from its endpoints. Since a target handle
// accepts at most one edge, the result is unique within a graph.
func EdgeID(source, sourceHandle, target, targetHandle string) string {
	return fmt.Sprintf("edge-%s:%s->%s:%s", source, sourceHandle, target, targetHandle)
}
