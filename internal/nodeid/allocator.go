// internal/nodeid/allocator.go
package nodeid

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// tokenLength is the length of random tokens, matching the short ids the
// editor has always produced.
const tokenLength = 9

// Allocator hands out new node identifiers for a processor type.
type Allocator interface {
	New(processorType string) string
}

// Sequence is a deterministic Allocator producing `n1#type`, `n2#type`, ...
// The zero value is ready to use.
type Sequence struct {
	mu     sync.Mutex
	next   int
	Prefix string
}

// New implements Allocator.
func (s *Sequence) New(processorType string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	prefix := s.Prefix
	if prefix == "" {
		prefix = "n"
	}
	return Format(fmt.Sprintf("%s%d", prefix, s.next), processorType)
}

// Random is an Allocator backed by random UUIDs.
type Random struct{}

// New implements Allocator.
func (Random) New(processorType string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return Format(token[:tokenLength], processorType)
}
