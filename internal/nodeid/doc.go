// internal/nodeid/doc.go

/*
Package nodeid allocates and parses node identifiers.

A node identifier has the canonical form `<token>#<processorType>`, e.g.
`k3f9a01bc#llm-prompt`. The token is produced by an injected Allocator so that
tests can use a deterministic Sequence while the editor uses Random tokens.

Edge identifiers are derived from their endpoints with EdgeID, which keeps
them stable across serializations of the same topology.
*/
package nodeid
