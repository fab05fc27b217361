/*
Package flow is the graph execution model.

A Graph owns the nodes and edges of one flow and enforces its connectivity
invariants:

  - node ids are unique;
  - every edge endpoint references an existing node;
  - a (target, targetHandle) pair accepts at most one incoming edge.

A connection attempt that would break the last rule is rejected without an
error so drag-based connection gestures stay forgiving. Cycles are allowed in
the model; Sort defines what happens to them.

All Graph methods are safe for concurrent use. Reads return copies, so a
caller can never mutate graph state except through the Graph's own methods.
*/
package flow
