// Package flowdoc converts flow graphs to and from the portable flow document
//
//	{ "nodes": [ { "id", "type", "position"?, "data" } ],
//	  "edges": [ { "id", "source", "target", "sourceHandle"?, "targetHandle"? } ] }
//
// used for saved files, clipboard exports and worker submissions. Documents
// are encoded as JSON or YAML.
//
// Handle ids are normalized on the way out: input handles become "<index>"
// and output handles "<index>-output", so two serializations of the same
// topology produce identical handle ids.
package flowdoc
