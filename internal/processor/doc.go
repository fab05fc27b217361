// Package processor describes the processor kinds a flow node can run as.
//
// It owns two concerns. The first is the per-kind configuration shape: every
// node carries a Config, a tagged union keyed by processor type, with one
// concrete struct per kind and a GenericConfig fallback for kinds this build
// does not know. The second is the configuration metadata loaded from HCL
// manifests: which fields a kind exposes, which are required, and their
// defaults. The graph core never inspects field contents itself; it asks the
// Registry for missing fields and defaults.
package processor
