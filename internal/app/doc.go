// Package app contains the core application logic. It wires the processor
// registry, the workspace, the worker connection and the run coordinator
// together, decoupled from any specific entrypoint like a CLI.
package app
