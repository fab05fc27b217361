// Package worker connects to the remote execution service over socket.io.
//
// A Client submits flow documents with the process_file and run_node events
// and translates the worker's progress, current_node_running, error, run_end
// and disconnect messages into coordinator events.
package worker
