/*
Package coordinator drives a remote worker through one run of a flow.

A run moves through the states

	Idle -> Submitting -> Running -> {Completed, Errored, Disconnected}

and returns to Idle once the caller acknowledges the terminal state (or
starts the next run). At most one run is in flight: a second Run, or a switch
of the active graph, while a run is Submitting or Running is rejected with a
user notice.

Inbound worker messages are typed Events. They are delivered on a single
channel consumed by Serve, which applies them one at a time with Handle, so
the transition table in Handle is the only place run state changes after
submission. Progress events patch node data through the graph's own update
entry point, matching nodes by their display name.
*/
package coordinator
