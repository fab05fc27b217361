package coordinator

import (
	"github.com/vk/flowgrid/internal/flow"
	"github.com/vk/flowgrid/internal/flowdoc"
)

// Event is a message from the worker.
type Event interface {
	event()
}

// ProgressEvent carries the output of the node named InstanceName.
type ProgressEvent struct {
	InstanceName string
	Output       flow.OutputData
}

// CurrentNodeEvent reports the node the worker has started executing.
type CurrentNodeEvent struct {
	InstanceName string
}

// ErrorEvent reports a failed run.
type ErrorEvent struct {
	Message string
}

// RunEndEvent reports a finished run.
type RunEndEvent struct{}

// DisconnectEvent reports that the worker connection closed.
type DisconnectEvent struct {
	Reason string
}

func (ProgressEvent) event()    {}
func (CurrentNodeEvent) event() {}
func (ErrorEvent) event()       {}
func (RunEndEvent) event()      {}
func (DisconnectEvent) event()  {}

// Disconnect reasons reported by the socket.io client for closes that were
// asked for by one of the two ends.
const (
	ReasonClientDisconnect = "io client disconnect"
	ReasonServerDisconnect = "io server disconnect"
)

// IsTransportLoss reports whether a disconnect reason means the connection
// was lost rather than closed on purpose.
func IsTransportLoss(reason string) bool {
	switch reason {
	case ReasonClientDisconnect, ReasonServerDisconnect:
		return false
	default:
		return true
	}
}

// Submission is sent to the worker once per run. NodeName is set for runs of
// a single node.
type Submission struct {
	Document    flowdoc.Document  `json:"document"`
	Credentials map[string]string `json:"credentials"`
	NodeName    string            `json:"nodeName,omitempty"`
}
