package worker

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vk/flowgrid/internal/coordinator"
	"github.com/vk/flowgrid/internal/flow"
)

// Socket.io event names spoken by the worker.
const (
	EventProcessFile = "process_file"
	EventRunNode     = "run_node"

	EventProgress    = "progress"
	EventCurrentNode = "current_node_running"
	EventError       = "error"
	EventRunEnd      = "run_end"
	EventDisconnect  = "disconnect"
)

var errEmptyPayload = errors.New("event carried no payload")

// submitPayload builds the message emitted for a submission. It carries the
// document and credentials under their own keys, and repeats them the way
// the Python worker reads them: the document as a JSON string under jsonFile
// and each credential as a top-level key.
func submitPayload(s coordinator.Submission) (string, map[string]any, error) {
	raw, err := json.Marshal(s.Document)
	if err != nil {
		return "", nil, fmt.Errorf("encoding flow document: %w", err)
	}

	payload := make(map[string]any, len(s.Credentials)+4)
	for k, v := range s.Credentials {
		payload[k] = v
	}
	payload["document"] = s.Document
	payload["credentials"] = s.Credentials
	payload["jsonFile"] = string(raw)

	event := EventProcessFile
	if s.NodeName != "" {
		event = EventRunNode
		payload["nodeName"] = s.NodeName
	}
	return event, payload, nil
}

// firstObject returns the first event argument as a JSON object.
func firstObject(args []any) (map[string]any, error) {
	if len(args) == 0 || args[0] == nil {
		return nil, errEmptyPayload
	}
	switch v := args[0].(type) {
	case map[string]any:
		return v, nil
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("decoding payload: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unexpected payload type %T", args[0])
	}
}

func instanceName(m map[string]any) (string, error) {
	for _, key := range []string{"instance_name", "instanceName"} {
		if v, ok := m[key]; ok {
			s, ok := v.(string)
			if !ok {
				return "", fmt.Errorf("%s is %T, want string", key, v)
			}
			return s, nil
		}
	}
	return "", errors.New("payload has no instance name")
}

func decodeProgress(args []any) (coordinator.ProgressEvent, error) {
	m, err := firstObject(args)
	if err != nil {
		return coordinator.ProgressEvent{}, err
	}
	name, err := instanceName(m)
	if err != nil {
		return coordinator.ProgressEvent{}, err
	}
	out, err := decodeOutput(m["output"])
	if err != nil {
		return coordinator.ProgressEvent{}, fmt.Errorf("progress for %q: %w", name, err)
	}
	return coordinator.ProgressEvent{InstanceName: name, Output: out}, nil
}

// decodeOutput accepts a string or a list of strings. Other scalars are kept
// in their JSON form.
func decodeOutput(v any) (flow.OutputData, error) {
	switch o := v.(type) {
	case nil:
		return flow.TextOutput(""), nil
	case string:
		return flow.TextOutput(o), nil
	case []string:
		return flow.ListOutput(o...), nil
	case []any:
		items := make([]string, 0, len(o))
		for i, item := range o {
			s, ok := item.(string)
			if !ok {
				return flow.OutputData{}, fmt.Errorf("output item %d is %T, want string", i, item)
			}
			items = append(items, s)
		}
		return flow.ListOutput(items...), nil
	default:
		raw, err := json.Marshal(o)
		if err != nil {
			return flow.OutputData{}, fmt.Errorf("encoding output: %w", err)
		}
		return flow.TextOutput(string(raw)), nil
	}
}

func decodeCurrentNode(args []any) (coordinator.CurrentNodeEvent, error) {
	m, err := firstObject(args)
	if err != nil {
		return coordinator.CurrentNodeEvent{}, err
	}
	name, err := instanceName(m)
	if err != nil {
		return coordinator.CurrentNodeEvent{}, err
	}
	return coordinator.CurrentNodeEvent{InstanceName: name}, nil
}

// decodeError never fails: a worker error is surfaced even when its payload
// is unreadable.
func decodeError(args []any) coordinator.ErrorEvent {
	if len(args) == 0 || args[0] == nil {
		return coordinator.ErrorEvent{Message: "the worker reported an unknown error"}
	}
	if s, ok := args[0].(string); ok {
		return coordinator.ErrorEvent{Message: s}
	}
	m, err := firstObject(args)
	if err != nil {
		return coordinator.ErrorEvent{Message: fmt.Sprint(args[0])}
	}
	switch e := m["error"].(type) {
	case string:
		return coordinator.ErrorEvent{Message: e}
	case nil:
		return coordinator.ErrorEvent{Message: "the worker reported an unknown error"}
	default:
		return coordinator.ErrorEvent{Message: fmt.Sprint(e)}
	}
}

func decodeDisconnect(args []any) coordinator.DisconnectEvent {
	if len(args) == 0 || args[0] == nil {
		return coordinator.DisconnectEvent{Reason: "unknown"}
	}
	if s, ok := args[0].(string); ok {
		return coordinator.DisconnectEvent{Reason: s}
	}
	return coordinator.DisconnectEvent{Reason: fmt.Sprint(args[0])}
}
