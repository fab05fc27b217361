package flowdoc

import (
	"errors"
	"fmt"
)

// ErrMalformedDocument is the sentinel wrapped by MalformedDocumentError.
var ErrMalformedDocument = errors.New("malformed flow document")

// MalformedDocumentError reports a document that cannot be imported: it is
// not valid structured data, or it violates the graph invariants.
type MalformedDocumentError struct {
	Msg string // What is wrong, naming the offending node or edge
	Err error  // Optional underlying cause
}

func (e *MalformedDocumentError) Error() string {
	if e == nil {
		return ""
	}
	msg := ErrMalformedDocument.Error()
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the cause to errors.Is and errors.As.
func (e *MalformedDocumentError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedDocument}
	}
	return []error{ErrMalformedDocument, e.Err}
}

func malformed(err error, format string, args ...any) error {
	return &MalformedDocumentError{Msg: fmt.Sprintf(format, args...), Err: err}
}
