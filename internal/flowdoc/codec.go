package flowdoc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatFromPath picks the encoding from a file extension, defaulting to
// JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// Decode reads exactly one document. Input that is not a valid document, or
// that carries anything after it, yields a *MalformedDocumentError.
func Decode(r io.Reader, f Format) (Document, error) {
	var doc Document
	switch f {
	case YAML:
		dec := yaml.NewDecoder(r)
		if err := dec.Decode(&doc); err != nil {
			return Document{}, malformed(err, "decoding yaml")
		}
		var extra yaml.Node
		if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
			return Document{}, malformed(err, "decoding yaml: more than one document")
		}
	case JSON:
		dec := json.NewDecoder(r)
		if err := dec.Decode(&doc); err != nil {
			return Document{}, malformed(err, "decoding json")
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return Document{}, malformed(err, "decoding json: trailing data after the document")
		}
	default:
		return Document{}, fmt.Errorf("unsupported document format %q", f)
	}
	return doc, nil
}

// Encode writes a document.
func Encode(w io.Writer, doc Document, f Format) error {
	switch f {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported document format %q", f)
	}
}
