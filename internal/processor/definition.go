package processor

import "github.com/zclconf/go-cty/cty"

// OutputType tells the editor how to render a node's output.
type OutputType string

const (
	OutputText        OutputType = "text"
	OutputImageURL    OutputType = "imageUrl"
	OutputImageBase64 OutputType = "imageBase64"
)

// Option is one choice of an option or select field.
type Option struct {
	Label   string
	Value   string
	Default bool
}

// Field describes a single configurable field of a processor.
type Field struct {
	Name        string
	Kind        string // input, textarea, select or option
	Label       string
	Placeholder string
	// Type is the value type declared in the manifest. cty.DynamicPseudoType
	// when undeclared.
	Type         cty.Type
	Required     bool
	Default      any
	Options      []Option
	HideIfParent bool
}

// DefaultValue returns the field's explicit default or, failing that, the
// value of the option flagged as default.
func (f Field) DefaultValue() (any, bool) {
	if f.Default != nil {
		return f.Default, true
	}
	for _, opt := range f.Options {
		if opt.Default {
			return opt.Value, true
		}
	}
	return nil, false
}

// Definition is the configuration metadata of one processor type.
type Definition struct {
	Type              string
	DisplayName       string
	Icon              string
	Section           string
	HelpMessage       string
	OutputType        OutputType
	HasInputHandle    bool
	DefaultHideOutput bool
	InputNames        []string
	Fields            []Field
}

// Field looks up a field by name.
func (d Definition) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
