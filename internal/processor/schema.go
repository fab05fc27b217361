package processor

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// manifestFile is the root of a processor manifest file.
type manifestFile struct {
	Processors []*processorBlock `hcl:"processor,block"`
	Remain     hcl.Body          `hcl:",remain"`
}

// processorBlock represents a `processor "<type>" { ... }` block.
type processorBlock struct {
	Type              string        `hcl:"type,label"`
	DisplayName       string        `hcl:"display_name,optional"`
	Icon              string        `hcl:"icon,optional"`
	Section           string        `hcl:"section,optional"`
	HelpMessage       string        `hcl:"help_message,optional"`
	OutputType        string        `hcl:"output_type,optional"`
	HasInputHandle    bool          `hcl:"has_input_handle,optional"`
	DefaultHideOutput bool          `hcl:"default_hide_output,optional"`
	InputNames        []string      `hcl:"input_names,optional"`
	Fields            []*fieldBlock `hcl:"field,block"`
}

// fieldBlock represents a `field "<name>" { ... }` block.
type fieldBlock struct {
	Name         string         `hcl:"name,label"`
	Kind         string         `hcl:"kind,optional"`
	Label        string         `hcl:"label,optional"`
	Placeholder  string         `hcl:"placeholder,optional"`
	Type         hcl.Expression `hcl:"type,optional"`
	Required     bool           `hcl:"required,optional"`
	Default      *cty.Value     `hcl:"default,optional"`
	HideIfParent bool           `hcl:"hide_if_parent,optional"`
	Options      []*optionBlock `hcl:"option,block"`
}

// optionBlock represents an `option "<value>" { ... }` block.
type optionBlock struct {
	Value   string `hcl:"value,label"`
	Label   string `hcl:"label,optional"`
	Default bool   `hcl:"default,optional"`
}
