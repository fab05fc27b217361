package processor

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

//go:embed manifests/*.hcl
var builtinManifests embed.FS

// Builtin returns a registry holding the manifests shipped with the binary.
func Builtin(ctx context.Context) (*Registry, error) {
	return LoadManifests(ctx)
}

// LoadManifests builds a registry from the built-in manifests followed by
// every .hcl file found under paths. A later definition replaces an earlier
// one of the same processor type, so user manifests can override built-ins.
func LoadManifests(ctx context.Context, paths ...string) (*Registry, error) {
	logger := ctxlog.FromContext(ctx)
	reg := NewRegistry()

	entries, err := fs.ReadDir(builtinManifests, "manifests")
	if err != nil {
		return nil, fmt.Errorf("reading built-in manifests: %w", err)
	}
	for _, entry := range entries {
		name := path.Join("manifests", entry.Name())
		src, err := builtinManifests.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading built-in manifest %s: %w", name, err)
		}
		if err := reg.LoadSource(ctx, src, name); err != nil {
			return nil, err
		}
	}

	files, err := findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered processor manifests.", "count", len(files))

	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading manifest %s: %w", file, err)
		}
		if err := reg.LoadSource(ctx, src, file); err != nil {
			return nil, err
		}
	}

	logger.Debug("Processor manifests loaded.", "types", len(reg.Types()))
	return reg, nil
}

// LoadSource parses one manifest and registers every processor it declares.
func (r *Registry) LoadSource(ctx context.Context, src []byte, filename string) error {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}

	var root manifestFile
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}

	for _, block := range root.Processors {
		def, err := translateDefinition(ctx, block)
		if err != nil {
			return fmt.Errorf("in manifest %s: %w", filename, err)
		}
		r.Register(def)
	}
	return nil
}

func translateDefinition(ctx context.Context, block *processorBlock) (Definition, error) {
	logger := ctxlog.FromContext(ctx).With("processor", block.Type)

	def := Definition{
		Type:              block.Type,
		DisplayName:       block.DisplayName,
		Icon:              block.Icon,
		Section:           block.Section,
		HelpMessage:       block.HelpMessage,
		OutputType:        OutputType(block.OutputType),
		HasInputHandle:    block.HasInputHandle,
		DefaultHideOutput: block.DefaultHideOutput,
		InputNames:        block.InputNames,
	}
	switch def.OutputType {
	case "":
		def.OutputType = OutputText
	case OutputText, OutputImageURL, OutputImageBase64:
	default:
		return Definition{}, fmt.Errorf("processor %q: unknown output_type %q", block.Type, block.OutputType)
	}

	for _, fb := range block.Fields {
		field, err := translateField(ctx, fb)
		if err != nil {
			return Definition{}, fmt.Errorf("processor %q: %w", block.Type, err)
		}
		def.Fields = append(def.Fields, field)
	}

	logger.Debug("Translated processor definition.", "fields", len(def.Fields))
	return def, nil
}

func translateField(ctx context.Context, fb *fieldBlock) (Field, error) {
	field := Field{
		Name:         fb.Name,
		Kind:         fb.Kind,
		Label:        fb.Label,
		Placeholder:  fb.Placeholder,
		Required:     fb.Required,
		HideIfParent: fb.HideIfParent,
	}
	switch field.Kind {
	case "":
		field.Kind = "input"
	case "input", "textarea", "select", "option":
	default:
		return Field{}, fmt.Errorf("field %q: unknown kind %q", fb.Name, fb.Kind)
	}

	ty, err := typeExprToCtyType(ctx, fb.Type)
	if err != nil {
		return Field{}, fmt.Errorf("field %q: %w", fb.Name, err)
	}
	field.Type = ty

	if fb.Default != nil && !fb.Default.IsNull() {
		val := *fb.Default
		if ty != cty.DynamicPseudoType {
			val, err = convert.Convert(val, ty)
			if err != nil {
				return Field{}, fmt.Errorf("field %q: default does not match type %s: %w", fb.Name, ty.FriendlyName(), err)
			}
		}
		field.Default, err = ctyToGo(val)
		if err != nil {
			return Field{}, fmt.Errorf("field %q: %w", fb.Name, err)
		}
	}

	defaults := 0
	for _, ob := range fb.Options {
		if ob.Default {
			defaults++
		}
		label := ob.Label
		if label == "" {
			label = ob.Value
		}
		field.Options = append(field.Options, Option{Label: label, Value: ob.Value, Default: ob.Default})
	}
	if defaults > 1 {
		return Field{}, fmt.Errorf("field %q: more than one default option", fb.Name)
	}
	return field, nil
}

// findAllHCLFiles returns every .hcl file under paths, without duplicates.
// Paths that do not exist are skipped.
func findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, root := range paths {
		if _, err := os.Stat(root); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", root, err)
		}

		files, err := fsutil.FindFilesByExtension(root, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("searching %s for manifests: %w", root, err)
		}
		for _, f := range files {
			if _, dup := seen[f]; !dup {
				seen[f] = struct{}{}
				allFiles = append(allFiles, f)
			}
		}
	}
	return allFiles, nil
}
