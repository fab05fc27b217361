package processor

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds processor definitions keyed by processor type.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]Definition
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition, replacing any earlier one of the same type.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Type]; !exists {
		r.order = append(r.order, def.Type)
	}
	r.defs[def.Type] = def
}

// Lookup returns the definition for a processor type.
func (r *Registry) Lookup(processorType string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[processorType]
	return def, ok
}

// Types returns the registered processor types in registration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// MissingFields lists, in declaration order, the required fields of cfg that
// hold no value. Unknown processor types have no required fields.
func (r *Registry) MissingFields(cfg Config) []string {
	if cfg == nil {
		return nil
	}
	def, ok := r.Lookup(cfg.ProcessorType())
	if !ok {
		return nil
	}
	values, err := Values(cfg)
	if err != nil {
		return nil
	}

	var missing []string
	for _, f := range def.Fields {
		if f.Required && isEmpty(values[f.Name]) {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// ApplyDefaults returns a copy of cfg where every empty field that declares a
// default holds that default.
func (r *Registry) ApplyDefaults(cfg Config) (Config, error) {
	if cfg == nil {
		return nil, nil
	}
	def, ok := r.Lookup(cfg.ProcessorType())
	if !ok {
		return CloneConfig(cfg), nil
	}
	values, err := Values(cfg)
	if err != nil {
		return nil, fmt.Errorf("reading %q config: %w", cfg.ProcessorType(), err)
	}

	changed := false
	for _, f := range def.Fields {
		if !isEmpty(values[f.Name]) {
			continue
		}
		if dv, ok := f.DefaultValue(); ok {
			values[f.Name] = dv
			changed = true
		}
	}
	if !changed {
		return CloneConfig(cfg), nil
	}

	raw, err := EncodeConfig(GenericConfig{Type: cfg.ProcessorType(), Fields: values})
	if err != nil {
		return nil, err
	}
	return DecodeConfig(cfg.ProcessorType(), raw)
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
