package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

type decodeFunc func(raw []byte) (Config, error)

func decodeAs[T Config](raw []byte) (Config, error) {
	var c T
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return c, nil
}

var decoders = map[string]decodeFunc{
	TypeInputText:         decodeAs[InputTextConfig],
	TypeURLInput:          decodeAs[URLInputConfig],
	TypeLLMPrompt:         decodeAs[LLMPromptConfig],
	TypeNoContextPrompt:   decodeAs[NoContextPromptConfig],
	TypeGPTVision:         decodeAs[GPTVisionConfig],
	TypeYoutubeTranscript: decodeAs[YoutubeTranscriptConfig],
	TypeDallEPrompt:       decodeAs[DallEPromptConfig],
	TypeStableDiffusion:   decodeAs[StableDiffusionConfig],
	TypeReplicate:         decodeAs[ReplicateConfig],
	TypeMergerPrompt:      decodeAs[MergerPromptConfig],
	TypeAIDataSplitter:    decodeAs[AIDataSplitterConfig],
	TypeDataSplitter:      decodeAs[DataSplitterConfig],
	TypeAIAction:          decodeAs[AIActionConfig],
	TypeTransition:        decodeAs[TransitionConfig],
	TypeDisplay:           decodeAs[DisplayConfig],
	TypeFile:              decodeAs[FileConfig],
}

// KnownTypes returns the processor types that have a dedicated Config shape,
// sorted.
func KnownTypes() []string {
	types := make([]string, 0, len(decoders))
	for t := range decoders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// NewConfig returns the empty Config for a processor type.
func NewConfig(processorType string) Config {
	cfg, err := DecodeConfig(processorType, nil)
	if err != nil {
		// An empty object always decodes.
		panic(err)
	}
	return cfg
}

// DecodeConfig decodes the JSON form of a config into the variant selected
// by processorType. Unknown types decode into a GenericConfig.
func DecodeConfig(processorType string, raw []byte) (Config, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	decode, ok := decoders[processorType]
	if !ok {
		fields := make(map[string]any)
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decoding %q config: %w", processorType, err)
		}
		return GenericConfig{Type: processorType, Fields: fields}, nil
	}

	cfg, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %q config: %w", processorType, err)
	}
	return cfg, nil
}

// EncodeConfig returns the JSON form of a config. A nil config encodes as an
// empty object.
func EncodeConfig(cfg Config) ([]byte, error) {
	switch c := cfg.(type) {
	case nil:
		return []byte("{}"), nil
	case GenericConfig:
		if c.Fields == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(c.Fields)
	}
	return json.Marshal(cfg)
}

// Values flattens a config into a field-name keyed map.
func Values(cfg Config) (map[string]any, error) {
	raw, err := EncodeConfig(cfg)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CloneConfig returns a copy of cfg that shares no mutable state with it.
func CloneConfig(cfg Config) Config {
	switch c := cfg.(type) {
	case GenericConfig:
		c.Fields = cloneMap(c.Fields)
		return c
	case ReplicateConfig:
		c.Input = cloneMap(c.Input)
		return c
	}
	return cfg
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
