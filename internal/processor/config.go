package processor

// Processor types understood by the worker.
const (
	TypeInputText         = "input-text"
	TypeURLInput          = "url_input"
	TypeLLMPrompt         = "llm-prompt"
	TypeNoContextPrompt   = "gpt-no-context-prompt"
	TypeGPTVision         = "gpt-vision"
	TypeYoutubeTranscript = "youtube_transcript_input"
	TypeDallEPrompt       = "dalle-prompt"
	TypeStableDiffusion   = "stable-diffusion-stabilityai-prompt"
	TypeReplicate         = "replicate"
	TypeMergerPrompt      = "merger-prompt"
	TypeAIDataSplitter    = "ai-data-splitter"
	TypeDataSplitter      = "data-splitter"
	TypeAIAction          = "ai-action"
	TypeTransition        = "transition"
	TypeDisplay           = "display"
	TypeFile              = "file"
)

// Config is the processor-specific part of a node's data. Implementations
// are plain value types so copies never share state, except for the map
// carried by GenericConfig and ReplicateConfig (see CloneConfig).
type Config interface {
	ProcessorType() string
}

type InputTextConfig struct {
	InputText string `json:"inputText,omitempty"`
}

func (InputTextConfig) ProcessorType() string { return TypeInputText }

type URLInputConfig struct {
	URL string `json:"url,omitempty"`
}

func (URLInputConfig) ProcessorType() string { return TypeURLInput }

type LLMPromptConfig struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

func (LLMPromptConfig) ProcessorType() string { return TypeLLMPrompt }

type NoContextPromptConfig struct {
	GPTVersion string `json:"gptVersion,omitempty"`
	InputText  string `json:"inputText,omitempty"`
}

func (NoContextPromptConfig) ProcessorType() string { return TypeNoContextPrompt }

type GPTVisionConfig struct {
	Prompt   string `json:"prompt,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

func (GPTVisionConfig) ProcessorType() string { return TypeGPTVision }

type YoutubeTranscriptConfig struct {
	URL      string `json:"url,omitempty"`
	Language string `json:"language,omitempty"`
}

func (YoutubeTranscriptConfig) ProcessorType() string { return TypeYoutubeTranscript }

type DallEPromptConfig struct {
	Prompt  string `json:"prompt,omitempty"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
}

func (DallEPromptConfig) ProcessorType() string { return TypeDallEPrompt }

// StableDiffusionConfig keeps height and width as strings, which is what the
// worker parses.
type StableDiffusionConfig struct {
	Prompt      string `json:"prompt,omitempty"`
	Height      string `json:"height,omitempty"`
	Width       string `json:"width,omitempty"`
	StylePreset string `json:"style_preset,omitempty"`
}

func (StableDiffusionConfig) ProcessorType() string { return TypeStableDiffusion }

type ReplicateConfig struct {
	Model string         `json:"model,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

func (ReplicateConfig) ProcessorType() string { return TypeReplicate }

type MergerPromptConfig struct {
	MergeMode string `json:"mergeMode,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
}

func (MergerPromptConfig) ProcessorType() string { return TypeMergerPrompt }

type AIDataSplitterConfig struct {
	NbOutput int `json:"nbOutput,omitempty"`
}

func (AIDataSplitterConfig) ProcessorType() string { return TypeAIDataSplitter }

type DataSplitterConfig struct {
	SplitChar string `json:"splitChar,omitempty"`
	NbOutput  int    `json:"nbOutput,omitempty"`
}

func (DataSplitterConfig) ProcessorType() string { return TypeDataSplitter }

type AIActionConfig struct {
	Prompt string `json:"prompt,omitempty"`
}

func (AIActionConfig) ProcessorType() string { return TypeAIAction }

type TransitionConfig struct{}

func (TransitionConfig) ProcessorType() string { return TypeTransition }

type DisplayConfig struct{}

func (DisplayConfig) ProcessorType() string { return TypeDisplay }

type FileConfig struct {
	FileURL string `json:"fileUrl,omitempty"`
}

func (FileConfig) ProcessorType() string { return TypeFile }

// GenericConfig holds the raw fields of a processor type this build has no
// dedicated shape for. It keeps documents from newer editors loadable.
type GenericConfig struct {
	Type   string
	Fields map[string]any
}

func (c GenericConfig) ProcessorType() string { return c.Type }
