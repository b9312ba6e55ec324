package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ekisa-team/summa/internal/backend"
	"github.com/ekisa-team/summa/internal/model"
	"github.com/ekisa-team/summa/internal/prompt"
)

// CurrentVersion is the config file format version.
const CurrentVersion = "1"

// SourceType represents the type of model source.
type SourceType string

const (
	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"
)

// Config holds the main configuration for the application.
type Config struct {
	Version    string           `json:"version"              yaml:"version"`
	Model      ModelConfig      `json:"model,omitempty"      yaml:"model,omitempty"`
	Runtime    RuntimeConfig    `json:"runtime,omitempty"    yaml:"runtime,omitempty"`
	Generation GenerationConfig `json:"generation,omitempty" yaml:"generation,omitempty"`
	Prompt     PromptConfig     `json:"prompt,omitempty"     yaml:"prompt,omitempty"`
	Logging    LoggingConfig    `json:"logging,omitempty"    yaml:"logging,omitempty"`
	Metrics    MetricsConfig    `json:"metrics,omitempty"    yaml:"metrics,omitempty"`
}

// ModelConfig controls which weight file is used.
type ModelConfig struct {
	// Path pins the model file and disables discovery.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// SearchPaths are probed after the built-in locations.
	SearchPaths []string `json:"search_paths,omitempty" yaml:"search_paths,omitempty"`

	// Suffix and Marker select files during directory scans.
	Suffix string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	Marker string `json:"marker,omitempty" yaml:"marker,omitempty"`

	// SortCandidates scans directories in lexical order.
	SortCandidates bool `json:"sort_candidates,omitempty" yaml:"sort_candidates,omitempty"`

	// Download, when set, fetches a model into the models cache if discovery fails.
	Download *SourceConfig `json:"download,omitempty" yaml:"download,omitempty"`
}

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
}

// RuntimeConfig configures the model runtime.
type RuntimeConfig struct {
	Provider        string        `json:"provider,omitempty"         yaml:"provider,omitempty"`
	Binary          string        `json:"binary,omitempty"           yaml:"binary,omitempty"`
	ContextExponent int           `json:"context_exponent,omitempty" yaml:"context_exponent,omitempty"`
	UseGPU          bool          `json:"use_gpu"                    yaml:"use_gpu"`
	GPULayers       int           `json:"gpu_layers,omitempty"       yaml:"gpu_layers,omitempty"`
	Threads         int           `json:"threads,omitempty"          yaml:"threads,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty"          yaml:"timeout,omitempty"`
}

// GenerationConfig configures sampling and output.
type GenerationConfig struct {
	Temperature    float64 `json:"temperature"              yaml:"temperature"`
	TopK           int     `json:"top_k"                    yaml:"top_k"`
	TopP           float64 `json:"top_p"                    yaml:"top_p"`
	RepeatPenalty  float64 `json:"repeat_penalty"           yaml:"repeat_penalty"`
	RepeatLastN    int     `json:"repeat_last_n"            yaml:"repeat_last_n"`
	MaxTokens      int     `json:"max_tokens,omitempty"     yaml:"max_tokens,omitempty"`
	PlayBackPrompt bool    `json:"play_back_prompt"         yaml:"play_back_prompt"`
	Seed           *uint64 `json:"seed,omitempty"           yaml:"seed,omitempty"`
}

// PromptConfig configures the instruction template.
type PromptConfig struct {
	System string `json:"system,omitempty" yaml:"system,omitempty"`
}

// LoggingConfig configures the optional log file.
type LoggingConfig struct {
	File   string `json:"file,omitempty"    yaml:"file,omitempty"`
	ToFile bool   `json:"to_file,omitempty" yaml:"to_file,omitempty"`
}

// MetricsConfig configures the Prometheus textfile output.
type MetricsConfig struct {
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// -------------------------
// Source definitions
// -------------------------

// ModelSource represents a source for a model.
type ModelSource interface {
	Type() SourceType
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// GetSource returns the active download source.
func (m *ModelConfig) GetSource() (ModelSource, error) {
	if m.Download != nil && m.Download.HuggingFace != nil {
		return *m.Download.HuggingFace, nil
	}

	return nil, errors.New("no download source configured for model")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	mp := backend.DefaultModelParameters()
	ip := backend.DefaultInferenceParameters()

	return &Config{
		Version: CurrentVersion,
		Model: ModelConfig{
			Suffix: model.DefaultSuffix,
			Marker: model.DefaultMarker,
		},
		Runtime: RuntimeConfig{
			Provider:        string(backend.ProviderLlamaCPP),
			ContextExponent: 11,
			UseGPU:          mp.UseGPU,
			GPULayers:       mp.GPULayers,
			Threads:         mp.Threads,
		},
		Generation: GenerationConfig{
			Temperature:   ip.Temperature,
			TopK:          ip.TopK,
			TopP:          ip.TopP,
			RepeatPenalty: ip.RepeatPenalty,
			RepeatLastN:   ip.RepeatLastN,
		},
		Prompt: PromptConfig{
			System: prompt.DefaultSystem,
		},
	}
}

// ModelParameters converts the runtime section for Runtime.Load.
func (c *Config) ModelParameters() (backend.ModelParameters, error) {
	size, err := backend.ContextSizeFromExponent(c.Runtime.ContextExponent)
	if err != nil {
		return backend.ModelParameters{}, fmt.Errorf("runtime.context_exponent: %w", err)
	}

	return backend.ModelParameters{
		Tokenizer:   backend.TokenizerEmbedded,
		ContextSize: size,
		GPULayers:   c.Runtime.GPULayers,
		Threads:     c.Runtime.Threads,
		UseGPU:      c.Runtime.UseGPU,
	}, nil
}

// InferenceRequest builds the generation request for p.
func (c *Config) InferenceRequest(p prompt.Prompt) *backend.InferenceRequest {
	return &backend.InferenceRequest{
		Prompt: p.String(),
		Parameters: backend.InferenceParameters{
			Temperature:   c.Generation.Temperature,
			TopP:          c.Generation.TopP,
			RepeatPenalty: c.Generation.RepeatPenalty,
			TopK:          c.Generation.TopK,
			RepeatLastN:   c.Generation.RepeatLastN,
		},
		MaxTokens:              c.Generation.MaxTokens,
		PlayBackPreviousTokens: c.Generation.PlayBackPrompt,
	}
}

// Template returns the prompt template.
func (c *Config) Template() prompt.Template {
	return prompt.Template{System: c.Prompt.System}
}

// Locator builds the model locator: built-in locations, then search_paths,
// then the models cache directory.
func (c *Config) Locator(modelsDir string) *model.Locator {
	extra := append([]string(nil), c.Model.SearchPaths...)
	if modelsDir != "" {
		extra = append(extra, modelsDir)
	}

	l := model.NewLocator(extra...)
	l.Suffix = c.Model.Suffix
	l.Marker = c.Model.Marker
	l.SortCandidates = c.Model.SortCandidates

	return l
}
