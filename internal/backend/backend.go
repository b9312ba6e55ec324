package backend

import (
	"context"
	"io"
	"math/rand/v2"
)

// Provider is a string identifier for a runtime provider.
type Provider string

const (
	ProviderLlamaCPP Provider = "llama.cpp"
)

// Runtime loads model weights and hands back a Model ready for generation.
type Runtime interface {
	// Provider returns the runtime identifier.
	Provider() Provider

	// Load loads the model at path. progress may be nil.
	Load(ctx context.Context, path string, params ModelParameters, progress LoadProgressFunc) (Model, error)
}

// Model is a loaded model handle.
type Model interface {
	// Infer runs one generation. fn is called synchronously on the calling
	// goroutine, once per token, in generation order; returning Halt stops
	// generation after the current token without producing an error.
	Infer(ctx context.Context, rng *rand.Rand, req *InferenceRequest, out *OutputRequest, fn TokenFunc) (*InferenceStats, error)

	// Close releases the model.
	Close() error
}

// TokenKind tells prompt echoes apart from newly inferred tokens.
type TokenKind int

const (
	TokenKindPrompt TokenKind = iota
	TokenKindInferred
)

// String returns the metric/log label of the kind.
func (k TokenKind) String() string {
	switch k {
	case TokenKindPrompt:
		return "prompt"
	case TokenKindInferred:
		return "inferred"
	default:
		return "unknown"
	}
}

// TokenEvent is one generated text fragment.
type TokenEvent struct {
	Text string
	Kind TokenKind
}

// Feedback tells the runtime whether to keep generating.
type Feedback int

const (
	Continue Feedback = iota
	Halt
)

// String returns the feedback name.
func (f Feedback) String() string {
	if f == Halt {
		return "halt"
	}

	return "continue"
}

// TokenFunc consumes one token and decides whether generation proceeds.
type TokenFunc func(TokenEvent) Feedback

// LoadProgress reports a step of model loading.
type LoadProgress struct {
	Stage string
	Path  string
	Bytes int64
}

// LoadProgressFunc observes model loading.
type LoadProgressFunc func(LoadProgress)

// TokenizerSource selects where the tokenizer comes from.
type TokenizerSource string

const (
	// TokenizerEmbedded uses the vocabulary stored in the weight file.
	TokenizerEmbedded TokenizerSource = "embedded"
)

// ModelParameters configures model loading.
type ModelParameters struct {
	// Tokenizer selects the tokenizer source. Default: TokenizerEmbedded.
	Tokenizer TokenizerSource

	// ContextSize is the context window in tokens. Default: 2048 (2^11).
	ContextSize int

	// GPULayers is the number of layers to offload when UseGPU is set. Default: -1 (all).
	GPULayers int

	// Threads is the number of CPU threads. Default: 0 (runtime decides).
	Threads int

	// UseGPU enables GPU offload. Default: true.
	UseGPU bool
}

// DefaultModelParameters returns ModelParameters with every field set to its default.
func DefaultModelParameters() ModelParameters {
	return ModelParameters{
		Tokenizer:   TokenizerEmbedded,
		ContextSize: 2048,
		GPULayers:   -1,
		Threads:     0,
		UseGPU:      true,
	}
}

// InferenceParameters configures sampling.
type InferenceParameters struct {
	// Temperature scales logits before sampling. Default: 0.80.
	Temperature float64

	// TopP is the nucleus sampling threshold. Default: 0.95.
	TopP float64

	// RepeatPenalty penalises recently seen tokens. Default: 1.30.
	RepeatPenalty float64

	// TopK limits sampling to the K most likely tokens. Default: 40.
	TopK int

	// RepeatLastN is the window RepeatPenalty looks back over. Default: 64.
	RepeatLastN int
}

// DefaultInferenceParameters returns InferenceParameters with every field set to its default.
func DefaultInferenceParameters() InferenceParameters {
	return InferenceParameters{
		Temperature:   0.80,
		TopP:          0.95,
		RepeatPenalty: 1.30,
		TopK:          40,
		RepeatLastN:   64,
	}
}

// InferenceRequest encapsulates one generation call.
type InferenceRequest struct {
	// Prompt is the full prompt text.
	Prompt string

	// Parameters controls sampling.
	Parameters InferenceParameters

	// MaxTokens caps inferred tokens. 0 means no limit.
	MaxTokens int

	// PlayBackPreviousTokens re-emits prompt tokens through the callback before inferred ones.
	PlayBackPreviousTokens bool
}

// OutputRequest collects runtime side output.
type OutputRequest struct {
	// Diagnostics receives raw runtime diagnostics, if set.
	Diagnostics io.Writer
}
