package llama

import "errors"

// Error definitions for the llama package.
var (
	ErrNotAModel            = errors.New("not a model weight file")
	ErrUnsupportedFormat    = errors.New("unsupported model format")
	ErrUnsupportedTokenizer = errors.New("unsupported tokenizer source")
	ErrInvalidParameters    = errors.New("invalid model parameters")
	ErrGeneration           = errors.New("llama-cli generation failed")
)
