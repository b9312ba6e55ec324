// Package llama runs models through llama.cpp's llama-cli binary.
package llama

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ekisa-team/summa/internal/backend"
)

// DefaultBinary is looked up in PATH when no binary is configured.
const DefaultBinary = "llama-cli"

// Runtime implements backend.Runtime for llama.cpp.
type Runtime struct {
	runner  backend.CommandRunner
	binary  string
	timeout time.Duration
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithBinary sets the llama-cli binary path or name.
func WithBinary(binary string) Option {
	return func(r *Runtime) {
		if binary != "" {
			r.binary = binary
		}
	}
}

// WithTimeout bounds a single generation. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		r.timeout = d
	}
}

// WithRunner replaces the command runner. The binary is then used as-is,
// without a PATH lookup.
func WithRunner(runner backend.CommandRunner) Option {
	return func(r *Runtime) {
		r.runner = runner
	}
}

// NewRuntime creates a llama.cpp runtime.
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{binary: DefaultBinary}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Provider returns the runtime provider.
func (r *Runtime) Provider() backend.Provider {
	return backend.ProviderLlamaCPP
}

// Load validates the weight file and parameters and prepares an executor.
// Weights are mapped by llama-cli itself when generation starts.
func (r *Runtime) Load(ctx context.Context, path string, params backend.ModelParameters, progress backend.LoadProgressFunc) (backend.Model, error) {
	if progress == nil {
		progress = func(backend.LoadProgress) {}
	}

	if err := validateParameters(params); err != nil {
		return nil, err
	}

	progress(backend.LoadProgress{Stage: "stat", Path: path})
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat model: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotAModel, path)
	}

	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if format != FormatGGUF {
		return nil, fmt.Errorf("%w: %s is a %s file, llama-cli only loads gguf", ErrUnsupportedFormat, path, format)
	}
	progress(backend.LoadProgress{Stage: "header", Path: path, Bytes: info.Size()})

	executor, err := r.executor()
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Debug("Model ready",
		"path", path,
		"format", format,
		"bytes", info.Size(),
		"binary", executor.BinaryPath(),
		"context_size", params.ContextSize,
		"use_gpu", params.UseGPU,
	)
	progress(backend.LoadProgress{Stage: "ready", Path: path, Bytes: info.Size()})

	return &Model{
		executor: executor,
		path:     path,
		format:   format,
		params:   params,
	}, nil
}

func (r *Runtime) executor() (*backend.Executor, error) {
	if r.runner != nil {
		return backend.NewExecutorWithRunner(r.binary, r.timeout, r.runner), nil
	}

	return backend.NewExecutor(r.binary, r.timeout)
}

func validateParameters(params backend.ModelParameters) error {
	if params.Tokenizer != backend.TokenizerEmbedded {
		return fmt.Errorf("%w: %q", ErrUnsupportedTokenizer, params.Tokenizer)
	}
	if params.ContextSize <= 0 {
		return fmt.Errorf("%w: context size %d", ErrInvalidParameters, params.ContextSize)
	}
	if params.Threads < 0 {
		return fmt.Errorf("%w: threads %d", ErrInvalidParameters, params.Threads)
	}

	return nil
}
