// Package service runs a summarization end to end.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/ekisa-team/summa/internal/backend"
	"github.com/ekisa-team/summa/internal/config"
	"github.com/ekisa-team/summa/internal/input"
	"github.com/ekisa-team/summa/internal/metrics"
	"github.com/ekisa-team/summa/internal/model"
	"github.com/ekisa-team/summa/internal/sink"
)

// Locator picks a model file when the request names none.
type Locator interface {
	Resolve(explicit string) (model.Resolved, error)
}

// Fetcher retrieves a model when the locator finds none.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Request describes one run.
type Request struct {
	// ModelPath, when set, is used as-is and skips discovery.
	ModelPath string

	// ModelOrigin records where ModelPath came from. Defaults to OriginExplicit.
	ModelOrigin model.Origin

	// InputPath is the text to summarize; "" or "-" reads stdin.
	InputPath string
}

// Result is the outcome of a successful run.
type Result struct {
	RunID  string
	Model  model.Resolved
	Stats  *backend.InferenceStats
	Tokens int
}

// Summarizer wires the locator, runtime, input, prompt and sink together.
type Summarizer struct {
	runtimes    *backend.Registry
	locator     Locator
	cfg         *config.Config
	fetcher     Fetcher
	metrics     *metrics.Run
	stdin       io.Reader
	stdout      io.Writer
	diagnostics io.Writer
	rng         *rand.Rand
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithStdin sets the reader used when the input path is "-".
func WithStdin(r io.Reader) Option {
	return func(s *Summarizer) {
		s.stdin = r
	}
}

// WithStdout sets the writer generated text is streamed to.
func WithStdout(w io.Writer) Option {
	return func(s *Summarizer) {
		s.stdout = w
	}
}

// WithDiagnostics forwards raw runtime diagnostics to w.
func WithDiagnostics(w io.Writer) Option {
	return func(s *Summarizer) {
		s.diagnostics = w
	}
}

// WithFetcher enables a fallback when discovery finds no model.
func WithFetcher(f Fetcher) Option {
	return func(s *Summarizer) {
		s.fetcher = f
	}
}

// WithMetrics records the run in m.
func WithMetrics(m *metrics.Run) Option {
	return func(s *Summarizer) {
		s.metrics = m
	}
}

// WithRand sets the randomness source handed to the runtime.
func WithRand(rng *rand.Rand) Option {
	return func(s *Summarizer) {
		s.rng = rng
	}
}

// NewSummarizer creates a Summarizer. Without options it reads os.Stdin and
// writes os.Stdout.
func NewSummarizer(runtimes *backend.Registry, locator Locator, cfg *config.Config, opts ...Option) *Summarizer {
	s := &Summarizer{
		runtimes: runtimes,
		locator:  locator,
		cfg:      cfg,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.rng == nil {
		seed := rand.Uint64()
		if cfg.Generation.Seed != nil {
			seed = *cfg.Generation.Seed
		}
		s.rng = rand.New(rand.NewPCG(seed, seed))
	}

	return s
}

// Run performs one summarization and streams it to stdout. It returns the
// first stage failure as a *StageError. A generation halted because the
// output failed is not an error.
func (s *Summarizer) Run(ctx context.Context, req Request) (res *Result, err error) {
	res = &Result{RunID: uuid.NewString()}
	log := slog.With("run_id", res.RunID)

	if s.metrics != nil {
		defer func() { s.metrics.Finish(err) }()
	}
	defer func() {
		if err != nil {
			log.Debug("Run failed", "stage", StageFailed.String(), "error", err)
		}
	}()

	log.Debug("Run started", "stage", StageStart.String(), "input", req.InputPath)

	// Resolve model
	log.Debug("Entering stage", "stage", StageResolveModel.String())
	resolved, err := s.resolve(ctx, log, req)
	if err != nil {
		return nil, err
	}
	res.Model = resolved
	log.Info("Using model", "path", resolved.Path, "origin", resolved.Origin)

	// Load runtime
	log.Debug("Entering stage", "stage", StageLoadRuntime.String())
	m, err := s.load(ctx, log, resolved.Path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			log.Warn("Failed to close model", "error", cerr)
		}
	}()

	// Acquire input
	log.Debug("Entering stage", "stage", StageAcquireInput.String())
	text, err := input.Read(req.InputPath, s.stdin)
	if err != nil {
		return nil, stageError(StageAcquireInput, req.InputPath, ErrInputReadFailed, err)
	}
	log.Debug("Input read", "bytes", len(text))

	// Build prompt
	log.Debug("Entering stage", "stage", StageBuildPrompt.String())
	p := s.cfg.Template().Build(text)
	if s.metrics != nil {
		s.metrics.ObservePrompt(len(p))
	}

	// Run generation
	log.Debug("Entering stage", "stage", StageRunGeneration.String())
	out := sink.New(s.stdout)
	stats, err := m.Infer(ctx, s.rng, s.cfg.InferenceRequest(p), &backend.OutputRequest{Diagnostics: s.diagnostics}, out.OnToken)
	if err != nil {
		return nil, stageError(StageRunGeneration, resolved.Path, ErrGenerationFailed, err)
	}
	if serr := out.Err(); serr != nil {
		log.Warn("Output failed, generation halted", "error", serr, "written", out.Written())
	}
	if stats == nil {
		stats = &backend.InferenceStats{}
	}
	res.Stats = stats
	res.Tokens = out.Written()

	// Report stats
	log.Debug("Entering stage", "stage", StageReportStats.String())
	s.finishOutput(log)
	for _, line := range strings.Split(stats.String(), "\n") {
		if line != "" {
			log.Info("Inference stat", "stat", line)
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveTokens(backend.TokenKindPrompt, out.Count(backend.TokenKindPrompt))
		s.metrics.ObserveTokens(backend.TokenKindInferred, out.Count(backend.TokenKindInferred))
		s.metrics.ObserveStats(stats)
	}

	log.Debug("Run finished", "stage", StageDone.String(), "tokens", res.Tokens, "halted", stats.Halted)

	return res, nil
}

func (s *Summarizer) resolve(ctx context.Context, log *slog.Logger, req Request) (model.Resolved, error) {
	if req.ModelPath != "" {
		origin := req.ModelOrigin
		if origin == "" {
			origin = model.OriginExplicit
		}
		return model.Resolved{Path: req.ModelPath, Origin: origin}, nil
	}

	resolved, err := s.locator.Resolve("")
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, model.ErrNotFound) || s.fetcher == nil {
		return model.Resolved{}, stageError(StageResolveModel, "", ErrModelNotFound, err)
	}

	log.Info("No local model found, downloading")
	path, ferr := s.fetcher.Fetch(ctx)
	if ferr != nil {
		return model.Resolved{}, stageError(StageResolveModel, "", ErrModelNotFound, errors.Join(err, ferr))
	}

	return model.Resolved{Path: path, Origin: model.OriginDownloaded}, nil
}

func (s *Summarizer) load(ctx context.Context, log *slog.Logger, path string) (backend.Model, error) {
	rt, err := s.runtimes.MustGet(backend.Provider(s.cfg.Runtime.Provider))
	if err != nil {
		return nil, stageError(StageLoadRuntime, path, ErrModelLoadFailed, err)
	}

	params, err := s.cfg.ModelParameters()
	if err != nil {
		return nil, stageError(StageLoadRuntime, path, ErrModelLoadFailed, err)
	}

	m, err := rt.Load(ctx, path, params, func(p backend.LoadProgress) {
		log.Debug("Loading model", "step", p.Stage, "path", p.Path, "bytes", p.Bytes)
	})
	if err != nil {
		return nil, stageError(StageLoadRuntime, path, ErrModelLoadFailed, err)
	}

	return m, nil
}

// finishOutput terminates the streamed text with a newline. Failures are
// ignored; the output may already be gone.
func (s *Summarizer) finishOutput(log *slog.Logger) {
	if _, err := io.WriteString(s.stdout, "\n"); err != nil {
		log.Debug("Failed to write trailing newline", "error", err)
		return
	}
	if f, ok := s.stdout.(sink.Flusher); ok {
		_ = f.Flush()
	}
}
