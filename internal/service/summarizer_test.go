package service

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/summa/internal/backend"
	"github.com/ekisa-team/summa/internal/config"
	"github.com/ekisa-team/summa/internal/metrics"
	"github.com/ekisa-team/summa/internal/model"
)

type fakeRuntime struct {
	model    *fakeModel
	loadErr  error
	loadPath string
	params   backend.ModelParameters
}

func (r *fakeRuntime) Provider() backend.Provider { return backend.ProviderLlamaCPP }

func (r *fakeRuntime) Load(_ context.Context, path string, params backend.ModelParameters, progress backend.LoadProgressFunc) (backend.Model, error) {
	r.loadPath = path
	r.params = params
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if progress != nil {
		progress(backend.LoadProgress{Stage: "ready", Path: path})
	}

	return r.model, nil
}

type fakeModel struct {
	tokens   []string
	inferErr error
	req      *backend.InferenceRequest
	calls    int
	closed   bool
}

func (m *fakeModel) Infer(_ context.Context, _ *rand.Rand, req *backend.InferenceRequest, _ *backend.OutputRequest, fn backend.TokenFunc) (*backend.InferenceStats, error) {
	m.req = req
	if m.inferErr != nil {
		return nil, m.inferErr
	}

	stats := &backend.InferenceStats{}
	for _, tok := range m.tokens {
		m.calls++
		stats.PredictTokens++
		if fn(backend.TokenEvent{Kind: backend.TokenKindInferred, Text: tok}) == backend.Halt {
			stats.Halted = true
			break
		}
	}

	return stats, nil
}

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

type fakeLocator struct {
	resolved model.Resolved
	err      error
	calls    int
}

func (l *fakeLocator) Resolve(string) (model.Resolved, error) {
	l.calls++
	return l.resolved, l.err
}

type fakeFetcher struct {
	path string
	err  error
}

func (f *fakeFetcher) Fetch(context.Context) (string, error) {
	return f.path, f.err
}

type brokenWriter struct {
	limit int
	buf   bytes.Buffer
}

func (w *brokenWriter) Write(p []byte) (int, error) {
	if w.limit == 0 {
		return 0, errors.New("broken pipe")
	}
	w.limit--
	return w.buf.Write(p)
}

func setup(t *testing.T, rt *fakeRuntime, loc Locator, opts ...Option) *Summarizer {
	t.Helper()
	reg := backend.NewRegistry()
	require.NoError(t, reg.Register(rt))

	return NewSummarizer(reg, loc, config.Default(), opts...)
}

func TestRun_StreamsSummary(t *testing.T) {
	m := &fakeModel{tokens: []string{"Short", " summary", "."}}
	rt := &fakeRuntime{model: m}
	loc := &fakeLocator{resolved: model.Resolved{Path: "/usr/lib/llama/x-chat.bin", Origin: model.OriginDiscovered}}
	var out bytes.Buffer

	s := setup(t, rt, loc, WithStdin(strings.NewReader("Long article")), WithStdout(&out))
	res, err := s.Run(context.Background(), Request{InputPath: "-"})
	require.NoError(t, err)

	assert.Equal(t, "Short summary.\n", out.String())
	assert.Equal(t, "/usr/lib/llama/x-chat.bin", rt.loadPath)
	assert.Equal(t, 2048, rt.params.ContextSize)
	assert.Equal(t, "[INST] <<SYS>>\nSummarize this\n<</SYS>>\n\nLong article\n[/INST]\n", m.req.Prompt)
	assert.Equal(t, 3, res.Tokens)
	assert.False(t, res.Stats.Halted)
	assert.Equal(t, model.OriginDiscovered, res.Model.Origin)
	assert.NotEmpty(t, res.RunID)
	assert.True(t, m.closed)
}

func TestRun_ExplicitPathSkipsLocator(t *testing.T) {
	rt := &fakeRuntime{model: &fakeModel{}}
	loc := &fakeLocator{err: model.ErrNotFound}

	s := setup(t, rt, loc, WithStdin(strings.NewReader("x")), WithStdout(&bytes.Buffer{}))
	res, err := s.Run(context.Background(), Request{ModelPath: "/m/custom.bin"})
	require.NoError(t, err)

	assert.Equal(t, 0, loc.calls)
	assert.Equal(t, model.Resolved{Path: "/m/custom.bin", Origin: model.OriginExplicit}, res.Model)
	assert.Equal(t, "/m/custom.bin", rt.loadPath)
}

func TestRun_ModelNotFound(t *testing.T) {
	rt := &fakeRuntime{model: &fakeModel{}}
	loc := &fakeLocator{err: model.ErrNotFound}

	_, err := setup(t, rt, loc).Run(context.Background(), Request{})
	require.ErrorIs(t, err, ErrModelNotFound)
	assert.ErrorIs(t, err, model.ErrNotFound)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageResolveModel, se.Stage)
	assert.Empty(t, rt.loadPath)
}

func TestRun_FetchFallback(t *testing.T) {
	rt := &fakeRuntime{model: &fakeModel{tokens: []string{"ok"}}}
	loc := &fakeLocator{err: model.ErrNotFound}

	s := setup(t, rt, loc,
		WithFetcher(&fakeFetcher{path: "/cache/org/m/m-chat.bin"}),
		WithStdin(strings.NewReader("x")),
		WithStdout(&bytes.Buffer{}),
	)
	res, err := s.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, model.Resolved{Path: "/cache/org/m/m-chat.bin", Origin: model.OriginDownloaded}, res.Model)
}

func TestRun_FetchFallbackFails(t *testing.T) {
	rt := &fakeRuntime{model: &fakeModel{}}
	loc := &fakeLocator{err: model.ErrNotFound}
	fetchErr := errors.New("offline")

	_, err := setup(t, rt, loc, WithFetcher(&fakeFetcher{err: fetchErr})).Run(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.ErrorIs(t, err, fetchErr)
}

func TestRun_LoadFailed(t *testing.T) {
	loadErr := errors.New("not a model")
	rt := &fakeRuntime{loadErr: loadErr}

	_, err := setup(t, rt, &fakeLocator{}).Run(context.Background(), Request{ModelPath: "/m/bad.bin"})
	require.ErrorIs(t, err, ErrModelLoadFailed)
	assert.ErrorIs(t, err, loadErr)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageLoadRuntime, se.Stage)
	assert.Equal(t, "/m/bad.bin", se.Path)
	assert.Contains(t, err.Error(), "/m/bad.bin")
}

func TestRun_UnknownProvider(t *testing.T) {
	reg := backend.NewRegistry()
	cfg := config.Default()
	cfg.Runtime.Provider = "other"

	_, err := NewSummarizer(reg, &fakeLocator{}, cfg).Run(context.Background(), Request{ModelPath: "/m/x.bin"})
	assert.ErrorIs(t, err, ErrModelLoadFailed)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestRun_InputReadFailed(t *testing.T) {
	m := &fakeModel{}
	rt := &fakeRuntime{model: m}
	missing := filepath.Join(t.TempDir(), "missing.txt")

	_, err := setup(t, rt, &fakeLocator{}).Run(context.Background(), Request{ModelPath: "/m/x.bin", InputPath: missing})
	require.ErrorIs(t, err, ErrInputReadFailed)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), missing)
	assert.Nil(t, m.req)
	assert.True(t, m.closed)
}

func TestRun_GenerationFailed(t *testing.T) {
	genErr := errors.New("exit status 1")
	rt := &fakeRuntime{model: &fakeModel{inferErr: genErr}}

	_, err := setup(t, rt, &fakeLocator{}, WithStdin(strings.NewReader("x")), WithStdout(&bytes.Buffer{})).
		Run(context.Background(), Request{ModelPath: "/m/x.bin"})
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, genErr)
}

func TestRun_OutputFailureHaltsWithoutError(t *testing.T) {
	m := &fakeModel{tokens: []string{"a", "b", "c", "d"}}
	rt := &fakeRuntime{model: m}
	w := &brokenWriter{limit: 2}
	mr := metrics.NewRun()

	res, err := setup(t, rt, &fakeLocator{}, WithStdin(strings.NewReader("x")), WithStdout(w), WithMetrics(mr)).
		Run(context.Background(), Request{ModelPath: "/m/x.bin"})
	require.NoError(t, err)

	assert.True(t, res.Stats.Halted)
	assert.Equal(t, 2, res.Tokens)
	assert.Equal(t, 3, m.calls)
	assert.Equal(t, "ab", w.buf.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(mr.HaltsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(mr.RunsTotal.WithLabelValues(metrics.ResultDone)))
}

func TestRun_EmptyInput(t *testing.T) {
	m := &fakeModel{}
	var out bytes.Buffer

	res, err := setup(t, &fakeRuntime{model: m}, &fakeLocator{}, WithStdin(strings.NewReader("")), WithStdout(&out)).
		Run(context.Background(), Request{ModelPath: "/m/x.bin"})
	require.NoError(t, err)

	assert.Equal(t, "[INST] <<SYS>>\nSummarize this\n<</SYS>>\n\n\n[/INST]\n", m.req.Prompt)
	assert.Equal(t, "\n", out.String())
	assert.Equal(t, 0, res.Tokens)
}

func TestRun_MetricsOnFailure(t *testing.T) {
	mr := metrics.NewRun()

	_, err := setup(t, &fakeRuntime{}, &fakeLocator{err: model.ErrNotFound}, WithMetrics(mr)).Run(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(mr.RunsTotal.WithLabelValues(metrics.ResultFailed)))
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "resolve model", StageResolveModel.String())
	assert.Equal(t, "done", StageDone.String())
	assert.Equal(t, "unknown", Stage(99).String())
}

func TestStageError_Error(t *testing.T) {
	err := stageError(StageAcquireInput, "in.txt", ErrInputReadFailed, errors.New("denied"))
	assert.Equal(t, "acquire input: in.txt: failed to read input: denied", err.Error())

	err = stageError(StageResolveModel, "", ErrModelNotFound, model.ErrNotFound)
	assert.Equal(t, "resolve model: model not found: failed to find any available llama models", err.Error())
}
