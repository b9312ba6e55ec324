package llama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ekisa-team/summa/internal/backend"
)

const (
	readBufferSize = 4096
	stderrTailSize = 2048
)

// Model is a weight file bound to a llama-cli executor.
type Model struct {
	executor *backend.Executor
	path     string
	format   Format
	params   backend.ModelParameters
}

// Path returns the weight file path.
func (m *Model) Path() string {
	return m.path
}

// Format returns the detected container format.
func (m *Model) Format() Format {
	return m.format
}

// Infer runs llama-cli and feeds each chunk of its stdout to fn as a token.
// A chunk never splits a UTF-8 sequence. With PlayBackPreviousTokens, the
// leading stdout bytes that echo req.Prompt are reported as prompt tokens.
// The echo is the detokenized prompt, so the boundary tolerates whitespace
// differences and is otherwise byte exact; see echoMatcher.
func (m *Model) Infer(ctx context.Context, rng *rand.Rand, req *backend.InferenceRequest, out *backend.OutputRequest, fn backend.TokenFunc) (*backend.InferenceStats, error) {
	var seed uint32
	if rng != nil {
		seed = rng.Uint32()
	} else {
		seed = rand.Uint32()
	}

	args := buildArgs(m.path, m.params, req, seed)
	slog.Debug("Starting llama-cli", "binary", m.executor.BinaryPath(), "seed", seed, "max_tokens", req.MaxTokens)

	start := time.Now()
	proc, err := m.executor.Start(ctx, args, strings.NewReader(req.Prompt))
	if err != nil {
		return nil, err
	}

	var echo echoMatcher
	if req.PlayBackPreviousTokens {
		echo.rest = req.Prompt
	}

	var (
		firstInferred time.Time
		inferred      int
		halted        bool
		readErr       error
	)

	emit := func(kind backend.TokenKind, text string) bool {
		if kind == backend.TokenKindInferred {
			if inferred == 0 {
				firstInferred = time.Now()
			}
			inferred++
		}

		return fn(backend.TokenEvent{Kind: kind, Text: text}) == backend.Continue
	}

	frags := newFragmentReader(proc.Stdout)
	for !halted {
		frag, err := frags.Next()
		if frag != "" {
			if n := echo.split(frag); n > 0 {
				if !emit(backend.TokenKindPrompt, frag[:n]) {
					halted = true
					break
				}
				frag = frag[n:]
			}
			if frag != "" && !emit(backend.TokenKindInferred, frag) {
				halted = true
				break
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			break
		}
	}

	if halted || readErr != nil {
		proc.Cancel()
	}
	waitErr := proc.Wait()
	end := time.Now()

	stderr := proc.Stderr()
	if out != nil && out.Diagnostics != nil {
		if _, err := io.WriteString(out.Diagnostics, stderr); err != nil {
			slog.Debug("Failed to copy runtime diagnostics", "error", err)
		}
	}

	if !halted {
		if err := errors.Join(readErr, waitErr); err != nil {
			return nil, fmt.Errorf("%w: %w: %s", ErrGeneration, err, tail(stderr, stderrTailSize))
		}
	}

	stats := &backend.InferenceStats{Halted: halted, PredictTokens: inferred}
	if inferred > 0 {
		stats.FeedPromptDuration = firstInferred.Sub(start)
		stats.PredictDuration = end.Sub(firstInferred)
	} else {
		stats.FeedPromptDuration = end.Sub(start)
	}
	applyPerf(stats, parsePerf(stderr))

	return stats, nil
}

// Close releases the model. llama-cli exits after every generation, so there
// is nothing to free.
func (m *Model) Close() error {
	return nil
}

// fragmentReader yields stdout chunks cut on UTF-8 boundaries.
type fragmentReader struct {
	r       io.Reader
	buf     []byte
	pending []byte
}

func newFragmentReader(r io.Reader) *fragmentReader {
	return &fragmentReader{
		r:   r,
		buf: make([]byte, readBufferSize),
	}
}

// Next returns the next fragment. At EOF any incomplete trailing sequence is
// flushed as-is together with io.EOF.
func (f *fragmentReader) Next() (string, error) {
	n, err := f.r.Read(f.buf)
	data := append(f.pending, f.buf[:n]...)
	f.pending = nil

	if err != nil {
		return string(data), err
	}

	cut := utf8Boundary(data)
	if cut < len(data) {
		f.pending = append([]byte(nil), data[cut:]...)
	}

	return string(data[:cut]), nil
}

// utf8Boundary returns the length of the longest prefix of b that does not
// end in an incomplete UTF-8 sequence.
func utf8Boundary(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}

	return len(b)
}

// echoMatcher finds the end of llama-cli's prompt echo. Whitespace may be
// added or dropped by detokenization (a leading space, the trailing newline);
// any other mismatch ends the echo.
type echoMatcher struct {
	rest string
}

// split returns how many leading bytes of frag belong to the echo.
func (e *echoMatcher) split(frag string) int {
	i := 0
	for i < len(frag) && e.rest != "" {
		switch {
		case frag[i] == e.rest[0]:
			i++
			e.rest = e.rest[1:]
		case isSpace(e.rest[0]):
			e.rest = e.rest[1:]
		case isSpace(frag[i]):
			i++
		default:
			e.rest = ""
		}
	}

	return utf8Boundary([]byte(frag[:i]))
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}

	return "..." + s[len(s)-n:]
}
