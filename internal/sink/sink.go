// Package sink streams generated tokens to an output writer.
package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ekisa-team/summa/internal/backend"
	"github.com/ekisa-team/summa/internal/logger"
)

// Flusher is implemented by buffered writers.
type Flusher interface {
	Flush() error
}

// Sink writes each token as it arrives and asks the runtime to halt on the
// first write or flush failure. It is not safe for concurrent use; runtimes
// call it from their generation loop only.
type Sink struct {
	w       io.Writer
	err     error
	written int
	bytes   int64
	counts  map[backend.TokenKind]int
}

// New creates a sink over w.
func New(w io.Writer) *Sink {
	return &Sink{
		w:      w,
		counts: make(map[backend.TokenKind]int),
	}
}

// OnToken writes and flushes ev.Text. It returns Halt once the output has
// failed and never surfaces the error to the caller; see Err.
func (s *Sink) OnToken(ev backend.TokenEvent) backend.Feedback {
	if s.err != nil {
		return backend.Halt
	}

	n, err := io.WriteString(s.w, ev.Text)
	s.bytes += int64(n)
	if err == nil && n < len(ev.Text) {
		err = io.ErrShortWrite
	}
	if err != nil {
		s.err = fmt.Errorf("write token: %w", err)
		slog.Debug("Output write failed, halting generation", "error", err)
		return backend.Halt
	}

	if f, ok := s.w.(Flusher); ok {
		if err := f.Flush(); err != nil {
			s.err = fmt.Errorf("flush token: %w", err)
			slog.Debug("Output flush failed, halting generation", "error", err)
			return backend.Halt
		}
	}

	s.written++
	s.counts[ev.Kind]++
	slog.Log(context.Background(), logger.LevelTrace, "Token", "kind", ev.Kind, "text", ev.Text)

	return backend.Continue
}

// Err returns the output failure that caused a halt, if any.
func (s *Sink) Err() error {
	return s.err
}

// Written returns the number of tokens successfully written and flushed.
func (s *Sink) Written() int {
	return s.written
}

// Count returns the number of successfully written tokens of kind k.
func (s *Sink) Count(k backend.TokenKind) int {
	return s.counts[k]
}

// Bytes returns the number of bytes accepted by the writer.
func (s *Sink) Bytes() int64 {
	return s.bytes
}
