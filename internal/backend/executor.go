package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// CommandRunner is the interface for running commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error)
	Start(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr io.ReadCloser, wait func() error, err error)
}

// ExecCommandRunner uses os/exec.
type ExecCommandRunner struct{}

// Run runs a command.
func (ExecCommandRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Start starts a command.
func (ExecCommandRunner) Start(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr io.ReadCloser, wait func() error, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, err
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, nil, err
	}

	return stdoutPipe, stderrPipe, cmd.Wait, nil
}

// Executor runs one external binary.
type Executor struct {
	runner     CommandRunner
	binaryPath string
	timeout    time.Duration
}

// NewExecutor creates an executor. binary may be a path or a name looked up
// in PATH. A zero timeout disables the deadline.
func NewExecutor(binary string, timeout time.Duration) (*Executor, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("binary not found: %w", err)
	}

	return &Executor{
		binaryPath: path,
		timeout:    timeout,
		runner:     ExecCommandRunner{},
	}, nil
}

// NewExecutorWithRunner creates an executor with a custom runner.
func NewExecutorWithRunner(binaryPath string, timeout time.Duration, runner CommandRunner) *Executor {
	return &Executor{
		binaryPath: binaryPath,
		timeout:    timeout,
		runner:     runner,
	}
}

// BinaryPath returns the resolved binary path.
func (e *Executor) BinaryPath() string {
	return e.binaryPath
}

// Execute runs the command to completion and returns its output.
func (e *Executor) Execute(ctx context.Context, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	return e.runner.Run(ctx, e.binaryPath, args, stdin)
}

// Start launches the command and hands its stdout to the caller. Stderr is
// drained in the background into Process.Stderr.
func (e *Executor) Start(ctx context.Context, args []string, stdin io.Reader) (*Process, error) {
	ctx, cancel := e.withTimeout(ctx)

	stdout, stderr, wait, err := e.runner.Start(ctx, e.binaryPath, args, stdin)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("executor: failed to start command: %w", err)
	}

	p := &Process{
		Stdout:     stdout,
		wait:       wait,
		cancel:     cancel,
		stderrDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stderrDone)
		if _, err := io.Copy(&p.stderr, stderr); err != nil {
			slog.Debug("Failed to read stderr", "error", err)
		}
	}()

	return p, nil
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, e.timeout)
}

// Process is a running command started by Executor.Start.
type Process struct {
	// Stdout is the command's standard output. Read it on one goroutine only.
	Stdout io.Reader

	wait       func() error
	cancel     context.CancelFunc
	stderrDone chan struct{}
	stderr     lockedBuffer
	waitOnce   sync.Once
	waitErr    error
}

// Cancel kills the command. Wait must still be called.
func (p *Process) Cancel() {
	p.cancel()
}

// Wait waits for stderr to drain and the command to exit.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		<-p.stderrDone
		p.waitErr = p.wait()
		p.cancel()
	})

	return p.waitErr
}

// Stderr returns everything the command wrote to stderr so far.
func (p *Process) Stderr() string {
	return p.stderr.String()
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
