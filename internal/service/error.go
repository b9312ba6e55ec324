package service

import (
	"errors"
	"fmt"
)

// Error kinds reported by Summarizer.Run. Match them with errors.Is.
var (
	ErrModelNotFound    = errors.New("model not found")
	ErrModelLoadFailed  = errors.New("failed to load model")
	ErrInputReadFailed  = errors.New("failed to read input")
	ErrGenerationFailed = errors.New("generation failed")
)

// StageError is the first failure of a run, annotated with the stage it
// happened in and the path involved, if any.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}

	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, path string, kind, cause error) *StageError {
	return &StageError{
		Stage: stage,
		Path:  path,
		Err:   fmt.Errorf("%w: %w", kind, cause),
	}
}
