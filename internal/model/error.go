package model

import "errors"

// Error definitions for the model package.
var (
	ErrNotFound = errors.New("failed to find any available llama models")
)
