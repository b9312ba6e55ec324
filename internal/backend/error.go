package backend

import "errors"

// Error definitions for the backend package.
var (
	ErrNotFound          = errors.New("runtime not found in registry")
	ErrAlreadyRegistered = errors.New("runtime is already registered in the registry")
	ErrInvalidContext    = errors.New("invalid context size exponent")
)
