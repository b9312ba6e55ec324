// Package input reads the text to summarize.
package input

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// ErrInvalidUTF8 is returned when the input is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("input is not valid utf-8")

// Read buffers the whole input from path, or from stdin when path is empty
// or "-", and validates it as UTF-8.
func Read(path string, stdin io.Reader) (string, error) {
	if path == "" || path == Stdin {
		return readAll(stdin, "stdin")
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	return readAll(f, path)
}

func readAll(r io.Reader, name string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrInvalidUTF8, name)
	}

	return string(data), nil
}
