package llama

import (
	"fmt"
	"io"
	"os"
)

// Format is a weight file container format.
type Format string

const (
	FormatGGUF Format = "gguf"
	FormatGGJT Format = "ggjt"
	FormatGGMF Format = "ggmf"
	FormatGGML Format = "ggml"
)

// Magic numbers as they appear on disk (little-endian uint32 for the ggml family).
var magics = map[string]Format{
	"GGUF": FormatGGUF,
	"tjgg": FormatGGJT,
	"fmgg": FormatGGMF,
	"lmgg": FormatGGML,
}

// DetectFormat reads the file header and identifies the container format.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return "", fmt.Errorf("%w: %s: short header: %w", ErrNotAModel, path, err)
	}

	format, ok := magics[string(magic[:])]
	if !ok {
		return "", fmt.Errorf("%w: %s: unknown magic %q", ErrNotAModel, path, magic[:])
	}

	return format, nil
}
