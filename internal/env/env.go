// Package env identifies the environment summa is running in.
package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/summa/internal/envvar"
)

// Environment is the deployment flavour of the process.
type Environment string

const (
	// Development renders human-friendly, coloured logs.
	Development Environment = "development"

	// Production renders structured JSON logs.
	Production Environment = "production"
)

// FromEnv reads the environment from SUMMA_ENV, defaulting to Development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.SummaEnv))
}

// Parse maps a raw value to an Environment. Unknown values fall back to Development.
func Parse(raw string) Environment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return Production
	default:
		return Development
	}
}

// IsProduction reports whether the environment is Production.
func (e Environment) IsProduction() bool {
	return e == Production
}
