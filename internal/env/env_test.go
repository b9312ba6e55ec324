package env

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekisa-team/summa/internal/envvar"
)

func TestParse(t *testing.T) {
	tests := map[string]Environment{
		"":            Development,
		"development": Development,
		"dev":         Development,
		"prod":        Production,
		"Production":  Production,
		" production": Production,
		"staging":     Development,
	}

	for raw, want := range tests {
		assert.Equal(t, want, Parse(raw), "raw=%q", raw)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(envvar.SummaEnv, "production")
	assert.True(t, FromEnv().IsProduction())

	t.Setenv(envvar.SummaEnv, "")
	assert.False(t, FromEnv().IsProduction())
}
