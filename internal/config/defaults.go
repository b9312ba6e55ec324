package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/ekisa-team/summa/internal/envvar"
)

// ConfigFileName is the file looked up inside DefaultConfigPath.
const ConfigFileName = "config.yaml"

// DefaultConfigPath returns the default path for the summa config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "summa", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "summa")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "summa")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "summa")
		}
		return filepath.Join(home, ".config", "summa")
	}
}

// DefaultConfigFile returns the config file path, honoring SUMMA_CONFIG.
func DefaultConfigFile() string {
	if p := os.Getenv(envvar.SummaConfig); p != "" {
		return p
	}

	return filepath.Join(DefaultConfigPath(), ConfigFileName)
}

// DefaultModelsPath returns the models cache directory, honoring SUMMA_MODELS_PATH.
func DefaultModelsPath() string {
	if p := os.Getenv(envvar.SummaModelsPath); p != "" {
		return p
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "summa", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "summa", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "summa", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "summa", "models")
		}
		return filepath.Join(home, ".cache", "summa", "models")
	}
}
