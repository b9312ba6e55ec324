// Package source fetches model weights from remote repositories.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ekisa-team/summa/internal/backend"
	"github.com/ekisa-team/summa/internal/config"
)

const (
	// DefaultBinary is the Hugging Face CLI.
	DefaultBinary = "hf"

	// DefaultTimeout bounds a single download attempt.
	DefaultTimeout = 5 * time.Minute

	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	markerFilename    = ".summa-downloaded"
)

// HuggingFaceDownloader downloads a model from Hugging Face with the hf CLI.
type HuggingFaceDownloader struct {
	executor   *backend.Executor
	retryDelay time.Duration
	maxRetries int
}

// NewHuggingFaceDownloader creates a downloader that runs the hf CLI through executor.
func NewHuggingFaceDownloader(executor *backend.Executor) *HuggingFaceDownloader {
	return &HuggingFaceDownloader{
		executor:   executor,
		retryDelay: defaultRetryDelay,
		maxRetries: defaultMaxRetries,
	}
}

// Download downloads the configured repository into targetDir/<repo> and
// returns that directory. The boolean reports whether a previous download
// was reused.
func (d *HuggingFaceDownloader) Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error) {
	source, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	hfSource, ok := source.(config.HuggingFaceSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", source)
	}

	repo := strings.TrimSpace(hfSource.Repo)
	if repo == "" || strings.Contains(repo, "..") {
		return "", false, fmt.Errorf("invalid repo name: %q", repo)
	}

	fullPath := filepath.Join(targetDir, repo)
	markerPath := filepath.Join(fullPath, markerFilename)
	markerContent := d.markerContent(repo, hfSource.Revision, hfSource.Include)

	if !hfSource.ForceDownload {
		if _, err := os.Stat(markerPath); err == nil && !d.shouldRedownload(markerPath, markerContent) {
			slog.Info("Model already downloaded and up-to-date (marker match), skipping", "repo", repo, "path", fullPath)
			return fullPath, true, nil
		}
	}

	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create directory: %w", err)
	}

	args := downloadArgs(hfSource, repo, fullPath)

	var lastErr error
	for attempt := range d.maxRetries {
		if attempt > 0 {
			slog.Info("Retrying download", "repo", repo, "attempt", attempt+1, "last_error", lastErr)
			if err := sleep(ctx, d.retryDelay); err != nil {
				return "", false, fmt.Errorf("download canceled: %w", err)
			}
		} else {
			slog.Info("Downloading model", "repo", repo, "path", fullPath)
		}

		_, stderr, err := d.executor.Execute(ctx, args, nil)
		if err == nil {
			if err := os.WriteFile(markerPath, []byte(markerContent), 0o644); err != nil {
				slog.Warn("Failed to write download marker", "path", markerPath, "error", err)
			}

			slog.Info("Model downloaded successfully", "repo", repo, "path", fullPath, "attempt", attempt+1)
			return fullPath, false, nil
		}

		if ctx.Err() != nil {
			return "", false, fmt.Errorf("download canceled: %w", ctx.Err())
		}

		lastErr = err
		slog.Error("Failed to download model", "repo", repo, "attempt", attempt+1, "error", err, "output", strings.TrimSpace(string(stderr)))
	}

	return "", false, fmt.Errorf("failed to download %s after %d attempts: %w", repo, d.maxRetries, lastErr)
}

func downloadArgs(src config.HuggingFaceSource, repo, dir string) []string {
	args := []string{"download", repo, "--local-dir", dir}

	if src.Revision != "" {
		args = append(args, "--revision", src.Revision)
	}
	for _, inc := range src.Include {
		args = append(args, "--include", inc)
	}
	if src.ForceDownload {
		args = append(args, "--force-download")
	}
	if src.Token != "" {
		args = append(args, "--token", src.Token)
	}

	return args
}

// markerContent generates the expected content of the marker file.
// A different marker means the source config changed since the last download.
func (d *HuggingFaceDownloader) markerContent(repo, revision string, include []string) string {
	return fmt.Sprintf("repo: %s\nrevision: %s\ninclude: %s\n", repo, revision, strings.Join(include, ","))
}

func (d *HuggingFaceDownloader) shouldRedownload(markerPath, expectedContent string) bool {
	content, err := os.ReadFile(markerPath)
	if err != nil {
		slog.Debug("Marker file missing or unreadable", "path", markerPath, "error", err)
		return true
	}

	if string(content) != expectedContent {
		slog.Info("Model config changed (marker mismatch), will redownload", "marker_path", markerPath)
		return true
	}

	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
