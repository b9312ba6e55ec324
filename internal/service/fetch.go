package service

import (
	"context"
	"fmt"

	"github.com/ekisa-team/summa/internal/config"
	"github.com/ekisa-team/summa/internal/model"
)

// Downloader fetches a model repository into targetDir and returns the
// directory holding it.
type Downloader interface {
	Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error)
}

// DownloadFetcher downloads the configured repository and picks a weight
// file from it with the configured suffix and marker.
type DownloadFetcher struct {
	Downloader Downloader
	Model      *config.ModelConfig
	TargetDir  string
}

// Fetch implements Fetcher.
func (f *DownloadFetcher) Fetch(ctx context.Context) (string, error) {
	dir, _, err := f.Downloader.Download(ctx, f.Model, f.TargetDir)
	if err != nil {
		return "", err
	}

	l := &model.Locator{
		Locations:      []string{dir},
		Suffix:         f.Model.Suffix,
		Marker:         f.Model.Marker,
		SortCandidates: f.Model.SortCandidates,
	}

	path, err := l.Find()
	if err != nil {
		return "", fmt.Errorf("no model in download %s: %w", dir, err)
	}

	return path, nil
}
