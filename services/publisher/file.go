package publisher

import (
	"context"
	"os"
	"path/filepath"

	"sjsage522/reviewworker/internal/crawler"
	"sjsage522/reviewworker/logger"
	apperrors "sjsage522/reviewworker/pkg/errors"
)

// DefaultOutputFile is where results land when no path is configured
const DefaultOutputFile = "reviews.json"

// FilePublisher writes each result to a JSON file, replacing earlier content
type FilePublisher struct {
	path string
	log  *logger.Logger
}

// NewFilePublisher creates a publisher writing to path
func NewFilePublisher(path string) *FilePublisher {
	if path == "" {
		path = DefaultOutputFile
	}
	return &FilePublisher{path: path, log: logger.ForPublisher()}
}

// Path returns the output file
func (p *FilePublisher) Path() string {
	return p.path
}

// Publish writes result through a temporary file so readers never see a
// partially written document.
func (p *FilePublisher) Publish(_ context.Context, url string, result *crawler.Result) error {
	if result == nil {
		result = crawler.NewResult(nil)
	}
	data, err := Encode(result)
	if err != nil {
		return apperrors.NewPublisher(url, "failed to encode result", err)
	}

	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, ".reviews-*.json")
	if err != nil {
		return apperrors.NewPublisher(url, "failed to create output file", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return apperrors.NewPublisher(url, "failed to set output file mode", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.NewPublisher(url, "failed to write output file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewPublisher(url, "failed to write output file", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return apperrors.NewPublisher(url, "failed to replace output file", err)
	}

	p.log.Info().
		Str("url", url).
		Str("path", p.path).
		Int("reviews", len(result.Reviews)).
		Msg("Saved reviews")
	return nil
}

func (p *FilePublisher) Close() error {
	return nil
}
