package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"sjsage522/reviewworker/internal/crawler"
	apperrors "sjsage522/reviewworker/pkg/errors"
)

// Publisher hands a crawl result to a persistence target
type Publisher interface {
	// Publish stores the result crawled from url
	Publish(ctx context.Context, url string, result *crawler.Result) error

	// Close releases the publisher's resources
	Close() error
}

// Encode renders result as 4-space indented JSON, leaving non-ASCII text and
// HTML characters unescaped.
func Encode(result *crawler.Result) ([]byte, error) {
	if result == nil {
		result = crawler.NewResult(nil)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(result); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MultiPublisher fans a result out to several publishers
type MultiPublisher []Publisher

// Publish tries every publisher and joins their errors
func (m MultiPublisher) Publish(ctx context.Context, url string, result *crawler.Result) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, url, result); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return apperrors.NewPublisher(url, "failed to publish result", errors.Join(errs...))
	}
	return nil
}

func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
