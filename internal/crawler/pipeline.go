package crawler

import (
	"context"
	"time"

	"sjsage522/reviewworker/logger"
)

// RoleClassifier assigns review roles to candidate selectors. It never fails:
// any problem yields the all-absent assignment.
type RoleClassifier interface {
	Classify(ctx context.Context, selectors map[string]string) RoleAssignment
}

// Pipeline chains mining, classification and extraction for one URL
type Pipeline struct {
	fetcher    PageFetcher
	classifier RoleClassifier
	extractor  *Extractor
	log        *logger.Logger
}

// NewPipeline creates a pipeline from its three stages
func NewPipeline(fetcher PageFetcher, classifier RoleClassifier, extractor *Extractor) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		classifier: classifier,
		extractor:  extractor,
		log:        logger.ForWorker(),
	}
}

// Run crawls url end to end. Only a failed fetch or parse of the target is
// returned as an error; a crawl that ends in FAILED still yields the reviews
// gathered so far.
func (p *Pipeline) Run(ctx context.Context, url string) (*Result, error) {
	report, err := p.Crawl(ctx, url)
	if err != nil {
		return nil, err
	}
	return NewResult(report.Reviews), nil
}

// Crawl is Run but returns the full crawl report
func (p *Pipeline) Crawl(ctx context.Context, url string) (*CrawlReport, error) {
	start := time.Now()
	log := p.log.WithField("url", url)

	selectors, err := MinePage(ctx, p.fetcher, url)
	if err != nil {
		return nil, err
	}

	roles := p.classifier.Classify(ctx, selectors)
	if roles.IsAbsent() {
		log.Warn().Msg("Classifier assigned no roles")
	}

	report := p.extractor.Crawl(ctx, url, roles)

	log.Info().
		Int("selectors", len(selectors)).
		Int("reviews", len(report.Reviews)).
		Str("state", report.State.String()).
		Dur("elapsed", time.Since(start)).
		Msg("Pipeline finished")

	return report, nil
}
