package worker

import (
	"context"
	"os"
	"sync"
	"time"

	"sjsage522/reviewworker/internal/crawler"
	"sjsage522/reviewworker/logger"
	apperrors "sjsage522/reviewworker/pkg/errors"
	"sjsage522/reviewworker/services/publisher"
)

// Runner crawls one URL end to end
type Runner interface {
	Crawl(ctx context.Context, url string) (*crawler.CrawlReport, error)
}

// Observer receives per-run telemetry
type Observer interface {
	IncErrorsTotal(errorType string)
	ObserveRun(d time.Duration)
}

type nopObserver struct{}

func (nopObserver) IncErrorsTotal(string)    {}
func (nopObserver) ObserveRun(time.Duration) {}

// Outcome is what happened to one URL
type Outcome struct {
	URL    string
	Result *crawler.Result
	State  crawler.CrawlState
	// Err is the fetch, parse or publish error, if any
	Err error
}

// Worker runs the pipeline over a batch of URLs and publishes every result
type Worker struct {
	runner      Runner
	publisher   publisher.Publisher
	observer    Observer
	concurrency int
	log         *logger.Logger
}

// NewWorker creates a worker crawling at most concurrency URLs at once
func NewWorker(runner Runner, pub publisher.Publisher, observer Observer, concurrency int) *Worker {
	if observer == nil {
		observer = nopObserver{}
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		runner:      runner,
		publisher:   pub,
		observer:    observer,
		concurrency: concurrency,
		log:         logger.ForWorker(),
	}
}

// Run processes urls and returns their outcomes in input order
func (w *Worker) Run(ctx context.Context, urls []string) []Outcome {
	start := time.Now()
	outcomes := make([]Outcome, len(urls))

	var wg sync.WaitGroup
	sem := make(chan struct{}, w.concurrency)
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				outcomes[i] = Outcome{URL: url, State: crawler.StateFailed, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()
			if err := ctx.Err(); err != nil {
				outcomes[i] = Outcome{URL: url, State: crawler.StateFailed, Err: err}
				return
			}
			outcomes[i] = w.crawlAndPublish(ctx, url)
		}(i, url)
	}
	wg.Wait()

	w.log.Info().
		Int("urls", len(urls)).
		Dur("elapsed", time.Since(start)).
		Msg("Batch finished")
	return outcomes
}

// crawlAndPublish crawls url and publishes whatever was collected
func (w *Worker) crawlAndPublish(ctx context.Context, url string) Outcome {
	start := time.Now()
	defer func() { w.observer.ObserveRun(time.Since(start)) }()

	log := w.log.WithField("url", url)

	report, err := w.runner.Crawl(ctx, url)
	if err != nil {
		w.observer.IncErrorsTotal(errorLabel(err))
		log.Error().Err(err).Msg("Failed to crawl")
		return Outcome{URL: url, State: crawler.StateFailed, Err: err}
	}
	if report.Cause != nil {
		w.observer.IncErrorsTotal(errorLabel(report.Cause))
	}

	result := crawler.NewResult(report.Reviews)
	outcome := Outcome{URL: url, Result: result, State: report.State}

	if err := w.publisher.Publish(ctx, url, result); err != nil {
		w.observer.IncErrorsTotal(string(apperrors.ErrorTypePublisher))
		log.Error().Err(err).Msg("Failed to publish")
		outcome.Err = err
	}

	if os.Getenv("REVIEW_ENVIRONMENT") != "production" && len(result.Reviews) > 0 {
		log.Debug().Interface("review", result.Reviews[0]).Msg("First review")
	}

	log.Info().
		Int("reviews", result.ReviewsCount).
		Str("state", report.State.String()).
		Dur("elapsed", time.Since(start)).
		Msg("Crawl published")
	return outcome
}

func errorLabel(err error) string {
	if t := apperrors.TypeOf(err); t != "" {
		return string(t)
	}
	return "unknown"
}
