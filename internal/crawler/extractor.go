package crawler

import (
	"context"
	"errors"
	"strings"
	"time"

	"sjsage522/reviewworker/logger"
	apperrors "sjsage522/reviewworker/pkg/errors"
)

// Recorder receives crawl telemetry
type Recorder interface {
	PageCrawled()
	ReviewsExtracted(n int)
	ClickIntercepted()
	CrawlFinished(state string, pages int)
}

type nopRecorder struct{}

func (nopRecorder) PageCrawled()              {}
func (nopRecorder) ReviewsExtracted(int)      {}
func (nopRecorder) ClickIntercepted()         {}
func (nopRecorder) CrawlFinished(string, int) {}

// ExtractorOptions tunes the waits and limits of a crawl
type ExtractorOptions struct {
	// ContentTimeout bounds the wait for the first review body on each page
	ContentTimeout time.Duration
	// ClickTimeout bounds the wait for the next-page control to become clickable
	ClickTimeout time.Duration
	// PollInterval is the retry cadence of both waits
	PollInterval time.Duration
	// SettleDelay follows every pagination click
	SettleDelay time.Duration
	// PopupDelay follows a popup dismissal
	PopupDelay time.Duration
	// MaxPages stops the crawl after that many pages; 0 means no limit
	MaxPages int
	// RatingAttribute holds the rating value on the rating element
	RatingAttribute string
}

// DefaultExtractorOptions returns the stock timings
func DefaultExtractorOptions() ExtractorOptions {
	return ExtractorOptions{
		ContentTimeout:  10 * time.Second,
		ClickTimeout:    10 * time.Second,
		PollInterval:    500 * time.Millisecond,
		SettleDelay:     2 * time.Second,
		PopupDelay:      1 * time.Second,
		RatingAttribute: "data-score",
	}
}

// Extractor crawls every paginated review page of a target
type Extractor struct {
	newBrowser BrowserFactory
	opts       ExtractorOptions
	recorder   Recorder
	log        *logger.Logger
}

// NewExtractor creates an extractor. A nil recorder disables telemetry.
func NewExtractor(newBrowser BrowserFactory, opts ExtractorOptions, recorder Recorder) *Extractor {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if opts.RatingAttribute == "" {
		opts.RatingAttribute = DefaultExtractorOptions().RatingAttribute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultExtractorOptions().PollInterval
	}
	return &Extractor{
		newBrowser: newBrowser,
		opts:       opts,
		recorder:   recorder,
		log:        logger.ForExtractor(),
	}
}

// crawlSession is the mutable state of one crawl
type crawlSession struct {
	browser Browser
	roles   RoleAssignment
	body    string
	report  *CrawlReport
	log     *logger.Logger
}

// Crawl visits url and every page reachable through the next-page control,
// collecting reviews until no further page is reachable (DONE) or a page
// cannot be scraped (FAILED). Reviews gathered before a failure are kept.
// The browser session is released exactly once whichever way the crawl ends.
func (e *Extractor) Crawl(ctx context.Context, url string, roles RoleAssignment) *CrawlReport {
	start := time.Now()
	report := &CrawlReport{URL: url, State: StateLoadingPage, Reviews: []ReviewRecord{}}
	log := e.log.WithField("url", url)

	defer func() {
		report.Duration = time.Since(start)
		e.recorder.CrawlFinished(report.State.String(), report.Pages)

		event := log.Info()
		if report.State == StateFailed {
			event = log.Warn().Err(report.Cause)
		}
		event.
			Str("state", report.State.String()).
			Int("pages", report.Pages).
			Int("reviews", len(report.Reviews)).
			Dur("elapsed", report.Duration).
			Msg("Crawl finished")
	}()

	body, ok := roles.Selector(RoleBody)
	if !ok {
		log.Warn().Msg("No review selector assigned, nothing to crawl")
		report.State = StateDone
		return report
	}

	browser, err := e.newBrowser(ctx)
	if err != nil {
		report.State = StateFailed
		report.Cause = apperrors.NewBrowser(url, "failed to start browser session", err)
		return report
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close browser session")
		}
	}()

	s := &crawlSession{browser: browser, roles: roles, body: body, report: report, log: log}

	state := StateLoadingPage
	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			state = e.fail(s, apperrors.NewExtraction(url, "crawl cancelled", err))
			report.State = state
			break
		}

		switch state {
		case StateLoadingPage:
			state = e.loadPage(ctx, s)
		case StateWaitingForContent:
			state = e.waitForContent(ctx, s)
		case StateExtracting:
			state = e.extract(ctx, s)
		case StateAdvancing:
			state = e.advance(ctx, s)
		}
		report.State = state
	}

	return report
}

func (e *Extractor) fail(s *crawlSession, cause error) CrawlState {
	s.report.Cause = cause
	return StateFailed
}

// loadPage opens the target on the first cycle; later pages were already
// loaded by the pagination click. Popups are dismissed on every cycle.
func (e *Extractor) loadPage(ctx context.Context, s *crawlSession) CrawlState {
	if s.report.Pages == 0 {
		if err := s.browser.Navigate(ctx, s.report.URL); err != nil {
			return e.fail(s, apperrors.NewExtraction(s.report.URL, "failed to open page", err))
		}
	}

	dismissPopups(ctx, s.browser, e.opts.PopupDelay, s.log)
	return StateWaitingForContent
}

func (e *Extractor) waitForContent(ctx context.Context, s *crawlSession) CrawlState {
	err := waitPresent(ctx, s.browser, s.body, e.opts.ContentTimeout, e.opts.PollInterval)
	switch {
	case err == nil:
		return StateExtracting
	case errors.Is(err, ErrWaitTimeout):
		return e.fail(s, apperrors.NewContentTimeout(s.report.URL, s.body, e.opts.ContentTimeout))
	default:
		return e.fail(s, apperrors.NewExtraction(s.report.URL, "failed waiting for review content", err))
	}
}

func (e *Extractor) extract(ctx context.Context, s *crawlSession) CrawlState {
	source, err := s.browser.PageSource(ctx)
	if err != nil {
		return e.fail(s, apperrors.NewExtraction(s.report.URL, "failed to read page source", err))
	}

	doc, err := createDocument(strings.NewReader(source))
	if err != nil {
		return e.fail(s, apperrors.NewExtraction(s.report.URL, "failed to parse page source", err))
	}

	reviews := ExtractReviews(doc, s.roles, e.opts.RatingAttribute)
	s.report.Reviews = append(s.report.Reviews, reviews...)
	s.report.Pages++

	e.recorder.PageCrawled()
	e.recorder.ReviewsExtracted(len(reviews))
	s.log.Info().
		Int("page", s.report.Pages).
		Int("reviews", len(reviews)).
		Msg("Page scraped")

	if e.opts.MaxPages > 0 && s.report.Pages >= e.opts.MaxPages {
		s.log.Info().Int("max_pages", e.opts.MaxPages).Msg("Page limit reached")
		return StateDone
	}
	return StateAdvancing
}

// advance activates the next-page control. A missing or never-clickable
// control ends the crawl normally; an intercepted click is retried once as a
// coordinate click.
func (e *Extractor) advance(ctx context.Context, s *crawlSession) CrawlState {
	selector, ok := s.roles.Selector(RoleNextButton)
	if !ok {
		s.log.Info().Msg("No pagination selector assigned, no more pages")
		return StateDone
	}

	next, err := s.browser.FindElement(ctx, selector)
	if errors.Is(err, ErrNoSuchElement) {
		s.log.Info().Err(apperrors.NewPaginationAbsent(s.report.URL, selector)).
			Msg("No more pages to scrape or 'Next Page' button not found")
		return StateDone
	}
	if err != nil {
		return e.fail(s, apperrors.NewExtraction(s.report.URL, "failed to find next-page control", err))
	}

	if err := next.ScrollIntoView(ctx); err != nil {
		return e.fail(s, apperrors.NewExtraction(s.report.URL, "failed to scroll to next-page control", err))
	}

	clickable, err := waitClickable(ctx, s.browser, selector, e.opts.ClickTimeout, e.opts.PollInterval)
	if errors.Is(err, ErrWaitTimeout) {
		s.log.Info().Err(apperrors.NewPaginationAbsent(s.report.URL, selector)).
			Msg("Next-page control never became clickable, no more pages")
		return StateDone
	}
	if err != nil {
		return e.fail(s, apperrors.NewExtraction(s.report.URL, "failed waiting for next-page control", err))
	}

	err = clickable.Click(ctx)
	switch {
	case errors.Is(err, ErrClickIntercepted):
		e.recorder.ClickIntercepted()
		s.log.Warn().Int("page", s.report.Pages).Msg("Click intercepted, retrying at element coordinates")
		if err := next.ClickAtCenter(ctx); err != nil {
			return e.fail(s, apperrors.NewClickIntercepted(s.report.URL, "coordinate click on next-page control failed", err))
		}
	case err != nil:
		return e.fail(s, apperrors.NewExtraction(s.report.URL, "failed to click next-page control", err))
	}

	if err := sleep(ctx, e.opts.SettleDelay); err != nil {
		return e.fail(s, apperrors.NewExtraction(s.report.URL, "crawl cancelled", err))
	}
	return StateLoadingPage
}
