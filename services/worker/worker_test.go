package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/reviewworker/internal/crawler"
	apperrors "sjsage522/reviewworker/pkg/errors"
	"sjsage522/reviewworker/services/publisher"
)

// MockRunner returns canned reports per URL
type MockRunner struct {
	mu      sync.Mutex
	reports map[string]*crawler.CrawlReport
	errs    map[string]error
	calls   []string
}

func (m *MockRunner) Crawl(_ context.Context, url string) (*crawler.CrawlReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)
	if err := m.errs[url]; err != nil {
		return nil, err
	}
	return m.reports[url], nil
}

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu      sync.Mutex
	results map[string]*crawler.Result
	err     error
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{results: make(map[string]*crawler.Result)}
}

func (m *MockPublisher) Publish(_ context.Context, url string, result *crawler.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.results[url] = result
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// MockObserver records error labels
type MockObserver struct {
	mu     sync.Mutex
	errors []string
	runs   int
}

func (m *MockObserver) IncErrorsTotal(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, errorType)
}

func (m *MockObserver) ObserveRun(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
}

func reviews(titles ...string) []crawler.ReviewRecord {
	out := make([]crawler.ReviewRecord, 0, len(titles))
	for _, title := range titles {
		out = append(out, crawler.ReviewRecord{Title: title, Body: title, Rating: "5", Reviewer: "r"})
	}
	return out
}

func TestWorkerRun(t *testing.T) {
	runner := &MockRunner{
		reports: map[string]*crawler.CrawlReport{
			"https://a.example.com": {Reviews: reviews("a1", "a2"), Pages: 1, State: crawler.StateDone},
			"https://b.example.com": {
				Reviews: reviews("b1"),
				Pages:   1,
				State:   crawler.StateFailed,
				Cause:   apperrors.NewContentTimeout("https://b.example.com", ".review", time.Second),
			},
		},
		errs: map[string]error{
			"https://c.example.com": apperrors.NewFetch("https://c.example.com", "failed to fetch page", errors.New("404")),
		},
	}
	pub := NewMockPublisher()
	observer := &MockObserver{}
	w := NewWorker(runner, pub, observer, 2)

	urls := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}
	outcomes := w.Run(context.Background(), urls)

	require.Len(t, outcomes, 3)
	for i, url := range urls {
		assert.Equal(t, url, outcomes[i].URL)
	}

	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, 2, outcomes[0].Result.ReviewsCount)
	assert.Equal(t, crawler.StateDone, outcomes[0].State)

	// A failed crawl still publishes what it collected
	assert.NoError(t, outcomes[1].Err)
	assert.Equal(t, crawler.StateFailed, outcomes[1].State)
	assert.Equal(t, 1, pub.results["https://b.example.com"].ReviewsCount)

	// A fetch failure publishes nothing
	assert.True(t, apperrors.IsType(outcomes[2].Err, apperrors.ErrorTypeFetch))
	assert.Nil(t, outcomes[2].Result)
	assert.NotContains(t, pub.results, "https://c.example.com")

	assert.ElementsMatch(t, []string{"content_timeout", "fetch"}, observer.errors)
	assert.Equal(t, 3, observer.runs)
}

func TestWorkerPublishError(t *testing.T) {
	runner := &MockRunner{reports: map[string]*crawler.CrawlReport{
		"u": {Reviews: reviews("x"), State: crawler.StateDone},
	}}
	pub := NewMockPublisher()
	pub.err = apperrors.NewPublisher("u", "failed to add stream entry", errors.New("connection refused"))
	observer := &MockObserver{}

	outcomes := NewWorker(runner, pub, observer, 1).Run(context.Background(), []string{"u"})

	require.Len(t, outcomes, 1)
	assert.True(t, apperrors.IsType(outcomes[0].Err, apperrors.ErrorTypePublisher))
	assert.Equal(t, []string{"publisher"}, observer.errors)
}

func TestWorkerCancelled(t *testing.T) {
	runner := &MockRunner{reports: map[string]*crawler.CrawlReport{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := NewWorker(runner, NewMockPublisher(), nil, 1).Run(ctx, []string{"u1", "u2", "u3"})

	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err, context.Canceled)
		assert.Equal(t, crawler.StateFailed, o.State)
	}
	assert.Empty(t, runner.calls)
}
