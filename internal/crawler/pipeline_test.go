package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sjsage522/reviewworker/pkg/errors"
)

type stubClassifier struct {
	roles    RoleAssignment
	received map[string]string
}

func (c *stubClassifier) Classify(_ context.Context, selectors map[string]string) RoleAssignment {
	c.received = selectors
	return c.roles
}

func TestPipelineRun(t *testing.T) {
	first := reviewPage("enabled", "a", "b")
	fetcher := &stubFetcher{body: first}
	classifier := &stubClassifier{roles: fixtureRoles()}
	browser := newFakeBrowser(first, reviewPage("", "c"))
	pipeline := NewPipeline(fetcher, classifier, NewExtractor(browser.factory(), testExtractorOptions(), nil))

	result, err := pipeline.Run(context.Background(), fixtureURL)

	require.NoError(t, err)
	assert.Equal(t, 3, result.ReviewsCount)
	assert.Equal(t, []string{"a", "b", "c"}, titlesOf(result.Reviews))
	assert.Contains(t, classifier.received, ".review-body")
	assert.Equal(t, 1, browser.closeCalls)
}

func TestPipelineRunFetchError(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("no route to host")}
	classifier := &stubClassifier{roles: fixtureRoles()}
	browser := newFakeBrowser(reviewPage("", "a"))
	pipeline := NewPipeline(fetcher, classifier, NewExtractor(browser.factory(), testExtractorOptions(), nil))

	result, err := pipeline.Run(context.Background(), fixtureURL)

	assert.Nil(t, result)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeFetch))
	assert.Nil(t, classifier.received)
	assert.Empty(t, browser.navigated)
}

func TestPipelineRunUnusableClassification(t *testing.T) {
	page := reviewPage("", "a")
	classifier := &stubClassifier{roles: AbsentRoles()}
	browser := newFakeBrowser(page)
	pipeline := NewPipeline(&stubFetcher{body: page}, classifier, NewExtractor(browser.factory(), testExtractorOptions(), nil))

	result, err := pipeline.Run(context.Background(), fixtureURL)

	require.NoError(t, err)
	assert.Equal(t, 0, result.ReviewsCount)
	assert.NotNil(t, result.Reviews)
}

func TestPipelineRunKeepsPartialResults(t *testing.T) {
	page := reviewPage("enabled", "a")
	browser := newFakeBrowser(page, "<html><body></body></html>")
	pipeline := NewPipeline(&stubFetcher{body: page}, &stubClassifier{roles: fixtureRoles()},
		NewExtractor(browser.factory(), testExtractorOptions(), nil))

	report, err := pipeline.Crawl(context.Background(), fixtureURL)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, report.State)

	result := NewResult(report.Reviews)
	assert.Equal(t, 1, result.ReviewsCount)
}
