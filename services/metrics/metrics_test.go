package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"sjsage522/reviewworker/internal/crawler"
)

// Metrics must satisfy the extractor's telemetry hook
var _ crawler.Recorder = (*Metrics)(nil)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.PageCrawled()
	m.PageCrawled()
	m.ReviewsExtracted(3)
	m.ReviewsExtracted(2)
	m.ClickIntercepted()
	m.CrawlFinished("DONE", 2)
	m.CrawlFinished("FAILED", 1)
	m.CrawlFinished("DONE", 4)
	m.IncErrorsTotal("fetch")
	m.ObserveRun(3 * time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesTotal))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ReviewsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClickInterceptions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CrawlsTotal.WithLabelValues("DONE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CrawlsTotal.WithLabelValues("FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("fetch")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PagesPerCrawl))
}

func TestNewMetricsSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
