package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sjsage522/reviewworker/logger"
)

// Metrics holds the crawler's Prometheus collectors
type Metrics struct {
	PagesTotal         prometheus.Counter
	ReviewsTotal       prometheus.Counter
	ClickInterceptions prometheus.Counter
	CrawlsTotal        *prometheus.CounterVec
	PagesPerCrawl      prometheus.Histogram
	ErrorsTotal        *prometheus.CounterVec
	RunDuration        prometheus.Histogram
}

// NewMetrics registers the collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reviewworker_pages_crawled_total",
			Help: "The total number of review pages scraped",
		}),
		ReviewsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reviewworker_reviews_extracted_total",
			Help: "The total number of reviews extracted",
		}),
		ClickInterceptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "reviewworker_click_intercepted_total",
			Help: "Pagination clicks that fell back to a coordinate click",
		}),
		CrawlsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewworker_crawls_total",
			Help: "Finished crawls by terminal state",
		}, []string{"state"}),
		PagesPerCrawl: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reviewworker_pages_per_crawl",
			Help:    "Pages visited per crawl",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewworker_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reviewworker_run_duration_seconds",
			Help:    "Duration of a full pipeline run for one URL",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (m *Metrics) PageCrawled() {
	m.PagesTotal.Inc()
}

func (m *Metrics) ReviewsExtracted(n int) {
	m.ReviewsTotal.Add(float64(n))
}

func (m *Metrics) ClickIntercepted() {
	m.ClickInterceptions.Inc()
}

func (m *Metrics) CrawlFinished(state string, pages int) {
	m.CrawlsTotal.WithLabelValues(state).Inc()
	m.PagesPerCrawl.Observe(float64(pages))
}

// IncErrorsTotal counts an error of errorType
func (m *Metrics) IncErrorsTotal(errorType string) {
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveRun records how long one URL took end to end
func (m *Metrics) ObserveRun(d time.Duration) {
	m.RunDuration.Observe(d.Seconds())
}

// Serve exposes gatherer on addr at /metrics until ctx ends
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	log := logger.ForWorker().WithField("addr", addr)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Msg("Serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
