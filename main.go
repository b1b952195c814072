package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"sjsage522/reviewworker/config"
	"sjsage522/reviewworker/helpers"
	"sjsage522/reviewworker/internal/classifier"
	"sjsage522/reviewworker/internal/crawler"
	"sjsage522/reviewworker/logger"
	apperrors "sjsage522/reviewworker/pkg/errors"
	"sjsage522/reviewworker/services/cache"
	"sjsage522/reviewworker/services/metrics"
	"sjsage522/reviewworker/services/publisher"
	"sjsage522/reviewworker/services/worker"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(urls []string) int {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: reviewworker <review-page-url> [more urls...]")
		return 2
	}

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(apperrors.NewConfiguration("invalid configuration", err)).Msg("Invalid configuration")
		return 1
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("classifier", cfg.ClassifierProvider).
		Str("model", cfg.ClassifierModel).
		Int("urls", len(urls)).
		Msg("Starting application")

	// Cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize services")
		return 1
	}
	defer services.Cleanup()

	pipeline := newPipeline(cfg, services)
	w := worker.NewWorker(pipeline, services.Publisher, services.Metrics, cfg.Concurrency)

	exitCode := 0
	for _, outcome := range w.Run(ctx, urls) {
		if outcome.Err != nil {
			exitCode = 1
			continue
		}
		fmt.Printf("%s: %d reviews (%s)\n", outcome.URL, outcome.Result.ReviewsCount, outcome.State)
	}

	log.Info().Msg("Shutting down gracefully...")
	return exitCode
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Metrics   *metrics.Metrics
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			logger.LogError("publisher", err, "Failed to close publisher")
		}
	}
}

// initializeServices initializes the cache, publishers and metrics
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Metrics
	registry := prometheus.NewRegistry()
	services.Metrics = metrics.NewMetrics(registry)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, registry); err != nil {
				logger.LogError("metrics", err, "Metrics server stopped")
			}
		}()
	}

	// Role cache, memcache when configured
	if cfg.MemcacheAddr != "" {
		memcacheService := cache.NewMemcacheService(cfg.MemcacheAddr, "reviewworker:")
		if err := memcacheService.Ping(); err != nil {
			logger.Warn("Memcache at %s unreachable, using in-process role cache: %v", cfg.MemcacheAddr, err)
			services.Cache = cache.NewMemoryCache()
		} else {
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
			services.Cache = memcacheService
		}
	} else {
		services.Cache = cache.NewMemoryCache()
	}

	// Publishers: the JSON file always, the Redis stream when configured
	publishers := publisher.MultiPublisher{publisher.NewFilePublisher(cfg.OutputFile)}
	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			redisPublisher.Close()
			return nil, apperrors.NewPublisher(cfg.RedisAddr, "failed to connect to redis", err)
		}
		publishers = append(publishers, redisPublisher)

		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}
	services.Publisher = publishers

	return services, nil
}

// newPipeline wires fetcher, classifier and extractor from cfg
func newPipeline(cfg *config.Config, services *Services) *crawler.Pipeline {
	var generator classifier.Generator
	switch cfg.ClassifierProvider {
	case config.ProviderAnthropic:
		generator = classifier.NewAnthropicGenerator(cfg.AnthropicAPIKey, option.WithRequestTimeout(cfg.ClassifierTimeout))
	default:
		generator = classifier.NewCohereGenerator(cfg.CohereAPIKey, cfg.CohereBaseURL, cfg.ClassifierTimeout)
	}

	roleClassifier := classifier.NewCachedClassifier(
		classifier.New(generator, cfg.ClassifierModel, cfg.ClassifierMaxTokens),
		services.Cache,
		cfg.RoleCacheTTL,
	)

	extractor := crawler.NewExtractor(
		crawler.NewChromeBrowserFactory(crawler.ChromeOptions{
			Headless: cfg.Headless,
			ExecPath: cfg.ChromePath,
		}),
		crawler.ExtractorOptions{
			ContentTimeout:  cfg.ContentTimeout,
			ClickTimeout:    cfg.ClickTimeout,
			PollInterval:    cfg.PollInterval,
			SettleDelay:     cfg.SettleDelay,
			PopupDelay:      cfg.PopupDelay,
			MaxPages:        cfg.MaxPages,
			RatingAttribute: cfg.RatingAttribute,
		},
		services.Metrics,
	)

	return crawler.NewPipeline(
		helpers.NewFetcher(cfg.FetchTimeout).WithCooldown(services.Cache, cfg.RateLimitBlock),
		roleClassifier,
		extractor,
	)
}
