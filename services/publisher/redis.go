package publisher

import (
	"context"
	"encoding/base64"

	"github.com/redis/go-redis/v9"

	"sjsage522/reviewworker/internal/crawler"
	"sjsage522/reviewworker/logger"
	apperrors "sjsage522/reviewworker/pkg/errors"
)

// RedisPublisher appends results to a Redis stream
type RedisPublisher struct {
	client    *redis.Client
	stream    string
	maxLength int64
	log       *logger.Logger
}

// NewRedisPublisher creates a publisher for stream. A positive maxLength caps
// the stream approximately at that many entries.
func NewRedisPublisher(addr string, db int, stream string, maxLength int64) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:    client,
		stream:    stream,
		maxLength: maxLength,
		log:       logger.ForPublisher(),
	}
}

// Ping checks the connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish adds one stream entry per result. The JSON document is base64
// encoded under b64_reviews so consumers receive it byte for byte.
func (p *RedisPublisher) Publish(ctx context.Context, url string, result *crawler.Result) error {
	if result == nil {
		result = crawler.NewResult(nil)
	}
	data, err := Encode(result)
	if err != nil {
		return apperrors.NewPublisher(url, "failed to encode result", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"url":           url,
			"reviews_count": result.ReviewsCount,
			"b64_reviews":   base64.StdEncoding.EncodeToString(data),
		},
	}
	if p.maxLength > 0 {
		args.MaxLen = p.maxLength
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return apperrors.NewPublisher(url, "failed to add stream entry", err)
	}

	p.log.Info().
		Str("url", url).
		Str("stream", p.stream).
		Str("id", id).
		Msg("Published reviews")
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
