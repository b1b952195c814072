package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/reviewworker/internal/crawler"
)

// This test requires a running Redis instance
// If Redis is not available, the test will be skipped
func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	stream := "test_stream_reviews"
	publisher := NewRedisPublisher("localhost:6379", 0, stream, 100)
	defer publisher.Close()

	if err := publisher.Ping(ctx); err != nil {
		t.Skip("Redis is not available, skipping test")
	}
	require.NoError(t, publisher.client.Del(ctx, stream).Err())

	result := crawler.NewResult([]crawler.ReviewRecord{
		{Title: "Great", Body: "Loved it", Rating: "5", Reviewer: "Kim"},
	})
	err := publisher.Publish(ctx, "https://shop.example.com/p/1", result)
	require.NoError(t, err)

	entries, err := publisher.client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	values := entries[0].Values
	assert.Equal(t, "https://shop.example.com/p/1", values["url"])
	assert.Equal(t, "1", values["reviews_count"])

	raw, err := base64.StdEncoding.DecodeString(values["b64_reviews"].(string))
	require.NoError(t, err)

	var decoded crawler.Result
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, *result, decoded)
}
