package helpers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	neturl "net/url"
	"slices"
	"strconv"
	"time"

	"golang.org/x/net/html/charset"

	"sjsage522/reviewworker/services/cache"
)

// ErrRateLimited is returned when the target host throttled us, now or recently
var ErrRateLimited = errors.New("rate limited")

// HTTP client and header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	}

	referers = []string{
		"https://www.google.com/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
	}
)

// Fetcher retrieves raw HTML pages
type Fetcher struct {
	client    *http.Client
	cooldown  cache.CacheService
	blockTime time.Duration
}

// NewFetcher creates a fetcher whose requests give up after timeout
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// WithCooldown makes the fetcher remember throttled hosts in svc and refuse
// further requests to them for blockTime, or for the server's Retry-After
// when that is longer.
func (f *Fetcher) WithCooldown(svc cache.CacheService, blockTime time.Duration) *Fetcher {
	f.cooldown = svc
	f.blockTime = blockTime
	return f
}

func cooldownKey(rawURL string) string {
	if u, err := neturl.Parse(rawURL); err == nil && u.Host != "" {
		return "ratelimit:" + u.Host
	}
	return "ratelimit:" + rawURL
}

// Fetch sends a GET request with randomized browser headers, converts the
// response body to UTF-8 (if needed), and returns it as an io.Reader.
// Any non-2xx status is an error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	if f.cooldown != nil {
		if _, err := f.cooldown.Get(cooldownKey(url)); err == nil {
			return nil, fmt.Errorf("%w: not requesting %s during cooldown", ErrRateLimited, url)
		}
	}

	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Referer", referers[rnd.Intn(len(referers))])
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		f.startCooldown(url, resp.Header.Get("Retry-After"))
		return nil, fmt.Errorf("%w; retry after %s", ErrRateLimited, resp.Header.Get("Retry-After"))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s unexpected status code: %d", url, resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	encoding, name, _ := charset.DetermineEncoding(bodyBytes, resp.Header.Get("Content-Type"))
	if name == "utf-8" || name == "UTF-8" {
		return bytes.NewReader(bodyBytes), nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}

	return &buf, nil
}

func (f *Fetcher) startCooldown(url, retryAfter string) {
	if f.cooldown == nil {
		return
	}
	block := f.blockTime
	if seconds, err := strconv.Atoi(retryAfter); err == nil && time.Duration(seconds)*time.Second > block {
		block = time.Duration(seconds) * time.Second
	}
	_ = f.cooldown.Set(cooldownKey(url), []byte(strconv.Itoa(int(block/time.Second))), block)
}
