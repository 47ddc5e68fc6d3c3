// Package throttle limits the request rate towards each source host.
package throttle

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/metrics"
)

// Limiter manages per-host token buckets.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration. A non-positive RPS disables
// throttling.
type Config struct {
	RPS   float64
	Burst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token is available for the host of rawURL.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

// Fetcher waits on a shared Limiter before every fetch.
type Fetcher struct {
	next    catalog.Fetcher
	limiter *Limiter
}

// Wrap returns next throttled by limiter. A nil limiter returns next as is.
func Wrap(next catalog.Fetcher, limiter *Limiter) catalog.Fetcher {
	if limiter == nil {
		return next
	}
	return &Fetcher{next: next, limiter: limiter}
}

// Fetch implements catalog.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (catalog.FetchResponse, error) {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return catalog.FetchResponse{}, err
	}
	return f.next.Fetch(ctx, rawURL)
}
