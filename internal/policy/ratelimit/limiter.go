// Package ratelimit gates requests per destination domain with a concurrency
// cap, a token bucket delay, and randomized jitter.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/sitemap-archiver/internal/metrics"
)

// Config holds limiter configuration.
type Config struct {
	// Delay is the minimum spacing between requests to one domain.
	Delay time.Duration
	// Jitter adds a random wait in [0, Jitter*Delay) after each token.
	Jitter float64
	// PerDomainMax caps in-flight requests per domain.
	PerDomainMax int
}

type domainGate struct {
	slots  *semaphore.Weighted
	bucket *rate.Limiter
}

// Limiter manages per-domain gates.
type Limiter struct {
	mu      sync.Mutex
	domains map[string]*domainGate

	limit     rate.Limit
	delay     time.Duration
	jitter    float64
	perDomain int64
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	perDomain := int64(cfg.PerDomainMax)
	if perDomain <= 0 {
		perDomain = 1
	}
	jitter := cfg.Jitter
	if jitter < 0 {
		jitter = 0
	}
	return &Limiter{
		domains:   make(map[string]*domainGate),
		limit:     limit,
		delay:     cfg.Delay,
		jitter:    jitter,
		perDomain: perDomain,
	}
}

// Acquire blocks until the domain of rawURL has a free slot and its politeness
// delay has elapsed. The returned release func frees the slot; calling it more
// than once is harmless.
func (l *Limiter) Acquire(ctx context.Context, rawURL string) (func(), error) {
	domain := domainOf(rawURL)
	gate := l.gate(domain)

	if err := gate.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire domain slot: %w", err)
	}
	start := time.Now()
	if err := l.wait(ctx, gate); err != nil {
		gate.slots.Release(1)
		return nil, err
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(domain, waited)
	}

	var once sync.Once
	return func() {
		once.Do(func() { gate.slots.Release(1) })
	}, nil
}

func (l *Limiter) gate(domain string) *domainGate {
	l.mu.Lock()
	defer l.mu.Unlock()
	gate, ok := l.domains[domain]
	if !ok {
		gate = &domainGate{
			slots:  semaphore.NewWeighted(l.perDomain),
			bucket: rate.NewLimiter(l.limit, 1),
		}
		l.domains[domain] = gate
	}
	return gate
}

func (l *Limiter) wait(ctx context.Context, gate *domainGate) error {
	if err := gate.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	extra := l.jitterDelay()
	if extra <= 0 {
		return nil
	}
	timer := time.NewTimer(extra)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("jitter wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (l *Limiter) jitterDelay() time.Duration {
	span := time.Duration(float64(l.delay) * l.jitter)
	if span <= 0 {
		return 0
	}
	return rand.N(span)
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
