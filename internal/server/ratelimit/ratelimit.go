// Package ratelimit provides per-client token bucket quotas for the HTTP API.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// bucket is one client's tokens for one rule group. Guarded by Limiter.mu.
// Refill is limit tokens per window, computed in nanoseconds so whole
// fractions of the window yield whole tokens.
type bucket struct {
	tokens   float64
	capacity float64
	limit    float64
	window   float64 // nanoseconds
	updated  time.Time
}

func newBucket(rule Rule, now time.Time) *bucket {
	return &bucket{
		tokens:   rule.capacity(),
		capacity: rule.capacity(),
		limit:    float64(rule.Limit),
		window:   float64(rule.Window),
		updated:  now,
	}
}

func (b *bucket) refill(now time.Time) {
	if elapsed := now.Sub(b.updated); elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+float64(elapsed)*b.limit/b.window)
	}
	b.updated = now
}

// wait is how long until the bucket holds n tokens.
func (b *bucket) wait(n float64) time.Duration {
	if b.tokens >= n {
		return 0
	}
	return time.Duration(math.Round((n - b.tokens) * b.window / b.limit))
}

// Info describes the outcome of one Allow call.
type Info struct {
	Allowed    bool
	Group      string
	Limit      int // 0 when the request was not counted
	Remaining  int
	ResetTime  time.Time // when the bucket is full again
	RetryAfter time.Duration
}

// Limiter keeps token buckets per client and rule group.
type Limiter struct {
	config *Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket // client:group

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter. A nil config allows 10 requests per minute per client.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			Default:         Rule{Group: GroupDefault, Limit: 10, Window: time.Minute},
			CleanupInterval: 5 * time.Minute,
		}
	}
	l := &Limiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go l.cleanup(config.CleanupInterval)
	}
	return l
}

// Allow counts a request from clientID against the rule matching method and path.
func (l *Limiter) Allow(clientID, method, path string) Info {
	cfg := l.config
	if !cfg.Enabled || cfg.Whitelist[clientID] {
		return Info{Allowed: true}
	}
	if cfg.Blacklist[clientID] {
		return Info{Allowed: false}
	}

	rule := cfg.Match(method, path)
	if rule.Unlimited() {
		return Info{Allowed: true, Group: rule.Group}
	}

	now := l.now()
	key := clientID + ":" + rule.Group

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = newBucket(rule, now)
		l.buckets[key] = b
	}
	b.refill(now)

	info := Info{Group: rule.Group, Limit: rule.Limit}
	if b.tokens >= 1 {
		b.tokens--
		info.Allowed = true
	} else {
		info.RetryAfter = b.wait(1)
	}
	info.Remaining = int(math.Floor(b.tokens))
	info.ResetTime = now.Add(b.wait(b.capacity))
	return info
}

// sweep drops buckets that have refilled completely, since a fresh bucket
// behaves the same. Spent daily quotas therefore survive idle periods.
func (l *Limiter) sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		b.refill(now)
		if b.tokens >= b.capacity {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
