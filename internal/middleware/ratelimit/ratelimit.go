// Package ratelimit throttles write requests with a token bucket per client.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// idleAfter is how long a client may stay silent before its bucket is dropped.
// A bucket refills completely well within this time, so dropping it never
// grants extra requests.
const idleAfter = 10 * time.Minute

// Config sets the per-client budget.
type Config struct {
	// RequestsPerMinute is both the sustained rate and the burst size.
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	limit    rate.Limit
	burst    int
	now      func() time.Time
	rejected atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter starts the idle-client sweeper. Call Stop to release it.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	l := &Limiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(float64(cfg.RequestsPerMinute) / 60),
		burst:   cfg.RequestsPerMinute,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.sweep(cfg.CleanupInterval)
	return l
}

func (l *Limiter) bucket(key string, now time.Time) *rate.Limiter {
	c, ok := l.clients[key]
	if !ok {
		c = &client{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.bucket
}

// Allow spends one token of key's bucket.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.bucket(key, now).AllowN(now, 1) {
		return true
	}
	l.rejected.Add(1)
	return false
}

// RetryAfter is the wait until key has a token again; zero for unknown keys.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[key]
	if !ok {
		return 0
	}
	missing := 1 - c.bucket.TokensAt(l.now())
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(l.limit) * float64(time.Second))
}

func (l *Limiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.dropIdle()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) dropIdle() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idleAfter)
	removed := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// ActiveClients is the number of clients holding a bucket.
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Rejected counts refused requests since start.
func (l *Limiter) Rejected() int64 { return l.rejected.Load() }

// Stop ends the sweeper. It may be called more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Middleware rejects requests whose client, as named by clientKey, is out of
// tokens. It sets Retry-After in whole seconds and lets onLimit write the
// body; a plain 429 is sent when onLimit is nil.
func (l *Limiter) Middleware(clientKey func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if l.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}
			secs := int(math.Ceil(l.RetryAfter(key).Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		})
	}
}
