// Package ratelimit provides per-client request rate limiting for the dashboard.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default limits for the dashboard API.
const (
	DefaultRequestsPerSecond = 5
	DefaultBurst             = 20
	// DefaultMaxTrackedClients bounds the limiter map so a flood of distinct
	// addresses cannot exhaust memory.
	DefaultMaxTrackedClients = 10000
	defaultCleanupInterval   = time.Minute
)

// Config controls a Limiter.
type Config struct {
	RequestsPerSecond float64
	Burst             int
	MaxTrackedClients int
	CleanupInterval   time.Duration
}

// Limiter provides per-client rate limiting keyed by resolved client address.
type Limiter struct {
	limiters   map[string]*rate.Limiter
	mu         sync.Mutex
	rate       rate.Limit
	burst      int
	maxClients int
	cleanup    *time.Ticker
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewLimiter creates a new rate limiter and starts its cleanup goroutine.
// Zero fields in cfg fall back to the package defaults.
//
// Returns a new Limiter instance.
func NewLimiter(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.MaxTrackedClients <= 0 {
		cfg.MaxTrackedClients = DefaultMaxTrackedClients
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}

	l := &Limiter{
		limiters:   make(map[string]*rate.Limiter),
		rate:       rate.Limit(cfg.RequestsPerSecond),
		burst:      cfg.Burst,
		maxClients: cfg.MaxTrackedClients,
		cleanup:    time.NewTicker(cfg.CleanupInterval),
		stopChan:   make(chan struct{}),
	}
	go l.cleanupRoutine()

	return l
}

// Allow reports whether a request from client may proceed.
//
// New clients are rejected outright while the limiter is tracking its maximum
// number of clients.
func (l *Limiter) Allow(client string) bool {
	l.mu.Lock()
	limiter, exists := l.limiters[client]
	if !exists {
		if len(l.limiters) >= l.maxClients {
			l.mu.Unlock()
			return false
		}
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[client] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// RetryAfterSeconds is the advertised wait for a single token to refill.
func (l *Limiter) RetryAfterSeconds() int {
	return int(math.Ceil(1 / float64(l.rate)))
}

func (l *Limiter) cleanupRoutine() {
	for {
		select {
		case <-l.cleanup.C:
			l.cleanupIdle()
		case <-l.stopChan:
			return
		}
	}
}

// cleanupIdle drops limiters whose bucket has refilled completely; such
// clients have not been seen for a while.
func (l *Limiter) cleanupIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for client, limiter := range l.limiters {
		if limiter.Tokens() >= float64(l.burst) {
			delete(l.limiters, client)
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call multiple times.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		l.cleanup.Stop()
		close(l.stopChan)
	})
}

// Tracked returns the number of clients currently tracked.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
