// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default rate limiting values.
const (
	// DefaultBurstCapacity is the maximum number of commands a sender can
	// execute in a burst before rate limiting kicks in.
	DefaultBurstCapacity = 10

	// DefaultSustainedRate is the number of commands per second allowed as
	// sustained rate (token refill rate).
	DefaultSustainedRate = 2.0

	// MinSustainedRate ensures sustained rate is at least 0.1 tokens/second.
	MinSustainedRate = 0.1

	// PermissionRateLimitBypass exempts a player from rate limiting.
	PermissionRateLimitBypass = "plugbridge.ratelimit.bypass"

	// DefaultCleanupInterval is the interval at which the background goroutine
	// runs to clean up idle senders.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultMaxIdle is how long a sender's bucket is kept without activity.
	DefaultMaxIdle = time.Hour
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// BurstCapacity defaults to DefaultBurstCapacity if zero or negative.
	BurstCapacity int
	// SustainedRate defaults to DefaultSustainedRate if zero or negative.
	SustainedRate   float64
	CleanupInterval time.Duration
	MaxIdle         time.Duration
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter implements per-sender rate limiting using a token bucket algorithm.
// It is safe for concurrent use.
//
// The RateLimiter runs a background goroutine to periodically drop idle
// senders. Call Close() to stop the goroutine and release resources.
type RateLimiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	burstCapacity int
	sustainedRate float64
	maxIdle       time.Duration
	now           func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// TrackedSenders is the number of senders the rate limiter holds state for.
var TrackedSenders = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "plugbridge_ratelimiter_senders",
	Help: "Current number of senders tracked by the command rate limiter",
})

// NewRateLimiter creates a new rate limiter with the given configuration.
// It starts a background goroutine for cleanup. Call Close() to stop it.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	burst := cfg.BurstCapacity
	if burst <= 0 {
		burst = DefaultBurstCapacity
	}
	rate := cfg.SustainedRate
	if rate <= 0 {
		rate = DefaultSustainedRate
	}
	rate = max(rate, MinSustainedRate)

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	maxIdle := cfg.MaxIdle
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}

	rl := &RateLimiter{
		buckets:       make(map[string]*bucket),
		burstCapacity: burst,
		sustainedRate: rate,
		maxIdle:       maxIdle,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
	rl.wg.Add(1)
	go rl.cleanupLoop(interval)
	return rl
}

// Allow consumes one token for key. It returns false and the milliseconds
// until the next token when none is available.
func (rl *RateLimiter) Allow(key string) (allowed bool, cooldownMs int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.burstCapacity), lastCheck: now}
		rl.buckets[key] = b
		TrackedSenders.Set(float64(len(rl.buckets)))
	}

	elapsed := now.Sub(b.lastCheck).Seconds()
	b.tokens = min(b.tokens+elapsed*rl.sustainedRate, float64(rl.burstCapacity))
	b.lastCheck = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true, 0
	}

	deficit := 1.0 - b.tokens
	return false, int64(deficit / rl.sustainedRate * 1000)
}

// Tracked returns the number of senders with a bucket.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Cleanup drops buckets idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := rl.now().Add(-maxIdle)
	for key, b := range rl.buckets {
		if b.lastCheck.Before(threshold) {
			delete(rl.buckets, key)
		}
	}
	TrackedSenders.Set(float64(len(rl.buckets)))
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer rl.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.Cleanup(rl.maxIdle)
		}
	}
}

// Close stops the background cleanup goroutine.
// It blocks until the goroutine has stopped.
func (rl *RateLimiter) Close() {
	close(rl.stopChan)
	rl.wg.Wait()
}
