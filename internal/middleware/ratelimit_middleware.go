package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/smsinterview/internal/utils"
)

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	attempts map[string]*attemptInfo
}

type attemptInfo struct {
	count   int
	firstAt time.Time
}

// NewRateLimiter allows limit events per key in each window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		attempts: make(map[string]*attemptInfo),
	}
}

// Allow records an event for key and reports whether it is within the limit.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	info, exists := r.attempts[key]
	if !exists || now.Sub(info.firstAt) > r.window {
		r.attempts[key] = &attemptInfo{count: 1, firstAt: now}
		return true
	}

	if info.count >= r.limit {
		return false
	}
	info.count++
	return true
}

// Cleanup drops expired windows every interval until ctx is done.
func (r *RateLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *RateLimiter) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for key, info := range r.attempts {
		if now.Sub(info.firstAt) > r.window {
			delete(r.attempts, key)
		}
	}
}

// Len returns the number of tracked keys.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}

// InboundRateLimit throttles SMS webhooks per sender phone number, read from
// the Telerivet (from_number) or Twilio (From) form field. Requests without a
// sender pass through for the handler to reject.
func InboundRateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := c.PostForm("from_number")
		if phone == "" {
			phone = c.PostForm("From")
		}
		if phone != "" && !rl.Allow(phone) {
			utils.Error(c, 429, "TOO_MANY_REQUESTS", "Too many messages from this phone number")
			c.Abort()
			return
		}
		c.Next()
	}
}
