package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const sweepInterval = 5 * time.Minute

// hits is one client's request times inside the current window, oldest first.
type hits []time.Time

// since drops every hit at or before cutoff and returns what is left.
func (h hits) since(cutoff time.Time) hits {
	i := 0
	for i < len(h) && !h[i].After(cutoff) {
		i++
	}
	return h[i:]
}

// RateLimiter allows limit requests per client in any sliding window.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	clients map[string]hits

	now      func() time.Time
	onReject func()
	done     chan struct{}
	stop     sync.Once
}

// NewRateLimiter starts a limiter and the goroutine that forgets idle
// clients. Call Stop when done.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]hits),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// OnReject sets a callback run for every rejected request.
func (rl *RateLimiter) OnReject(fn func()) *RateLimiter {
	rl.onReject = fn
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stop.Do(func() { close(rl.done) })
}

// allow records a hit for key if it fits. A rejected hit is not recorded
// and comes with the wait until the oldest hit expires.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	h := rl.clients[key].since(now.Add(-rl.window))
	if len(h) >= rl.limit {
		rl.clients[key] = h
		return false, h[0].Add(rl.window).Sub(now)
	}
	rl.clients[key] = append(h, now)
	return true, 0
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.done:
			return
		}
	}
}

// sweep forgets clients with nothing left in the window.
func (rl *RateLimiter) sweep() {
	cutoff := rl.now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, h := range rl.clients {
		if len(h.since(cutoff)) == 0 {
			delete(rl.clients, key)
		}
	}
}

// Middleware keys on gin's resolved client IP. Rejections get 429 and a
// Retry-After in whole seconds.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := rl.allow(c.ClientIP())
		if ok {
			c.Next()
			return
		}
		if rl.onReject != nil {
			rl.onReject()
		}
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	}
}
