package inflight

import (
	"context"
	"net/http"
	"sync"
)

// Counter tracks chat turns that must finish before shutdown. The zero
// value is ready to use.
type Counter struct {
	mu     sync.Mutex
	count  int64
	zeroCh chan struct{}
}

// lazily creates zeroCh; caller holds mu
func (c *Counter) ensure() {
	if c.zeroCh == nil {
		c.zeroCh = make(chan struct{})
		if c.count == 0 {
			close(c.zeroCh)
		}
	}
}

// Inc records one more turn in progress.
func (c *Counter) Inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensure()
	if c.count == 0 {
		c.zeroCh = make(chan struct{})
	}
	c.count++
}

// Dec records a finished turn. It never goes below zero.
func (c *Counter) Dec() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensure()
	if c.count == 0 {
		return
	}
	c.count--
	if c.count == 0 {
		close(c.zeroCh)
	}
}

// Load returns the current count.
func (c *Counter) Load() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// WaitForZero blocks until no turn is in progress or ctx ends. It reports
// whether zero was reached.
func (c *Counter) WaitForZero(ctx context.Context) bool {
	c.mu.Lock()
	c.ensure()
	ch := c.zeroCh
	c.mu.Unlock()
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// Middleware counts each request for its whole duration.
func (c *Counter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Inc()
			defer c.Dec()
			next.ServeHTTP(w, r)
		})
	}
}
