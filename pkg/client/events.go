package client

import "time"

// RateLimitedEvent describes a 429 response.
type RateLimitedEvent struct {
	Method     string
	RetryAfter time.Duration

	// Rejected is true when the call fails instead of waiting.
	Rejected bool
}

// OnRateLimited registers fn to be called for every 429 response carrying a
// valid Retry-After header. Listeners run synchronously on the calling
// goroutine and must not block.
func (c *Client) OnRateLimited(fn func(RateLimitedEvent)) {
	if fn == nil {
		return
	}
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Client) emitRateLimited(ev RateLimitedEvent) {
	c.listenersMu.RLock()
	listeners := c.listeners
	c.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
