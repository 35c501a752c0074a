package fitbit

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitError is returned when the provider throttles the API account.
// RetryAfter is the instant calls may resume.
type RateLimitError struct {
	RetryAfter time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit hit, retry after %s", e.RetryAfter.Format(time.RFC3339))
}

// Gate holds the process-wide rate-limit cooldown. The limit applies to the
// whole API account, so every sync loop consults the same gate before
// calling the provider.
type Gate struct {
	mu         sync.Mutex
	retryAfter time.Time
}

// NewGate returns a Gate with no cooldown set.
func NewGate() *Gate {
	return &Gate{}
}

// IsReady reports whether provider calls are currently allowed.
func (g *Gate) IsReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.retryAfter.Before(time.Now().UTC())
}

// HandleRateLimit records the retry instant of a throttled response,
// overwriting any previous cooldown.
func (g *Gate) HandleRateLimit(retryAfter time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retryAfter = retryAfter
}
