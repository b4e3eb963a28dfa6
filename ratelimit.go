package hubwire

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Rate-limit headers as sent by the GitHub API.
const (
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
)

type limiterState int

const (
	// limiterUndefined means we know nothing about the remote budget yet,
	// e.g. at startup or after a window has rolled over.
	limiterUndefined limiterState = iota
	// limiterEstimated means we can estimate the remaining budget from past
	// responses and the end of the current window.
	limiterEstimated
	// limiterRateLimited means the server told us the budget is exhausted
	// until the reset time.
	limiterRateLimited
)

// RateLimiter estimates the remaining request budget from prior response
// headers and recommends delays. It only recommends; it never blocks or
// retries on its own. Safe for concurrent use.
type RateLimiter struct {
	mu        sync.Mutex
	state     limiterState
	remaining int
	resetAt   time.Time
	inFlight  int

	now func() time.Time
}

// NewRateLimiter returns a limiter in the undefined state.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{now: time.Now}
}

// RegisterRequest records one more request in flight. Every call must be
// paired with exactly one RegisterResponse.
func (rl *RateLimiter) RegisterRequest() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.inFlight++
}

// RegisterResponse records request completion and, on success, folds the
// response's rate-limit headers into the limiter state. A response with
// remaining == 0 moves the limiter into the rate-limited state.
func (rl *RateLimiter) RegisterResponse(resp *http.Response, err error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.inFlight > 0 {
		rl.inFlight--
	}
	if err != nil || resp == nil {
		return
	}

	remaining, okRemaining := headerInt(resp.Header, headerRateLimitRemaining)
	reset, okReset := headerInt(resp.Header, headerRateLimitReset)
	if !okRemaining || !okReset {
		return
	}

	rl.resetAt = time.Unix(int64(reset), 0)
	rl.remaining = remaining
	if remaining > 0 {
		rl.state = limiterEstimated
	} else {
		rl.state = limiterRateLimited
	}
}

// RequestDelay returns the recommended wait before dispatching the next
// request, or zero when the request can go out immediately. Stale windows
// collapse back to the undefined state.
func (rl *RateLimiter) RequestDelay() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	switch rl.state {
	case limiterEstimated:
		if now.After(rl.resetAt) {
			rl.state = limiterUndefined
			return 0
		}
		if rl.remaining-rl.inFlight > 0 {
			return 0
		}
		return rl.resetAt.Sub(now)
	case limiterRateLimited:
		if now.After(rl.resetAt) {
			rl.state = limiterUndefined
			return 0
		}
		return rl.resetAt.Sub(now)
	default:
		return 0
	}
}

// InFlight reports the number of requests currently registered.
func (rl *RateLimiter) InFlight() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.inFlight
}

func headerInt(h http.Header, name string) (int, bool) {
	v := h.Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
