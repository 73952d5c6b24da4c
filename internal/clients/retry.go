package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while a back-office is considered down.
var ErrCircuitOpen = errors.New("circuit breaker open: remote temporarily unavailable")

// RetryConfig defines retry behavior for idempotent requests
type RetryConfig struct {
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffFactor   float64
	Jitter          float64 // 0-1
	RetryableStatus []int
}

// DefaultRetryConfig returns the retry configuration used for back-office reads
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryableStatus: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// Retrier retries HTTP round trips with exponential backoff and keeps a
// circuit breaker per remote.
type Retrier struct {
	config  *RetryConfig
	breaker *CircuitBreaker
}

// NewRetrier creates a retrier. A nil config uses DefaultRetryConfig; a nil
// breaker disables circuit breaking.
func NewRetrier(config *RetryConfig, breaker *CircuitBreaker) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Retrier{config: config, breaker: breaker}
}

func (r *Retrier) retryableStatus(code int) bool {
	for _, c := range r.config.RetryableStatus {
		if c == code {
			return true
		}
	}
	return false
}

// Backoff returns the wait before the given retry attempt (0-based).
func (r *Retrier) Backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return min(retryAfter, r.config.MaxBackoff)
	}

	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffFactor, float64(attempt))
	if r.config.Jitter > 0 {
		backoff += backoff * r.config.Jitter * (rand.Float64()*2 - 1)
	}
	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		return time.Until(t)
	}
	return 0
}

// RoundTrip is one attempt of an HTTP call.
type RoundTrip func(ctx context.Context) (*http.Response, error)

// Do runs fn until it returns a non-retryable result or attempts run out.
// Responses of abandoned attempts are drained and closed. The last response
// is returned to the caller, who owns its body.
func (r *Retrier) Do(ctx context.Context, operation string, fn RoundTrip) (*http.Response, error) {
	if r.breaker != nil && !r.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	for attempt := 0; ; attempt++ {
		resp, err := fn(ctx)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		retry := err != nil || r.retryableStatus(resp.StatusCode)
		if !retry {
			r.record(true)
			return resp, nil
		}
		if attempt >= r.config.MaxRetries {
			r.record(false)
			if err != nil {
				return nil, fmt.Errorf("max retries exceeded for %s: %w", operation, err)
			}
			return resp, nil
		}

		wait := r.Backoff(attempt, ParseRetryAfter(resp))
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (r *Retrier) record(ok bool) {
	if r.breaker == nil {
		return
	}
	if ok {
		r.breaker.RecordSuccess()
	} else {
		r.breaker.RecordFailure()
	}
}

// CircuitState is the state of a CircuitBreaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "closed"
}

// CircuitBreaker stops calls to a remote after repeated failures and lets a
// few probes through once resetTimeout has passed.
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     int
	successes    int
	state        CircuitState
	lastFailure  time.Time
	threshold    int
	resetTimeout time.Duration
	halfOpenMax  int
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		halfOpenMax:  2,
		state:        CircuitClosed,
	}
}

// Allow reports whether a request may be sent
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.successes = 0
			return true
		}
		return false
	case CircuitHalfOpen:
		return cb.successes < cb.halfOpenMax
	}
	return true
}

// RecordSuccess records a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.successes++
		if cb.successes >= cb.halfOpenMax {
			cb.state = CircuitClosed
			cb.failures = 0
		}
		return
	}
	cb.failures = 0
}

// RecordFailure records a failed call
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()
	if cb.state == CircuitHalfOpen || cb.failures >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
