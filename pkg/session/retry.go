// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tombee/conduit/pkg/transport"
)

// Sessions and shared connections never retry internally; retry policy
// belongs to the caller. Retry is that caller-side helper: it re-runs an
// attempt function with exponential backoff for transient transport
// failures and retryable status codes.

// RetryConfig configures the Retry helper.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (default: 3)
	MaxAttempts int

	// InitialBackoff is the first backoff duration (default: 1s)
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration (default: 30s)
	MaxBackoff time.Duration

	// BackoffFactor is the exponential multiplier (default: 2.0)
	BackoffFactor float64

	// RetryableStatuses lists status codes worth retrying
	// Default: [408, 429, 500, 502, 503, 504]
	RetryableStatuses []int
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffFactor:     2.0,
		RetryableStatuses: []int{408, 429, 500, 502, 503, 504},
	}
}

// Validate checks if the retry configuration is valid.
func (c *RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialBackoff < 0 {
		return fmt.Errorf("initial_backoff must be non-negative, got %v", c.InitialBackoff)
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff (%v) must be >= initial_backoff (%v)", c.MaxBackoff, c.InitialBackoff)
	}
	if c.BackoffFactor < 1.0 {
		return fmt.Errorf("backoff_factor must be >= 1.0, got %f", c.BackoffFactor)
	}
	return nil
}

// IsRetryable returns true if the given status code should be retried.
func (c *RetryConfig) IsRetryable(statusCode int) bool {
	for _, code := range c.RetryableStatuses {
		if code == statusCode {
			return true
		}
	}
	return false
}

// AttemptFunc executes a single request attempt.
type AttemptFunc func(ctx context.Context) (*Result, error)

// Retry runs fn with retry logic: transient transport failures (timeouts
// and connection errors) and retryable status codes are re-attempted with
// exponential backoff plus jitter, honoring a Retry-After header when the
// attempt captured response headers. Retry stops immediately on context
// cancellation. When attempts are exhausted the last result or error is
// returned as-is.
func Retry(ctx context.Context, config *RetryConfig, fn AttemptFunc) (*Result, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var res *Result
	var err error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		res, err = fn(ctx)

		shouldRetry, retryAfter := retryDecision(res, err, config)
		if !shouldRetry || attempt >= config.MaxAttempts {
			return res, err
		}

		if ctx.Err() != nil {
			return nil, &transport.PerformError{
				Code:    transport.CodeCancelled,
				Message: "request cancelled before retry",
				Cause:   ctx.Err(),
			}
		}

		select {
		case <-time.After(calculateBackoff(config, attempt, retryAfter)):
		case <-ctx.Done():
			return nil, &transport.PerformError{
				Code:    transport.CodeCancelled,
				Message: "request cancelled during retry backoff",
				Cause:   ctx.Err(),
			}
		}
	}

	return res, err
}

// retryDecision determines whether an attempt outcome is worth retrying
// and extracts a Retry-After delay when present.
func retryDecision(res *Result, err error, config *RetryConfig) (bool, time.Duration) {
	if err != nil {
		retryable := transport.IsCode(err, transport.CodeTimeout) ||
			transport.IsCode(err, transport.CodeConnection)
		return retryable, 0
	}
	if res == nil || !config.IsRetryable(res.Status) {
		return false, 0
	}
	if res.Status == 429 || res.Status == 503 {
		return true, retryAfterFromHeader(res.Header)
	}
	return true, 0
}

// retryAfterFromHeader scans captured response header text for a
// Retry-After value, supporting both delta-seconds and HTTP-date forms.
// Returns 0 when absent or malformed.
func retryAfterFromHeader(header string) time.Duration {
	for _, line := range strings.Split(header, "\r\n") {
		p := SplitHeaderLine(line)
		if !strings.EqualFold(p.Name, "Retry-After") {
			continue
		}
		value := strings.TrimSpace(p.Value)
		if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(seconds) * time.Second
		}
		retryTime, err := http.ParseTime(value)
		if err != nil {
			return 0
		}
		delay := time.Until(retryTime)
		if delay < 0 {
			return 0
		}
		return delay
	}
	return 0
}

// calculateBackoff computes the delay before the next attempt:
// min(InitialBackoff * BackoffFactor^(attempt-1), MaxBackoff), raised to
// a server-provided Retry-After (still capped), plus 0-100ms jitter.
func calculateBackoff(config *RetryConfig, attempt int, retryAfter time.Duration) time.Duration {
	baseDelay := float64(config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		baseDelay *= config.BackoffFactor
	}
	if baseDelay > float64(config.MaxBackoff) {
		baseDelay = float64(config.MaxBackoff)
	}

	delay := time.Duration(baseDelay)
	if retryAfter > delay {
		delay = retryAfter
	}
	if delay > config.MaxBackoff {
		delay = config.MaxBackoff
	}

	jitter := time.Duration(rand.Int63n(101)) * time.Millisecond
	return delay + jitter
}
