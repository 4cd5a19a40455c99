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
	"errors"
	"testing"
	"time"

	"github.com/tombee/conduit/pkg/transport"
)

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffFactor:     2.0,
		RetryableStatuses: []int{408, 429, 500, 502, 503, 504},
	}
}

func TestRetryConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *RetryConfig
		wantErr bool
	}{
		{
			name:    "valid default config",
			config:  DefaultRetryConfig(),
			wantErr: false,
		},
		{
			name: "max_attempts too low",
			config: &RetryConfig{
				MaxAttempts:    0,
				InitialBackoff: time.Second,
				MaxBackoff:     30 * time.Second,
				BackoffFactor:  2.0,
			},
			wantErr: true,
		},
		{
			name: "negative initial_backoff",
			config: &RetryConfig{
				MaxAttempts:    3,
				InitialBackoff: -time.Second,
				MaxBackoff:     30 * time.Second,
				BackoffFactor:  2.0,
			},
			wantErr: true,
		},
		{
			name: "max_backoff less than initial_backoff",
			config: &RetryConfig{
				MaxAttempts:    3,
				InitialBackoff: 30 * time.Second,
				MaxBackoff:     time.Second,
				BackoffFactor:  2.0,
			},
			wantErr: true,
		},
		{
			name: "backoff_factor less than 1.0",
			config: &RetryConfig{
				MaxAttempts:    3,
				InitialBackoff: time.Second,
				MaxBackoff:     30 * time.Second,
				BackoffFactor:  0.5,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryConfig_IsRetryable(t *testing.T) {
	config := DefaultRetryConfig()

	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !config.IsRetryable(code) {
			t.Errorf("expected %d to be retryable", code)
		}
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404} {
		if config.IsRetryable(code) {
			t.Errorf("expected %d to not be retryable", code)
		}
	}
}

func TestRetry_SuccessFirstAttempt(t *testing.T) {
	attempts := 0
	res, err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) (*Result, error) {
		attempts++
		return &Result{Status: 200}, nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != 200 {
		t.Errorf("expected 200, got %d", res.Status)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_RetryableStatusThenSuccess(t *testing.T) {
	attempts := 0
	res, err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) (*Result, error) {
		attempts++
		if attempts < 3 {
			return &Result{Status: 503}, nil
		}
		return &Result{Status: 200}, nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != 200 {
		t.Errorf("expected 200, got %d", res.Status)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_NonRetryableStatus(t *testing.T) {
	attempts := 0
	res, err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) (*Result, error) {
		attempts++
		return &Result{Status: 404}, nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != 404 {
		t.Errorf("expected 404, got %d", res.Status)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_TransientErrorRetried(t *testing.T) {
	attempts := 0
	res, err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) (*Result, error) {
		attempts++
		if attempts == 1 {
			return nil, &transport.PerformError{Code: transport.CodeTimeout, Message: "deadline"}
		}
		return &Result{Status: 200}, nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != 200 {
		t.Errorf("expected 200, got %d", res.Status)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) (*Result, error) {
		attempts++
		return nil, &transport.PerformError{Code: transport.CodeTLS, Message: "bad cert"}
	})

	if !transport.IsCode(err, transport.CodeTLS) {
		t.Fatalf("expected tls error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_ExhaustedReturnsLast(t *testing.T) {
	attempts := 0
	res, err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) (*Result, error) {
		attempts++
		return &Result{Status: 502}, nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != 502 {
		t.Errorf("expected last result, got %d", res.Status)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_CancelledDuringBackoff(t *testing.T) {
	config := fastRetryConfig()
	config.InitialBackoff = time.Second
	config.MaxBackoff = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Retry(ctx, config, func(ctx context.Context) (*Result, error) {
		attempts++
		return &Result{Status: 500}, nil
	})

	if !transport.IsCode(err, transport.CodeCancelled) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_NilConfigUsesDefaults(t *testing.T) {
	res, err := Retry(context.Background(), nil, func(ctx context.Context) (*Result, error) {
		return &Result{Status: 200}, nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != 200 {
		t.Errorf("expected 200, got %d", res.Status)
	}
}

func TestRetryAfterFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{
			name:   "delta seconds",
			header: "HTTP/1.1 503 Service Unavailable\r\nRetry-After: 7\r\n\r\n",
			want:   7 * time.Second,
		},
		{
			name:   "case insensitive name",
			header: "HTTP/1.1 429 Too Many Requests\r\nretry-after: 2\r\n\r\n",
			want:   2 * time.Second,
		},
		{
			name:   "absent",
			header: "HTTP/1.1 503 Service Unavailable\r\nContent-Length: 0\r\n\r\n",
			want:   0,
		},
		{
			name:   "malformed value",
			header: "HTTP/1.1 503 Service Unavailable\r\nRetry-After: soon\r\n\r\n",
			want:   0,
		},
		{
			name:   "empty header text",
			header: "",
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryAfterFromHeader(tt.header); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRetryAfterFromHeader_HTTPDate(t *testing.T) {
	date := time.Now().Add(30 * time.Second).UTC().Format(time.RFC1123)
	header := "HTTP/1.1 503 Service Unavailable\r\nRetry-After: " + date + "\r\n\r\n"

	got := retryAfterFromHeader(header)
	if got < 20*time.Second || got > 31*time.Second {
		t.Errorf("expected roughly 30s, got %v", got)
	}
}

func TestCalculateBackoff(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     400 * time.Millisecond,
		BackoffFactor:  2.0,
	}
	jitter := 100 * time.Millisecond

	tests := []struct {
		name       string
		attempt    int
		retryAfter time.Duration
		min        time.Duration
	}{
		{"first attempt", 1, 0, 100 * time.Millisecond},
		{"second attempt doubles", 2, 0, 200 * time.Millisecond},
		{"capped at max", 4, 0, 400 * time.Millisecond},
		{"retry-after raises", 1, 300 * time.Millisecond, 300 * time.Millisecond},
		{"retry-after capped", 1, 5 * time.Second, 400 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(config, tt.attempt, tt.retryAfter)
			if got < tt.min || got > tt.min+jitter {
				t.Errorf("expected within [%v, %v], got %v", tt.min, tt.min+jitter, got)
			}
		})
	}
}

func TestRetry_CancelledBeforeBackoffErrorType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, fastRetryConfig(), func(ctx context.Context) (*Result, error) {
		return &Result{Status: 500}, nil
	})

	var pe *transport.PerformError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *transport.PerformError, got %T", err)
	}
	if pe.Code != transport.CodeCancelled {
		t.Errorf("expected cancelled code, got %s", pe.Code)
	}
}
