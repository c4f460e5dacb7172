package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRetryPolicy_Retryable(t *testing.T) {
	policy := newRetryPolicy(time.Second, DefaultRetryOn)

	tests := []struct {
		statusCode int
		expected   bool
	}{
		{200, false},
		{204, false},
		{400, false},
		{401, false},
		{404, false},
		{408, true},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.statusCode), func(t *testing.T) {
			if got := policy.retryable(tt.statusCode); got != tt.expected {
				t.Errorf("retryable(%d) = %v, want %v", tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	policy := newRetryPolicy(100*time.Millisecond, DefaultRetryOn)
	policy.maxDelay = time.Second
	policy.jitter = 0

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{10, time.Second},
	}

	for _, tt := range tests {
		if got := policy.delay(tt.attempt); got != tt.expected {
			t.Errorf("delay(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestRetryPolicy_DelayJitterStaysInBand(t *testing.T) {
	policy := newRetryPolicy(time.Second, DefaultRetryOn)

	low := time.Duration(float64(time.Second) * (1 - retryJitter))
	high := time.Duration(float64(time.Second) * (1 + retryJitter))
	for i := 0; i < 50; i++ {
		if got := policy.delay(0); got < low || got > high {
			t.Fatalf("delay(0) = %v, want within [%v, %v]", got, low, high)
		}
	}
}

func TestRetryPolicy_CheckRetry(t *testing.T) {
	policy := newRetryPolicy(time.Second, []int{503, 429})

	tests := []struct {
		name       string
		statusCode int
		expected   bool
	}{
		{"ok", 200, false},
		{"bad request", 400, false},
		{"bad gateway not configured", 502, false},
		{"unavailable", 503, true},
		{"too many requests", 429, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry, err := policy.checkRetry(context.Background(), &http.Response{StatusCode: tt.statusCode}, nil)
			if err != nil {
				t.Fatalf("checkRetry() error = %v", err)
			}
			if retry != tt.expected {
				t.Errorf("checkRetry(%d) = %v, want %v", tt.statusCode, retry, tt.expected)
			}
		})
	}
}

func TestRetryPolicy_CheckRetry_ContextDone(t *testing.T) {
	policy := newRetryPolicy(time.Second, DefaultRetryOn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retry, err := policy.checkRetry(ctx, &http.Response{StatusCode: 503}, nil)
	if retry {
		t.Error("checkRetry() should not retry a cancelled request")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("checkRetry() error = %v, want context.Canceled", err)
	}
}

func TestRetryPolicy_CheckRetry_ConnectionError(t *testing.T) {
	policy := newRetryPolicy(time.Second, DefaultRetryOn)

	retry, err := policy.checkRetry(context.Background(), nil, errors.New("connection reset by peer"))
	if err != nil {
		t.Fatalf("checkRetry() error = %v", err)
	}
	if !retry {
		t.Error("checkRetry() should retry connection errors")
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := newRetryPolicy(10*time.Millisecond, DefaultRetryOn)
	policy.jitter = 0

	tests := []struct {
		name     string
		resp     *http.Response
		attempt  int
		expected time.Duration
	}{
		{
			name:     "no response",
			attempt:  1,
			expected: 20 * time.Millisecond,
		},
		{
			name:     "retry-after on 429",
			resp:     &http.Response{StatusCode: 429, Header: http.Header{"Retry-After": {"3"}}},
			expected: 3 * time.Second,
		},
		{
			name:     "retry-after ignored on 500",
			resp:     &http.Response{StatusCode: 500, Header: http.Header{"Retry-After": {"3"}}},
			expected: 10 * time.Millisecond,
		},
		{
			name:     "unparseable retry-after",
			resp:     &http.Response{StatusCode: 503, Header: http.Header{"Retry-After": {"soon"}}},
			attempt:  2,
			expected: 40 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.backoff(0, 0, tt.attempt, tt.resp); got != tt.expected {
				t.Errorf("backoff() = %v, want %v", got, tt.expected)
			}
		})
	}
}
