package api

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	maxRetryDelay   = 30 * time.Second
	retryMultiplier = 2.0
	retryJitter     = 0.2
)

// retryPolicy decides which exchanges retryablehttp repeats and how long it
// waits in between. The attempt budget itself is retryablehttp's RetryMax.
type retryPolicy struct {
	baseDelay  time.Duration
	maxDelay   time.Duration
	multiplier float64
	// jitter spreads each delay by up to this fraction in either direction.
	jitter  float64
	retryOn []int
}

func newRetryPolicy(baseDelay time.Duration, retryOn []int) *retryPolicy {
	return &retryPolicy{
		baseDelay:  baseDelay,
		maxDelay:   maxRetryDelay,
		multiplier: retryMultiplier,
		jitter:     retryJitter,
		retryOn:    slices.Clone(retryOn),
	}
}

func (p *retryPolicy) retryable(statusCode int) bool {
	return slices.Contains(p.retryOn, statusCode)
}

// delay is the exponential wait before retry number attempt+1, capped at
// maxDelay before jitter is applied.
func (p *retryPolicy) delay(attempt int) time.Duration {
	d := float64(p.baseDelay) * math.Pow(p.multiplier, float64(attempt))
	if d > float64(p.maxDelay) {
		d = float64(p.maxDelay)
	}
	if p.jitter > 0 {
		spread := d * p.jitter
		d = d - spread + rand.Float64()*2*spread
	}
	return time.Duration(d)
}

// checkRetry is a retryablehttp.CheckRetry. Connection failures fall back
// to the library's default policy.
func (p *retryPolicy) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return p.retryable(resp.StatusCode), nil
}

// backoff is a retryablehttp.Backoff. A Retry-After header on 429 and 503
// responses wins over the exponential curve.
func (p *retryPolicy) backoff(_, _ time.Duration, attempt int, resp *http.Response) time.Duration {
	if d, ok := retryAfter(resp); ok {
		return d
	}
	return p.delay(attempt)
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
