// Package ratelimiter throttles outbound calls such as market data requests.
package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter allows at most limit operations per interval, with bursts up to limit.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter は interval ごとに limit 回まで許可する RateLimiter を生成します。
// limit が 0 以下の場合は制限なしになります。
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	if limit <= 0 || interval <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(interval/time.Duration(limit)), limit)}
}

// Wait blocks until the next operation is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}
