// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package limiter enforces bounded-attempt budgets for the identity flows.

Each [Budget] is a fixed window counter stored in Redis under
"<prefix><budget>:<subject>". The window starts with the first hit and the key
expires with it, so no cleanup job is needed.

Usage:

	if err := attempts.Check(ctx, limiter.LoginFailures, email); err != nil {
	    return err // 429
	}
	if !passwordOK {
	    _ = attempts.Hit(ctx, limiter.LoginFailures, email)
	}
*/
package limiter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/tourly/internal/platform/apperr"
	"github.com/taibuivan/tourly/internal/platform/constants"
)

// Budget names a counter and the number of hits it tolerates per window.
type Budget struct {
	Name   string
	Max    int
	Window time.Duration
}

// Budgets used by the identity flows.
var (
	LoginFailures = Budget{Name: "login_failure", Max: constants.MaxLoginFailures, Window: constants.LoginFailureWindow}
	CodeFailures  = Budget{Name: "code_failure", Max: constants.MaxCodeFailures, Window: constants.CodeFailureWindow}
	CodeIssuance  = Budget{Name: "code_issuance", Max: constants.MaxCodeIssuance, Window: constants.CodeIssuanceWindow}
)

// incrementScript bumps the counter and starts the window on the first hit, atomically.
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// Limiter counts attempts per budget and subject.
type Limiter struct {
	client redis.UniversalClient
	prefix string
}

// New creates a [Limiter] backed by the given Redis client.
func New(client redis.UniversalClient) *Limiter {
	return &Limiter{client: client, prefix: constants.RedisPrefixAttempt}
}

// Check fails with a 429 [apperr.AppError] when the budget for subject is spent.
// It does not count as an attempt.
func (limiter *Limiter) Check(ctx context.Context, budget Budget, subject string) error {
	key := limiter.key(budget, subject)

	count, err := limiter.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("limiter: read %s failed: %w", budget.Name, err)
	}

	if count >= budget.Max {
		return limiter.exhausted(ctx, key, budget)
	}
	return nil
}

// Hit records one attempt against the budget and returns the count in the current window.
func (limiter *Limiter) Hit(ctx context.Context, budget Budget, subject string) (int, error) {
	count, err := incrementScript.Run(ctx, limiter.client, []string{limiter.key(budget, subject)}, budget.Window.Milliseconds()).Int()
	if err != nil {
		return 0, fmt.Errorf("limiter: increment %s failed: %w", budget.Name, err)
	}
	return count, nil
}

// Take records one attempt and fails with 429 once the attempt exceeds the budget.
func (limiter *Limiter) Take(ctx context.Context, budget Budget, subject string) error {
	count, err := limiter.Hit(ctx, budget, subject)
	if err != nil {
		return err
	}
	if count > budget.Max {
		return limiter.exhausted(ctx, limiter.key(budget, subject), budget)
	}
	return nil
}

// Reset clears the counter, typically after a successful attempt.
func (limiter *Limiter) Reset(ctx context.Context, budget Budget, subject string) error {
	if err := limiter.client.Del(ctx, limiter.key(budget, subject)).Err(); err != nil {
		return fmt.Errorf("limiter: reset %s failed: %w", budget.Name, err)
	}
	return nil
}

// exhausted builds the 429 error carrying the remaining window.
func (limiter *Limiter) exhausted(ctx context.Context, key string, budget Budget) error {
	retryAfter := budget.Window
	if ttl, err := limiter.client.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
		retryAfter = ttl
	}
	return apperr.RateLimited(int(math.Ceil(retryAfter.Seconds())))
}

// key lower-cases the subject so that casing cannot be used to reset a budget.
func (limiter *Limiter) key(budget Budget, subject string) string {
	return limiter.prefix + budget.Name + ":" + strings.ToLower(strings.TrimSpace(subject))
}
