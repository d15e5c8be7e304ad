// Package throttle counts failed login attempts in Redis.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle blocks an account after max failures inside window.
// The window starts at the first failure and is not extended by later ones.
type LoginThrottle struct {
	redis  *redis.Client
	max    int64
	window time.Duration
}

// NewLoginThrottle creates a throttle. max <= 0 disables blocking.
func NewLoginThrottle(client *redis.Client, max int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{redis: client, max: int64(max), window: window}
}

func key(identity string) string {
	return fmt.Sprintf("throttle:login:%s", strings.ToLower(strings.TrimSpace(identity)))
}

// Blocked reports whether identity has used up its failures.
func (t *LoginThrottle) Blocked(ctx context.Context, identity string) (bool, error) {
	if t.max <= 0 {
		return false, nil
	}

	n, err := t.redis.Get(ctx, key(identity)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read login attempts: %w", err)
	}
	return n >= t.max, nil
}

// Fail records one failed attempt and returns the running count.
func (t *LoginThrottle) Fail(ctx context.Context, identity string) (int64, error) {
	k := key(identity)

	n, err := t.redis.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to record login attempt: %w", err)
	}
	if n == 1 {
		if err := t.redis.Expire(ctx, k, t.window).Err(); err != nil {
			return n, fmt.Errorf("failed to set login attempt window: %w", err)
		}
	}
	return n, nil
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, identity string) error {
	if err := t.redis.Del(ctx, key(identity)).Err(); err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}
	return nil
}
