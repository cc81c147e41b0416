package utils

import (
	"context"
	"time"
)

// Signup anti-abuse counters backed by Redis. All checks fail open: a missing
// or unreachable Redis never blocks registration.

func signupKey(parts ...string) string {
	out := "signup"
	for _, p := range parts {
		out += ":" + p
	}
	return out
}

// SignupCooldownTry enforces a short cooldown between attempts per IP.
func SignupCooldownTry(ip string, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return true
	}
	rc := GetRedis()
	if rc == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	ok, err := rc.SetNX(ctx, signupKey("cooldown", ip), "1", cooldown).Result()
	if err != nil {
		return true
	}
	return ok
}

// SignupDailyLimitCheck allows up to limit successful registrations per day per IP.
func SignupDailyLimitCheck(ip string, limit int) bool {
	if limit <= 0 {
		return true
	}
	rc := GetRedis()
	if rc == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	n, err := rc.Get(ctx, signupKey("day", ip, time.Now().Format("20060102"))).Int()
	if err != nil {
		return true
	}
	return n < limit
}

// SignupDailyIncrement increments the success counter for today.
func SignupDailyIncrement(ip string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	key := signupKey("day", ip, time.Now().Format("20060102"))
	if err := rc.Incr(ctx, key).Err(); err == nil {
		ttl := time.Until(time.Now().Truncate(24 * time.Hour).Add(24 * time.Hour))
		_ = rc.Expire(ctx, key, ttl).Err()
	}
}
