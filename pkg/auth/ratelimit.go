package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter checks whether a request should be allowed for an identity.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// LimitError is returned by FixedWindowLimiter when a caller's budget for
// the current window is spent. It matches ErrTooManyRequests.
type LimitError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit of %d requests per minute exceeded, retry in %s", e.Limit, e.RetryAfter)
}

func (e *LimitError) Is(target error) bool { return target == ErrTooManyRequests }

const limitWindow = time.Minute

// FixedWindowLimiter gives every caller a per-minute request budget chosen
// by tier. Windows are aligned to the caller's first request, and expired
// windows are swept lazily so idle callers do not accumulate.
type FixedWindowLimiter struct {
	budgets    map[string]int
	defaultRPM int
	now        func() time.Time

	mu        sync.Mutex
	used      map[string]windowUse
	lastSweep time.Time
}

type windowUse struct {
	opened time.Time
	n      int
}

// NewFixedWindowLimiter creates a limiter. Tiers missing from tiers use
// defaultRPM; a budget <= 0 means unlimited.
func NewFixedWindowLimiter(tiers map[string]int, defaultRPM int) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		budgets:    tiers,
		defaultRPM: defaultRPM,
		now:        time.Now,
		used:       make(map[string]windowUse),
	}
}

func (l *FixedWindowLimiter) budget(tier string) int {
	if rpm, ok := l.budgets[tier]; ok {
		return rpm
	}
	return l.defaultRPM
}

// Allow charges one request to the caller and returns a *LimitError once
// the budget is exhausted.
func (l *FixedWindowLimiter) Allow(_ context.Context, identity *Identity) error {
	limit := l.budget(identity.Tier)
	if limit <= 0 {
		return nil
	}
	key := identity.Tier + "/" + identity.Owner()

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	u := l.used[key]
	if u.opened.IsZero() || now.Sub(u.opened) >= limitWindow {
		u = windowUse{opened: now}
	}
	if u.n >= limit {
		return &LimitError{Limit: limit, RetryAfter: u.opened.Add(limitWindow).Sub(now)}
	}
	u.n++
	l.used[key] = u
	return nil
}

// sweep drops expired windows at most once per window length.
func (l *FixedWindowLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < limitWindow {
		return
	}
	for k, u := range l.used {
		if now.Sub(u.opened) >= limitWindow {
			delete(l.used, k)
		}
	}
	l.lastSweep = now
}

// tracked returns the number of live windows.
func (l *FixedWindowLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.used)
}
