package lock

import (
	"context"
	"sort"
	"time"
)

// Locker runs fn while holding an exclusive lock on key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// WithLocks acquires every key in sorted order before running fn. Duplicate
// keys are collapsed so that callers can pass raw product lists.
func WithLocks(ctx context.Context, l Locker, keys []string, ttl time.Duration, fn func(context.Context) error) error {
	unique := make(map[string]struct{}, len(keys))
	ordered := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, seen := unique[k]; seen {
			continue
		}
		unique[k] = struct{}{}
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)
	return nest(ctx, l, ordered, ttl, fn)
}

func nest(ctx context.Context, l Locker, keys []string, ttl time.Duration, fn func(context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}
	return l.WithLock(ctx, keys[0], ttl, func(ctx context.Context) error {
		return nest(ctx, l, keys[1:], ttl, fn)
	})
}

// CustomerKey, ProductKey and OrderKey name the lock for each record kind.
func CustomerKey(id string) string { return "customer:" + id }

func ProductKey(id string) string { return "product:" + id }

func OrderKey(id int64) string { return "order:" + formatInt(id) }
