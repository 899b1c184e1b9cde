// Package ratelimit throttles checkout attempts per client with a sliding
// window, shared through Redis or kept in process.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter registers an event for key and reports whether it fits the window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error)
}

// Redis implements a sliding window limiter backed by sorted sets.
type Redis struct {
	Client *redis.Client
	Prefix string
}

func (l Redis) Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	now := time.Now()
	until := now.Add(window)
	if l.Client == nil || max <= 0 || window <= 0 {
		return Decision{Allowed: true, Remaining: max, Reset: until}, nil
	}

	redisKey := l.Prefix + key
	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", now.Add(-window).UnixNano()))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: key + ":" + uuid.NewString()})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Reset: until}, err
	}
	return decide(int(countCmd.Val()), max, until), nil
}

// Local keeps per-key hit timestamps in memory.
type Local struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	Now  func() time.Time
}

// NewLocal returns an empty in-process limiter.
func NewLocal() *Local {
	return &Local{hits: make(map[string][]time.Time)}
}

func (l *Local) Allow(_ context.Context, key string, window time.Duration, max int) (Decision, error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	until := now.Add(window)
	if max <= 0 || window <= 0 {
		return Decision{Allowed: true, Remaining: max, Reset: until}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := now.Add(-window)
	kept := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return decide(len(kept), max, until), nil
}

func decide(current, max int, until time.Time) Decision {
	remaining := max - current
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: current <= max, Remaining: remaining, Reset: until}
}
