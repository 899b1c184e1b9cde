package lock

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// Local is an in-process keyed mutex. The ttl argument is ignored; the lock
// is held until fn returns.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns an empty keyed mutex.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

var _ Locker = (*Local)(nil)

func (l *Local) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	s := l.acquireSlot(key)
	defer l.releaseSlot(key, s)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.ch }()
	return fn(ctx)
}

func (l *Local) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots == nil {
		l.slots = make(map[string]*slot)
	}
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }
