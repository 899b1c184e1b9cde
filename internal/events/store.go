package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps the most recent events in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
	// Max bounds the retained history; zero keeps everything.
	Max int
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if s.Max > 0 && len(s.events) > s.Max {
		s.events = append([]Event(nil), s.events[len(s.events)-s.Max:]...)
	}
	return nil
}

// List returns retained events, optionally filtered by topic.
func (s *MemoryStore) List(topic string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if topic == "" || ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

// Recent returns up to n of the newest events, oldest first.
func (s *MemoryStore) Recent(_ context.Context, n int64) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		n = 100
	}
	start := len(s.events) - int(n)
	if start < 0 {
		start = 0
	}
	return append([]Event(nil), s.events[start:]...), nil
}

// Reader exposes the newest events of a store.
type Reader interface {
	Recent(ctx context.Context, n int64) ([]Event, error)
}

var (
	_ Reader = (*MemoryStore)(nil)
	_ Reader = RedisStore{}
)

// RedisStore appends events to a capped Redis list so that every process
// sharing the server sees one event history.
type RedisStore struct {
	R   *redis.Client
	Key string
	Max int64
}

func (s RedisStore) Append(ctx context.Context, event Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	key := s.Key
	if key == "" {
		key = "events"
	}
	_, err = s.R.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, raw)
		if s.Max > 0 {
			pipe.LTrim(ctx, key, -s.Max, -1)
		}
		return nil
	})
	return err
}

// Recent returns up to n of the newest events, oldest first.
func (s RedisStore) Recent(ctx context.Context, n int64) ([]Event, error) {
	key := s.Key
	if key == "" {
		key = "events"
	}
	if n <= 0 {
		n = 100
	}
	rows, err := s.R.LRange(ctx, key, -n, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		var ev Event
		if err := json.Unmarshal([]byte(row), &ev); err != nil {
			return nil, fmt.Errorf("events: decode: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}
