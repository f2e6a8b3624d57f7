package store

import (
	"context"
	"path"
	"sync"
	"time"

	"slothold/internal/domain"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-process domain.Store used by tests and for local development
// without a Redis instance. Expired entries are dropped lazily on access.
type Memory struct {
	mu   sync.Mutex
	data map[string]memoryEntry

	subMu   sync.RWMutex
	subs    map[string]map[uint64]chan []byte
	nextSub uint64
}

func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]memoryEntry),
		subs: make(map[string]map[uint64]chan []byte),
	}
}

// live returns the entry for key if present and not expired, pruning it otherwise.
// Caller must hold mu.
func (s *Memory) live(key string, now time.Time) (memoryEntry, bool) {
	e, ok := s.data[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(now) {
		delete(s.data, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *Memory) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if _, ok := s.live(key, now); ok {
		return false, nil
	}
	s.data[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return true, nil
}

func (s *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

func (s *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key, time.Now())
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *Memory) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *Memory) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.live(key, now)
	if !ok {
		return -2 * time.Second, nil
	}
	if e.expiresAt.IsZero() {
		return -1 * time.Second, nil
	}
	return e.expiresAt.Sub(now), nil
}

func (s *Memory) Pipeline(ctx context.Context, ops []domain.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, op := range ops {
		if op.Delete {
			delete(s.data, op.Key)
			continue
		}
		e := memoryEntry{value: op.Value}
		if op.TTL > 0 {
			e.expiresAt = now.Add(op.TTL)
		}
		s.data[op.Key] = e
	}
	return nil
}

func (s *Memory) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var keys []string
	for key := range s.data {
		if _, ok := s.live(key, now); !ok {
			continue
		}
		if matched, _ := path.Match(pattern, key); matched {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Publish fans the payload out to all channel subscribers. Slow subscribers
// drop messages rather than block the publisher.
func (s *Memory) Publish(ctx context.Context, channel string, payload []byte) error {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, ch := range s.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (s *Memory) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan []byte, 32)
	if s.subs[channel] == nil {
		s.subs[channel] = make(map[uint64]chan []byte)
	}
	s.subs[channel][id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subs[channel][id]; ok {
			delete(s.subs[channel], id)
			close(sub)
		}
	}
	return ch, cancel, nil
}

func (s *Memory) Ping(ctx context.Context) error { return nil }

func (s *Memory) Close() error { return nil }
