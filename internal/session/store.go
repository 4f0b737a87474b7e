// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

// Package session keeps one provider binding per (session, model) pair in a
// bounded, expiring, least-recently-used store.
package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	radchaterr "github.com/radchat/radchat/pkg/errors"
)

const (
	DefaultMaxSize = 100
	DefaultTTL     = time.Hour
)

// Key composes the store key for a session talking to a model. Every key of
// one session shares the prefix Key(sessionID, "").
func Key(sessionID, model string) string {
	return sessionID + ":" + model
}

// Factory builds a fresh binding on a miss. It runs while the store lock is
// held and must not perform network I/O.
type Factory func() (*Binding, error)

type entry struct {
	binding   *Binding
	createdAt time.Time
}

// Store maps keys to bindings. Entries expire ttl after creation; expiry is
// checked lazily on access. At capacity the least recently used entry is
// evicted before a new one is inserted.
type Store struct {
	mu      sync.Mutex
	entries *simplelru.LRU[string, entry]
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store holding at most maxSize bindings. A ttl of zero
// disables expiry.
func NewStore(maxSize int, ttl time.Duration, opts ...Option) (*Store, error) {
	if maxSize <= 0 {
		return nil, radchaterr.Errorf(radchaterr.CodeConfigValidateInvalidValue,
			"session store size must be positive, got %d", maxSize)
	}
	if ttl < 0 {
		return nil, radchaterr.Errorf(radchaterr.CodeConfigValidateInvalidValue,
			"session ttl must not be negative, got %s", ttl)
	}

	entries, err := simplelru.NewLRU[string, entry](maxSize, nil)
	if err != nil {
		return nil, radchaterr.Wrap(err, radchaterr.CodeConfigValidateInvalidValue, "creating session store")
	}

	s := &Store{
		entries: entries,
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetOrCreate returns the live binding for key, marking it most recently
// used. On a miss or an expired entry it calls factory and stores the result.
// A factory error is returned and nothing is stored.
func (s *Store) GetOrCreate(key string, factory Factory) (*Binding, error) {
	if key == "" {
		return nil, radchaterr.New(radchaterr.CodeSessionKeyInvalid, "session key is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries.Get(key); ok {
		if !s.expired(e, now) {
			return e.binding, nil
		}
		s.entries.Remove(key)
		slog.Debug("session expired", "session_key", key, "age", now.Sub(e.createdAt))
	}

	b, err := factory()
	if err != nil {
		return nil, radchaterr.Wrap(err, radchaterr.CodeSessionBindingCreateFailure,
			"creating session binding", radchaterr.Field("session_key", key))
	}
	if b == nil {
		return nil, radchaterr.New(radchaterr.CodeSessionBindingCreateFailure,
			"session factory returned no binding", radchaterr.Field("session_key", key))
	}

	if s.entries.Len() >= s.maxSize {
		if oldest, _, ok := s.entries.RemoveOldest(); ok {
			slog.Debug("session evicted", "session_key", oldest)
		}
	}
	s.entries.Add(key, entry{binding: b, createdAt: now})
	return b, nil
}

// DeleteByPrefix removes every entry whose key starts with prefix and
// reports how many were removed.
func (s *Store) DeleteByPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, key := range s.entries.Keys() {
		if strings.HasPrefix(key, prefix) && s.entries.Remove(key) {
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// Keys returns the stored keys from least to most recently used.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Keys()
}

func (s *Store) expired(e entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.createdAt) > s.ttl
}
