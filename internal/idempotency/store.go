// Package idempotency remembers recently seen request keys so a retried
// delivery is recognised instead of being executed twice.
package idempotency

import (
	"bytes"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

type processedKeys struct {
	Keys map[string]time.Time `json:"keys"` // key -> expiry
}

type Store struct {
	mu    sync.Mutex
	path  string
	state processedKeys
	now   func() time.Time
}

func NewStore(path string) (*Store, error) {
	s := &Store{
		path:  path,
		state: processedKeys{Keys: make(map[string]time.Time)},
		now:   time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s.save()
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &s.state); err != nil {
		return err
	}
	if s.state.Keys == nil {
		s.state.Keys = make(map[string]time.Time)
	}
	return nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(data))
}

func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// CheckAndMark reports whether key is live. If it is not, the key is marked
// until now+ttl and false is returned.
func (s *Store) CheckAndMark(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, ok := s.state.Keys[key]; ok && expiry.After(now) {
		return true
	}

	s.state.Keys[key] = now.Add(ttl)
	return false
}

// Unmark forgets key so the next CheckAndMark treats it as new.
func (s *Store) Unmark(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.Keys, key)
}

func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for k, expiry := range s.state.Keys {
		if !expiry.After(now) {
			delete(s.state.Keys, k)
			count++
		}
	}
	return count
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Keys)
}
