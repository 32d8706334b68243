// Package prefs persists small user preferences (the active tag) between runs.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const FileName = "prefs.json"

type file struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values,omitempty"`
}

// Store is a key/value file. Loading is best effort: a missing or corrupt file reads as empty.
type Store struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// Open reads dir/prefs.json. An empty dir yields an in-memory store that never writes.
func Open(dir string) *Store {
	s := &Store{values: map[string]string{}}
	if strings.TrimSpace(dir) == "" {
		return s
	}
	s.path = filepath.Join(dir, FileName)
	b, err := os.ReadFile(s.path)
	if err != nil {
		return s
	}
	var f file
	if err := json.Unmarshal(b, &f); err != nil {
		return s
	}
	for k, v := range f.Values {
		s.values[k] = v
	}
	return s
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Put stores value and rewrites the file. An empty value removes the key.
func (s *Store) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.values, key)
	} else {
		s.values[key] = value
	}
	return s.save()
}

func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(file{Version: 1, Values: s.values}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
