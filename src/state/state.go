// Package state persists the tool's small flat key-value state file.
package state

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// KeyConfigInstalled is set once the editor's shortcut file has been patched.
const KeyConfigInstalled = "config_installed"

// KeyLastBackup holds the backup record of the most recent backed-up run.
const KeyLastBackup = "last_backup"

// Store is a JSON object on disk, read and rewritten whole on each change.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the stored values; a missing or corrupt file yields an empty map.
func (s *Store) Load() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() map[string]any {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("State: read %s: %v", s.path, err)
		}
		return map[string]any{}
	}
	values := map[string]any{}
	if err := json.Unmarshal(data, &values); err != nil {
		log.Printf("State: %s is not valid JSON, starting empty: %v", s.path, err)
		return map[string]any{}
	}
	return values
}

// Set stores one key, keeping every other key as it was.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.load()
	values[key] = value
	return s.save(values)
}

func (s *Store) save(values map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Delete removes key; a missing key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.load()
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

// Decode unmarshals the value under key into out and reports whether it was
// present and well formed.
func (s *Store) Decode(key string, out any) bool {
	v, ok := s.Load()[key]
	if !ok {
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// Bool reads a boolean key; anything else counts as false.
func (s *Store) Bool(key string) bool {
	v, ok := s.Load()[key].(bool)
	return ok && v
}

// ConfigInstalled reports whether the shortcut install has completed.
func (s *Store) ConfigInstalled() bool { return s.Bool(KeyConfigInstalled) }

// MarkConfigInstalled records a completed shortcut install.
func (s *Store) MarkConfigInstalled() error { return s.Set(KeyConfigInstalled, true) }
