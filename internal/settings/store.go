// Package settings is the secure settings key-value store. Values are
// strings; numeric helpers parse on read and format on write.
package settings

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// Observer is called after a key changed value.
type Observer func(key, value string)

// Store persists settings to a YAML file.
type Store struct {
	path string
	log  *slog.Logger

	mu        sync.Mutex
	values    map[string]string
	observers map[string][]Observer
}

// Open loads path. A missing file is an empty store.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		path:      path,
		log:       log.With("component", "settings"),
		values:    make(map[string]string),
		observers: make(map[string][]Observer),
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return s, nil
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// GetInt returns def when the key is absent or not an integer.
func (s *Store) GetInt(key string, def int) int {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetFloat returns def when the key is absent or not a number.
func (s *Store) GetFloat(key string, def float64) float64 {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Put writes key and persists the store. Observers of key run after the
// write when the value actually changed.
func (s *Store) Put(key, value string) error {
	return s.PutAll(map[string]string{key: value})
}

func (s *Store) PutInt(key string, v int) error {
	return s.Put(key, strconv.Itoa(v))
}

// PutAll writes several keys with a single persist.
func (s *Store) PutAll(kv map[string]string) error {
	s.mu.Lock()
	changed := make([]string, 0, len(kv))
	prev := make(map[string]*string, len(kv))
	for k, v := range kv {
		old, ok := s.values[k]
		if ok && old == v {
			continue
		}
		if ok {
			o := old
			prev[k] = &o
		} else {
			prev[k] = nil
		}
		s.values[k] = v
		changed = append(changed, k)
	}
	if len(changed) == 0 {
		s.mu.Unlock()
		return nil
	}
	if err := s.persistLocked(); err != nil {
		for k, old := range prev {
			if old == nil {
				delete(s.values, k)
			} else {
				s.values[k] = *old
			}
		}
		s.mu.Unlock()
		return err
	}
	sort.Strings(changed)
	type note struct {
		key, value string
		obs        []Observer
	}
	notes := make([]note, 0, len(changed))
	for _, k := range changed {
		if obs := s.observers[k]; len(obs) > 0 {
			notes = append(notes, note{k, kv[k], append([]Observer(nil), obs...)})
		}
	}
	s.mu.Unlock()

	for _, n := range notes {
		for _, fn := range n.obs {
			fn(n.key, n.value)
		}
	}
	return nil
}

// Observe registers fn for changes to key.
func (s *Store) Observe(key string, fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers[key] = append(s.observers[key], fn)
}

// Snapshot copies every value.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Reload re-reads the file and notifies observers of keys whose values
// changed on disk.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read settings: %w", err)
	}
	fresh := make(map[string]string)
	if err := yaml.Unmarshal(data, &fresh); err != nil {
		return fmt.Errorf("parse settings %s: %w", s.path, err)
	}

	s.mu.Lock()
	type note struct {
		key, value string
		obs        []Observer
	}
	var notes []note
	for k, v := range fresh {
		if old, ok := s.values[k]; ok && old == v {
			continue
		}
		if obs := s.observers[k]; len(obs) > 0 {
			notes = append(notes, note{k, v, append([]Observer(nil), obs...)})
		}
	}
	s.values = fresh
	s.mu.Unlock()

	for _, n := range notes {
		for _, fn := range n.obs {
			fn(n.key, n.value)
		}
	}
	return nil
}

func (s *Store) persistLocked() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("create settings temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}
