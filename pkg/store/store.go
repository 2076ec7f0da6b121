// Package store provides the in-memory cache of compiled templates.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lemonberrylabs/kolon/pkg/ast"
)

// Entry is a compiled template stored under its absolute path.
type Entry struct {
	ID          string              `json:"id"`
	Path        string              `json:"path"`
	Name        string              `json:"name"` // name the template was requested as
	Opcodes     *ast.OpcodeSequence `json:"-"`
	CompileTime time.Time           `json:"compileTime"`
	Hits        int64               `json:"hits"`
}

// Store is a thread-safe cache of compiled templates keyed by absolute path.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New creates a new empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]*Entry),
	}
}

// Get returns a copy of the entry for path and records a hit.
func (s *Store) Get(path string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[path]
	if !ok {
		return Entry{}, false
	}
	e.Hits++
	return *e, true
}

// Set stores a compiled template under path unless an entry already exists,
// in which case the existing entry is returned unchanged.
func (s *Store) Set(path, name string, opcodes *ast.OpcodeSequence) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[path]; exists {
		return *e
	}

	e := &Entry{
		ID:          uuid.NewString(),
		Path:        path,
		Name:        name,
		Opcodes:     opcodes,
		CompileTime: time.Now(),
	}
	s.entries[path] = e
	return *e
}

// List returns copies of all entries sorted by path.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result
}

// Delete removes the entry for path.
func (s *Store) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[path]; !ok {
		return fmt.Errorf("template '%s' not cached", path)
	}
	delete(s.entries, path)
	return nil
}

// Purge removes all entries and returns how many there were.
func (s *Store) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = make(map[string]*Entry)
	return n
}

// Len returns the number of cached templates.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
