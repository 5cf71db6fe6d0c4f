// Package snapshot holds the last-accepted document per source and detects
// meaningful change between consecutive observations.
package snapshot

import (
	"sync"

	"vigil/internal/models"
)

// Store retains exactly one last-accepted document. The compare-and-swap in
// Observe is atomic with respect to concurrent readers, so a document is never
// compared against itself while being replaced.
type Store struct {
	mu   sync.Mutex
	last models.Document
}

func NewStore() *Store {
	return &Store{}
}

// Observe compares the current document against the last-accepted one and,
// if content differs, accepts it. The first-ever observation is always a change.
// Timestamps are excluded from the comparison.
func (s *Store) Observe(current models.Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last != nil && s.last.Equal(current) {
		return false
	}
	s.last = current
	return true
}

// Last returns the last-accepted document, nil before the first observation.
func (s *Store) Last() models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Clone()
}
