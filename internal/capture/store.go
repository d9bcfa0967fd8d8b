package capture

import (
	"fmt"
	"sync"
)

// Kind tags what a scraped value was read from.
type Kind string

const (
	Text           Kind = "text"
	AttributeValue Kind = "attribute-value"
	URL            Kind = "url"
)

// ParseKind accepts the kind names used in step templates.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Text, AttributeValue, URL:
		return Kind(s), nil
	case "attr", "attribute", "value":
		return AttributeValue, nil
	}
	return "", fmt.Errorf("unknown retrieve kind %q", s)
}

// Record is one value captured from the page during a run.
type Record struct {
	Kind  Kind
	Value string
	// Step is the index of the step that produced the record. It is kept for
	// logs only; lookups go through Kind because hooks can skip steps.
	Step int
}

// Reader is the read-only view handed to downstream consumers.
type Reader interface {
	First(k Kind) (Record, bool)
	All() []Record
}

// Store is an append-only record of scraped values.
type Store struct {
	mu      sync.RWMutex
	records []Record
}

func NewStore() *Store {
	return &Store{}
}

// Add appends a record.
func (s *Store) Add(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// First returns the earliest record of the given kind.
func (s *Store) First(k Kind) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.Kind == k {
			return r, true
		}
	}
	return Record{}, false
}

// All returns a copy of every record in insertion order.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
