package isin

import (
	"sort"
	"time"
)

// ShareIsin is a named security as discovered on a listing page or loaded from storage.
// Equality is defined over Name and Isin only.
type ShareIsin struct {
	Name       string    `json:"share_name"`
	Isin       Isin      `json:"isin"`
	ObservedAt time.Time `json:"updated_at"`
}

// Key identifies a ShareIsin for uniqueness checks, ignoring ObservedAt.
type Key struct {
	Name string
	Isin string
}

// Key returns the identity of s.
func (s ShareIsin) Key() Key {
	return Key{Name: s.Name, Isin: s.Isin.String()}
}

// Equal compares name and identifier.
func (s ShareIsin) Equal(other ShareIsin) bool {
	return s.Key() == other.Key()
}

// Set collects ShareIsin values without duplicates. The first observation of a key is kept.
// The zero value is ready to use.
type Set struct {
	items map[Key]ShareIsin
}

// NewSet returns a set seeded with items.
func NewSet(items ...ShareIsin) *Set {
	s := &Set{}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts item and reports whether it was new.
func (s *Set) Add(item ShareIsin) bool {
	if s.items == nil {
		s.items = make(map[Key]ShareIsin)
	}
	k := item.Key()
	if _, ok := s.items[k]; ok {
		return false
	}
	s.items[k] = item
	return true
}

// Contains reports whether an equal item is present.
func (s *Set) Contains(item ShareIsin) bool {
	_, ok := s.items[item.Key()]
	return ok
}

// Len returns the number of distinct items.
func (s *Set) Len() int {
	return len(s.items)
}

// Items returns the members ordered by ISIN, then name.
func (s *Set) Items() []ShareIsin {
	out := make([]ShareIsin, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Isin.String(), out[j].Isin.String()
		if a != b {
			return a < b
		}
		return out[i].Name < out[j].Name
	})
	return out
}
