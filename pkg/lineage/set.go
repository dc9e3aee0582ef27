package lineage

import "encoding/json"

// Set is an insertion-ordered string set. The order is what gets written to
// the JSON artifact, so builds that walk the manifest in a deterministic
// order produce byte-identical output.
type Set struct {
	order []string
	index map[string]struct{}
}

// NewSet creates a set containing the given items, in order.
func NewSet(items ...string) *Set {
	s := &Set{index: make(map[string]struct{})}
	for _, it := range items {
		s.Add(it)
	}
	return s
}

// Add inserts an item, keeping the first insertion position on duplicates.
func (s *Set) Add(item string) {
	if _, ok := s.index[item]; ok {
		return
	}
	s.index[item] = struct{}{}
	s.order = append(s.order, item)
}

// AddAll inserts every item in order.
func (s *Set) AddAll(items []string) {
	for _, it := range items {
		s.Add(it)
	}
}

// Union inserts every item from the other set.
func (s *Set) Union(other *Set) {
	if other == nil {
		return
	}
	for _, it := range other.order {
		s.Add(it)
	}
}

// Has reports whether the item is in the set.
func (s *Set) Has(item string) bool {
	_, ok := s.index[item]
	return ok
}

// Len returns the number of items.
func (s *Set) Len() int {
	return len(s.order)
}

// Items returns the items in insertion order. The slice is a copy.
func (s *Set) Items() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Equal reports order-independent equality with another set.
func (s *Set) Equal(other *Set) bool {
	if other == nil || len(s.order) != len(other.order) {
		return false
	}
	for it := range s.index {
		if !other.Has(it) {
			return false
		}
	}
	return true
}

// MarshalJSON renders the set as a JSON array in insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	if s == nil || s.order == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.order)
}

// UnmarshalJSON reads a JSON array, preserving element order.
func (s *Set) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	s.order = nil
	s.index = make(map[string]struct{})
	s.AddAll(items)
	return nil
}
