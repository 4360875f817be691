package inspect

import "iter"

// UsageSet is an insertion-ordered set of usages with structural equality.
// The zero value is an empty set.
type UsageSet struct {
	order []Usage
	seen  map[usageKey]struct{}
}

// NewUsageSet returns a set holding the given usages.
func NewUsageSet(usages ...Usage) *UsageSet {
	s := &UsageSet{}
	for _, u := range usages {
		s.Add(u)
	}

	return s
}

// Add inserts u and reports whether it was new.
func (s *UsageSet) Add(u Usage) bool {
	k := u.key()

	if _, dup := s.seen[k]; dup {
		return false
	}

	if s.seen == nil {
		s.seen = make(map[usageKey]struct{})
	}

	s.seen[k] = struct{}{}
	s.order = append(s.order, u)

	return true
}

// Merge adds every usage of other, keeping s's order first.
func (s *UsageSet) Merge(other *UsageSet) {
	if other == nil {
		return
	}

	for _, u := range other.order {
		s.Add(u)
	}
}

// Contains reports whether an equal usage is in the set.
func (s *UsageSet) Contains(u Usage) bool {
	_, ok := s.seen[u.key()]

	return ok
}

// Len returns the number of usages.
func (s *UsageSet) Len() int { return len(s.order) }

// All iterates usages in insertion order.
func (s *UsageSet) All() iter.Seq[Usage] {
	return func(yield func(Usage) bool) {
		for _, u := range s.order {
			if !yield(u) {
				return
			}
		}
	}
}

// Slice returns the usages in insertion order.
func (s *UsageSet) Slice() []Usage {
	out := make([]Usage, len(s.order))
	copy(out, s.order)

	return out
}

// Clone returns an independent copy.
func (s *UsageSet) Clone() *UsageSet {
	return NewUsageSet(s.order...)
}

// Equal reports whether both sets hold the same usages, ignoring order.
func (s *UsageSet) Equal(other *UsageSet) bool {
	if s.Len() != other.Len() {
		return false
	}

	for k := range s.seen {
		if _, ok := other.seen[k]; !ok {
			return false
		}
	}

	return true
}
