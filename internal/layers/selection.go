package layers

import (
	"math"
	"sort"
)

// PickedItem is the item chosen for one category and its current priority.
type PickedItem struct {
	Name     string
	Priority float64
}

// Entry pairs a category with its pick.
type Entry struct {
	Category string
	PickedItem
}

// Selection is the per-unit mapping of category to picked item. It keeps
// declaration order: configured categories first, then categories inserted
// later (pseudo layers) in insertion order. Not safe for concurrent use;
// every generation unit owns its own Selection.
type Selection struct {
	order []string
	picks map[string]*PickedItem
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{picks: make(map[string]*PickedItem)}
}

// Set records item and priority for category, appending the category to
// the declaration order the first time it is seen.
func (s *Selection) Set(category, item string, priority float64) {
	if p, ok := s.picks[category]; ok {
		p.Name = item
		p.Priority = priority
		return
	}
	s.order = append(s.order, category)
	s.picks[category] = &PickedItem{Name: item, Priority: priority}
}

// Has reports whether category is part of the selection.
func (s *Selection) Has(category string) bool {
	_, ok := s.picks[category]
	return ok
}

// Item returns the picked item name for category.
func (s *Selection) Item(category string) (string, bool) {
	p, ok := s.picks[category]
	if !ok {
		return "", false
	}
	return p.Name, true
}

// SetItem overwrites the picked item of an existing category. It reports
// false when the category is not in the selection.
func (s *Selection) SetItem(category, item string) bool {
	p, ok := s.picks[category]
	if ok {
		p.Name = item
	}
	return ok
}

// Priority returns the current priority of category.
func (s *Selection) Priority(category string) (float64, bool) {
	p, ok := s.picks[category]
	if !ok {
		return 0, false
	}
	return p.Priority, true
}

// SetPriority overwrites the priority of an existing category.
func (s *Selection) SetPriority(category string, priority float64) bool {
	p, ok := s.picks[category]
	if ok {
		p.Priority = priority
	}
	return ok
}

// Categories returns category names in declaration order.
func (s *Selection) Categories() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of categories in the selection.
func (s *Selection) Len() int { return len(s.order) }

// MaxPriority returns the highest priority in the selection, or -Inf when
// the selection is empty.
func (s *Selection) MaxPriority() float64 {
	top := math.Inf(-1)
	for _, p := range s.picks {
		if p.Priority > top {
			top = p.Priority
		}
	}
	return top
}

// Entries returns the picks in declaration order.
func (s *Selection) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, Entry{Category: name, PickedItem: *s.picks[name]})
	}
	return out
}

// Ordered returns the picks in compositing order: ascending priority, ties
// kept in declaration order.
func (s *Selection) Ordered() []Entry {
	out := s.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// Clone returns an independent copy.
func (s *Selection) Clone() *Selection {
	c := NewSelection()
	for _, name := range s.order {
		p := s.picks[name]
		c.Set(name, p.Name, p.Priority)
	}
	return c
}
