package repository

import "sort"

// IdentityMap holds the single in-memory instance materialised for each row id.
// It is owned by one repository and is not safe for concurrent use.
type IdentityMap[E any] struct {
	entries map[int64]E
}

// NewIdentityMap returns an empty identity map
func NewIdentityMap[E any]() *IdentityMap[E] {
	return &IdentityMap[E]{entries: make(map[int64]E)}
}

// Get returns the instance registered for id
func (m *IdentityMap[E]) Get(id int64) (E, bool) {
	e, ok := m.entries[id]
	return e, ok
}

// Put registers e as the instance for id, replacing any previous one
func (m *IdentityMap[E]) Put(id int64, e E) {
	m.entries[id] = e
}

// Evict forgets the instance for id
func (m *IdentityMap[E]) Evict(id int64) {
	delete(m.entries, id)
}

// Len returns the number of tracked instances
func (m *IdentityMap[E]) Len() int {
	return len(m.entries)
}

// IDs returns the tracked ids in ascending order
func (m *IdentityMap[E]) IDs() []int64 {
	ids := make([]int64, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clear forgets every instance
func (m *IdentityMap[E]) Clear() {
	m.entries = make(map[int64]E)
}
