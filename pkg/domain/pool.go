package domain

import "fmt"

// EntryID is the opaque identifier of one deduplicated pool entry.
type EntryID string

// Pool is the deduplicated store of structures referenced by data states.
// Values are stored exactly once: Put scans same-kind entries for a
// structural match before inserting. The pool performs no reference counting;
// removing a simulation never frees entries, because entries may be shared
// across simulations and full reachability analysis is out of scope.
type Pool struct {
	seq     int
	order   []EntryID
	entries map[EntryID]Structure
	byKind  map[Kind][]EntryID
}

// NewPool constructs an empty pool.
func NewPool() *Pool {
	return &Pool{
		entries: make(map[EntryID]Structure),
		byKind:  make(map[Kind][]EntryID),
	}
}

// Put stores a structure and returns its entry id. If a structurally equal
// entry already exists its id is returned and nothing is inserted, so the
// pool never holds two equal entries.
func (p *Pool) Put(s Structure) EntryID {
	for _, id := range p.byKind[s.Kind()] {
		if p.entries[id].Equal(s) {
			return id
		}
	}
	p.seq++
	id := EntryID(fmt.Sprintf("d%d", p.seq))
	p.order = append(p.order, id)
	p.entries[id] = s
	p.byKind[s.Kind()] = append(p.byKind[s.Kind()], id)
	return id
}

// Get returns the structure stored under an entry id.
func (p *Pool) Get(id EntryID) (Structure, error) {
	s, ok := p.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: pool entry %s", ErrNotFound, id)
	}
	return s, nil
}

// Contains reports whether an entry id is stored.
func (p *Pool) Contains(id EntryID) bool {
	_, ok := p.entries[id]
	return ok
}

// IDs returns all entry ids in insertion order.
func (p *Pool) IDs() []EntryID {
	out := make([]EntryID, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of stored entries.
func (p *Pool) Len() int {
	return len(p.entries)
}

// Subset builds a new pool holding only the given entries under their
// original ids. The source pool is not mutated. Used for export, where
// entries unreachable from the exported chain are discarded.
func (p *Pool) Subset(ids []EntryID) (*Pool, error) {
	wanted := make(map[EntryID]bool, len(ids))
	for _, id := range ids {
		if !p.Contains(id) {
			return nil, fmt.Errorf("%w: pool entry %s", ErrNotFound, id)
		}
		wanted[id] = true
	}
	sub := NewPool()
	for _, id := range p.order {
		if !wanted[id] {
			continue
		}
		s := p.entries[id]
		sub.order = append(sub.order, id)
		sub.entries[id] = s
		sub.byKind[s.Kind()] = append(sub.byKind[s.Kind()], id)
	}
	sub.seq = p.seq
	return sub, nil
}
