package domain

import "sort"

// DataState is one immutable diff layer in a simulation's history: a mapping
// from variable identifiers to pool entry ids, an optional label and a parent
// reference. A nil entry reference records an explicit unset, which hides any
// ancestor value for that identifier (distinct from never assigned).
//
// Once appended to a simulation a state's mapping never changes. The only
// rewrite the engine performs is the compaction of an unlabeled tip, which
// replaces the whole record rather than mutating it (see Simulation.Append).
type DataState struct {
	label       string
	parent      int
	assignments map[VariableID]*EntryID
}

const noParent = -1

func newDataState(mapping map[VariableID]*EntryID, label string, parent int) *DataState {
	assignments := make(map[VariableID]*EntryID, len(mapping))
	for id, ref := range mapping {
		if ref == nil {
			assignments[id] = nil
			continue
		}
		entry := *ref
		assignments[id] = &entry
	}
	return &DataState{label: label, parent: parent, assignments: assignments}
}

// Label returns the state's label, empty for unlabeled scratch states.
func (s *DataState) Label() string { return s.label }

// Parent returns the arena index of the parent state, or -1 for the root.
func (s *DataState) Parent() int { return s.parent }

// Len returns the number of assignments in this state's own mapping.
func (s *DataState) Len() int { return len(s.assignments) }

// Identifiers returns the variable identifiers assigned by this state,
// including explicit unsets.
func (s *DataState) Identifiers() []VariableID {
	out := make([]VariableID, 0, len(s.assignments))
	for id := range s.assignments {
		out = append(out, id)
	}
	return out
}

// Ref returns the entry reference for an identifier. The second result is
// false when the identifier is not assigned by this state at all; a true
// result with a nil reference is an explicit unset.
func (s *DataState) Ref(id VariableID) (*EntryID, bool) {
	ref, ok := s.assignments[id]
	if !ok {
		return nil, false
	}
	if ref == nil {
		return nil, true
	}
	entry := *ref
	return &entry, true
}

// Assignments returns a copy of the state's own mapping.
func (s *DataState) Assignments() map[VariableID]*EntryID {
	out := make(map[VariableID]*EntryID, len(s.assignments))
	for id, ref := range s.assignments {
		if ref == nil {
			out[id] = nil
			continue
		}
		entry := *ref
		out[id] = &entry
	}
	return out
}

func sortVariableIDs(ids []VariableID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// overlay merges a child mapping over a parent mapping, child wins.
func overlay(base map[VariableID]*EntryID, child map[VariableID]*EntryID) map[VariableID]*EntryID {
	merged := make(map[VariableID]*EntryID, len(base)+len(child))
	for id, ref := range base {
		merged[id] = ref
	}
	for id, ref := range child {
		merged[id] = ref
	}
	return merged
}
