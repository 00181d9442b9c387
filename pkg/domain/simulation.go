package domain

import (
	"fmt"
	"strings"
)

// Simulation holds one named history of data states. States live in an arena
// slice where index 0 is the construction root (empty, unlabeled) and the tip
// index points at the newest state. Because appends always chain onto the
// current tip and compaction replaces the tip record in place, the arena is
// exactly the chain from root to tip, in order.
//
// A simulation tracks which of its states other simulations were branched
// from so that Reset can refuse to discard a branch point still in use.
type Simulation struct {
	title      string
	states     []*DataState
	tip        int
	branchRefs map[int][]string
	memo       map[int]map[VariableID]EntryID
}

// NewSimulation creates a simulation containing only the construction root.
func NewSimulation(title string) *Simulation {
	return &Simulation{
		title:      title,
		states:     []*DataState{newDataState(nil, "", noParent)},
		tip:        0,
		branchRefs: make(map[int][]string),
		memo:       make(map[int]map[VariableID]EntryID),
	}
}

// Title returns the simulation's name.
func (s *Simulation) Title() string { return s.title }

// Tip returns the arena index of the newest state.
func (s *Simulation) Tip() int { return s.tip }

// Len returns the number of states in the arena, root included.
func (s *Simulation) Len() int { return len(s.states) }

// State returns the state at an arena index.
func (s *Simulation) State(idx int) (*DataState, error) {
	if idx < 0 || idx >= len(s.states) {
		return nil, fmt.Errorf("%w: state index %d in simulation %q", ErrNotFound, idx, s.title)
	}
	return s.states[idx], nil
}

// Labels returns the labels of all labeled states in chain order. A label may
// appear more than once; Reset targets the most recent occurrence.
func (s *Simulation) Labels() []string {
	var out []string
	for _, st := range s.states {
		if st.label != "" {
			out = append(out, st.label)
		}
	}
	return out
}

// Append adds a new state on top of the current tip and returns its arena
// index. Labels are lowercased. When both the current tip and the new state
// are unlabeled and the tip is not the construction root, the two are
// compacted eagerly: the tip record is replaced by a merged record carrying
// the combined mapping, so unlabeled scratch states never pile up.
func (s *Simulation) Append(mapping map[VariableID]*EntryID, label string) int {
	label = strings.ToLower(strings.TrimSpace(label))
	prev := s.states[s.tip]
	if label == "" && prev.label == "" && s.tip != 0 {
		merged := overlay(prev.assignments, mapping)
		s.states[s.tip] = newDataState(merged, "", prev.parent)
		delete(s.memo, s.tip)
		return s.tip
	}
	st := newDataState(mapping, label, s.tip)
	s.states = append(s.states, st)
	s.tip = len(s.states) - 1
	return s.tip
}

// AppendRaw adds a new state without eager compaction, preserving the chain
// exactly as given. Used when replaying an imported or restored history.
func (s *Simulation) AppendRaw(mapping map[VariableID]*EntryID, label string) int {
	st := newDataState(mapping, strings.ToLower(strings.TrimSpace(label)), s.tip)
	s.states = append(s.states, st)
	s.tip = len(s.states) - 1
	return s.tip
}

// Merge resolves the effective mapping visible at an arena index: ancestor
// assignments overlaid by descendants, child wins, with explicit unsets
// removing the identifier from the result. The root resolves to an empty
// mapping. Results are memoized per index; records are immutable apart from
// the tip rewrite in Append, which invalidates only its own index.
func (s *Simulation) Merge(idx int) (map[VariableID]EntryID, error) {
	if idx < 0 || idx >= len(s.states) {
		return nil, fmt.Errorf("%w: state index %d in simulation %q", ErrNotFound, idx, s.title)
	}
	if cached, ok := s.memo[idx]; ok {
		return copyResolved(cached), nil
	}
	st := s.states[idx]
	var base map[VariableID]EntryID
	if st.parent != noParent {
		parent, err := s.Merge(st.parent)
		if err != nil {
			return nil, err
		}
		base = parent
	} else {
		base = make(map[VariableID]EntryID)
	}
	for id, ref := range st.assignments {
		if ref == nil {
			delete(base, id)
			continue
		}
		base[id] = *ref
	}
	s.memo[idx] = base
	return copyResolved(base), nil
}

// MergeTip resolves the effective mapping at the current tip.
func (s *Simulation) MergeTip() (map[VariableID]EntryID, error) {
	return s.Merge(s.tip)
}

func copyResolved(m map[VariableID]EntryID) map[VariableID]EntryID {
	out := make(map[VariableID]EntryID, len(m))
	for id, entry := range m {
		out[id] = entry
	}
	return out
}

// Reset truncates the chain back to the most recent state carrying the given
// label, making it the tip again. It fails with ErrScheduling, leaving the
// chain unchanged, when any state that would be discarded is a recorded
// branch point of another simulation.
func (s *Simulation) Reset(label string) error {
	label = strings.ToLower(strings.TrimSpace(label))
	target := -1
	for i := len(s.states) - 1; i >= 0; i-- {
		if s.states[i].label == label && label != "" {
			target = i
			break
		}
	}
	if target == -1 {
		return fmt.Errorf("%w: no state labeled %q in simulation %q", ErrNotFound, label, s.title)
	}
	for i := target + 1; i < len(s.states); i++ {
		if refs := s.branchRefs[i]; len(refs) > 0 {
			return fmt.Errorf("%w: state %d of simulation %q is a branch point of %s",
				ErrScheduling, i, s.title, strings.Join(refs, ", "))
		}
	}
	for i := target + 1; i < len(s.states); i++ {
		delete(s.memo, i)
	}
	s.states = s.states[:target+1]
	s.tip = target
	return nil
}

// Compact collapses every contiguous run of unlabeled states into a single
// merged state, preserving all labeled states as checkpoints. The
// construction root is never merged into. Branch references recorded on a
// collapsed state carry over to the merged state that supersedes it.
// Resolved mappings at the tip and at every surviving label are unchanged.
func (s *Simulation) Compact() {
	if len(s.states) <= 2 {
		return
	}
	compacted := []*DataState{s.states[0]}
	refs := make(map[int][]string)
	if r := s.branchRefs[0]; len(r) > 0 {
		refs[0] = r
	}
	var run map[VariableID]*EntryID
	var runRefs []string
	flush := func() {
		if run == nil {
			return
		}
		st := newDataState(run, "", len(compacted)-1)
		compacted = append(compacted, st)
		if len(runRefs) > 0 {
			refs[len(compacted)-1] = runRefs
		}
		run, runRefs = nil, nil
	}
	for i := 1; i < len(s.states); i++ {
		st := s.states[i]
		if st.label == "" {
			if run == nil {
				run = make(map[VariableID]*EntryID)
			}
			run = overlay(run, st.assignments)
			runRefs = append(runRefs, s.branchRefs[i]...)
			continue
		}
		flush()
		kept := newDataState(st.assignments, st.label, len(compacted)-1)
		compacted = append(compacted, kept)
		if r := s.branchRefs[i]; len(r) > 0 {
			refs[len(compacted)-1] = r
		}
	}
	flush()
	s.states = compacted
	s.tip = len(compacted) - 1
	s.branchRefs = refs
	s.memo = make(map[int]map[VariableID]EntryID)
}

// Fork deep-copies the chain up to the current tip into a new simulation.
// The caller is responsible for recording the branch point on the source
// with AddBranchRef.
func (s *Simulation) Fork(title string) *Simulation {
	clone := &Simulation{
		title:      title,
		states:     make([]*DataState, len(s.states)),
		tip:        s.tip,
		branchRefs: make(map[int][]string),
		memo:       make(map[int]map[VariableID]EntryID),
	}
	for i, st := range s.states {
		clone.states[i] = newDataState(st.assignments, st.label, st.parent)
	}
	return clone
}

// AddBranchRef records that another simulation was branched from the state
// at the given arena index.
func (s *Simulation) AddBranchRef(idx int, title string) error {
	if idx < 0 || idx >= len(s.states) {
		return fmt.Errorf("%w: state index %d in simulation %q", ErrNotFound, idx, s.title)
	}
	s.branchRefs[idx] = append(s.branchRefs[idx], title)
	return nil
}

// RemoveBranchRefs drops every branch reference recorded for the given
// simulation title, across all states.
func (s *Simulation) RemoveBranchRefs(title string) {
	for idx, refs := range s.branchRefs {
		kept := refs[:0]
		for _, t := range refs {
			if t != title {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(s.branchRefs, idx)
			continue
		}
		s.branchRefs[idx] = kept
	}
}

// BranchRefs returns the titles branched from the state at idx.
func (s *Simulation) BranchRefs(idx int) []string {
	refs := s.branchRefs[idx]
	out := make([]string, len(refs))
	copy(out, refs)
	return out
}

// EntryIDs returns every pool entry id referenced anywhere in the chain,
// deduplicated, in first-seen chain order. Explicit unsets contribute
// nothing.
func (s *Simulation) EntryIDs() []EntryID {
	seen := make(map[EntryID]bool)
	var out []EntryID
	for _, st := range s.states {
		ids := st.Identifiers()
		sortVariableIDs(ids)
		for _, id := range ids {
			ref, _ := st.Ref(id)
			if ref == nil || seen[*ref] {
				continue
			}
			seen[*ref] = true
			out = append(out, *ref)
		}
	}
	return out
}
