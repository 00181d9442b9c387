package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotVersion identifies the on-disk snapshot schema.
const SnapshotVersion = 1

// PoolEntryRecord is the serialized form of one pool entry. Value holds the
// structure envelope produced by EncodeStructure.
type PoolEntryRecord struct {
	ID    EntryID         `json:"id"`
	Value json.RawMessage `json:"value"`
}

// PoolRecord is the serialized form of a pool, entries in insertion order.
type PoolRecord struct {
	Seq     int               `json:"seq"`
	Entries []PoolEntryRecord `json:"entries"`
}

// StateRecord is the serialized form of one data state. A nil assignment
// value records an explicit unset.
type StateRecord struct {
	Label       string                  `json:"label,omitempty"`
	Parent      int                     `json:"parent"`
	Assignments map[VariableID]*EntryID `json:"assignments"`
}

// SimulationRecord is the serialized form of a simulation chain.
type SimulationRecord struct {
	Title      string           `json:"title"`
	Tip        int              `json:"tip"`
	States     []StateRecord    `json:"states"`
	BranchRefs map[int][]string `json:"branch_refs,omitempty"`
}

// Snapshot is the full serialized engine state: the shared pool plus every
// simulation chain.
type Snapshot struct {
	Version     int                `json:"version"`
	SavedAt     time.Time          `json:"saved_at"`
	Active      string             `json:"active,omitempty"`
	Pool        PoolRecord         `json:"pool"`
	Simulations []SimulationRecord `json:"simulations"`
}

// DecodeOptions controls how RestorePool treats entries it cannot decode.
// With WarnAndSkip set, an entry of an unknown or malformed kind is reported
// through Warn and dropped instead of failing the whole restore.
type DecodeOptions struct {
	WarnAndSkip bool
	Warn        func(id EntryID, err error)
}

// ExportPool serializes a pool, preserving entry ids and insertion order.
func ExportPool(p *Pool) (PoolRecord, error) {
	rec := PoolRecord{Seq: p.seq, Entries: make([]PoolEntryRecord, 0, len(p.order))}
	for _, id := range p.order {
		payload, err := EncodeStructure(p.entries[id])
		if err != nil {
			return PoolRecord{}, fmt.Errorf("encode pool entry %s: %w", id, err)
		}
		rec.Entries = append(rec.Entries, PoolEntryRecord{ID: id, Value: payload})
	}
	return rec, nil
}

// RestorePool rebuilds a pool from its record, keeping the original entry
// ids so that state assignments stay valid.
func RestorePool(rec PoolRecord, opts DecodeOptions) (*Pool, error) {
	p := NewPool()
	p.seq = rec.Seq
	for _, entry := range rec.Entries {
		s, err := DecodeStructure(entry.Value)
		if err != nil {
			if opts.WarnAndSkip {
				if opts.Warn != nil {
					opts.Warn(entry.ID, err)
				}
				continue
			}
			return nil, fmt.Errorf("decode pool entry %s: %w", entry.ID, err)
		}
		p.order = append(p.order, entry.ID)
		p.entries[entry.ID] = s
		p.byKind[s.Kind()] = append(p.byKind[s.Kind()], entry.ID)
	}
	return p, nil
}

// ExportSimulation serializes a simulation chain.
func ExportSimulation(s *Simulation) SimulationRecord {
	rec := SimulationRecord{
		Title:  s.title,
		Tip:    s.tip,
		States: make([]StateRecord, 0, len(s.states)),
	}
	for _, st := range s.states {
		rec.States = append(rec.States, StateRecord{
			Label:       st.label,
			Parent:      st.parent,
			Assignments: st.Assignments(),
		})
	}
	if len(s.branchRefs) > 0 {
		rec.BranchRefs = make(map[int][]string, len(s.branchRefs))
		for idx, refs := range s.branchRefs {
			out := make([]string, len(refs))
			copy(out, refs)
			rec.BranchRefs[idx] = out
		}
	}
	return rec
}

// RestoreSimulation rebuilds a simulation from its record. The chain is
// replayed exactly as recorded, without eager compaction.
func RestoreSimulation(rec SimulationRecord) (*Simulation, error) {
	if len(rec.States) == 0 {
		return nil, fmt.Errorf("%w: simulation %q has no states", ErrSerialization, rec.Title)
	}
	if rec.Tip < 0 || rec.Tip >= len(rec.States) {
		return nil, fmt.Errorf("%w: simulation %q tip %d out of range", ErrSerialization, rec.Title, rec.Tip)
	}
	s := &Simulation{
		title:      rec.Title,
		states:     make([]*DataState, 0, len(rec.States)),
		tip:        rec.Tip,
		branchRefs: make(map[int][]string),
		memo:       make(map[int]map[VariableID]EntryID),
	}
	for i, st := range rec.States {
		if i == 0 && st.Parent != noParent {
			return nil, fmt.Errorf("%w: simulation %q root has parent %d", ErrSerialization, rec.Title, st.Parent)
		}
		if i > 0 && (st.Parent < 0 || st.Parent >= i) {
			return nil, fmt.Errorf("%w: simulation %q state %d has parent %d", ErrSerialization, rec.Title, i, st.Parent)
		}
		s.states = append(s.states, newDataState(st.Assignments, st.Label, st.Parent))
	}
	for idx, refs := range rec.BranchRefs {
		if idx < 0 || idx >= len(s.states) {
			return nil, fmt.Errorf("%w: simulation %q branch ref index %d out of range", ErrSerialization, rec.Title, idx)
		}
		out := make([]string, len(refs))
		copy(out, refs)
		s.branchRefs[idx] = out
	}
	return s, nil
}
