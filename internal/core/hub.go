package core

import (
	"errors"
	"fmt"

	"simcore/pkg/domain"
)

// Status tracks an interface through its hub lifecycle.
type Status string

const (
	StatusUnscheduled Status = "unscheduled" // waiting for inputs
	StatusScheduled   Status = "scheduled"   // inputs satisfied, ready to run
	StatusCompleted   Status = "completed"   // executed successfully
	StatusErrored     Status = "errored"     // execution failed
)

// Sentinel results of Hub.Next. They are control flow, not failures.
var (
	// ErrNextPending means no interface is ready yet but unexecuted ones
	// remain; supplying more data may unblock them.
	ErrNextPending = errors.New("no interface ready")
	// ErrNextExhausted means every interface has completed or errored.
	ErrNextExhausted = errors.New("all interfaces executed")
)

type hubEntry struct {
	name   string
	status Status
}

// Hub tracks a set of interfaces and their execution readiness against the
// data visible in a simulation. Entries keep their insertion order, which is
// the tie-break when several interfaces are ready at once.
type Hub struct {
	registry *Registry
	entries  []*hubEntry
	index    map[string]*hubEntry
}

// NewHub constructs an empty hub over a registry.
func NewHub(registry *Registry) *Hub {
	return &Hub{registry: registry, index: make(map[string]*hubEntry)}
}

// AddInterface adds a registered provider to the hub in Unscheduled status.
func (h *Hub) AddInterface(name string) error {
	if !h.registry.Contains(name) {
		return fmt.Errorf("%w: no provider named %q", domain.ErrNotFound, name)
	}
	if _, ok := h.index[name]; ok {
		return fmt.Errorf("%w: interface %q already in hub", domain.ErrScheduling, name)
	}
	e := &hubEntry{name: name, status: StatusUnscheduled}
	h.entries = append(h.entries, e)
	h.index[name] = e
	return nil
}

// RefreshInterface revalidates an interface against the registry, keeping
// its current status. Used after rediscovery so an already-completed entry
// is not re-run.
func (h *Hub) RefreshInterface(name string) error {
	if _, ok := h.index[name]; !ok {
		return fmt.Errorf("%w: interface %q not in hub", domain.ErrNotFound, name)
	}
	if !h.registry.Contains(name) {
		return fmt.Errorf("%w: provider %q no longer registered", domain.ErrNotFound, name)
	}
	// declarations live in the registry and the entry keeps its status
	return nil
}

// Names returns hub interface names in insertion order.
func (h *Hub) Names() []string {
	out := make([]string, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e.name)
	}
	return out
}

// Status returns the current status of an interface.
func (h *Hub) Status(name string) (Status, error) {
	e, ok := h.index[name]
	if !ok {
		return "", fmt.Errorf("%w: interface %q not in hub", domain.ErrNotFound, name)
	}
	return e.status, nil
}

// Refresh re-evaluates readiness: every Unscheduled interface whose required
// inputs are all present in the given mapping becomes Scheduled. Completed
// and errored entries are never demoted.
func (h *Hub) Refresh(available map[VariableID]EntryID) {
	for _, e := range h.entries {
		if e.status != StatusUnscheduled {
			continue
		}
		if h.ready(e.name, available) {
			e.status = StatusScheduled
		}
	}
}

func (h *Hub) ready(name string, available map[VariableID]EntryID) bool {
	optional := make(map[VariableID]bool)
	for _, id := range h.registry.OptionalInputs(name) {
		optional[id] = true
	}
	for _, id := range h.registry.Inputs(name) {
		if optional[id] {
			continue
		}
		if _, ok := available[id]; !ok {
			return false
		}
	}
	return true
}

// Next returns the name of the first Scheduled interface in insertion order.
// It returns ErrNextPending when nothing is ready but Unscheduled entries
// remain, and ErrNextExhausted when every entry has completed or errored.
func (h *Hub) Next() (string, error) {
	pending := false
	for _, e := range h.entries {
		switch e.status {
		case StatusScheduled:
			return e.name, nil
		case StatusUnscheduled:
			pending = true
		}
	}
	if pending {
		return "", ErrNextPending
	}
	return "", ErrNextExhausted
}

// Complete marks a Scheduled interface as completed.
func (h *Hub) Complete(name string) error {
	return h.transition(name, StatusScheduled, StatusCompleted)
}

// MarkError marks a Scheduled interface as errored.
func (h *Hub) MarkError(name string) error {
	return h.transition(name, StatusScheduled, StatusErrored)
}

func (h *Hub) transition(name string, from, to Status) error {
	e, ok := h.index[name]
	if !ok {
		return fmt.Errorf("%w: interface %q not in hub", domain.ErrNotFound, name)
	}
	if e.status != from {
		return fmt.Errorf("%w: interface %q is %s, want %s", domain.ErrScheduling, e.name, e.status, from)
	}
	e.status = to
	return nil
}

// Sequencer is a hub with a fixed pipeline order derived from interface
// weights. Entries run strictly one after another: a later interface is not
// offered until every earlier one has completed.
type Sequencer struct {
	*Hub
}

// NewSequencer builds a sequencer over the named providers. Every provider
// must declare a weight and weights must be unique; entries are ordered by
// ascending weight.
func NewSequencer(registry *Registry, names []string) (*Sequencer, error) {
	type weighted struct {
		name   string
		weight int
	}
	ordered := make([]weighted, 0, len(names))
	seen := make(map[int]string, len(names))
	for _, name := range names {
		if !registry.Contains(name) {
			return nil, fmt.Errorf("%w: no provider named %q", domain.ErrNotFound, name)
		}
		w, ok := registry.Weight(name)
		if !ok {
			return nil, fmt.Errorf("%w: provider %q declares no weight", domain.ErrScheduling, name)
		}
		if prev, dup := seen[w]; dup {
			return nil, fmt.Errorf("%w: providers %q and %q share weight %d", domain.ErrScheduling, prev, name, w)
		}
		seen[w] = name
		ordered = append(ordered, weighted{name: name, weight: w})
	}
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].weight < ordered[j-1].weight; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	s := &Sequencer{Hub: NewHub(registry)}
	for _, w := range ordered {
		if err := s.AddInterface(w.name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Next returns the earliest pipeline entry still to run, provided it is
// Scheduled. Unlike Hub.Next it never skips ahead past an unready entry.
func (s *Sequencer) Next() (string, error) {
	for _, e := range s.entries {
		switch e.status {
		case StatusCompleted:
			continue
		case StatusScheduled:
			return e.name, nil
		case StatusUnscheduled:
			return "", ErrNextPending
		case StatusErrored:
			return "", fmt.Errorf("%w: pipeline blocked by errored interface %q", domain.ErrScheduling, e.name)
		}
	}
	return "", ErrNextExhausted
}
