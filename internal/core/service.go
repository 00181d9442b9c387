package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"simcore/pkg/domain"
	"simcore/pkg/pluginapi"
)

// Service exposes the engine operations: simulation lifecycle, data
// assignment and retrieval, interface execution and snapshot persistence.
// All simulations served by one Service share a single deduplicating pool.
type Service struct {
	catalog  *domain.Catalog
	registry *Registry
	pool     *domain.Pool
	sims     map[string]*domain.Simulation
	simOrder []string
	active   string

	store   domain.PersistentStore
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger wires a structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics wires an operation metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer wires a tracer around engine operations.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithStore wires a persistent snapshot store for SaveState and LoadState.
func WithStore(store domain.PersistentStore) Option {
	return func(s *Service) { s.store = store }
}

// NewService constructs an engine service over a catalog and a registry.
func NewService(catalog *domain.Catalog, registry *Registry, opts ...Option) *Service {
	s := &Service{
		catalog:  catalog,
		registry: registry,
		pool:     domain.NewPool(),
		sims:     make(map[string]*domain.Simulation),
		logger:   noopLogger{},
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the service's data catalog.
func (s *Service) Catalog() *domain.Catalog { return s.catalog }

// Registry returns the service's capability registry.
func (s *Service) Registry() *Registry { return s.registry }

// Pool returns the shared data pool.
func (s *Service) Pool() *domain.Pool { return s.pool }

func (s *Service) instrument(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	return ctx, func(err error) {
		s.metrics.Observe(ctx, op, err == nil, time.Since(start))
		span.End(err)
	}
}

// CreateSimulation starts a new, empty simulation under the given title. The
// first simulation created becomes active.
func (s *Service) CreateSimulation(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: simulation title is empty", domain.ErrValidation)
	}
	if _, exists := s.sims[title]; exists {
		return fmt.Errorf("%w: simulation %q already exists", domain.ErrValidation, title)
	}
	s.sims[title] = domain.NewSimulation(title)
	s.simOrder = append(s.simOrder, title)
	if s.active == "" {
		s.active = title
	}
	s.logger.Info("simulation created", "title", title)
	return nil
}

// Simulations returns simulation titles in creation order.
func (s *Service) Simulations() []string {
	out := make([]string, len(s.simOrder))
	copy(out, s.simOrder)
	return out
}

// ActiveSimulation returns the title of the active simulation, empty when
// none exists.
func (s *Service) ActiveSimulation() string { return s.active }

// SetActive switches the active simulation.
func (s *Service) SetActive(title string) error {
	if _, ok := s.sims[title]; !ok {
		return fmt.Errorf("%w: simulation %q", domain.ErrNotFound, title)
	}
	s.active = title
	return nil
}

func (s *Service) simulation(title string) (*domain.Simulation, error) {
	if title == "" {
		title = s.active
	}
	sim, ok := s.sims[title]
	if !ok {
		return nil, fmt.Errorf("%w: simulation %q", domain.ErrNotFound, title)
	}
	return sim, nil
}

// AddDatastate validates and stores a set of variable assignments as one new
// state on the simulation's chain. A nil value records an explicit unset.
// Validation runs for every entry before anything is written, so a failing
// value leaves both the pool and the chain untouched.
func (s *Service) AddDatastate(title, label string, values map[VariableID]any) error {
	sim, err := s.simulation(title)
	if err != nil {
		return err
	}
	ids := make([]VariableID, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	validated := make(map[VariableID]Structure, len(values))
	for _, id := range ids {
		raw := values[id]
		if raw == nil {
			if !s.catalog.Contains(id) {
				return fmt.Errorf("%w: variable %s", domain.ErrNotFound, id)
			}
			continue
		}
		structure, err := s.catalog.Validate(id, raw)
		if err != nil {
			return err
		}
		validated[id] = structure
	}

	mapping := make(map[VariableID]*EntryID, len(values))
	for _, id := range ids {
		if values[id] == nil {
			mapping[id] = nil
			continue
		}
		entry := s.pool.Put(validated[id])
		mapping[id] = &entry
	}
	idx := sim.Append(mapping, label)
	s.logger.Debug("datastate added", "simulation", sim.Title(), "state", idx, "label", label, "variables", len(values))
	return nil
}

// GetDataValue resolves a variable at the simulation's tip and returns its
// value from the pool. Unset or never-assigned variables yield ErrNotFound.
func (s *Service) GetDataValue(title string, id VariableID) (Structure, error) {
	sim, err := s.simulation(title)
	if err != nil {
		return nil, err
	}
	merged, err := sim.MergeTip()
	if err != nil {
		return nil, err
	}
	entry, ok := merged[id]
	if !ok {
		return nil, fmt.Errorf("%w: variable %s has no value in simulation %q", domain.ErrNotFound, id, sim.Title())
	}
	return s.pool.Get(entry)
}

// HasDataValue reports whether a variable resolves to a value at the tip.
func (s *Service) HasDataValue(title string, id VariableID) (bool, error) {
	sim, err := s.simulation(title)
	if err != nil {
		return false, err
	}
	merged, err := sim.MergeTip()
	if err != nil {
		return false, err
	}
	_, ok := merged[id]
	return ok, nil
}

// BranchSimulation copies the source chain up to its tip into a new
// simulation and records the branch point on the source, blocking later
// resets past it.
func (s *Service) BranchSimulation(source, title string) error {
	src, err := s.simulation(source)
	if err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: simulation title is empty", domain.ErrValidation)
	}
	if _, exists := s.sims[title]; exists {
		return fmt.Errorf("%w: simulation %q already exists", domain.ErrValidation, title)
	}
	clone := src.Fork(title)
	if err := src.AddBranchRef(src.Tip(), title); err != nil {
		return err
	}
	s.sims[title] = clone
	s.simOrder = append(s.simOrder, title)
	s.logger.Info("simulation branched", "source", src.Title(), "title", title, "state", src.Tip())
	return nil
}

// RemoveSimulation deletes a simulation and releases every branch point it
// holds on other simulations.
func (s *Service) RemoveSimulation(title string) error {
	if _, ok := s.sims[title]; !ok {
		return fmt.Errorf("%w: simulation %q", domain.ErrNotFound, title)
	}
	delete(s.sims, title)
	for i, t := range s.simOrder {
		if t == title {
			s.simOrder = append(s.simOrder[:i], s.simOrder[i+1:]...)
			break
		}
	}
	for _, sim := range s.sims {
		sim.RemoveBranchRefs(title)
	}
	if s.active == title {
		s.active = ""
		if len(s.simOrder) > 0 {
			s.active = s.simOrder[0]
		}
	}
	s.logger.Info("simulation removed", "title", title)
	return nil
}

// Compact collapses unlabeled runs in the simulation's chain.
func (s *Service) Compact(title string) error {
	sim, err := s.simulation(title)
	if err != nil {
		return err
	}
	before := sim.Len()
	sim.Compact()
	s.logger.Debug("simulation compacted", "title", sim.Title(), "before", before, "after", sim.Len())
	return nil
}

// Reset rewinds the simulation to the most recent state with the given
// label. It fails when a discarded state is a branch point of another
// simulation.
func (s *Service) Reset(title, label string) error {
	sim, err := s.simulation(title)
	if err != nil {
		return err
	}
	if err := sim.Reset(label); err != nil {
		return err
	}
	s.logger.Info("simulation reset", "title", sim.Title(), "label", label)
	return nil
}

// ImportSimulation grafts a foreign simulation chain into this service. The
// new title must be free. Every referenced value is copied from the source
// pool through Put, so entries equal to existing ones are shared rather than
// duplicated and importing the same chain twice under different titles does
// not grow the pool. Labels, explicit unsets and chain order are preserved;
// no eager compaction is applied.
func (s *Service) ImportSimulation(title string, rec domain.SimulationRecord, source *domain.Pool) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = rec.Title
	}
	if _, exists := s.sims[title]; exists {
		return fmt.Errorf("%w: simulation %q already exists", domain.ErrImportFailure, title)
	}
	imported, err := domain.RestoreSimulation(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrImportFailure, err)
	}

	remap := make(map[EntryID]EntryID)
	for _, id := range imported.EntryIDs() {
		value, err := source.Get(id)
		if err != nil {
			return fmt.Errorf("%w: chain references missing entry %s", domain.ErrImportFailure, id)
		}
		remap[id] = s.pool.Put(value)
	}

	sim := domain.NewSimulation(title)
	for i := 1; i < imported.Len(); i++ {
		st, err := imported.State(i)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrImportFailure, err)
		}
		if st.Parent() != i-1 {
			return fmt.Errorf("%w: state %d has parent %d, chain must be linear",
				domain.ErrImportFailure, i, st.Parent())
		}
		mapping := make(map[VariableID]*EntryID, st.Len())
		for id, ref := range st.Assignments() {
			if ref == nil {
				mapping[id] = nil
				continue
			}
			entry := remap[*ref]
			mapping[id] = &entry
		}
		sim.AppendRaw(mapping, st.Label())
	}
	s.sims[title] = sim
	s.simOrder = append(s.simOrder, title)
	s.logger.Info("simulation imported", "title", title, "states", sim.Len(), "entries", len(remap))
	return nil
}

// ExportSimulationRecord returns a compacted copy of the simulation chain
// together with the subset of the pool it references. The service's own
// chain is left untouched; branch bookkeeping is not exported.
func (s *Service) ExportSimulationRecord(title string) (domain.SimulationRecord, domain.PoolRecord, error) {
	sim, err := s.simulation(title)
	if err != nil {
		return domain.SimulationRecord{}, domain.PoolRecord{}, err
	}
	clone := sim.Fork(sim.Title())
	clone.Compact()
	subset, err := s.pool.Subset(clone.EntryIDs())
	if err != nil {
		return domain.SimulationRecord{}, domain.PoolRecord{}, err
	}
	poolRec, err := domain.ExportPool(subset)
	if err != nil {
		return domain.SimulationRecord{}, domain.PoolRecord{}, err
	}
	return domain.ExportSimulation(clone), poolRec, nil
}

// LoadInterface constructs a fresh instance of the named provider and feeds
// it every declared input resolvable at the simulation's tip. A required
// input without a value fails with ErrScheduling; optional inputs are simply
// skipped.
func (s *Service) LoadInterface(title, name string) (pluginapi.Interface, error) {
	sim, err := s.simulation(title)
	if err != nil {
		return nil, err
	}
	iface, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	merged, err := sim.MergeTip()
	if err != nil {
		return nil, err
	}
	optional := make(map[VariableID]bool)
	for _, id := range iface.OptionalInputs() {
		optional[id] = true
	}
	for _, id := range iface.Inputs() {
		entry, ok := merged[id]
		if !ok {
			if optional[id] {
				continue
			}
			return nil, fmt.Errorf("%w: interface %q is missing required input %s", domain.ErrScheduling, name, id)
		}
		value, err := s.pool.Get(entry)
		if err != nil {
			return nil, err
		}
		if err := iface.PutData(id, value); err != nil {
			return nil, err
		}
	}
	return iface, nil
}

// RefreshHub re-evaluates hub readiness against the simulation's tip.
func (s *Service) RefreshHub(title string, hub *Hub) error {
	sim, err := s.simulation(title)
	if err != nil {
		return err
	}
	merged, err := sim.MergeTip()
	if err != nil {
		return err
	}
	hub.Refresh(merged)
	return nil
}

// Scheduler is the readiness surface ExecuteNext drives. Both Hub and
// Sequencer satisfy it.
type Scheduler interface {
	Next() (string, error)
	Complete(name string) error
	MarkError(name string) error
}

// ExecuteNext runs the next ready interface of the hub against the
// simulation: inputs are loaded from the tip, Connect runs under the given
// context, outputs are validated and appended as one labeled state. The
// state label is the lowercased interface name. Hub.Next sentinels pass
// through unchanged so callers can distinguish pending from exhausted.
func (s *Service) ExecuteNext(ctx context.Context, title string, hub Scheduler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := hub.Next()
	if err != nil {
		return err
	}
	ctx, done := s.instrument(ctx, "execute "+name)
	err = s.executeOne(ctx, title, name, hub)
	done(err)
	return err
}

func (s *Service) executeOne(ctx context.Context, title, name string, hub Scheduler) error {
	iface, err := s.LoadInterface(title, name)
	if err != nil {
		return err
	}
	if err := iface.Connect(ctx); err != nil {
		if merr := hub.MarkError(name); merr != nil {
			s.logger.Warn("status update failed", "interface", name, "error", merr)
		}
		s.logger.Error("interface failed", "interface", name, "error", err)
		return fmt.Errorf("%w: interface %q: %v", domain.ErrConnection, name, err)
	}

	// Once Connect has run, any failure collecting or validating its
	// outputs marks the entry errored; re-running a hub must not retry
	// an interface whose outputs are already known bad.
	fail := func(err error) error {
		if merr := hub.MarkError(name); merr != nil {
			s.logger.Warn("status update failed", "interface", name, "error", merr)
		}
		s.logger.Error("interface outputs rejected", "interface", name, "error", err)
		return err
	}

	values := make(map[VariableID]any)
	for _, id := range iface.Outputs() {
		value, err := iface.GetData(id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// the interface produced nothing for this output; record
				// an explicit unset so stale ancestors do not leak through
				values[id] = nil
				continue
			}
			return fail(err)
		}
		values[id] = value
	}
	if err := s.AddDatastate(title, strings.ToLower(name), values); err != nil {
		return fail(err)
	}
	if err := hub.Complete(name); err != nil {
		return err
	}
	s.logger.Info("interface executed", "interface", name, "simulation", title, "outputs", len(values))
	return nil
}

// RunHub executes ready interfaces until the hub is exhausted, refreshing
// readiness after every run so newly produced outputs can unblock waiting
// interfaces. The context is checked between executions; cancellation stops
// the loop with the context's error. A hub left with waiting interfaces and
// nothing ready returns ErrNextPending.
func (s *Service) RunHub(ctx context.Context, title string, hub *Hub) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.RefreshHub(title, hub); err != nil {
			return err
		}
		err := s.ExecuteNext(ctx, title, hub)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNextExhausted) {
			return nil
		}
		return err
	}
}

// RunSequencer executes a weighted pipeline to exhaustion, same loop shape
// as RunHub.
func (s *Service) RunSequencer(ctx context.Context, title string, seq *Sequencer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.RefreshHub(title, seq.Hub); err != nil {
			return err
		}
		err := s.ExecuteNext(ctx, title, seq)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNextExhausted) {
			return nil
		}
		return err
	}
}

// SaveState writes the pool and every simulation chain through the
// configured persistent store.
func (s *Service) SaveState(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("%w: no persistent store configured", domain.ErrSerialization)
	}
	ctx, done := s.instrument(ctx, "save state")
	snap, err := s.snapshot()
	if err != nil {
		done(err)
		return err
	}
	err = s.store.Save(ctx, snap)
	done(err)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.Info("state saved", "simulations", len(snap.Simulations), "entries", len(snap.Pool.Entries))
	return nil
}

func (s *Service) snapshot() (Snapshot, error) {
	poolRec, err := domain.ExportPool(s.pool)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Version: domain.SnapshotVersion,
		SavedAt: time.Now().UTC(),
		Active:  s.active,
		Pool:    poolRec,
	}
	for _, title := range s.simOrder {
		snap.Simulations = append(snap.Simulations, domain.ExportSimulation(s.sims[title]))
	}
	return snap, nil
}

// LoadState replaces the pool and all simulations with the latest stored
// snapshot. Pool entries that no longer decode are skipped with a warning
// rather than failing the whole restore. Without a stored snapshot the
// service is left untouched and the second result is false.
func (s *Service) LoadState(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, fmt.Errorf("%w: no persistent store configured", domain.ErrSerialization)
	}
	ctx, done := s.instrument(ctx, "load state")
	snap, ok, err := s.store.Load(ctx)
	if err != nil {
		done(err)
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		done(nil)
		return false, nil
	}
	err = s.restore(snap)
	done(err)
	if err != nil {
		return false, err
	}
	s.logger.Info("state loaded", "simulations", len(snap.Simulations), "entries", len(snap.Pool.Entries))
	return true, nil
}

func (s *Service) restore(snap Snapshot) error {
	pool, err := domain.RestorePool(snap.Pool, domain.DecodeOptions{
		WarnAndSkip: true,
		Warn: func(id EntryID, err error) {
			s.logger.Warn("skipping undecodable pool entry", "entry", id, "error", err)
		},
	})
	if err != nil {
		return err
	}
	sims := make(map[string]*domain.Simulation, len(snap.Simulations))
	order := make([]string, 0, len(snap.Simulations))
	for _, rec := range snap.Simulations {
		sim, err := domain.RestoreSimulation(rec)
		if err != nil {
			return err
		}
		sims[rec.Title] = sim
		order = append(order, rec.Title)
	}
	s.pool = pool
	s.sims = sims
	s.simOrder = order
	s.active = snap.Active
	if s.active != "" {
		if _, ok := s.sims[s.active]; !ok {
			s.active = ""
		}
	}
	if s.active == "" && len(order) > 0 {
		s.active = order[0]
	}
	return nil
}
