package core

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"simcore/internal/infra/persistence/memory"
	"simcore/pkg/domain"
)

func TestSaveLoadStateRoundTrip(t *testing.T) {
	store := memory.NewStore()
	src := NewService(testCatalog(t, "a", "b"), NewRegistry(), WithStore(store))
	if err := src.CreateSimulation("baseline"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := src.AddDatastate("", "design", map[VariableID]any{"a": 1.0, "b": 2.0}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := src.AddDatastate("", "tuned", map[VariableID]any{"b": 4.0}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := src.BranchSimulation("baseline", "variant"); err != nil {
		t.Fatalf("branch: %v", err)
	}
	if err := src.AddDatastate("variant", "", map[VariableID]any{"a": 3.0}); err != nil {
		t.Fatalf("add in branch: %v", err)
	}
	if err := src.SetActive("variant"); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := src.SaveState(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}

	dst := NewService(testCatalog(t, "a", "b"), NewRegistry(), WithStore(store))
	ok, err := dst.LoadState(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("load found no snapshot")
	}
	if got := dst.Simulations(); !reflect.DeepEqual(got, []string{"baseline", "variant"}) {
		t.Fatalf("simulations = %v", got)
	}
	if got := dst.ActiveSimulation(); got != "variant" {
		t.Fatalf("active = %q", got)
	}
	for title, want := range map[string]float64{"baseline": 1.0, "variant": 3.0} {
		got, err := dst.GetDataValue(title, "a")
		if err != nil {
			t.Fatalf("get %s: %v", title, err)
		}
		if s := got.(domain.Scalar); s.Value != want {
			t.Fatalf("%s a = %v, want %v", title, s.Value, want)
		}
	}
	// branch protection survives the round trip
	if err := dst.Reset("baseline", "design"); !errors.Is(err, domain.ErrScheduling) {
		t.Fatalf("reset after restore = %v, want ErrScheduling", err)
	}
}

func TestLoadStateWithoutSnapshot(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(testCatalog(t), NewRegistry(), WithStore(store))
	if err := svc.CreateSimulation("baseline"); err != nil {
		t.Fatalf("create: %v", err)
	}
	ok, err := svc.LoadState(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("empty store reported a snapshot")
	}
	if got := svc.Simulations(); !reflect.DeepEqual(got, []string{"baseline"}) {
		t.Fatalf("load without snapshot touched the service: %v", got)
	}
}

func TestSaveStateRequiresStore(t *testing.T) {
	svc := NewService(testCatalog(t), NewRegistry())
	if err := svc.SaveState(context.Background()); !errors.Is(err, domain.ErrSerialization) {
		t.Fatalf("save = %v, want ErrSerialization", err)
	}
	if _, err := svc.LoadState(context.Background()); !errors.Is(err, domain.ErrSerialization) {
		t.Fatalf("load = %v, want ErrSerialization", err)
	}
}

func TestLoadStateSkipsUndecodableEntries(t *testing.T) {
	store := memory.NewStore()
	src := NewService(testCatalog(t, "a"), NewRegistry(), WithStore(store))
	if err := src.CreateSimulation("baseline"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := src.AddDatastate("", "design", map[VariableID]any{"a": 1.0}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := src.SaveState(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, _, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("raw load: %v", err)
	}
	snap.Pool.Entries = append(snap.Pool.Entries, domain.PoolEntryRecord{
		ID:    "d999",
		Value: []byte(`{"kind":"no-such-kind"}`),
	})
	if err := store.Save(context.Background(), snap); err != nil {
		t.Fatalf("raw save: %v", err)
	}

	var warnings int
	logger := funcLogger{warn: func(string, ...any) { warnings++ }}
	dst := NewService(testCatalog(t, "a"), NewRegistry(), WithStore(store), WithLogger(logger))
	ok, err := dst.LoadState(context.Background())
	if err != nil || !ok {
		t.Fatalf("load = %v, %v", ok, err)
	}
	if warnings == 0 {
		t.Fatalf("undecodable entry produced no warning")
	}
	got, err := dst.GetDataValue("baseline", "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s := got.(domain.Scalar); s.Value != 1.0 {
		t.Fatalf("a = %v", s.Value)
	}
}

// funcLogger routes Warn calls to a test hook.
type funcLogger struct {
	warn func(msg string, fields ...any)
}

func (l funcLogger) Debug(string, ...any) {}
func (l funcLogger) Info(string, ...any)  {}
func (l funcLogger) Error(string, ...any) {}
func (l funcLogger) Warn(msg string, fields ...any) {
	if l.warn != nil {
		l.warn(msg, fields...)
	}
}
