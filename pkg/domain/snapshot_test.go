package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPoolSnapshotRoundTrip(t *testing.T) {
	p := NewPool()
	a := p.Put(Scalar{Value: 1.5})
	b := p.Put(Text{Value: "hello"})

	rec, err := ExportPool(p)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	restored, err := RestorePool(rec, DecodeOptions{})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, err := restored.Get(a)
	if err != nil {
		t.Fatalf("restored pool lost %s: %v", a, err)
	}
	if !got.Equal(Scalar{Value: 1.5}) {
		t.Fatalf("restored value changed for %s", a)
	}
	if !restored.Contains(b) {
		t.Fatalf("restored pool lost %s", b)
	}

	// ids must keep counting past restored entries
	c := restored.Put(Flag{Value: true})
	if c == a || c == b {
		t.Fatalf("new entry reused an existing id: %s", c)
	}
}

func TestRestorePoolWarnAndSkip(t *testing.T) {
	bogus, err := json.Marshal(map[string]any{"kind": "tensor", "value": map[string]any{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	good, err := EncodeStructure(Scalar{Value: 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rec := PoolRecord{
		Seq: 2,
		Entries: []PoolEntryRecord{
			{ID: "d1", Value: bogus},
			{ID: "d2", Value: good},
		},
	}

	if _, err := RestorePool(rec, DecodeOptions{}); !errors.Is(err, ErrSerialization) {
		t.Fatalf("strict restore should fail with ErrSerialization, got %v", err)
	}

	var warned []EntryID
	p, err := RestorePool(rec, DecodeOptions{
		WarnAndSkip: true,
		Warn:        func(id EntryID, err error) { warned = append(warned, id) },
	})
	if err != nil {
		t.Fatalf("lenient restore failed: %v", err)
	}
	if p.Len() != 1 || !p.Contains("d2") {
		t.Fatalf("lenient restore should keep the decodable entry only")
	}
	if len(warned) != 1 || warned[0] != "d1" {
		t.Fatalf("warn callback should report the skipped entry, got %v", warned)
	}
}

func TestSimulationSnapshotRoundTrip(t *testing.T) {
	s := NewSimulation("scenario")
	s.Append(mapping(map[VariableID]EntryID{"a": "d1"}), "inputs")
	s.Append(map[VariableID]*EntryID{"a": nil, "b": ref("d2")}, "outputs")
	if err := s.AddBranchRef(s.Tip(), "variant"); err != nil {
		t.Fatalf("add branch ref: %v", err)
	}

	rec := ExportSimulation(s)
	restored, err := RestoreSimulation(rec)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Title() != "scenario" || restored.Tip() != s.Tip() {
		t.Fatalf("restored chain shape differs: title %q tip %d", restored.Title(), restored.Tip())
	}
	want, err := s.MergeTip()
	if err != nil {
		t.Fatalf("merge original: %v", err)
	}
	got, err := restored.MergeTip()
	if err != nil {
		t.Fatalf("merge restored: %v", err)
	}
	if len(got) != len(want) || got["b"] != want["b"] {
		t.Fatalf("restored tip resolves differently: %v vs %v", got, want)
	}
	if _, ok := got["a"]; ok {
		t.Fatalf("explicit unset lost in round trip")
	}
	if refs := restored.BranchRefs(restored.Tip()); len(refs) != 1 || refs[0] != "variant" {
		t.Fatalf("branch refs lost in round trip: %v", refs)
	}
}

func TestRestoreSimulationRejectsBadChains(t *testing.T) {
	cases := []SimulationRecord{
		{Title: "empty"},
		{Title: "badtip", Tip: 5, States: []StateRecord{{Parent: -1}}},
		{Title: "badroot", Tip: 0, States: []StateRecord{{Parent: 3}}},
		{Title: "forward", Tip: 1, States: []StateRecord{{Parent: -1}, {Parent: 1}}},
	}
	for _, rec := range cases {
		if _, err := RestoreSimulation(rec); !errors.Is(err, ErrSerialization) {
			t.Fatalf("%s: want ErrSerialization, got %v", rec.Title, err)
		}
	}
}
