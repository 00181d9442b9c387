package domain

import (
	"errors"
	"testing"
)

func TestPoolPutDeduplicates(t *testing.T) {
	p := NewPool()
	a := p.Put(Scalar{Value: 4.2})
	b := p.Put(Scalar{Value: 4.2})
	if a != b {
		t.Fatalf("equal values should share one entry, got %s and %s", a, b)
	}
	if p.Len() != 1 {
		t.Fatalf("pool should hold one entry, has %d", p.Len())
	}
	c := p.Put(Scalar{Value: 4.3})
	if c == a {
		t.Fatalf("distinct values must not share an entry")
	}
}

func TestPoolPutToleranceDedup(t *testing.T) {
	p := NewPool()
	a := p.Put(Scalar{Value: 1.0})
	b := p.Put(Scalar{Value: 1.0 + 1e-12})
	if a != b {
		t.Fatalf("values within tolerance should dedupe to one entry")
	}
}

func TestPoolKindsDoNotCollide(t *testing.T) {
	p := NewPool()
	a := p.Put(Integer{Value: 1})
	b := p.Put(Scalar{Value: 1})
	if a == b {
		t.Fatalf("same numeric value of different kinds must be distinct entries")
	}
}

func TestPoolGetMissing(t *testing.T) {
	p := NewPool()
	if _, err := p.Get("d99"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing entry should fail with ErrNotFound, got %v", err)
	}
}

func TestPoolSubset(t *testing.T) {
	p := NewPool()
	a := p.Put(Text{Value: "keep"})
	p.Put(Text{Value: "drop"})
	c := p.Put(Flag{Value: true})

	sub, err := p.Subset([]EntryID{a, c})
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	if sub.Len() != 2 {
		t.Fatalf("subset should hold 2 entries, has %d", sub.Len())
	}
	got, err := sub.Get(a)
	if err != nil {
		t.Fatalf("subset lost entry %s: %v", a, err)
	}
	if !got.Equal(Text{Value: "keep"}) {
		t.Fatalf("subset entry %s changed value", a)
	}

	if _, err := p.Subset([]EntryID{"d99"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("subset of unknown id should fail with ErrNotFound, got %v", err)
	}
}

func TestPoolSubsetPreservesIDs(t *testing.T) {
	p := NewPool()
	p.Put(Scalar{Value: 1})
	b := p.Put(Scalar{Value: 2})
	sub, err := p.Subset([]EntryID{b})
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	if !sub.Contains(b) {
		t.Fatalf("subset must keep original entry ids")
	}
}
