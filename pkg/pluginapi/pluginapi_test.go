package pluginapi

import (
	"errors"
	"testing"

	"simcore/pkg/domain"
)

func TestNewBaseOptionalMustBeDeclared(t *testing.T) {
	_, err := NewBase(
		[]domain.VariableID{"a"},
		[]domain.VariableID{"b"},
		nil,
	)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("undeclared optional input should fail with ErrValidation, got %v", err)
	}
}

func TestBasePutDataDeclaredOnly(t *testing.T) {
	b, err := NewBase([]domain.VariableID{"a"}, nil, []domain.VariableID{"out"})
	if err != nil {
		t.Fatalf("new base: %v", err)
	}
	if err := b.PutData("a", domain.Scalar{Value: 1}); err != nil {
		t.Fatalf("put declared input: %v", err)
	}
	if err := b.PutData("x", domain.Scalar{Value: 1}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("undeclared input should fail with ErrValidation, got %v", err)
	}
}

func TestBaseOutputRoundTrip(t *testing.T) {
	b, err := NewBase(nil, nil, []domain.VariableID{"out"})
	if err != nil {
		t.Fatalf("new base: %v", err)
	}
	if _, err := b.GetData("out"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unset output should fail with ErrNotFound, got %v", err)
	}
	if err := b.SetOutput("out", domain.Text{Value: "done"}); err != nil {
		t.Fatalf("set output: %v", err)
	}
	got, err := b.GetData("out")
	if err != nil {
		t.Fatalf("get output: %v", err)
	}
	if !got.Equal(domain.Text{Value: "done"}) {
		t.Fatalf("output changed in transit")
	}
	if err := b.SetOutput("other", domain.Text{Value: "x"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("undeclared output should fail with ErrValidation, got %v", err)
	}
}

func TestBaseRequiredInputs(t *testing.T) {
	b, err := NewBase(
		[]domain.VariableID{"a", "b", "c"},
		[]domain.VariableID{"b"},
		nil,
	)
	if err != nil {
		t.Fatalf("new base: %v", err)
	}
	required := b.RequiredInputs()
	if len(required) != 2 || required[0] != "a" || required[1] != "c" {
		t.Fatalf("required inputs = %v, want [a c]", required)
	}
	optional := b.OptionalInputs()
	if len(optional) != 1 || optional[0] != "b" {
		t.Fatalf("optional inputs = %v, want [b]", optional)
	}
}
