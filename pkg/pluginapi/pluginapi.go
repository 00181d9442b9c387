package pluginapi

import (
	"context"
	"fmt"

	"simcore/pkg/domain"
)

// Version of the plugin contract.
const Version = "v1"

// Interface is a computational module: it declares which catalog variables
// it consumes and produces, receives its inputs through PutData, computes in
// Connect and exposes results through GetData. Implementations must be safe
// to construct fresh for every execution; the engine never reuses instances.
type Interface interface {
	// Name is the unique human-readable identifier used for scheduling and
	// state labels.
	Name() string
	// Inputs lists every variable the interface reads, optional ones
	// included.
	Inputs() []domain.VariableID
	// OptionalInputs lists the subset of Inputs that may be absent.
	OptionalInputs() []domain.VariableID
	// Outputs lists every variable the interface can produce.
	Outputs() []domain.VariableID
	// Connect runs the computation. Inputs have been supplied via PutData
	// beforehand; outputs are read via GetData afterwards.
	Connect(ctx context.Context) error
	// PutData supplies one input value prior to Connect.
	PutData(id domain.VariableID, value domain.Structure) error
	// GetData retrieves one output value after Connect.
	GetData(id domain.VariableID) (domain.Structure, error)
}

// FileInterface is an Interface backed by an external file. Extensions
// returns the file extensions it understands, dot included ("*.csv" style
// globs are not used, plain ".csv").
type FileInterface interface {
	Interface
	Extensions() []string
	SetPath(path string)
}

// WeightedInterface declares a fixed position in an ordered pipeline.
// Weights must be unique within a hub and are scheduled in ascending order.
type WeightedInterface interface {
	Interface
	Weight() int
}

// Provider describes one discoverable interface implementation. New must
// return a fresh instance on every call.
type Provider struct {
	Name string
	New  func() (Interface, error)
}

// Plugin is a named bundle of providers registered with the socket.
type Plugin interface {
	Name() string
	Version() string
	Providers() []Provider
}

// Base carries the data-passing half of Interface: declared variable sets
// plus an input and output value store. Embed it and implement Name and
// Connect.
type Base struct {
	inputs   []domain.VariableID
	optional map[domain.VariableID]bool
	outputs  []domain.VariableID
	in       map[domain.VariableID]domain.Structure
	out      map[domain.VariableID]domain.Structure
}

// NewBase builds the shared plumbing for an interface. It fails with
// ErrValidation when an optional input is not also declared as an input.
func NewBase(inputs, optional, outputs []domain.VariableID) (*Base, error) {
	declared := make(map[domain.VariableID]bool, len(inputs))
	for _, id := range inputs {
		declared[id] = true
	}
	opt := make(map[domain.VariableID]bool, len(optional))
	for _, id := range optional {
		if !declared[id] {
			return nil, fmt.Errorf("%w: optional input %s is not a declared input", domain.ErrValidation, id)
		}
		opt[id] = true
	}
	return &Base{
		inputs:   append([]domain.VariableID(nil), inputs...),
		optional: opt,
		outputs:  append([]domain.VariableID(nil), outputs...),
		in:       make(map[domain.VariableID]domain.Structure),
		out:      make(map[domain.VariableID]domain.Structure),
	}, nil
}

// Inputs returns the declared input identifiers.
func (b *Base) Inputs() []domain.VariableID {
	return append([]domain.VariableID(nil), b.inputs...)
}

// OptionalInputs returns the declared optional input identifiers.
func (b *Base) OptionalInputs() []domain.VariableID {
	out := make([]domain.VariableID, 0, len(b.optional))
	for _, id := range b.inputs {
		if b.optional[id] {
			out = append(out, id)
		}
	}
	return out
}

// RequiredInputs returns the inputs that must be present before execution.
func (b *Base) RequiredInputs() []domain.VariableID {
	out := make([]domain.VariableID, 0, len(b.inputs))
	for _, id := range b.inputs {
		if !b.optional[id] {
			out = append(out, id)
		}
	}
	return out
}

// Outputs returns the declared output identifiers.
func (b *Base) Outputs() []domain.VariableID {
	return append([]domain.VariableID(nil), b.outputs...)
}

// PutData stores an input value. The identifier must be a declared input.
func (b *Base) PutData(id domain.VariableID, value domain.Structure) error {
	for _, declared := range b.inputs {
		if declared == id {
			b.in[id] = value
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not a declared input", domain.ErrValidation, id)
}

// Input returns a supplied input value. The boolean is false when the input
// was never supplied, which is legal for optional inputs.
func (b *Base) Input(id domain.VariableID) (domain.Structure, bool) {
	v, ok := b.in[id]
	return v, ok
}

// SetOutput records a computed output value. The identifier must be a
// declared output.
func (b *Base) SetOutput(id domain.VariableID, value domain.Structure) error {
	for _, declared := range b.outputs {
		if declared == id {
			b.out[id] = value
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not a declared output", domain.ErrValidation, id)
}

// GetData retrieves a computed output value.
func (b *Base) GetData(id domain.VariableID) (domain.Structure, error) {
	v, ok := b.out[id]
	if !ok {
		return nil, fmt.Errorf("%w: no value for output %s", domain.ErrNotFound, id)
	}
	return v, nil
}

// RequiredInputs extracts the non-optional inputs of any interface.
func RequiredInputs(iface Interface) []domain.VariableID {
	optional := make(map[domain.VariableID]bool)
	for _, id := range iface.OptionalInputs() {
		optional[id] = true
	}
	var out []domain.VariableID
	for _, id := range iface.Inputs() {
		if !optional[id] {
			out = append(out, id)
		}
	}
	return out
}
