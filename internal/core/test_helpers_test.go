package core

import (
	"context"
	"testing"

	"simcore/pkg/domain"
	"simcore/pkg/pluginapi"
)

// testInterface is a scriptable plain interface fixture.
type testInterface struct {
	*pluginapi.Base
	name    string
	connect func(ctx context.Context, b *pluginapi.Base) error
}

func (t *testInterface) Name() string { return t.name }

func (t *testInterface) Connect(ctx context.Context) error {
	if t.connect == nil {
		return nil
	}
	return t.connect(ctx, t.Base)
}

// weightedIface adds a pipeline weight to a plain fixture.
type weightedIface struct {
	*testInterface
	weight int
}

func (w *weightedIface) Weight() int { return w.weight }

// fileIface adds file handling to a plain fixture.
type fileIface struct {
	*testInterface
	exts []string
	path string
}

func (f *fileIface) Extensions() []string { return f.exts }
func (f *fileIface) SetPath(path string)  { f.path = path }

type ifaceSpec struct {
	name     string
	inputs   []VariableID
	optional []VariableID
	outputs  []VariableID
	weight   *int
	exts     []string
	connect  func(ctx context.Context, b *pluginapi.Base) error
	newErr   error
}

type testPlugin struct {
	name  string
	specs []ifaceSpec
}

func (p testPlugin) Name() string    { return p.name }
func (p testPlugin) Version() string { return "0.0.1" }

func (p testPlugin) Providers() []pluginapi.Provider {
	providers := make([]pluginapi.Provider, 0, len(p.specs))
	for _, spec := range p.specs {
		spec := spec
		providers = append(providers, pluginapi.Provider{
			Name: spec.name,
			New: func() (pluginapi.Interface, error) {
				if spec.newErr != nil {
					return nil, spec.newErr
				}
				base, err := pluginapi.NewBase(spec.inputs, spec.optional, spec.outputs)
				if err != nil {
					return nil, err
				}
				ti := &testInterface{Base: base, name: spec.name, connect: spec.connect}
				switch {
				case len(spec.exts) > 0:
					return &fileIface{testInterface: ti, exts: spec.exts}, nil
				case spec.weight != nil:
					return &weightedIface{testInterface: ti, weight: *spec.weight}, nil
				default:
					return ti, nil
				}
			},
		})
	}
	return providers
}

func intPtr(v int) *int { return &v }

func testCatalog(t *testing.T, ids ...VariableID) *Catalog {
	t.Helper()
	c := domain.NewCatalog()
	for _, id := range ids {
		if err := c.Add(domain.Metadata{Identifier: id, Kind: domain.KindScalar}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	return c
}

// emitScalar wires a connect function that writes a fixed scalar to each of
// the given outputs.
func emitScalar(value float64, outputs ...VariableID) func(context.Context, *pluginapi.Base) error {
	return func(_ context.Context, b *pluginapi.Base) error {
		for _, id := range outputs {
			if err := b.SetOutput(id, domain.Scalar{Value: value}); err != nil {
				return err
			}
		}
		return nil
	}
}
