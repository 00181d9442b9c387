// Package tidal is the reference plugin: a small tidal-array sizing pipeline
// exercising scalar, integer, list and table variables plus a file-backed
// import.
package tidal

import (
	"context"
	"fmt"
	"math"

	"simcore/pkg/domain"
	"simcore/pkg/pluginapi"
)

// Plugin bundles the tidal demo providers.
type Plugin struct{}

// New constructs a tidal plugin instance.
func New() Plugin {
	return Plugin{}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return "tidal" }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.1.0" }

// Providers lists the interfaces contributed by the plugin.
func (Plugin) Providers() []pluginapi.Provider {
	return []pluginapi.Provider{
		{Name: "device rating", New: func() (pluginapi.Interface, error) { return newDeviceRating() }},
		{Name: "array yield", New: func() (pluginapi.Interface, error) { return newArrayYield() }},
		{Name: "bathymetry import", New: func() (pluginapi.Interface, error) { return newBathymetryImport() }},
	}
}

func floatPtr(v float64) *float64 { return &v }

// Definitions returns the catalog metadata for every variable the plugin
// reads or writes.
func Definitions() []domain.Metadata {
	return []domain.Metadata{
		{Identifier: "site.mean_velocity", Title: "Mean spring tidal velocity", Kind: domain.KindScalar, Unit: "m/s", Minimum: floatPtr(0)},
		{Identifier: "device.rotor_diameter", Title: "Rotor diameter", Kind: domain.KindScalar, Unit: "m", Minimum: floatPtr(0)},
		{Identifier: "device.rated_power", Title: "Rated power", Kind: domain.KindScalar, Unit: "kW", Minimum: floatPtr(0)},
		{Identifier: "array.device_count", Title: "Number of devices", Kind: domain.KindInteger, Minimum: floatPtr(1)},
		{Identifier: "array.capacity_factor", Title: "Capacity factor", Kind: domain.KindScalar, Minimum: floatPtr(0), Maximum: floatPtr(1)},
		{Identifier: "array.annual_yield", Title: "Annual energy yield", Kind: domain.KindScalar, Unit: "MWh", Minimum: floatPtr(0)},
		{Identifier: "site.bathymetry", Title: "Bathymetry soundings", Kind: domain.KindTable, Columns: []string{"x", "y", "depth"}},
	}
}

const (
	seawaterDensity  = 1025.0 // kg/m3
	powerCoefficient = 0.41
	defaultCapacity  = 0.35
)

// deviceRating computes a turbine power rating from rotor size and flow.
type deviceRating struct {
	*pluginapi.Base
}

func newDeviceRating() (*deviceRating, error) {
	base, err := pluginapi.NewBase(
		[]domain.VariableID{"site.mean_velocity", "device.rotor_diameter"},
		nil,
		[]domain.VariableID{"device.rated_power"},
	)
	if err != nil {
		return nil, err
	}
	return &deviceRating{Base: base}, nil
}

func (*deviceRating) Name() string { return "device rating" }

func (*deviceRating) Weight() int { return 10 }

func (d *deviceRating) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	velocity, err := scalarInput(d.Base, "site.mean_velocity")
	if err != nil {
		return err
	}
	diameter, err := scalarInput(d.Base, "device.rotor_diameter")
	if err != nil {
		return err
	}
	area := math.Pi * diameter * diameter / 4
	watts := 0.5 * seawaterDensity * area * math.Pow(velocity, 3) * powerCoefficient
	return d.SetOutput("device.rated_power", domain.Scalar{Value: watts / 1000})
}

// arrayYield scales a device rating to annual array output.
type arrayYield struct {
	*pluginapi.Base
}

func newArrayYield() (*arrayYield, error) {
	base, err := pluginapi.NewBase(
		[]domain.VariableID{"device.rated_power", "array.device_count", "array.capacity_factor"},
		[]domain.VariableID{"array.capacity_factor"},
		[]domain.VariableID{"array.annual_yield"},
	)
	if err != nil {
		return nil, err
	}
	return &arrayYield{Base: base}, nil
}

func (*arrayYield) Name() string { return "array yield" }

func (*arrayYield) Weight() int { return 20 }

func (a *arrayYield) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rated, err := scalarInput(a.Base, "device.rated_power")
	if err != nil {
		return err
	}
	countValue, ok := a.Input("array.device_count")
	if !ok {
		return fmt.Errorf("%w: array.device_count not supplied", domain.ErrScheduling)
	}
	count, ok := countValue.(domain.Integer)
	if !ok {
		return fmt.Errorf("%w: array.device_count is %T", domain.ErrValidation, countValue)
	}
	capacity := defaultCapacity
	if v, ok := a.Input("array.capacity_factor"); ok {
		s, ok := v.(domain.Scalar)
		if !ok {
			return fmt.Errorf("%w: array.capacity_factor is %T", domain.ErrValidation, v)
		}
		capacity = s.Value
	}
	const hoursPerYear = 8766
	yield := rated * float64(count.Value) * capacity * hoursPerYear / 1000
	return a.SetOutput("array.annual_yield", domain.Scalar{Value: yield})
}

func scalarInput(b *pluginapi.Base, id domain.VariableID) (float64, error) {
	v, ok := b.Input(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s not supplied", domain.ErrScheduling, id)
	}
	s, ok := v.(domain.Scalar)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T", domain.ErrValidation, id, v)
	}
	return s.Value, nil
}
