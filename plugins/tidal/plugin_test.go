package tidal

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"simcore/internal/core"
	"simcore/pkg/domain"
	"simcore/pkg/pluginapi"
)

func almost(t *testing.T, got, want float64, what string) {
	t.Helper()
	if math.Abs(got-want) > 1e-9*math.Max(1, math.Abs(want)) {
		t.Fatalf("%s = %v, want %v", what, got, want)
	}
}

func TestDeviceRating(t *testing.T) {
	iface, err := newDeviceRating()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := iface.PutData("site.mean_velocity", domain.Scalar{Value: 2.5}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := iface.PutData("device.rotor_diameter", domain.Scalar{Value: 18}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := iface.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	got, err := iface.GetData("device.rated_power")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	area := math.Pi * 18 * 18 / 4
	want := 0.5 * 1025 * area * math.Pow(2.5, 3) * 0.41 / 1000
	almost(t, got.(domain.Scalar).Value, want, "rated power")
}

func TestDeviceRatingMissingInput(t *testing.T) {
	iface, err := newDeviceRating()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := iface.PutData("site.mean_velocity", domain.Scalar{Value: 2.5}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := iface.Connect(context.Background()); !errors.Is(err, domain.ErrScheduling) {
		t.Fatalf("connect = %v, want ErrScheduling", err)
	}
}

func TestArrayYield(t *testing.T) {
	run := func(t *testing.T, capacity *float64) float64 {
		t.Helper()
		iface, err := newArrayYield()
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if err := iface.PutData("device.rated_power", domain.Scalar{Value: 1200}); err != nil {
			t.Fatalf("put: %v", err)
		}
		if err := iface.PutData("array.device_count", domain.Integer{Value: 8}); err != nil {
			t.Fatalf("put: %v", err)
		}
		if capacity != nil {
			if err := iface.PutData("array.capacity_factor", domain.Scalar{Value: *capacity}); err != nil {
				t.Fatalf("put: %v", err)
			}
		}
		if err := iface.Connect(context.Background()); err != nil {
			t.Fatalf("connect: %v", err)
		}
		got, err := iface.GetData("array.annual_yield")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		return got.(domain.Scalar).Value
	}

	t.Run("default capacity", func(t *testing.T) {
		almost(t, run(t, nil), 1200*8*0.35*8766/1000, "yield")
	})
	t.Run("explicit capacity", func(t *testing.T) {
		capacity := 0.42
		almost(t, run(t, &capacity), 1200*8*0.42*8766/1000, "yield")
	})
}

func TestBathymetryImport(t *testing.T) {
	write := func(t *testing.T, body string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "soundings.csv")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		return path
	}

	t.Run("happy path", func(t *testing.T) {
		iface, err := newBathymetryImport()
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		iface.SetPath(write(t, "x,y,depth\n0,0,-12.5\n10,0,-14\n"))
		if err := iface.Connect(context.Background()); err != nil {
			t.Fatalf("connect: %v", err)
		}
		got, err := iface.GetData("site.bathymetry")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		table := got.(domain.Table)
		if len(table.Rows) != 2 || table.Rows[1][2] != "-14" {
			t.Fatalf("table = %+v", table)
		}
	})

	t.Run("no path", func(t *testing.T) {
		iface, _ := newBathymetryImport()
		if err := iface.Connect(context.Background()); !errors.Is(err, domain.ErrConnection) {
			t.Fatalf("connect = %v, want ErrConnection", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		iface, _ := newBathymetryImport()
		iface.SetPath(filepath.Join(t.TempDir(), "absent.csv"))
		if err := iface.Connect(context.Background()); !errors.Is(err, domain.ErrConnection) {
			t.Fatalf("connect = %v, want ErrConnection", err)
		}
	})

	t.Run("wrong header", func(t *testing.T) {
		iface, _ := newBathymetryImport()
		iface.SetPath(write(t, "lon,lat,z\n0,0,-1\n"))
		if err := iface.Connect(context.Background()); !errors.Is(err, domain.ErrConnection) {
			t.Fatalf("connect = %v, want ErrConnection", err)
		}
	})
}

func TestDefinitionsLoadIntoCatalog(t *testing.T) {
	catalog := domain.NewCatalog()
	for _, md := range Definitions() {
		if err := catalog.Add(md); err != nil {
			t.Fatalf("add %s: %v", md.Identifier, err)
		}
	}
	if _, err := catalog.Validate("array.capacity_factor", 1.2); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("capacity 1.2 = %v, want ErrValidation", err)
	}
	if _, err := catalog.Validate("array.device_count", 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("count 0 = %v, want ErrValidation", err)
	}
}

func TestPipelineThroughEngine(t *testing.T) {
	catalog := domain.NewCatalog()
	for _, md := range Definitions() {
		if err := catalog.Add(md); err != nil {
			t.Fatalf("add %s: %v", md.Identifier, err)
		}
	}
	registry := core.NewRegistry()
	if err := registry.Discover([]pluginapi.Plugin{New()}, core.DiscoverOptions{}); err != nil {
		t.Fatalf("discover: %v", err)
	}
	if got := registry.ByExtension("csv"); len(got) != 1 || got[0] != "bathymetry import" {
		t.Fatalf("by extension = %v", got)
	}

	svc := core.NewService(catalog, registry)
	if err := svc.CreateSimulation("array study"); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := svc.AddDatastate("", "site survey", map[domain.VariableID]any{
		"site.mean_velocity":    2.5,
		"device.rotor_diameter": 18.0,
		"array.device_count":    8,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	seq, err := core.NewSequencer(registry, []string{"array yield", "device rating"})
	if err != nil {
		t.Fatalf("new sequencer: %v", err)
	}
	if err := svc.RunSequencer(context.Background(), "", seq); err != nil {
		t.Fatalf("run: %v", err)
	}

	rated, err := svc.GetDataValue("", "device.rated_power")
	if err != nil {
		t.Fatalf("get rated: %v", err)
	}
	yield, err := svc.GetDataValue("", "array.annual_yield")
	if err != nil {
		t.Fatalf("get yield: %v", err)
	}
	wantRated := 0.5 * 1025 * (math.Pi * 18 * 18 / 4) * math.Pow(2.5, 3) * 0.41 / 1000
	almost(t, rated.(domain.Scalar).Value, wantRated, "rated power")
	almost(t, yield.(domain.Scalar).Value, wantRated*8*0.35*8766/1000, "annual yield")
}
