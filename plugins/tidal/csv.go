package tidal

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"simcore/pkg/domain"
	"simcore/pkg/pluginapi"
)

var bathymetryColumns = []string{"x", "y", "depth"}

// bathymetryImport reads site soundings from a CSV file into a table
// variable. The file must carry the x,y,depth header row.
type bathymetryImport struct {
	*pluginapi.Base
	path string
}

func newBathymetryImport() (*bathymetryImport, error) {
	base, err := pluginapi.NewBase(
		nil,
		nil,
		[]domain.VariableID{"site.bathymetry"},
	)
	if err != nil {
		return nil, err
	}
	return &bathymetryImport{Base: base}, nil
}

func (*bathymetryImport) Name() string { return "bathymetry import" }

// Extensions implements pluginapi.FileInterface.
func (*bathymetryImport) Extensions() []string { return []string{".csv"} }

// SetPath implements pluginapi.FileInterface.
func (b *bathymetryImport) SetPath(path string) { b.path = path }

func (b *bathymetryImport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.path == "" {
		return fmt.Errorf("%w: no file path set", domain.ErrConnection)
	}
	f, err := os.Open(b.path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", domain.ErrConnection, b.path, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: %s is empty", domain.ErrConnection, b.path)
	}
	header := records[0]
	if len(header) != len(bathymetryColumns) {
		return fmt.Errorf("%w: %s has %d columns, want %d", domain.ErrConnection, b.path, len(header), len(bathymetryColumns))
	}
	for i, want := range bathymetryColumns {
		if header[i] != want {
			return fmt.Errorf("%w: %s column %d is %q, want %q", domain.ErrConnection, b.path, i, header[i], want)
		}
	}
	table := domain.Table{Columns: bathymetryColumns, Rows: records[1:]}
	return b.SetOutput("site.bathymetry", table)
}
