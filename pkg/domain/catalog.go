package domain

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
)

// VariableID is an opaque, hierarchical key naming one logical quantity,
// e.g. "site:wave:dir". Identifiers are unique within a catalog.
type VariableID string

func (v VariableID) validate() error {
	s := string(v)
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: empty variable identifier", ErrValidation)
	}
	if strings.ContainsAny(s, " \t\n") {
		return fmt.Errorf("%w: variable identifier %q contains whitespace", ErrValidation, s)
	}
	return nil
}

// Metadata is the schema for one catalog variable: its structure kind plus
// optional constraints applied during validation.
type Metadata struct {
	Identifier VariableID `json:"identifier"`
	Title      string     `json:"title,omitempty"`
	Kind       Kind       `json:"kind"`
	Unit       string     `json:"unit,omitempty"`

	// Minimum and Maximum bound numeric kinds (scalar, integer, number list,
	// number map, grid, time series) element-wise when set.
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`

	// Columns is the required column set for table variables, in order.
	Columns []string `json:"columns,omitempty"`

	// Allowed restricts text variables (and text list elements) to a
	// categorical value set when non-empty.
	Allowed []string `json:"allowed,omitempty"`
}

func (m Metadata) validate() error {
	if err := m.Identifier.validate(); err != nil {
		return err
	}
	switch m.Kind {
	case KindScalar, KindInteger, KindFlag, KindText, KindTextList,
		KindNumberList, KindNumberMap, KindTable, KindGrid,
		KindTimeSeries, KindPoint, KindPolygon:
	default:
		return fmt.Errorf("%w: variable %s has unknown kind %q",
			ErrValidation, m.Identifier, m.Kind)
	}
	if m.Minimum != nil && m.Maximum != nil && *m.Minimum > *m.Maximum {
		return fmt.Errorf("%w: variable %s has minimum %v above maximum %v",
			ErrValidation, m.Identifier, *m.Minimum, *m.Maximum)
	}
	if len(m.Columns) > 0 && m.Kind != KindTable {
		return fmt.Errorf("%w: variable %s declares columns but is not a table",
			ErrValidation, m.Identifier)
	}
	return nil
}

// Catalog is the registry of variable schemas. All values entering a data
// pool are validated against it first. Registration order is preserved.
type Catalog struct {
	order []VariableID
	meta  map[VariableID]Metadata
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{meta: make(map[VariableID]Metadata)}
}

// Add registers a variable schema. A duplicate identifier is an error.
func (c *Catalog) Add(m Metadata) error {
	if err := m.validate(); err != nil {
		return err
	}
	if _, exists := c.meta[m.Identifier]; exists {
		return fmt.Errorf("%w: variable %s already in catalog", ErrValidation, m.Identifier)
	}
	c.order = append(c.order, m.Identifier)
	c.meta[m.Identifier] = m
	return nil
}

// Identifiers returns the registered variable identifiers in insertion order.
func (c *Catalog) Identifiers() []VariableID {
	out := make([]VariableID, len(c.order))
	copy(out, c.order)
	return out
}

// Contains reports whether an identifier is registered.
func (c *Catalog) Contains(id VariableID) bool {
	_, ok := c.meta[id]
	return ok
}

// Metadata returns the schema for an identifier.
func (c *Catalog) Metadata(id VariableID) (Metadata, error) {
	m, ok := c.meta[id]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: variable %s not in catalog", ErrNotFound, id)
	}
	return m, nil
}

// Validate decodes a raw value into the structure variant declared for the
// identifier, enforcing its constraints. It is a pure function over the
// catalog and the candidate value: nothing is stored.
func (c *Catalog) Validate(id VariableID, raw any) (Structure, error) {
	m, err := c.Metadata(id)
	if err != nil {
		return nil, err
	}
	s, err := decodeRaw(m, raw)
	if err != nil {
		return nil, err
	}
	if err := checkConstraints(m, s); err != nil {
		return nil, err
	}
	return s, nil
}

// decodeRaw coerces a raw value into the variant named by the metadata.
func decodeRaw(m Metadata, raw any) (Structure, error) {
	fail := func(format string, args ...any) (Structure, error) {
		detail := fmt.Sprintf(format, args...)
		return nil, fmt.Errorf("%w: variable %s (%s): %s",
			ErrValidation, m.Identifier, m.Kind, detail)
	}
	switch m.Kind {
	case KindScalar:
		f, ok := toFloat(raw)
		if !ok {
			return fail("value %T is not numeric", raw)
		}
		return Scalar{Value: f}, nil
	case KindInteger:
		i, ok := toInt(raw)
		if !ok {
			return fail("value %T is not an integer", raw)
		}
		return Integer{Value: i}, nil
	case KindFlag:
		switch v := raw.(type) {
		case bool:
			return Flag{Value: v}, nil
		case Flag:
			return v, nil
		}
		return fail("value %T is not a bool", raw)
	case KindText:
		switch v := raw.(type) {
		case string:
			return Text{Value: v}, nil
		case Text:
			return v, nil
		}
		return fail("value %T is not a string", raw)
	case KindTextList:
		vals, ok := toStrings(raw)
		if !ok {
			return fail("value %T is not a string list", raw)
		}
		return TextList{Values: vals}, nil
	case KindNumberList:
		vals, ok := toFloats(raw)
		if !ok {
			return fail("value %T is not a numeric list", raw)
		}
		return NumberList{Values: vals}, nil
	case KindNumberMap:
		vals, ok := toFloatMap(raw)
		if !ok {
			return fail("value %T is not a numeric map", raw)
		}
		return NumberMap{Values: vals}, nil
	case KindTable:
		t, ok := raw.(Table)
		if !ok {
			if tp, okp := raw.(*Table); okp {
				t, ok = *tp, true
			}
		}
		if !ok {
			return fail("value %T is not a table", raw)
		}
		for i, row := range t.Rows {
			if len(row) != len(t.Columns) {
				return fail("row %d has %d cells, want %d", i, len(row), len(t.Columns))
			}
		}
		rows := make([][]string, len(t.Rows))
		for i, row := range t.Rows {
			rows[i] = slices.Clone(row)
		}
		return Table{Columns: slices.Clone(t.Columns), Rows: rows}, nil
	case KindGrid:
		g, ok := raw.(Grid)
		if !ok {
			return fail("value %T is not a grid", raw)
		}
		if g.NRows*g.NCols != len(g.Values) {
			return fail("grid is %dx%d but holds %d values", g.NRows, g.NCols, len(g.Values))
		}
		return Grid{NRows: g.NRows, NCols: g.NCols, Values: slices.Clone(g.Values)}, nil
	case KindTimeSeries:
		ts, ok := raw.(TimeSeries)
		if !ok {
			return fail("value %T is not a time series", raw)
		}
		if len(ts.Times) != len(ts.Values) {
			return fail("time series has %d timestamps for %d values",
				len(ts.Times), len(ts.Values))
		}
		for i := 1; i < len(ts.Times); i++ {
			if ts.Times[i].Before(ts.Times[i-1]) {
				return fail("timestamps are not ascending at index %d", i)
			}
		}
		return TimeSeries{Times: slices.Clone(ts.Times), Values: slices.Clone(ts.Values)}, nil
	case KindPoint:
		p, ok := raw.(Point)
		if !ok {
			return fail("value %T is not a point", raw)
		}
		return p, nil
	case KindPolygon:
		p, ok := raw.(Polygon)
		if !ok {
			return fail("value %T is not a polygon", raw)
		}
		if len(p.Points) < 3 {
			return fail("polygon needs at least 3 points, got %d", len(p.Points))
		}
		return Polygon{Points: slices.Clone(p.Points)}, nil
	}
	return fail("unsupported kind")
}

// checkConstraints applies bounds, column and categorical restrictions.
func checkConstraints(m Metadata, s Structure) error {
	outOfBounds := func(v float64) error {
		return fmt.Errorf("%w: variable %s: value %v outside bounds", ErrValidation, m.Identifier, v)
	}
	inBounds := func(v float64) bool {
		// NaN compares false against any bound, so reject it outright
		// whenever a bound is declared.
		if math.IsNaN(v) && (m.Minimum != nil || m.Maximum != nil) {
			return false
		}
		if m.Minimum != nil && v < *m.Minimum {
			return false
		}
		if m.Maximum != nil && v > *m.Maximum {
			return false
		}
		return true
	}
	switch v := s.(type) {
	case Scalar:
		if !inBounds(v.Value) {
			return outOfBounds(v.Value)
		}
	case Integer:
		if !inBounds(float64(v.Value)) {
			return outOfBounds(float64(v.Value))
		}
	case NumberList:
		for _, f := range v.Values {
			if !inBounds(f) {
				return outOfBounds(f)
			}
		}
	case NumberMap:
		for _, f := range v.Values {
			if !inBounds(f) {
				return outOfBounds(f)
			}
		}
	case Grid:
		for _, f := range v.Values {
			if !inBounds(f) {
				return outOfBounds(f)
			}
		}
	case TimeSeries:
		for _, f := range v.Values {
			if !inBounds(f) {
				return outOfBounds(f)
			}
		}
	case Text:
		if len(m.Allowed) > 0 && !contains(m.Allowed, v.Value) {
			return fmt.Errorf("%w: variable %s: %q is not an allowed value",
				ErrValidation, m.Identifier, v.Value)
		}
	case TextList:
		if len(m.Allowed) > 0 {
			for _, elem := range v.Values {
				if !contains(m.Allowed, elem) {
					return fmt.Errorf("%w: variable %s: %q is not an allowed value",
						ErrValidation, m.Identifier, elem)
				}
			}
		}
	case Table:
		if len(m.Columns) > 0 {
			if len(v.Columns) != len(m.Columns) {
				return fmt.Errorf("%w: variable %s: table has columns %v, want %v",
					ErrValidation, m.Identifier, v.Columns, m.Columns)
			}
			for i := range m.Columns {
				if v.Columns[i] != m.Columns[i] {
					return fmt.Errorf("%w: variable %s: table has columns %v, want %v",
						ErrValidation, m.Identifier, v.Columns, m.Columns)
				}
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, elem := range list {
		if elem == s {
			return true
		}
	}
	return false
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case Scalar:
		return v.Value, true
	}
	return 0, false
}

func toInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	case Integer:
		return v.Value, true
	}
	return 0, false
}

// The coercion helpers copy caller-owned storage so that decoded variants
// never share backing arrays or maps with the raw input.
func toFloats(raw any) ([]float64, bool) {
	switch v := raw.(type) {
	case []float64:
		return slices.Clone(v), true
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out, true
	case []any:
		out := make([]float64, len(v))
		for i, elem := range v {
			f, ok := toFloat(elem)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	case NumberList:
		return slices.Clone(v.Values), true
	}
	return nil, false
}

func toStrings(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return slices.Clone(v), true
	case TextList:
		return slices.Clone(v.Values), true
	case []any:
		out := make([]string, len(v))
		for i, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func toFloatMap(raw any) (map[string]float64, bool) {
	switch v := raw.(type) {
	case map[string]float64:
		return maps.Clone(v), true
	case NumberMap:
		return maps.Clone(v.Values), true
	case map[string]any:
		out := make(map[string]float64, len(v))
		for k, elem := range v {
			f, ok := toFloat(elem)
			if !ok {
				return nil, false
			}
			out[k] = f
		}
		return out, true
	}
	return nil, false
}

// Equals reports structural equality between two structures of any variant.
// It exists so callers outside the package do not need to reason about the
// variant set; nil arguments are never equal.
func Equals(a, b Structure) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Equal(b)
}
