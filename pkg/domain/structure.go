package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Kind names a supported value shape. The set is closed: extending the engine
// means adding a new Kind and variant here, never probing arbitrary values.
type Kind string

const (
	KindScalar     Kind = "scalar"
	KindInteger    Kind = "integer"
	KindFlag       Kind = "flag"
	KindText       Kind = "text"
	KindTextList   Kind = "text_list"
	KindNumberList Kind = "number_list"
	KindNumberMap  Kind = "number_map"
	KindTable      Kind = "table"
	KindGrid       Kind = "grid"
	KindTimeSeries Kind = "time_series"
	KindPoint      Kind = "point"
	KindPolygon    Kind = "polygon"
)

// Structure is a typed value wrapper stored in the data pool. Implementations
// form a closed variant set; each supports structural equality and round-trips
// through the JSON envelope produced by EncodeStructure.
type Structure interface {
	Kind() Kind
	// Equal reports structural equality against another structure. Numeric
	// variants compare element-wise with the tolerance policy documented on
	// almostEqual; discrete variants compare exactly.
	Equal(other Structure) bool
}

// Tolerance policy for numeric equality. Recomputed scientific values differ
// in the final ulps, so bit-exact comparison would defeat pool deduplication.
// Two floats are considered equal when they match exactly, when their
// difference is below the absolute floor, or when it is within the relative
// tolerance of the larger magnitude. NaN compares equal to NaN so that a
// recomputed missing value deduplicates against the stored one.
const (
	relTolerance = 1e-9
	absTolerance = 1e-12
)

func almostEqual(a, b float64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	diff := math.Abs(a - b)
	if diff <= absTolerance {
		return true
	}
	return diff <= relTolerance*math.Max(math.Abs(a), math.Abs(b))
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !almostEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Scalar holds a single floating-point quantity.
type Scalar struct {
	Value float64 `json:"value"`
}

func (Scalar) Kind() Kind { return KindScalar }

func (s Scalar) Equal(other Structure) bool {
	o, ok := other.(Scalar)
	return ok && almostEqual(s.Value, o.Value)
}

// Integer holds a single integral quantity. Equality is exact.
type Integer struct {
	Value int64 `json:"value"`
}

func (Integer) Kind() Kind { return KindInteger }

func (i Integer) Equal(other Structure) bool {
	o, ok := other.(Integer)
	return ok && i.Value == o.Value
}

// Flag holds a boolean quantity.
type Flag struct {
	Value bool `json:"value"`
}

func (Flag) Kind() Kind { return KindFlag }

func (f Flag) Equal(other Structure) bool {
	o, ok := other.(Flag)
	return ok && f.Value == o.Value
}

// Text holds a single string, optionally constrained to a categorical set by
// catalog metadata.
type Text struct {
	Value string `json:"value"`
}

func (Text) Kind() Kind { return KindText }

func (t Text) Equal(other Structure) bool {
	o, ok := other.(Text)
	return ok && t.Value == o.Value
}

// TextList holds an ordered list of strings.
type TextList struct {
	Values []string `json:"values"`
}

func (TextList) Kind() Kind { return KindTextList }

func (t TextList) Equal(other Structure) bool {
	o, ok := other.(TextList)
	if !ok || len(t.Values) != len(o.Values) {
		return false
	}
	for i := range t.Values {
		if t.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

// NumberList holds an ordered list of floats.
type NumberList struct {
	Values []float64 `json:"values"`
}

func (NumberList) Kind() Kind { return KindNumberList }

func (n NumberList) Equal(other Structure) bool {
	o, ok := other.(NumberList)
	return ok && floatsEqual(n.Values, o.Values)
}

// NumberMap holds named floating-point quantities. Key order is irrelevant.
type NumberMap struct {
	Values map[string]float64 `json:"values"`
}

func (NumberMap) Kind() Kind { return KindNumberMap }

func (n NumberMap) Equal(other Structure) bool {
	o, ok := other.(NumberMap)
	if !ok || len(n.Values) != len(o.Values) {
		return false
	}
	for k, v := range n.Values {
		ov, ok := o.Values[k]
		if !ok || !almostEqual(v, ov) {
			return false
		}
	}
	return true
}

// Table holds a rectangular record set with named columns. Cells are strings;
// tables are treated as categorical data and compare exactly.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func (Table) Kind() Kind { return KindTable }

func (t Table) Equal(other Structure) bool {
	o, ok := other.(Table)
	if !ok || len(t.Columns) != len(o.Columns) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != o.Columns[i] {
			return false
		}
	}
	for i := range t.Rows {
		if len(t.Rows[i]) != len(o.Rows[i]) {
			return false
		}
		for j := range t.Rows[i] {
			if t.Rows[i][j] != o.Rows[i][j] {
				return false
			}
		}
	}
	return true
}

// Grid holds a dense two-dimensional numeric field in row-major order.
type Grid struct {
	NRows  int       `json:"nrows"`
	NCols  int       `json:"ncols"`
	Values []float64 `json:"values"`
}

func (Grid) Kind() Kind { return KindGrid }

func (g Grid) Equal(other Structure) bool {
	o, ok := other.(Grid)
	return ok && g.NRows == o.NRows && g.NCols == o.NCols &&
		floatsEqual(g.Values, o.Values)
}

// TimeSeries holds timestamped samples in ascending time order. Timestamps
// compare exactly, sample values with the numeric tolerance.
type TimeSeries struct {
	Times  []time.Time `json:"times"`
	Values []float64   `json:"values"`
}

func (TimeSeries) Kind() Kind { return KindTimeSeries }

func (ts TimeSeries) Equal(other Structure) bool {
	o, ok := other.(TimeSeries)
	if !ok || len(ts.Times) != len(o.Times) {
		return false
	}
	for i := range ts.Times {
		if !ts.Times[i].Equal(o.Times[i]) {
			return false
		}
	}
	return floatsEqual(ts.Values, o.Values)
}

// Point holds a planar coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (Point) Kind() Kind { return KindPoint }

func (p Point) Equal(other Structure) bool {
	o, ok := other.(Point)
	return ok && almostEqual(p.X, o.X) && almostEqual(p.Y, o.Y)
}

// Polygon holds an ordered ring of planar coordinates.
type Polygon struct {
	Points []Point `json:"points"`
}

func (Polygon) Kind() Kind { return KindPolygon }

func (p Polygon) Equal(other Structure) bool {
	o, ok := other.(Polygon)
	if !ok || len(p.Points) != len(o.Points) {
		return false
	}
	for i := range p.Points {
		if !p.Points[i].Equal(o.Points[i]) {
			return false
		}
	}
	return true
}

// structureEnvelope is the stored form of a structure: a kind tag plus the
// variant's own JSON payload. All persistence backends share this codec.
type structureEnvelope struct {
	Kind  Kind            `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// EncodeStructure serializes a structure into its tagged JSON envelope.
func EncodeStructure(s Structure) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: cannot encode nil structure", ErrSerialization)
	}
	value, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", ErrSerialization, s.Kind(), err)
	}
	return json.Marshal(structureEnvelope{Kind: s.Kind(), Value: value})
}

// DecodeStructure deserializes a tagged JSON envelope back into its variant.
// An unknown kind wraps ErrSerialization so partial loads can skip it.
func DecodeStructure(data []byte) (Structure, error) {
	var env structureEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrSerialization, err)
	}
	var target Structure
	switch env.Kind {
	case KindScalar:
		target = &Scalar{}
	case KindInteger:
		target = &Integer{}
	case KindFlag:
		target = &Flag{}
	case KindText:
		target = &Text{}
	case KindTextList:
		target = &TextList{}
	case KindNumberList:
		target = &NumberList{}
	case KindNumberMap:
		target = &NumberMap{}
	case KindTable:
		target = &Table{}
	case KindGrid:
		target = &Grid{}
	case KindTimeSeries:
		target = &TimeSeries{}
	case KindPoint:
		target = &Point{}
	case KindPolygon:
		target = &Polygon{}
	default:
		return nil, fmt.Errorf("%w: unknown structure kind %q", ErrSerialization, env.Kind)
	}
	if err := json.Unmarshal(env.Value, target); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrSerialization, env.Kind, err)
	}
	return deref(target), nil
}

// deref returns the value form of a decoded variant so Equal type assertions
// against freshly built structures succeed.
func deref(s Structure) Structure {
	switch v := s.(type) {
	case *Scalar:
		return *v
	case *Integer:
		return *v
	case *Flag:
		return *v
	case *Text:
		return *v
	case *TextList:
		return *v
	case *NumberList:
		return *v
	case *NumberMap:
		return *v
	case *Table:
		return *v
	case *Grid:
		return *v
	case *TimeSeries:
		return *v
	case *Point:
		return *v
	case *Polygon:
		return *v
	default:
		return s
	}
}
