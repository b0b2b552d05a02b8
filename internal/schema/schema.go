// Package schema declares the output variables and derives, from a decoded
// record sequence, which of them a sink must write. Missing values are
// translated to per-type sentinels here and nowhere else.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/ceilometer-etl/internal/domain"
)

// Dimension names.
const (
	DimTime  = "time"
	DimLevel = "level"
	DimLayer = "layer"
)

// Software and Version identify the producer in output metadata. Version is
// overridden at link time for releases.
var (
	Software = "ceilometer-etl"
	Version  = "dev"
)

// Missing-value sentinels at the sink boundary.
const (
	MissingInt32 = math.MinInt32
	MissingInt64 = math.MinInt64
)

// ErrCatalogue reports an inconsistent variable catalogue.
var ErrCatalogue = errors.New("invalid variable catalogue")

//go:embed variables.yaml
var catalogueYAML []byte

// Variable is one output variable.
type Variable struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Dims       []string          `yaml:"dims"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

// Catalogue is the ordered set of known variables.
type Catalogue struct {
	vars []Variable
}

// NewCatalogue parses the embedded catalogue and checks that every entry
// can be read from a record.
func NewCatalogue() (*Catalogue, error) {
	var vars []Variable
	if err := yaml.Unmarshal(catalogueYAML, &vars); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogue, err)
	}
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if _, ok := accessors[v.Name]; !ok {
			return nil, fmt.Errorf("%w: no accessor for %q", ErrCatalogue, v.Name)
		}
		if len(v.Dims) == 0 || v.Dims[0] != DimTime {
			return nil, fmt.Errorf("%w: %q must vary along %s", ErrCatalogue, v.Name, DimTime)
		}
		seen[v.Name] = true
	}
	for name := range accessors {
		if !seen[name] {
			return nil, fmt.Errorf("%w: %q missing", ErrCatalogue, name)
		}
	}
	return &Catalogue{vars: vars}, nil
}

// Variables returns the full catalogue in declaration order.
func (c *Catalogue) Variables() []Variable {
	return slices.Clone(c.vars)
}

// Schema is the output layout for one record sequence.
type Schema struct {
	Variables []Variable
	Records   int
	// Levels is the longest backscatter profile.
	Levels int
	// Layers is LayerCount when any sky layer variable is present.
	Layers int
}

// Derive keeps the variables populated by at least one record and sizes
// the level and layer dimensions.
func (c *Catalogue) Derive(records []domain.Record) Schema {
	s := Schema{Records: len(records)}
	for _, r := range records {
		s.Levels = max(s.Levels, len(r.Backscatter))
	}
	for _, v := range c.vars {
		present := accessors[v.Name].present
		if !slices.ContainsFunc(records, present) {
			continue
		}
		s.Variables = append(s.Variables, v)
		if slices.Contains(v.Dims, DimLayer) {
			s.Layers = domain.LayerCount
		}
	}
	return s
}

// Dimensions returns the size of every dimension in use.
func (s Schema) Dimensions() map[string]int {
	dims := map[string]int{DimTime: s.Records}
	if s.Levels > 0 {
		dims[DimLevel] = s.Levels
	}
	if s.Layers > 0 {
		dims[DimLayer] = s.Layers
	}
	return dims
}

// Values returns the elements of v for r: one for time series, Levels for
// profiles and Layers for sky layers. Missing elements are nil.
func (s Schema) Values(v Variable, r domain.Record) []any {
	return accessors[v.Name].values(r, s.Levels)
}

// Columns names the flat columns of v: the variable name itself, or one
// column per level or layer.
func (s Schema) Columns(v Variable) []string {
	switch {
	case slices.Contains(v.Dims, DimLevel):
		cols := make([]string, s.Levels)
		for i := range cols {
			cols[i] = v.Name + "_" + strconv.Itoa(i)
		}
		return cols
	case slices.Contains(v.Dims, DimLayer):
		cols := make([]string, domain.LayerCount)
		for i := range cols {
			cols[i] = v.Name + "_" + strconv.Itoa(i+1)
		}
		return cols
	default:
		return []string{v.Name}
	}
}

// Sentinel is the fill value written for a missing element of the given
// type.
func Sentinel(typ string) any {
	switch {
	case typ == "i4":
		return int64(MissingInt32)
	case typ == "i8":
		return int64(MissingInt64)
	case typ == "f4", typ == "f8":
		return math.NaN()
	default:
		return ""
	}
}

// Fill replaces missing elements with the sentinel for v's type.
func Fill(v Variable, values []any) []any {
	out := make([]any, len(values))
	for i, x := range values {
		if x == nil {
			x = Sentinel(v.Type)
		}
		out[i] = x
	}
	return out
}

// Format renders one element as text; missing elements become sentinels.
func Format(v Variable, x any) string {
	if x == nil {
		x = Sentinel(v.Type)
	}
	switch x := x.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		bits := 64
		if v.Type == "f4" {
			bits = 32
		}
		return strconv.FormatFloat(x, 'g', -1, bits)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// Attributes returns the global metadata for an output file.
func Attributes(source string, dialect domain.Dialect) map[string]string {
	return map[string]string{
		"software": Software,
		"version":  Version,
		"created":  domain.Now().Format("2006-01-02T15:04:05Z"),
		"dialect":  string(dialect),
		"source":   source,
	}
}

// Document is the self-describing side-car written next to tabular output.
type Document struct {
	Global     map[string]string `yaml:"global"`
	Dimensions map[string]int    `yaml:"dimensions"`
	Variables  []Variable        `yaml:"variables"`
}

// Document describes s with the given global attributes.
func (s Schema) Document(global map[string]string) Document {
	return Document{Global: global, Dimensions: s.Dimensions(), Variables: s.Variables}
}

// Has reports whether the schema carries the named variable.
func (s Schema) Has(name string) bool {
	return slices.ContainsFunc(s.Variables, func(v Variable) bool { return strings.EqualFold(v.Name, name) })
}
