package schema_test

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ceilometer-etl/internal/domain"
	"github.com/couchcryptid/ceilometer-etl/internal/schema"
)

func names(vars []schema.Variable) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = v.Name
	}
	return out
}

func variable(t *testing.T, s schema.Schema, name string) schema.Variable {
	t.Helper()
	for _, v := range s.Variables {
		if v.Name == name {
			return v
		}
	}
	t.Fatalf("variable %q not in schema", name)
	return schema.Variable{}
}

func TestNewCatalogue(t *testing.T) {
	cat, err := schema.NewCatalogue()
	require.NoError(t, err)
	vars := cat.Variables()
	require.NotEmpty(t, vars)
	assert.Equal(t, "time_utc", vars[0].Name)
	assert.Contains(t, names(vars), "layer_cloud_amount")
	for _, v := range vars {
		assert.NotEmpty(t, v.Attributes["long_name"], v.Name)
	}
}

func TestDerive(t *testing.T) {
	cat, err := schema.NewCatalogue()
	require.NoError(t, err)

	withSky := domain.Record{
		Dialect:            domain.DialectCL,
		TimeUTC:            domain.Value("2013-07-01T00:00:12"),
		Time:               domain.Value(1372636812.0),
		CBH1:               domain.Value(1230.0),
		SkyDetectionStatus: domain.Value(int64(99)),
		LayerCloudAmount:   [domain.LayerCount]domain.Field[int64]{domain.Missing[int64]()},
		Backscatter:        []float64{1, 2, 3},
	}
	withoutSky := domain.Record{
		Dialect:     domain.DialectCL,
		TimeUTC:     domain.Missing[string](),
		Time:        domain.Missing[float64](),
		CBH1:        domain.Missing[float64](),
		Backscatter: []float64{1, math.NaN(), 3, 4, 5},
	}

	s := cat.Derive([]domain.Record{withSky, withoutSky})
	assert.Equal(t, 2, s.Records)
	assert.Equal(t, 5, s.Levels)
	assert.Equal(t, domain.LayerCount, s.Layers)
	assert.Equal(t, []string{"time_utc", "time", "backscatter", "cbh_1", "sky_detection_status", "layer_cloud_amount"}, names(s.Variables))
	assert.Equal(t, map[string]int{"time": 2, "level": 5, "layer": 5}, s.Dimensions())
	assert.False(t, s.Has("device"))

	bs := variable(t, s, "backscatter")
	assert.Equal(t, []any{1.0, 2.0, 3.0, nil, nil}, s.Values(bs, withSky), "short profiles are padded")
	assert.Equal(t, []any{1.0, nil, 3.0, 4.0, 5.0}, s.Values(bs, withoutSky))
	assert.Equal(t, []string{"backscatter_0", "backscatter_1", "backscatter_2", "backscatter_3", "backscatter_4"}, s.Columns(bs))

	amount := variable(t, s, "layer_cloud_amount")
	assert.Equal(t, []string{"layer_cloud_amount_1", "layer_cloud_amount_2", "layer_cloud_amount_3", "layer_cloud_amount_4", "layer_cloud_amount_5"}, s.Columns(amount))
	assert.Equal(t, []any{nil, nil, nil, nil, nil}, s.Values(amount, withSky))

	cbh := variable(t, s, "cbh_1")
	assert.Equal(t, []any{1230.0}, s.Values(cbh, withSky))
	assert.Equal(t, []any{nil}, s.Values(cbh, withoutSky))

	t.Run("no sky layers", func(t *testing.T) {
		s := cat.Derive([]domain.Record{withoutSky})
		assert.Zero(t, s.Layers)
		assert.NotContains(t, s.Dimensions(), "layer")
	})

	t.Run("no records", func(t *testing.T) {
		s := cat.Derive(nil)
		assert.Empty(t, s.Variables)
		assert.Zero(t, s.Levels)
	})
}

func TestSentinels(t *testing.T) {
	assert.Equal(t, int64(-1<<31), schema.Sentinel("i4"))
	assert.Equal(t, int64(-1<<63), schema.Sentinel("i8"))
	assert.True(t, math.IsNaN(schema.Sentinel("f4").(float64)))
	assert.Equal(t, "", schema.Sentinel("S1"))

	i4 := schema.Variable{Name: "scale", Type: "i4"}
	assert.Equal(t, []any{int64(100), int64(-1 << 31)}, schema.Fill(i4, []any{int64(100), nil}))
	assert.Equal(t, "-2147483648", schema.Format(i4, nil))
	assert.Equal(t, "100", schema.Format(i4, int64(100)))

	f4 := schema.Variable{Name: "cbh_1", Type: "f4"}
	assert.Equal(t, "NaN", schema.Format(f4, nil))
	assert.Equal(t, "374.904", schema.Format(f4, 374.904))

	s1 := schema.Variable{Name: "unit", Type: "S1"}
	assert.Equal(t, "", schema.Format(s1, nil))
}

func TestAttributes(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 4, 27, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	attrs := schema.Attributes("A1307010.DAT", domain.DialectCL)
	assert.Equal(t, "2024-04-27T06:00:00Z", attrs["created"])
	assert.Equal(t, "CL", attrs["dialect"])
	assert.Equal(t, "A1307010.DAT", attrs["source"])
	assert.Equal(t, schema.Software, attrs["software"])
}
