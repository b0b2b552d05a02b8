package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampResolver(t *testing.T) {
	tr := NewTimestampResolver()
	date := time.Date(2013, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		line string
		date time.Time
		want time.Time
	}{
		{"explicit with marker", "-2013-07-01 00:00:12", time.Time{}, time.Date(2013, 7, 1, 0, 0, 12, 0, time.UTC)},
		{"explicit without marker", "2013-07-01T23:59:59", time.Time{}, time.Date(2013, 7, 1, 23, 59, 59, 0, time.UTC)},
		{"explicit fractional", "-2013-07-01 00:00:12.25", time.Time{}, time.Date(2013, 7, 1, 0, 0, 12, 250_000_000, time.UTC)},
		{"epoch", "1372636812", time.Time{}, time.Date(2013, 7, 1, 0, 0, 12, 0, time.UTC)},
		{"fractional epoch", "1372636812.5", time.Time{}, time.Date(2013, 7, 1, 0, 0, 12, 500_000_000, time.UTC)},
		{"time only", "= 00:10:30", date, time.Date(2013, 7, 1, 0, 10, 30, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.Resolve(tt.line, tt.date)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	t.Run("time only without date", func(t *testing.T) {
		_, err := tr.Resolve("= 00:10:30", time.Time{})
		assert.ErrorIs(t, err, ErrNoDate)
	})

	t.Run("header line is not a timestamp", func(t *testing.T) {
		_, err := tr.Resolve("\x01CL020221\x02", date)
		assert.ErrorIs(t, err, ErrNoTimestamp)
	})

	t.Run("implausible epoch", func(t *testing.T) {
		_, err := tr.Resolve("99999999999999", date)
		assert.ErrorIs(t, err, ErrNoTimestamp)
	})

	t.Run("epoch detection", func(t *testing.T) {
		assert.True(t, tr.IsEpoch("1372636812"))
		assert.True(t, tr.IsEpoch("1372636812.5"))
		assert.False(t, tr.IsEpoch("99999999999999"), "digit runs beyond the epoch range")
		assert.False(t, tr.IsEpoch("00100 10"))
	})

	t.Run("banner detection", func(t *testing.T) {
		assert.True(t, tr.IsBannerTimestamp("-2013-07-01 00:00:12"))
		assert.True(t, tr.IsBannerTimestamp("= 00:00:12"))
		assert.False(t, tr.IsBannerTimestamp("-------- log opened --------"))
		assert.False(t, tr.IsBannerTimestamp("===="))
	})
}

func TestDateFromFileName(t *testing.T) {
	got, ok := DateFromFileName("/data/raw/A1307010.DAT")
	require.True(t, ok)
	assert.Equal(t, time.Date(2013, 7, 1, 0, 0, 0, 0, time.UTC), got)

	got, ok = DateFromFileName("site_991332_130228.dat")
	require.True(t, ok, "first run has an invalid month, the second is used")
	assert.Equal(t, time.Date(2013, 2, 28, 0, 0, 0, 0, time.UTC), got)

	_, ok = DateFromFileName("ceilometer.dat")
	assert.False(t, ok)

	_, ok = DateFromFileName("A130231.dat")
	assert.False(t, ok, "February 31st is not a date")
}

func TestParseTimeArg(t *testing.T) {
	want := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, s := range []string{"2020-01-02T03:04:05Z", "2020-01-02T03:04:05", "2020-01-02 03:04:05", "1577934245"} {
		got, err := ParseTimeArg(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), s)
	}

	_, err := ParseTimeArg("yesterday")
	assert.Error(t, err)
}

func TestRecordTime(t *testing.T) {
	var r Record
	_, ok := r.Timestamp()
	assert.False(t, ok)

	at := time.Date(2013, 7, 1, 0, 0, 12, 500_000_000, time.UTC)
	r.SetTime(at)
	assert.Equal(t, "2013-07-01T00:00:12", r.TimeUTC.Or(""))
	assert.InDelta(t, 1372636812.5, r.Time.Or(0), 1e-6)

	got, ok := r.Timestamp()
	require.True(t, ok)
	assert.WithinDuration(t, at, got, time.Microsecond)
}
