package decoder

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ceilometer-etl/internal/domain"
)

const (
	clHeader = "\x01CL020221\x02"
	clStatus = "10 01230 ///// ///// 000000000080"
	clSky    = " 03 0120 0 //// 0 //// 0 //// 0 ////"
	clConfig = "00100 10 0004 098 +32 099 13 0621 L0016HN15 063"
)

func rawLine(n int, s string) RawLine {
	return RawLine{Number: n, Text: strings.TrimRight(s, " \t\r\n"), Raw: []byte(s + "\r\n")}
}

// feed steps the machine through lines, failing on anything but continue.
func feed(t *testing.T, m *Machine, st State, lines ...string) State {
	t.Helper()
	for i, s := range lines {
		var eff Effect
		st, eff = m.Step(st, rawLine(i+1, s))
		require.Equal(t, ActionContinue, eff.Action, "line %d %q: %v", i+1, s, eff.Err)
	}
	return st
}

func TestStepTimestampAndHeader(t *testing.T) {
	m := NewMachine(NewGrammar(), time.Time{}, false)

	t.Run("timestamp line", func(t *testing.T) {
		st := feed(t, m, State{}, "-2013-07-01 00:00:12")
		assert.Equal(t, StageHeader, st.Stage)
		assert.Equal(t, "2013-07-01T00:00:12", st.Record.TimeUTC.Or(""))
	})

	t.Run("missing timestamp reads the line as header", func(t *testing.T) {
		st := feed(t, m, State{}, clHeader)
		assert.Equal(t, StageStatus, st.Stage)
		assert.Equal(t, domain.DialectCL, st.Record.Dialect)
		assert.Equal(t, int64(202), st.Record.SoftwareLevel.Or(0))
		assert.Equal(t, int64(2), st.Record.MessageNumber.Or(0))
		assert.Equal(t, int64(1), st.Record.MessageSubclass.Or(0))
		assert.False(t, st.Record.TimeUTC.Declared())
	})

	t.Run("time-only line without a date warns", func(t *testing.T) {
		st, eff := m.Step(State{}, rawLine(1, "= 00:00:12"))
		assert.Equal(t, ActionContinue, eff.Action)
		assert.ErrorIs(t, eff.Warning, domain.ErrNoDate)
		assert.Equal(t, StageHeader, st.Stage)
	})

	t.Run("time-only line with a file date", func(t *testing.T) {
		dated := NewMachine(NewGrammar(), time.Date(2013, 7, 1, 0, 0, 0, 0, time.UTC), false)
		st := feed(t, dated, State{}, "= 00:00:12")
		assert.Equal(t, "2013-07-01T00:00:12", st.Record.TimeUTC.Or(""))
	})

	t.Run("unknown dialect", func(t *testing.T) {
		st, eff := m.Step(State{}, rawLine(1, "\x01XY020221\x02"))
		assert.Equal(t, ActionDrop, eff.Action)
		assert.Equal(t, StageTimestamp, st.Stage)
	})
}

func TestStepStatusBranches(t *testing.T) {
	m := NewMachine(NewGrammar(), time.Time{}, false)

	st := feed(t, m, State{}, clHeader, clStatus)
	assert.Equal(t, StageSky, st.Stage, "message number 2 carries sky condition")
	assert.Equal(t, "1", st.Record.DetectionStatus.Or(""))
	assert.Equal(t, int64(1230), st.Record.Raw.Height[0].Or(0))
	assert.False(t, st.Record.Raw.Height[1].Valid())
	assert.Equal(t, int64(0x80), st.Record.StatusInternal.Or(0))

	st = feed(t, m, State{}, "\x01CL020211\x02", clStatus)
	assert.Equal(t, StageConfig, st.Stage, "message number 1 has no sky condition")
}

func TestStepSkyCondition(t *testing.T) {
	m := NewMachine(NewGrammar(), time.Time{}, false)

	t.Run("octas", func(t *testing.T) {
		st := feed(t, m, State{}, clHeader, clStatus, clSky)
		r := st.Record
		assert.Equal(t, StageConfig, st.Stage)
		assert.Equal(t, int64(3), r.LayerCloudAmount[0].Or(-1))
		assert.Equal(t, int64(0), r.LayerCloudAmount[1].Or(-1))
		assert.Equal(t, int64(120), r.Raw.LayerHeight[0].Or(0))
		assert.False(t, r.Raw.LayerHeight[1].Valid())
	})

	t.Run("not enough data invalidates every amount", func(t *testing.T) {
		st := feed(t, m, State{}, clHeader, clStatus, " 99 0120 2 0250 0 //// 0 //// 0 ////")
		r := st.Record
		assert.Equal(t, int64(99), r.SkyDetectionStatus.Or(0))
		for i, amount := range r.LayerCloudAmount {
			assert.True(t, amount.Declared(), "layer %d", i+1)
			assert.False(t, amount.Valid(), "layer %d", i+1)
		}
		assert.Equal(t, int64(120), r.Raw.LayerHeight[0].Or(0))
		assert.Equal(t, int64(250), r.Raw.LayerHeight[1].Or(0))
	})
}

func TestStepProfileAndChecksum(t *testing.T) {
	m := NewMachine(NewGrammar(), time.Time{}, true)
	st := feed(t, m, State{}, clHeader, clStatus, clSky, clConfig, "0000A000140001EFFFFF")
	require.Equal(t, StageChecksum, st.Stage)
	require.Len(t, st.Record.Raw.Backscatter, 4)
	assert.Equal(t, int64(-1), st.Record.Raw.Backscatter[3].Or(0))

	t.Run("checksum line emits", func(t *testing.T) {
		next, eff := m.Step(st, rawLine(6, "\x03beef\x04"))
		require.Equal(t, ActionEmit, eff.Action)
		assert.Equal(t, StageTimestamp, next.Stage)
		assert.Equal(t, int64(0xBEEF), eff.Record.Raw.Checksum.Or(0))
		assert.Equal(t, byte(0x03), eff.Record.Raw.Message[len(eff.Record.Raw.Message)-1])
		assert.Equal(t, byte('C'), eff.Record.Raw.Message[0], "message starts after SOH")
	})

	t.Run("trailing epoch emits", func(t *testing.T) {
		_, eff := m.Step(st, rawLine(6, "1372636812"))
		require.Equal(t, ActionEmit, eff.Action)
		assert.Equal(t, "2013-07-01T00:00:12", eff.Record.TimeUTC.Or(""))
	})

	t.Run("next timestamp replays", func(t *testing.T) {
		next, eff := m.Step(st, rawLine(6, "-2013-07-01 00:00:30"))
		require.Equal(t, ActionEmitReplay, eff.Action)
		assert.Equal(t, State{}, next)
	})

	t.Run("next header replays", func(t *testing.T) {
		_, eff := m.Step(st, rawLine(6, clHeader))
		assert.Equal(t, ActionEmitReplay, eff.Action)
	})

	t.Run("garbage drops", func(t *testing.T) {
		next, eff := m.Step(st, rawLine(6, "garbage"))
		assert.Equal(t, ActionDrop, eff.Action)
		assert.ErrorIs(t, eff.Err, ErrGrammar)
		assert.Equal(t, StageTimestamp, next.Stage)
	})
}

func TestStepGrammarFailure(t *testing.T) {
	m := NewMachine(NewGrammar(), time.Time{}, false)
	st := feed(t, m, State{}, clHeader)

	t.Run("bad field resets", func(t *testing.T) {
		next, eff := m.Step(st, rawLine(2, "10 0X230 ///// ///// 000000000080"))
		assert.Equal(t, ActionDrop, eff.Action)
		assert.ErrorIs(t, eff.Err, domain.ErrField)
		assert.False(t, eff.Replay)
		assert.Equal(t, State{}, next)
	})

	t.Run("implausible epoch is not a record start", func(t *testing.T) {
		line := rawLine(2, "99999999999999")
		assert.False(t, m.StartsRecord(line))
		_, eff := m.Step(st, line)
		assert.Equal(t, ActionDrop, eff.Action)
		assert.False(t, eff.Replay)
	})

	t.Run("new record start is replayed", func(t *testing.T) {
		_, eff := m.Step(st, rawLine(2, "-2013-07-01 00:00:30"))
		assert.Equal(t, ActionDrop, eff.Action)
		assert.True(t, eff.Replay)
	})
}

func TestStepSegmentedProfile(t *testing.T) {
	m := NewMachine(NewGrammar(), time.Time{}, false)
	spec := domain.DialectCT.Spec()
	st := feed(t, m, State{},
		"\x01CT002061\x02",
		"20 00850 02400 ///// 00000080",
		"100 N 100 +25 100 0012 +01 0150 L0002HN15 052",
	)
	require.Equal(t, StageConfig, st.Stage)
	require.Equal(t, 1, st.Segment)
	require.Len(t, st.Record.Raw.Backscatter, spec.ProfileLength())

	segment := strings.Repeat("0001", 15) + "FFFF"
	st = feed(t, m, st, "016"+segment)
	assert.Equal(t, 2, st.Segment)
	assert.False(t, st.Record.Raw.Backscatter[0].Valid(), "unwritten samples stay missing")
	assert.Equal(t, int64(1), st.Record.Raw.Backscatter[16].Or(0))
	assert.Equal(t, int64(-1), st.Record.Raw.Backscatter[31].Or(0))
	assert.True(t, m.Complete(st), "a partial profile may finalize")

	t.Run("offset outside profile", func(t *testing.T) {
		_, eff := m.Step(st, rawLine(5, "250"+segment))
		assert.Equal(t, ActionDrop, eff.Action)
	})

	t.Run("all segments reach checksum", func(t *testing.T) {
		full := st
		for seg := 2; seg <= spec.ProfileSegments; seg++ {
			full = feed(t, m, full, "000"+segment)
		}
		assert.Equal(t, StageChecksum, full.Stage)
	})

	t.Run("next record cuts a partial profile short", func(t *testing.T) {
		_, eff := m.Step(st, rawLine(5, "-2013-07-01 00:00:30"))
		assert.Equal(t, ActionEmitReplay, eff.Action)
	})

	t.Run("earlier states are not modified", func(t *testing.T) {
		assert.False(t, st.Record.Raw.Backscatter[0].Valid())
		assert.Equal(t, int64(1), st.Record.Raw.Backscatter[16].Or(0))
	})
}

func TestStepLeavesInputStateUnchanged(t *testing.T) {
	m := NewMachine(NewGrammar(), time.Time{}, true)
	st := feed(t, m, State{},
		"\x01CT002061\x02",
		"20 00850 02400 ///// 00000080",
		"100 N 100 +25 100 0012 +01 0150 L0002HN15 052",
	)
	msg := string(st.Record.Raw.Message)

	a := feed(t, m, st, "000"+strings.Repeat("0001", 16))
	b := feed(t, m, st, "000"+strings.Repeat("0002", 16))

	assert.Equal(t, int64(1), a.Record.Raw.Backscatter[0].Or(0))
	assert.Equal(t, int64(2), b.Record.Raw.Backscatter[0].Or(0))
	assert.False(t, st.Record.Raw.Backscatter[0].Valid())

	assert.Equal(t, msg, string(st.Record.Raw.Message))
	assert.Contains(t, string(a.Record.Raw.Message), strings.Repeat("0001", 16))
	assert.NotContains(t, string(a.Record.Raw.Message), strings.Repeat("0002", 16))
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "instrument config", StageConfig.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
