package domain

import "fmt"

// Dialect identifies a device message grammar by its two-letter tag.
type Dialect string

const (
	DialectUnknown Dialect = ""
	// DialectCL covers the CL31 and CL51 ceilometers.
	DialectCL Dialect = "CL"
	// DialectCT covers the CT25K ceilometer.
	DialectCT Dialect = "CT"
)

// ParseDialect maps an embedded tag to a known dialect.
func ParseDialect(tag string) (Dialect, error) {
	switch d := Dialect(tag); d {
	case DialectCL, DialectCT:
		return d, nil
	default:
		return DialectUnknown, fmt.Errorf("unknown dialect tag %q", tag)
	}
}

// DialectSpec holds the per-dialect constants used by the decoder and the
// post-processor.
type DialectSpec struct {
	Dialect Dialect

	// Header field widths after the tag.
	SoftwareLevelWidth int
	MessageNumberWidth int

	// Status bitmask widths in hex digits.
	AlarmWidth   int
	WarningWidth int

	// HasSkyCondition is false when the dialect never sends the sky line.
	HasSkyCondition bool
	// SkyMessageNumber selects messages that carry the sky line.
	SkyMessageNumber int64

	// Segmented profiles arrive as ProfileSegments lines of SegmentSamples
	// samples each, SampleDigits hex digits per sample.
	Segmented       bool
	ProfileSegments int
	SegmentSamples  int
	SampleDigits    int

	ProfileBase  float64
	SumBase      float64
	NominalScale int64

	// PulseCount expands the coded pulse count.
	PulseCount func(coded int64) int64
	// SamplingMultiplier converts the coded sampling rate to Hz.
	SamplingMultiplier float64
	// FixedResolution is asserted when the message has no resolution field.
	FixedResolution int64

	UnitBit int64
}

// ProfileLength is the number of bins in a segmented profile.
func (s DialectSpec) ProfileLength() int {
	return s.ProfileSegments * s.SegmentSamples
}

var dialectSpecs = map[Dialect]DialectSpec{
	DialectCL: {
		Dialect:            DialectCL,
		SoftwareLevelWidth: 3,
		MessageNumberWidth: 1,
		AlarmWidth:         4,
		WarningWidth:       4,
		HasSkyCondition:    true,
		SkyMessageNumber:   2,
		SampleDigits:       5,
		ProfileBase:        100000,
		SumBase:            10000,
		NominalScale:       100,
		PulseCount:         func(c int64) int64 { return c * 1024 },
		SamplingMultiplier: 1e6,
		UnitBit:            0x0080,
	},
	DialectCT: {
		Dialect:            DialectCT,
		SoftwareLevelWidth: 2,
		MessageNumberWidth: 2,
		AlarmWidth:         2,
		WarningWidth:       2,
		Segmented:          true,
		ProfileSegments:    16,
		SegmentSamples:     16,
		SampleDigits:       4,
		ProfileBase:        10000,
		SumBase:            10000,
		NominalScale:       100,
		PulseCount:         func(c int64) int64 { return 1024 << (2 * c) },
		SamplingMultiplier: 1e6,
		FixedResolution:    30,
		UnitBit:            0x0080,
	},
}

// Spec returns the constants for d. It panics on an unknown dialect, which
// only happens if a caller bypasses ParseDialect.
func (d Dialect) Spec() DialectSpec {
	s, ok := dialectSpecs[d]
	if !ok {
		panic(fmt.Sprintf("domain: no spec for dialect %q", string(d)))
	}
	return s
}

// Dialects lists the supported dialects in tag order.
func Dialects() []Dialect {
	return []Dialect{DialectCL, DialectCT}
}
